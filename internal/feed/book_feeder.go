// Package feed routes parsed book records from the signal bus into the live
// books and mirrors the resulting state back out. Exchange connectivity and
// message parsing live upstream; the feeder only consumes finished records.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/bookengine/internal/book"
	"github.com/alanyoungcy/bookengine/internal/domain"
	"github.com/alanyoungcy/bookengine/internal/replay"
)

// Config names the bus channels the feeder consumes and produces.
type Config struct {
	// RecordsChannel carries snapshot/diff/trade record envelopes in.
	RecordsChannel string

	// TopChannel receives a BookTop after every applied snapshot or diff.
	TopChannel string

	// TradeStream is the capped stream trades are appended to.
	TradeStream string

	// SnapshotDepth caps the number of levels mirrored to the book cache per
	// side. Zero or negative mirrors the full book.
	SnapshotDepth int
}

// BookFeeder subscribes to the records channel, applies each record to its
// book in the registry, mirrors depth to the book cache, republishes tops,
// and appends trades to the trade tape. The cache and recorder are optional.
type BookFeeder struct {
	bus      domain.SignalBus
	cache    domain.BookCache
	registry *book.Registry
	recorder *replay.Recorder
	cfg      Config
	logger   *slog.Logger
}

// NewBookFeeder creates a BookFeeder. cache and recorder may be nil to
// disable mirroring and archiving respectively.
func NewBookFeeder(bus domain.SignalBus, cache domain.BookCache, registry *book.Registry, recorder *replay.Recorder, cfg Config, logger *slog.Logger) *BookFeeder {
	return &BookFeeder{
		bus:      bus,
		cache:    cache,
		registry: registry,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "book_feeder")),
	}
}

// Run subscribes to the records channel and processes messages until the
// context is cancelled or the subscription closes.
func (f *BookFeeder) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, f.cfg.RecordsChannel)
	if err != nil {
		return err
	}
	f.logger.Info("book feeder started", slog.String("channel", f.cfg.RecordsChannel))
	defer f.logger.Info("book feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			if err := f.handleMessage(ctx, data); err != nil {
				f.logger.Debug("record dropped",
					slog.String("error", err.Error()),
					slog.Int("payload_len", len(data)),
				)
			}
		}
	}
}

func (f *BookFeeder) handleMessage(ctx context.Context, data []byte) error {
	env, err := domain.ParseEnvelope(data)
	if err != nil {
		return err
	}

	switch env.Kind {
	case domain.RecordKindSnapshot:
		rec, err := env.AsSnapshot()
		if err != nil {
			return err
		}
		ob := f.registry.GetOrCreate(rec.Venue, rec.TradingPair)
		ob.ApplySnapshot(
			book.EntriesFromRows(rec.Bids, rec.UpdateID),
			book.EntriesFromRows(rec.Asks, rec.UpdateID),
			rec.UpdateID,
		)
		f.record(ctx, rec)
		return f.mirror(ctx, ob, rec.Timestamp)

	case domain.RecordKindDiff:
		rec, err := env.AsDiff()
		if err != nil {
			return err
		}
		ob := f.registry.GetOrCreate(rec.Venue, rec.TradingPair)
		ob.ApplyDiffs(
			book.EntriesFromRows(rec.Bids, rec.UpdateID),
			book.EntriesFromRows(rec.Asks, rec.UpdateID),
			rec.UpdateID,
		)
		f.record(ctx, rec)
		f.mirrorDiff(ctx, rec)
		return f.publishTop(ctx, ob, rec.Timestamp)

	case domain.RecordKindTrade:
		rec, err := env.AsTrade()
		if err != nil {
			return err
		}
		return f.handleTrade(ctx, rec)

	default:
		return domain.ErrBadRecord
	}
}

func (f *BookFeeder) handleTrade(ctx context.Context, rec domain.TradeRecord) error {
	ob := f.registry.GetOrCreate(rec.Venue, rec.TradingPair)
	ob.ApplyTrade(book.TradeEvent{
		Venue:       rec.Venue,
		TradingPair: rec.TradingPair,
		TradeID:     rec.TradeID,
		Price:       rec.Price,
		Amount:      rec.Amount,
		Side:        rec.Side,
		Timestamp:   rec.Timestamp,
	})
	f.record(ctx, rec)

	if f.cfg.TradeStream == "" {
		return nil
	}
	payload, err := domain.WrapRecord(rec)
	if err != nil {
		return err
	}
	return f.bus.StreamAppend(ctx, f.cfg.TradeStream, payload)
}

// mirror rebaselines the cached book with a full depth snapshot and
// publishes the top.
func (f *BookFeeder) mirror(ctx context.Context, ob *book.OrderBook, ts time.Time) error {
	if f.cache != nil {
		snap := ob.DepthSnapshot(f.cfg.SnapshotDepth)
		if !ts.IsZero() {
			snap.Timestamp = ts
		}
		if err := f.cache.SetSnapshot(ctx, snap.Venue, snap.TradingPair, snap); err != nil {
			f.logger.Warn("book cache mirror failed",
				slog.String("venue", snap.Venue),
				slog.String("pair", snap.TradingPair),
				slog.String("error", err.Error()),
			)
		}
	}
	return f.publishTop(ctx, ob, ts)
}

// mirrorDiff pushes each changed level through the cache's atomic update
// script. Snapshots rebaseline the mirror, so a level the overlap resolver
// later drops only lingers until the next one.
func (f *BookFeeder) mirrorDiff(ctx context.Context, rec domain.DiffRecord) {
	if f.cache == nil {
		return
	}
	for _, row := range rec.Bids {
		f.mirrorLevel(ctx, rec.Venue, rec.TradingPair, domain.SideBuy, row)
	}
	for _, row := range rec.Asks {
		f.mirrorLevel(ctx, rec.Venue, rec.TradingPair, domain.SideSell, row)
	}
}

func (f *BookFeeder) mirrorLevel(ctx context.Context, venue, pair string, side domain.Side, row domain.LevelRow) {
	if err := f.cache.UpdateLevel(ctx, venue, pair, side, row.Price, row.Amount); err != nil {
		f.logger.Warn("book cache level update failed",
			slog.String("venue", venue),
			slog.String("pair", pair),
			slog.String("error", err.Error()),
		)
	}
}

// publishTop pushes the book's current top to the tops channel.
func (f *BookFeeder) publishTop(ctx context.Context, ob *book.OrderBook, ts time.Time) error {
	if f.cfg.TopChannel == "" {
		return nil
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	top := domain.BookTop{
		Venue:       ob.Venue(),
		TradingPair: ob.TradingPair(),
		BestBid:     ob.BestBid(),
		BestAsk:     ob.BestAsk(),
		UpdateID:    max(ob.SnapshotUpdateID(), ob.LastDiffUpdateID()),
		Timestamp:   ts,
	}
	payload, err := marshalTop(top)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, f.cfg.TopChannel, payload)
}

func (f *BookFeeder) record(ctx context.Context, rec any) {
	if f.recorder == nil {
		return
	}
	if err := f.recorder.Record(ctx, rec); err != nil {
		f.logger.Warn("archive record failed", slog.String("error", err.Error()))
	}
}
