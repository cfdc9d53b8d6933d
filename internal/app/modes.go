package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bookengine/internal/feed"
	"github.com/alanyoungcy/bookengine/internal/replay"
	"github.com/alanyoungcy/bookengine/internal/server"
	"github.com/alanyoungcy/bookengine/internal/server/handler"
	"github.com/alanyoungcy/bookengine/internal/server/ws"
)

// LiveMode consumes the records channel, maintains the live books, mirrors
// them to Redis, optionally records archives, and serves the API.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting live mode")

	g, ctx := errgroup.WithContext(ctx)

	feeder := feed.NewBookFeeder(deps.SignalBus, deps.BookCache, deps.Registry, deps.Recorder, feed.Config{
		RecordsChannel: a.cfg.Feed.RecordsChannel,
		TopChannel:     a.cfg.Feed.TopChannel,
		TradeStream:    a.cfg.Feed.TradeStream,
		SnapshotDepth:  a.cfg.Book.SnapshotDepth,
	}, a.logger)
	g.Go(func() error {
		return feeder.Run(ctx)
	})

	if deps.Recorder != nil {
		g.Go(func() error {
			<-ctx.Done()
			flushCtx, cancel := shutdownContext()
			defer cancel()
			if err := deps.Recorder.Flush(flushCtx); err != nil {
				a.logger.Error("final archive flush failed", slog.String("error", err.Error()))
			}
			return ctx.Err()
		})
	}

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}

	return g.Wait()
}

// ReplayMode loads one archive segment, rebuilds the configured book from it,
// and reports the restored state.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	rc := a.cfg.Replay
	a.logger.InfoContext(ctx, "starting replay mode",
		slog.String("archive", rc.ArchivePath),
		slog.String("venue", rc.Venue),
		slog.String("pair", rc.TradingPair),
	)

	replayer := replay.NewReplayer(deps.BlobReader, a.logger)
	path, err := replayer.ResolvePath(ctx, rc.ArchivePath)
	if err != nil {
		return fmt.Errorf("app: replay resolve: %w", err)
	}
	arch, err := replayer.Load(ctx, path, rc.Venue, rc.TradingPair)
	if err != nil {
		return fmt.Errorf("app: replay load: %w", err)
	}

	ob := deps.Registry.GetOrCreate(rc.Venue, rc.TradingPair)
	replayer.Rebuild(arch, ob)

	attrs := []any{
		slog.Int64("snapshot_update_id", ob.SnapshotUpdateID()),
		slog.Int64("last_diff_update_id", ob.LastDiffUpdateID()),
		slog.Int("bid_levels", ob.BidCount()),
		slog.Int("ask_levels", ob.AskCount()),
		slog.Int("trades", len(arch.Trades)),
	}
	if bid := ob.BestBid(); !math.IsNaN(bid) {
		attrs = append(attrs, slog.Float64("best_bid", bid))
	}
	if ask := ob.BestAsk(); !math.IsNaN(ask) {
		attrs = append(attrs, slog.Float64("best_ask", ask))
	}
	a.logger.InfoContext(ctx, "book restored", attrs...)
	return nil
}

// ServeMode runs only the API surface over whatever books arrive via the
// records channel, with no recording.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	// The serve-mode feeder still applies records so queries see live books,
	// but skips the cache mirror and archive; the handlers read the cache
	// that live instances populate.
	feeder := feed.NewBookFeeder(deps.SignalBus, nil, deps.Registry, nil, feed.Config{
		RecordsChannel: a.cfg.Feed.RecordsChannel,
		TopChannel:     a.cfg.Feed.TopChannel,
		TradeStream:    a.cfg.Feed.TradeStream,
		SnapshotDepth:  a.cfg.Book.SnapshotDepth,
	}, a.logger)
	g.Go(func() error {
		return feeder.Run(ctx)
	})

	a.startServer(ctx, g, deps)

	return g.Wait()
}

// startServer builds the HTTP handlers, attaches the WebSocket hub, and runs
// the server plus its shutdown watcher on the group.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.cfg.Mode, deps.Registry, a.logger),
		Books:  handler.NewBookHandler(deps.Registry, deps.BookCache, a.cfg.Book.SnapshotDepth, a.logger),
	}
	if deps.SignalBus != nil && a.cfg.Feed.TradeStream != "" {
		handlers.Tape = handler.NewTapeHandler(deps.SignalBus, a.cfg.Feed.TradeStream, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		channels := []string{a.cfg.Feed.RecordsChannel, a.cfg.Feed.TopChannel}
		hub = ws.NewHub(deps.SignalBus, channels, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{Port: a.cfg.Server.Port}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := shutdownContext()
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
