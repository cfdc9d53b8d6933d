package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookengine/internal/book"
	"github.com/alanyoungcy/bookengine/internal/domain"
)

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	records   chan []byte
	published []published
	appended  []published
}

func newFakeBus() *fakeBus {
	return &fakeBus{records: make(chan []byte, 16)}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.published = append(b.published, published{channel, payload})
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return b.records, nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.appended = append(b.appended, published{stream, payload})
	return nil
}

func (b *fakeBus) StreamRead(_ context.Context, _ string, _ string, _ int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type levelUpdate struct {
	venue, pair   string
	side          domain.Side
	price, amount float64
}

type fakeCache struct {
	snapshots map[string]domain.DepthSnapshot
	updates   []levelUpdate
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[string]domain.DepthSnapshot)}
}

func (c *fakeCache) SetSnapshot(_ context.Context, venue, pair string, snap domain.DepthSnapshot) error {
	c.snapshots[venue+"/"+pair] = snap
	return nil
}

func (c *fakeCache) GetSnapshot(_ context.Context, venue, pair string) (domain.DepthSnapshot, error) {
	snap, ok := c.snapshots[venue+"/"+pair]
	if !ok {
		return domain.DepthSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (c *fakeCache) UpdateLevel(_ context.Context, venue, pair string, side domain.Side, price, amount float64) error {
	c.updates = append(c.updates, levelUpdate{venue, pair, side, price, amount})
	return nil
}

func (c *fakeCache) GetBBO(_ context.Context, _, _ string) (float64, float64, error) {
	return 0, 0, domain.ErrNotFound
}

func testFeeder(t *testing.T) (*BookFeeder, *fakeBus, *fakeCache, *book.Registry) {
	t.Helper()
	bus := newFakeBus()
	cache := newFakeCache()
	registry := book.NewRegistry(nil, nil)
	f := NewBookFeeder(bus, cache, registry, nil, Config{
		RecordsChannel: "books",
		TopChannel:     "book_tops",
		TradeStream:    "trade_tape",
		SnapshotDepth:  10,
	}, slog.Default())
	return f, bus, cache, registry
}

func envelope(t *testing.T, rec any) []byte {
	t.Helper()
	payload, err := domain.WrapRecord(rec)
	require.NoError(t, err)
	return payload
}

func TestFeederAppliesSnapshotAndMirrors(t *testing.T) {
	f, bus, cache, registry := testFeeder(t)
	ctx := context.Background()

	snap := domain.SnapshotRecord{
		Venue:       "binance",
		TradingPair: "BTC-USDT",
		UpdateID:    7,
		Bids:        []domain.LevelRow{{Price: 99, Amount: 1}},
		Asks:        []domain.LevelRow{{Price: 101, Amount: 2}},
		Timestamp:   time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, f.handleMessage(ctx, envelope(t, snap)))

	ob, err := registry.Get("binance", "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, float64(99), ob.BestBid())
	assert.Equal(t, float64(101), ob.BestAsk())

	mirrored, ok := cache.snapshots["binance/BTC-USDT"]
	require.True(t, ok)
	assert.Equal(t, int64(7), mirrored.UpdateID)
	require.Len(t, mirrored.Bids, 1)
	assert.Equal(t, snap.Timestamp, mirrored.Timestamp)

	require.Len(t, bus.published, 1)
	assert.Equal(t, "book_tops", bus.published[0].channel)
	var top domain.BookTop
	require.NoError(t, json.Unmarshal(bus.published[0].payload, &top))
	assert.Equal(t, float64(99), top.BestBid)
	assert.Equal(t, float64(101), top.BestAsk)
	assert.Equal(t, int64(7), top.UpdateID)
}

func TestFeederAppliesDiff(t *testing.T) {
	f, bus, cache, registry := testFeeder(t)
	ctx := context.Background()

	require.NoError(t, f.handleMessage(ctx, envelope(t, domain.SnapshotRecord{
		Venue: "binance", TradingPair: "BTC-USDT", UpdateID: 7,
		Bids: []domain.LevelRow{{Price: 99, Amount: 1}},
		Asks: []domain.LevelRow{{Price: 101, Amount: 2}},
	})))
	require.NoError(t, f.handleMessage(ctx, envelope(t, domain.DiffRecord{
		Venue: "binance", TradingPair: "BTC-USDT", UpdateID: 8,
		Bids: []domain.LevelRow{{Price: 100, Amount: 0.5}},
		Asks: []domain.LevelRow{{Price: 101, Amount: 0}},
	})))

	ob, err := registry.Get("binance", "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, float64(100), ob.BestBid())
	assert.Equal(t, 0, ob.AskCount())
	assert.Len(t, bus.published, 2)

	// Diffs stream through the per-level update path rather than rewriting
	// the whole mirror; the snapshot's rebaseline is the only SetSnapshot.
	require.Len(t, cache.updates, 2)
	assert.Equal(t, levelUpdate{"binance", "BTC-USDT", domain.SideBuy, 100, 0.5}, cache.updates[0])
	assert.Equal(t, levelUpdate{"binance", "BTC-USDT", domain.SideSell, 101, 0}, cache.updates[1])
	assert.Equal(t, int64(7), cache.snapshots["binance/BTC-USDT"].UpdateID)
}

func TestFeederRoutesTradeToTape(t *testing.T) {
	f, bus, _, registry := testFeeder(t)
	ctx := context.Background()

	trade := domain.TradeRecord{
		Venue: "binance", TradingPair: "BTC-USDT", TradeID: "t1",
		Price: 100.5, Amount: 0.25, Side: domain.SideSell,
		Timestamp: time.Unix(1700000100, 0).UTC(),
	}
	require.NoError(t, f.handleMessage(ctx, envelope(t, trade)))

	ob, err := registry.Get("binance", "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, 100.5, ob.LastTradePrice())

	require.Len(t, bus.appended, 1)
	assert.Equal(t, "trade_tape", bus.appended[0].channel)
	env, err := domain.ParseEnvelope(bus.appended[0].payload)
	require.NoError(t, err)
	got, err := env.AsTrade()
	require.NoError(t, err)
	assert.Equal(t, trade, got)

	// Trades do not touch the depth mirror or the tops channel.
	assert.Empty(t, bus.published)
}

func TestFeederRejectsMalformedPayloads(t *testing.T) {
	f, _, _, registry := testFeeder(t)
	ctx := context.Background()

	require.Error(t, f.handleMessage(ctx, []byte("not json")))
	require.ErrorIs(t, f.handleMessage(ctx, []byte(`{"kind":"other","data":{}}`)), domain.ErrBadRecord)
	assert.Equal(t, 0, registry.Len())
}

func TestFeederRunStopsWhenChannelCloses(t *testing.T) {
	f, bus, _, registry := testFeeder(t)

	bus.records <- envelope(t, domain.SnapshotRecord{
		Venue: "binance", TradingPair: "BTC-USDT", UpdateID: 1,
		Bids: []domain.LevelRow{{Price: 10, Amount: 1}},
	})
	close(bus.records)

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, 1, registry.Len())
}
