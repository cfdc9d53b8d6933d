package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookengine/internal/book"
	"github.com/alanyoungcy/bookengine/internal/domain"
)

type fakeCache struct {
	snapshots map[string]domain.DepthSnapshot
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

func (c *fakeCache) UpdateLevel(context.Context, string, string, domain.Side, float64, float64) error {
	return nil
}

func (c *fakeCache) GetBBO(_ context.Context, venue, pair string) (float64, float64, error) {
	snap, ok := c.snapshots[venue+"/"+pair]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	return snap.BestBid, snap.BestAsk, nil
}

func testMuxWithCache(t *testing.T, cache domain.BookCache) (*http.ServeMux, *book.Registry) {
	t.Helper()
	registry := book.NewRegistry(nil, nil)
	h := NewBookHandler(registry, cache, 50, slog.Default())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/books", h.ListBooks)
	mux.HandleFunc("GET /api/books/{venue}/{pair}/depth", h.GetDepth)
	mux.HandleFunc("GET /api/books/{venue}/{pair}/top", h.GetTop)
	mux.HandleFunc("GET /api/books/{venue}/{pair}/query", h.Query)
	return mux, registry
}

func testMux(t *testing.T) (*http.ServeMux, *book.Registry) {
	t.Helper()
	return testMuxWithCache(t, nil)
}

func seedBook(registry *book.Registry) *book.OrderBook {
	ob := registry.GetOrCreate("binance", "BTC-USDT")
	ob.ApplySnapshot(
		[]book.PriceLevelEntry{{Price: 99, Amount: 1, UpdateID: 5}, {Price: 98, Amount: 2, UpdateID: 5}},
		[]book.PriceLevelEntry{{Price: 101, Amount: 2, UpdateID: 5}},
		5,
	)
	return ob
}

func get(t *testing.T, mux *http.ServeMux, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestListBooks(t *testing.T) {
	mux, registry := testMux(t)
	seedBook(registry)

	rec, body := get(t, mux, "/api/books")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, []any{"binance/BTC-USDT"}, body["books"])
}

func TestGetDepth(t *testing.T) {
	mux, registry := testMux(t)
	seedBook(registry)

	rec, body := get(t, mux, "/api/books/binance/BTC-USDT/depth?depth=1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(99), body["best_bid"])
	assert.Equal(t, float64(101), body["best_ask"])

	bids := body["bids"].([]any)
	require.Len(t, bids, 1, "depth parameter caps levels per side")
	assert.Equal(t, float64(99), bids[0].(map[string]any)["price"])
}

func TestGetDepthUnknownBook(t *testing.T) {
	mux, _ := testMux(t)

	rec, body := get(t, mux, "/api/books/kraken/ETH-USD/depth")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "unknown book")
}

func TestGetDepthFallsBackToCache(t *testing.T) {
	cache := &fakeCache{snapshots: map[string]domain.DepthSnapshot{
		"kraken/ETH-USD": {
			Venue:       "kraken",
			TradingPair: "ETH-USD",
			Bids:        []domain.LevelRow{{Price: 2000, Amount: 1}, {Price: 1999, Amount: 3}},
			Asks:        []domain.LevelRow{{Price: 2001, Amount: 2}},
			BestBid:     2000,
			BestAsk:     2001,
			UpdateID:    42,
			Timestamp:   time.Unix(1700000000, 0).UTC(),
		},
	}}
	mux, _ := testMuxWithCache(t, cache)

	rec, body := get(t, mux, "/api/books/kraken/ETH-USD/depth?depth=1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", body["source"])
	assert.Equal(t, float64(2000), body["best_bid"])
	assert.Equal(t, float64(42), body["update_id"])

	bids := body["bids"].([]any)
	require.Len(t, bids, 1, "depth parameter caps cached levels too")
	assert.Equal(t, float64(2000), bids[0].(map[string]any)["price"])
}

func TestGetTopFallsBackToCache(t *testing.T) {
	cache := &fakeCache{snapshots: map[string]domain.DepthSnapshot{
		"kraken/ETH-USD": {BestBid: 2000, BestAsk: 2001},
	}}
	mux, _ := testMuxWithCache(t, cache)

	rec, body := get(t, mux, "/api/books/kraken/ETH-USD/top")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", body["source"])
	assert.Equal(t, float64(2000), body["best_bid"])
	assert.Equal(t, float64(2001), body["best_ask"])
	assert.Equal(t, 2000.5, body["mid_price"])
	assert.Nil(t, body["last_trade_price"], "trade state is not mirrored")
}

func TestCacheFallbackMissStays404(t *testing.T) {
	cache := &fakeCache{snapshots: map[string]domain.DepthSnapshot{
		"kraken/ETH-USD": {BestBid: 2000, BestAsk: 2001},
	}}
	mux, _ := testMuxWithCache(t, cache)

	rec, body := get(t, mux, "/api/books/kraken/BTC-USD/depth")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "unknown book")

	// Liquidity queries need the full in-memory book and never consult the
	// cache, even when it holds the pair.
	rec, _ = get(t, mux, "/api/books/kraken/ETH-USD/query?op=price&side=buy")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTopWithEmptySide(t *testing.T) {
	mux, registry := testMux(t)
	ob := registry.GetOrCreate("binance", "BTC-USDT")
	ob.ApplySnapshot([]book.PriceLevelEntry{{Price: 99, Amount: 1, UpdateID: 3}}, nil, 3)

	rec, body := get(t, mux, "/api/books/binance/BTC-USDT/top")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(99), body["best_bid"])
	assert.Nil(t, body["best_ask"], "empty side serializes as null")
	assert.Nil(t, body["mid_price"])
}

func TestQueryPrice(t *testing.T) {
	mux, registry := testMux(t)
	seedBook(registry)

	rec, body := get(t, mux, "/api/books/binance/BTC-USDT/query?op=price&side=buy")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(101), body["price"])
}

func TestQueryVWAP(t *testing.T) {
	mux, registry := testMux(t)
	seedBook(registry)

	rec, body := get(t, mux, "/api/books/binance/BTC-USDT/query?op=vwap_for_volume&side=sell&amount=2")
	assert.Equal(t, http.StatusOK, rec.Code)
	// Selling 2: 1 @ 99 + 1 @ 98 = 98.5 average.
	assert.Equal(t, 98.5, body["result_price"])
	assert.Equal(t, float64(2), body["result_volume"])
	assert.Equal(t, true, body["satisfied"])
}

func TestQueryUnderFillReportedNotError(t *testing.T) {
	mux, registry := testMux(t)
	seedBook(registry)

	rec, body := get(t, mux, "/api/books/binance/BTC-USDT/query?op=price_for_volume&side=buy&amount=50")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(101), body["result_price"], "under-fill reports the deepest level walked")
	assert.Equal(t, float64(2), body["result_volume"])
	assert.Equal(t, false, body["satisfied"])
}

func TestQueryValidation(t *testing.T) {
	mux, registry := testMux(t)
	seedBook(registry)

	rec, _ := get(t, mux, "/api/books/binance/BTC-USDT/query?op=price_for_volume&side=up&amount=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, mux, "/api/books/binance/BTC-USDT/query?op=price_for_volume&side=buy&amount=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, mux, "/api/books/binance/BTC-USDT/query?op=nope&side=buy&amount=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
