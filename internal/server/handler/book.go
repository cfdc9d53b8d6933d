package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bookengine/internal/book"
	"github.com/alanyoungcy/bookengine/internal/domain"
)

// BookHandler serves depth, top-of-book, and liquidity queries against the
// live registry. When a book is not tracked locally, depth and top fall back
// to the mirrored state another instance pushed into the cache; liquidity
// queries need the full in-memory book and stay live-only.
type BookHandler struct {
	registry     *book.Registry
	cache        domain.BookCache
	defaultDepth int
	logger       *slog.Logger
}

// NewBookHandler creates a BookHandler. cache may be nil to disable the
// mirrored-state fallback.
func NewBookHandler(registry *book.Registry, cache domain.BookCache, defaultDepth int, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		registry:     registry,
		cache:        cache,
		defaultDepth: defaultDepth,
		logger:       logger.With(slog.String("handler", "book")),
	}
}

// ListBooks returns the tracked (venue, pair) keys.
// GET /api/books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"books": h.registry.List(),
		"count": h.registry.Len(),
	})
}

type levelResponse struct {
	Price      float64 `json:"price"`
	Amount     float64 `json:"amount"`
	UpdateID   int64   `json:"update_id"`
	OrderCount int64   `json:"order_count,omitempty"`
}

type depthResponse struct {
	Venue       string          `json:"venue"`
	TradingPair string          `json:"trading_pair"`
	Bids        []levelResponse `json:"bids"`
	Asks        []levelResponse `json:"asks"`
	BestBid     *float64        `json:"best_bid"`
	BestAsk     *float64        `json:"best_ask"`
	UpdateID    int64           `json:"update_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      string          `json:"source,omitempty"`
}

// GetDepth returns the book's levels best-first, capped by the depth query
// parameter. Books not tracked locally are served from the cache mirror.
// GET /api/books/{venue}/{pair}/depth
func (h *BookHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	depth := queryInt(r, "depth", h.defaultDepth)

	ob, err := h.lookup(r)
	if err != nil {
		h.cachedDepth(w, r, depth)
		return
	}

	resp := depthResponse{
		Venue:       ob.Venue(),
		TradingPair: ob.TradingPair(),
		BestBid:     numOrNull(ob.BestBid()),
		BestAsk:     numOrNull(ob.BestAsk()),
		Timestamp:   time.Now().UTC(),
	}

	n := 0
	for e := range ob.BidEntries() {
		if depth > 0 && n >= depth {
			break
		}
		resp.Bids = append(resp.Bids, levelResponse{e.Price, e.Amount, e.UpdateID, e.OrderCount})
		n++
	}
	n = 0
	for e := range ob.AskEntries() {
		if depth > 0 && n >= depth {
			break
		}
		resp.Asks = append(resp.Asks, levelResponse{e.Price, e.Amount, e.UpdateID, e.OrderCount})
		n++
	}
	resp.UpdateID = max(ob.SnapshotUpdateID(), ob.LastDiffUpdateID())

	writeJSON(w, http.StatusOK, resp)
}

// cachedDepth serves a depth response from the mirrored snapshot, writing a
// 404 when the cache misses too.
func (h *BookHandler) cachedDepth(w http.ResponseWriter, r *http.Request, depth int) {
	venue, pair := r.PathValue("venue"), r.PathValue("pair")
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "unknown book "+venue+"/"+pair)
		return
	}

	snap, err := h.cache.GetSnapshot(r.Context(), venue, pair)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Warn("cache depth lookup failed",
				slog.String("venue", venue),
				slog.String("pair", pair),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, http.StatusNotFound, "unknown book "+venue+"/"+pair)
		return
	}

	resp := depthResponse{
		Venue:       snap.Venue,
		TradingPair: snap.TradingPair,
		BestBid:     numOrNull(snap.BestBid),
		BestAsk:     numOrNull(snap.BestAsk),
		UpdateID:    snap.UpdateID,
		Timestamp:   snap.Timestamp,
		Source:      "cache",
	}
	for i, lvl := range snap.Bids {
		if depth > 0 && i >= depth {
			break
		}
		resp.Bids = append(resp.Bids, levelResponse{Price: lvl.Price, Amount: lvl.Amount, UpdateID: snap.UpdateID, OrderCount: lvl.OrderCount})
	}
	for i, lvl := range snap.Asks {
		if depth > 0 && i >= depth {
			break
		}
		resp.Asks = append(resp.Asks, levelResponse{Price: lvl.Price, Amount: lvl.Amount, UpdateID: snap.UpdateID, OrderCount: lvl.OrderCount})
	}

	writeJSON(w, http.StatusOK, resp)
}

type topResponse struct {
	Venue          string     `json:"venue"`
	TradingPair    string     `json:"trading_pair"`
	BestBid        *float64   `json:"best_bid"`
	BestAsk        *float64   `json:"best_ask"`
	MidPrice       *float64   `json:"mid_price"`
	LastTradePrice *float64   `json:"last_trade_price"`
	LastTradeAt    *time.Time `json:"last_trade_at,omitempty"`
	UpdateID       int64      `json:"update_id"`
	Source         string     `json:"source,omitempty"`
}

// GetTop returns the best bid/ask, mid, and last trade for a book. Books not
// tracked locally are served from the cached BBO.
// GET /api/books/{venue}/{pair}/top
func (h *BookHandler) GetTop(w http.ResponseWriter, r *http.Request) {
	ob, err := h.lookup(r)
	if err != nil {
		h.cachedTop(w, r)
		return
	}

	resp := topResponse{
		Venue:          ob.Venue(),
		TradingPair:    ob.TradingPair(),
		BestBid:        numOrNull(ob.BestBid()),
		BestAsk:        numOrNull(ob.BestAsk()),
		MidPrice:       numOrNull(ob.MidPrice()),
		LastTradePrice: numOrNull(ob.LastTradePrice()),
		UpdateID:       max(ob.SnapshotUpdateID(), ob.LastDiffUpdateID()),
	}
	if at := ob.LastTradeAt(); !at.IsZero() {
		resp.LastTradeAt = &at
	}

	writeJSON(w, http.StatusOK, resp)
}

// cachedTop serves a top response from the cached BBO hash. Trade fields are
// not mirrored and stay null.
func (h *BookHandler) cachedTop(w http.ResponseWriter, r *http.Request) {
	venue, pair := r.PathValue("venue"), r.PathValue("pair")
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "unknown book "+venue+"/"+pair)
		return
	}

	bestBid, bestAsk, err := h.cache.GetBBO(r.Context(), venue, pair)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Warn("cache bbo lookup failed",
				slog.String("venue", venue),
				slog.String("pair", pair),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, http.StatusNotFound, "unknown book "+venue+"/"+pair)
		return
	}

	writeJSON(w, http.StatusOK, topResponse{
		Venue:       venue,
		TradingPair: pair,
		BestBid:     numOrNull(bestBid),
		BestAsk:     numOrNull(bestAsk),
		MidPrice:    numOrNull((bestBid + bestAsk) / 2),
		Source:      "cache",
	})
}

type queryResponse struct {
	Op           string   `json:"op"`
	Side         string   `json:"side"`
	QueryPrice   *float64 `json:"query_price"`
	QueryVolume  *float64 `json:"query_volume"`
	ResultPrice  *float64 `json:"result_price"`
	ResultVolume *float64 `json:"result_volume"`
	Satisfied    bool     `json:"satisfied"`
}

// Query runs one of the liquidity queries against a book. The op parameter
// selects the variant; side is "buy" or "sell"; amount carries the volume,
// quote volume, or price bound depending on the op.
// GET /api/books/{venue}/{pair}/query
func (h *BookHandler) Query(w http.ResponseWriter, r *http.Request) {
	ob, err := h.lookup(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown book "+r.PathValue("venue")+"/"+r.PathValue("pair"))
		return
	}

	op := r.URL.Query().Get("op")
	side := r.URL.Query().Get("side")
	if side != "buy" && side != "sell" {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	isBuy := side == "buy"

	if op == "price" {
		price, err := ob.GetPrice(isBuy)
		if err != nil {
			if errors.Is(err, domain.ErrEmptyBook) {
				writeError(w, http.StatusNotFound, "book side is empty")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"op": op, "side": side, "price": price})
		return
	}

	amount, ok := queryFloat(r, "amount")
	if !ok || amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}

	var result book.QueryResult
	switch op {
	case "price_for_volume":
		result = ob.GetPriceForVolume(isBuy, amount)
	case "vwap_for_volume":
		result = ob.GetVWAPForVolume(isBuy, amount)
	case "price_for_quote_volume":
		result = ob.GetPriceForQuoteVolume(isBuy, amount)
	case "quote_volume_for_base_amount":
		result = ob.GetQuoteVolumeForBaseAmount(isBuy, amount)
	case "volume_for_price":
		result = ob.GetVolumeForPrice(isBuy, amount)
	case "quote_volume_for_price":
		result = ob.GetQuoteVolumeForPrice(isBuy, amount)
	default:
		writeError(w, http.StatusBadRequest, "unknown query op")
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Op:           op,
		Side:         side,
		QueryPrice:   numOrNull(result.QueryPrice),
		QueryVolume:  numOrNull(result.QueryVolume),
		ResultPrice:  numOrNull(result.ResultPrice),
		ResultVolume: numOrNull(result.ResultVolume),
		Satisfied:    result.Satisfied(),
	})
}

// lookup resolves the path's venue/pair to a live book.
func (h *BookHandler) lookup(r *http.Request) (*book.OrderBook, error) {
	return h.registry.Get(r.PathValue("venue"), r.PathValue("pair"))
}
