package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

// TapeHandler serves the recent trade tape from the capped stream.
type TapeHandler struct {
	bus    domain.SignalBus
	stream string
	logger *slog.Logger
}

// NewTapeHandler creates a TapeHandler reading the given stream.
func NewTapeHandler(bus domain.SignalBus, stream string, logger *slog.Logger) *TapeHandler {
	return &TapeHandler{
		bus:    bus,
		stream: stream,
		logger: logger.With(slog.String("handler", "tape")),
	}
}

// ListTrades returns up to count recent trades, oldest first, starting after
// the optional after stream id.
// GET /api/trades
func (h *TapeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	count := queryInt(r, "count", 50)
	if count <= 0 || count > 500 {
		count = 50
	}
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}

	msgs, err := h.bus.StreamRead(r.Context(), h.stream, after, count)
	if err != nil {
		h.logger.Error("trade tape read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "trade tape unavailable")
		return
	}

	type tapeEntry struct {
		ID    string             `json:"id"`
		Trade domain.TradeRecord `json:"trade"`
	}
	entries := make([]tapeEntry, 0, len(msgs))
	for _, m := range msgs {
		env, err := domain.ParseEnvelope(m.Payload)
		if err != nil {
			continue
		}
		trade, err := env.AsTrade()
		if err != nil {
			continue
		}
		entries = append(entries, tapeEntry{ID: m.ID, Trade: trade})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades": entries,
		"count":  len(entries),
	})
}
