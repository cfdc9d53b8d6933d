package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bookengine/internal/book"
)

// HealthHandler reports liveness plus a small engine summary: the running
// mode and how many books the registry currently tracks.
type HealthHandler struct {
	mode      string
	registry  *book.Registry
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler for the given mode and registry.
func NewHealthHandler(mode string, registry *book.Registry, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		mode:      mode,
		registry:  registry,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// HealthCheck responds with the engine's status summary.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"mode":           h.mode,
		"books":          h.registry.Len(),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
