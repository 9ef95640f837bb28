package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/amaumene/releasebot/internal/models"
	"github.com/sirupsen/logrus"
)

// StatsSource reports store totals
type StatsSource interface {
	Stats(ctx context.Context) (models.Stats, error)
}

// StatusHandler handles status requests
type StatusHandler struct {
	store     StatsSource
	nextSweep func() time.Time
	logger    *logrus.Logger
}

// NewStatusHandler creates a new status handler. nextSweep may be nil.
func NewStatusHandler(store StatsSource, nextSweep func() time.Time, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		store:     store,
		nextSweep: nextSweep,
		logger:    logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	models.Stats
	NextSweep *time.Time `json:"next_sweep,omitempty"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get stats")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{Stats: stats}
	if h.nextSweep != nil {
		if next := h.nextSweep(); !next.IsZero() {
			response.NextSweep = &next
		}
	}

	writeJSON(w, http.StatusOK, response, h.logger)
}
