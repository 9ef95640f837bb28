package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/amaumene/releasebot/internal/scheduler"
	"github.com/sirupsen/logrus"
)

// SweepRunner runs a release sweep on demand
type SweepRunner interface {
	RunSweep(ctx context.Context) (*scheduler.SweepReport, error)
}

// SweepHandler triggers a sweep outside the schedule
type SweepHandler struct {
	runner SweepRunner
	logger *logrus.Logger
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(runner SweepRunner, logger *logrus.Logger) *SweepHandler {
	return &SweepHandler{
		runner: runner,
		logger: logger,
	}
}

// ServeHTTP runs the sweep synchronously and returns its report
func (h *SweepHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A client disconnect must not abort delivery of already advanced state
	report, err := h.runner.RunSweep(context.WithoutCancel(r.Context()))
	if errors.Is(err, scheduler.ErrSweepInProgress) {
		http.Error(w, "Sweep already in progress", http.StatusConflict)
		return
	}
	if errors.Is(err, scheduler.ErrStopped) {
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Manual sweep failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.WithField("sweep_id", report.ID.String()).Info("Manual sweep completed")
	writeJSON(w, http.StatusOK, report, h.logger)
}
