package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/releasebot/internal/controllers"
	"github.com/amaumene/releasebot/internal/metrics"
	"github.com/amaumene/releasebot/internal/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSweepInProgress is returned when a sweep is requested while one runs
	ErrSweepInProgress = errors.New("sweep already in progress")
	// ErrStopped is returned when a sweep is requested after Stop
	ErrStopped = errors.New("scheduler stopped")
)

// Sweeper produces the notifications owed for the current upstream state
type Sweeper interface {
	RunSweep(ctx context.Context) ([]models.Notification, error)
}

// Dispatcher delivers notifications
type Dispatcher interface {
	Dispatch(ctx context.Context, notifications []models.Notification) controllers.DispatchSummary
}

// SweepReport describes one completed sweep
type SweepReport struct {
	ID            uuid.UUID                   `json:"id"`
	StartedAt     time.Time                   `json:"started_at"`
	Duration      time.Duration               `json:"duration"`
	Notifications int                         `json:"notifications"`
	Delivery      controllers.DispatchSummary `json:"delivery"`
}

// Scheduler runs the release sweep on a cron schedule
type Scheduler struct {
	cron       *cron.Cron
	schedule   string
	sweeper    Sweeper
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	logger     *logrus.Logger

	// sweepMu is held for the whole of a sweep
	sweepMu sync.Mutex
	stopped bool
}

// NewScheduler creates a new scheduler. timezone is an IANA name; empty
// means UTC.
func NewScheduler(schedule, timezone string, sweeper Sweeper, dispatcher Dispatcher, m *metrics.Metrics, logger *logrus.Logger) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
		}
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		schedule:   schedule,
		sweeper:    sweeper,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
	}, nil
}

// Start registers the sweep job and starts the cron runner
func (s *Scheduler) Start() error {
	s.logger.WithField("schedule", s.schedule).Info("Starting scheduler")

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.runScheduledSweep()
	})
	if err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop stops the cron runner and waits for a running sweep to finish,
// scheduled or manual. Later RunSweep calls return ErrStopped.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()

	s.sweepMu.Lock()
	s.stopped = true
	s.sweepMu.Unlock()
}

// Next returns the next scheduled sweep time, zero before Start
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunSweep reconciles all tracked titles and delivers the resulting
// notifications. Only one sweep runs at a time.
func (s *Scheduler) RunSweep(ctx context.Context) (*SweepReport, error) {
	if !s.sweepMu.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.sweepMu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}

	report := &SweepReport{
		ID:        uuid.New(),
		StartedAt: time.Now(),
	}
	log := s.logger.WithField("sweep_id", report.ID.String())
	log.Info("Running release sweep")

	notifications, err := s.sweeper.RunSweep(ctx)
	if err != nil {
		s.metrics.ObserveSweep("failed", time.Since(report.StartedAt).Seconds())
		return nil, fmt.Errorf("sweep %s failed: %w", report.ID, err)
	}
	report.Notifications = len(notifications)

	if len(notifications) > 0 {
		report.Delivery = s.dispatcher.Dispatch(ctx, notifications)
	}
	report.Duration = time.Since(report.StartedAt)
	s.metrics.ObserveSweep("ok", report.Duration.Seconds())

	log.WithFields(logrus.Fields{
		"notifications": report.Notifications,
		"photo":         report.Delivery.Photo,
		"text":          report.Delivery.Text,
		"dropped":       report.Delivery.Dropped,
		"duration":      report.Duration.String(),
	}).Info("Release sweep completed")
	return report, nil
}

func (s *Scheduler) runScheduledSweep() {
	if _, err := s.RunSweep(context.Background()); err != nil {
		switch {
		case errors.Is(err, ErrSweepInProgress):
			s.logger.Warn("Skipping scheduled sweep, previous sweep still running")
			return
		case errors.Is(err, ErrStopped):
			return
		}
		s.logger.WithError(err).Error("Scheduled sweep failed")
	}
}
