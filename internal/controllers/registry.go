package controllers

import (
	"context"
	"fmt"

	"github.com/amaumene/releasebot/internal/metrics"
	"github.com/amaumene/releasebot/internal/models"
	"github.com/sirupsen/logrus"
)

// Registry subscribes users to movies and shows
type Registry struct {
	store   models.Store
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewRegistry creates a new tracking registry
func NewRegistry(store models.Store, m *metrics.Metrics, logger *logrus.Logger) *Registry {
	return &Registry{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// TrackMovie subscribes the user to a movie that has not been released yet.
// Returns models.ErrAlreadyReleased or models.ErrAlreadyTracking.
func (r *Registry) TrackMovie(ctx context.Context, info *models.MovieInfo, userID int64) error {
	log := r.logger.WithFields(logrus.Fields{
		"movie_id": info.ID,
		"title":    info.Title,
		"user_id":  userID,
	})

	if info.Status == models.MovieStatusReleased {
		log.Debug("Refusing to track released movie")
		r.metrics.Tracked(string(models.MediaTypeMovie), "already_released")
		return models.ErrAlreadyReleased
	}

	added, err := r.store.AddMovieSubscriber(ctx, models.TrackedMovie{ID: info.ID, Title: info.Title}, userID)
	if err != nil {
		return fmt.Errorf("failed to track movie: %w", err)
	}
	if !added {
		r.metrics.Tracked(string(models.MediaTypeMovie), "already_tracking")
		return models.ErrAlreadyTracking
	}

	log.Info("Started tracking movie")
	r.metrics.Tracked(string(models.MediaTypeMovie), "started")
	return nil
}

// TrackShow subscribes the user to a show. A new show starts at season 0
// episode 0 so the episode already on air is announced by the next sweep.
func (r *Registry) TrackShow(ctx context.Context, info *models.ShowInfo, userID int64) error {
	added, err := r.store.AddShowSubscriber(ctx, models.TrackedShow{ID: info.ID, Title: info.Name}, userID)
	if err != nil {
		return fmt.Errorf("failed to track show: %w", err)
	}
	if !added {
		r.metrics.Tracked(string(models.MediaTypeTV), "already_tracking")
		return models.ErrAlreadyTracking
	}

	r.logger.WithFields(logrus.Fields{
		"show_id": info.ID,
		"title":   info.Name,
		"user_id": userID,
	}).Info("Started tracking show")
	r.metrics.Tracked(string(models.MediaTypeTV), "started")
	return nil
}

// Untrack removes the user's subscription to a title
func (r *Registry) Untrack(ctx context.Context, ref models.TitleRef, userID int64) (bool, error) {
	var removed bool
	var err error
	switch ref.Kind {
	case models.MediaTypeMovie:
		removed, err = r.store.RemoveMovieSubscriber(ctx, ref.ID, userID)
	case models.MediaTypeTV:
		removed, err = r.store.RemoveShowSubscriber(ctx, ref.ID, userID)
	default:
		return false, fmt.Errorf("unknown media type %q", ref.Kind)
	}
	if err != nil {
		return false, fmt.Errorf("failed to untrack %s %d: %w", ref.Kind, ref.ID, err)
	}
	if removed {
		r.logger.WithFields(logrus.Fields{
			"kind":    ref.Kind,
			"id":      ref.ID,
			"user_id": userID,
		}).Info("Stopped tracking title")
	}
	return removed, nil
}
