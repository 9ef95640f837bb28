package controllers

import (
	"context"
	"errors"
	"fmt"

	"github.com/amaumene/releasebot/internal/metrics"
	"github.com/amaumene/releasebot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Reconciler compares tracked titles against upstream metadata and turns
// releases into notifications
type Reconciler struct {
	store   models.Store
	lookup  TitleLookup
	workers int
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *logrus.Logger
}

const tracerName = "github.com/amaumene/releasebot/internal/controllers"

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithTracerProvider sets where sweep spans are recorded. Defaults to the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) ReconcilerOption {
	return func(r *Reconciler) {
		if tp != nil {
			r.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewReconciler creates a new release reconciler
func NewReconciler(store models.Store, lookup TitleLookup, workers int, m *metrics.Metrics, logger *logrus.Logger, opts ...ReconcilerOption) *Reconciler {
	if workers < 1 {
		workers = 1
	}
	r := &Reconciler{
		store:   store,
		lookup:  lookup,
		workers: workers,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSweep reconciles every tracked movie and show once. A failed lookup
// leaves its record untouched for the next sweep; only a failure to list the
// store aborts the sweep.
func (r *Reconciler) RunSweep(ctx context.Context) ([]models.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "reconciler.sweep")
	defer span.End()

	movies, err := r.store.ListMovies(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list movies")
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	shows, err := r.store.ListShows(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list shows")
		return nil, fmt.Errorf("failed to list shows: %w", err)
	}

	span.SetAttributes(
		attribute.Int("releasebot.movies", len(movies)),
		attribute.Int("releasebot.shows", len(shows)),
	)
	r.logger.WithFields(logrus.Fields{
		"movies": len(movies),
		"shows":  len(shows),
	}).Info("Reconciling tracked titles")

	p := pool.NewWithResults[[]models.Notification]().WithMaxGoroutines(r.workers)
	for _, movie := range movies {
		p.Go(func() []models.Notification {
			return r.reconcileMovie(ctx, movie)
		})
	}
	for _, show := range shows {
		p.Go(func() []models.Notification {
			return r.reconcileShow(ctx, show)
		})
	}

	var notifications []models.Notification
	for _, batch := range p.Wait() {
		notifications = append(notifications, batch...)
	}

	span.SetAttributes(attribute.Int("releasebot.notifications", len(notifications)))
	return notifications, nil
}

func (r *Reconciler) reconcileMovie(ctx context.Context, movie *models.TrackedMovie) []models.Notification {
	ctx, span := r.tracer.Start(ctx, "reconciler.movie", trace.WithAttributes(attribute.Int64("tmdb.id", movie.ID)))
	defer span.End()

	log := r.logger.WithFields(logrus.Fields{
		"movie_id": movie.ID,
		"title":    movie.Title,
	})

	info, err := r.lookup.LookupMovie(ctx, movie.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to look up movie, retrying next sweep")
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup")
		r.metrics.LookupFailed(string(models.MediaTypeMovie))
		return nil
	}
	if info.Status != models.MovieStatusReleased {
		log.WithField("status", info.Status).Debug("Movie not released yet")
		return nil
	}

	// Subscribers are taken from the deleted record so a subscribe racing
	// with the deletion is either notified or creates a fresh record.
	deleted, err := r.store.DeleteMovie(ctx, movie.ID)
	if errors.Is(err, models.ErrNotFound) {
		log.Debug("Movie already removed")
		return nil
	}
	if err != nil {
		log.WithError(err).Error("Failed to delete released movie")
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete")
		return nil
	}

	caption := fmt.Sprintf("%s was released", deleted.Title)
	notifications := fanOut(deleted.Subscribers, deleted.ID, models.NotificationMovieReleased, caption, info.PosterURL)
	r.metrics.NotificationsProduced(string(models.NotificationMovieReleased), len(notifications))

	log.WithField("subscribers", len(deleted.Subscribers)).Info("Movie released")
	return notifications
}

func (r *Reconciler) reconcileShow(ctx context.Context, show *models.TrackedShow) []models.Notification {
	ctx, span := r.tracer.Start(ctx, "reconciler.show", trace.WithAttributes(attribute.Int64("tmdb.id", show.ID)))
	defer span.End()

	log := r.logger.WithFields(logrus.Fields{
		"show_id": show.ID,
		"title":   show.Title,
	})

	info, err := r.lookup.LookupShow(ctx, show.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to look up show, retrying next sweep")
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup")
		r.metrics.LookupFailed(string(models.MediaTypeTV))
		return nil
	}
	if info.LastAired == nil {
		log.Debug("Show has no aired episodes")
		return nil
	}

	var release showRelease
	updated, err := r.store.UpdateShow(ctx, show.ID, func(stored *models.TrackedShow) bool {
		var ok bool
		release, ok = decideShowRelease(stored, info)
		return ok
	})
	if errors.Is(err, models.ErrNotFound) {
		log.Debug("Show already removed")
		return nil
	}
	if err != nil {
		log.WithError(err).Error("Failed to update show")
		span.RecordError(err)
		span.SetStatus(codes.Error, "update")
		return nil
	}
	if release.kind == "" {
		return nil
	}

	caption := release.caption(updated.Title)
	notifications := fanOut(updated.Subscribers, updated.ID, release.kind, caption, release.image)
	r.metrics.NotificationsProduced(string(release.kind), len(notifications))

	log.WithFields(logrus.Fields{
		"kind":        release.kind,
		"season":      release.season,
		"episode":     release.episode,
		"subscribers": len(updated.Subscribers),
	}).Info("Show released new content")
	return notifications
}

// showRelease is a transition detected on a show
type showRelease struct {
	kind    models.NotificationKind
	season  int
	episode int
	image   string
}

func (s showRelease) caption(title string) string {
	if s.kind == models.NotificationSeasonReleased {
		return fmt.Sprintf("%s Season %d was released.\nNumber of already available episodes is %d", title, s.season, s.episode)
	}
	return fmt.Sprintf("%s Season %d Episode %d was released", title, s.season, s.episode)
}

// decideShowRelease advances show to the last aired episode in info and
// reports the transition. A new season wins over a new episode; anything at
// or behind the stored marker is ignored.
func decideShowRelease(show *models.TrackedShow, info *models.ShowInfo) (showRelease, bool) {
	aired := info.LastAired
	if aired == nil {
		return showRelease{}, false
	}

	switch {
	case aired.Season > show.LastSeason:
		show.LastSeason = aired.Season
		show.LastEpisode = aired.Episode
		return showRelease{
			kind:    models.NotificationSeasonReleased,
			season:  aired.Season,
			episode: aired.Episode,
			image:   info.SeasonPosters[aired.Season],
		}, true
	case aired.Season == show.LastSeason && aired.Episode > show.LastEpisode:
		show.LastEpisode = aired.Episode
		return showRelease{
			kind:    models.NotificationEpisodeReleased,
			season:  aired.Season,
			episode: aired.Episode,
			image:   aired.StillURL,
		}, true
	default:
		return showRelease{}, false
	}
}

func fanOut(subscribers []int64, titleID int64, kind models.NotificationKind, caption, image string) []models.Notification {
	notifications := make([]models.Notification, 0, len(subscribers))
	for _, userID := range subscribers {
		notifications = append(notifications, models.Notification{
			UserID:   userID,
			TitleID:  titleID,
			Kind:     kind,
			Caption:  caption,
			ImageURL: image,
		})
	}
	return notifications
}
