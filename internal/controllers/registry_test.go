package controllers

import (
	"context"
	"sync"
	"testing"

	"github.com/amaumene/releasebot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackMovie(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	registry := NewRegistry(store, nil, newTestLogger())

	info := &models.MovieInfo{ID: 438631, Title: "Dune", Status: models.MovieStatusUnreleased}
	require.NoError(t, registry.TrackMovie(ctx, info, 1))

	err := registry.TrackMovie(ctx, info, 1)
	assert.ErrorIs(t, err, models.ErrAlreadyTracking)

	movies, err := store.ListMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, []int64{1}, movies[0].Subscribers)
}

func TestTrackMovieAlreadyReleased(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	registry := NewRegistry(store, nil, newTestLogger())

	info := &models.MovieInfo{ID: 7, Title: "Heat", Status: models.MovieStatusReleased}
	err := registry.TrackMovie(ctx, info, 1)
	assert.ErrorIs(t, err, models.ErrAlreadyReleased)

	movies, err := store.ListMovies(ctx)
	require.NoError(t, err)
	assert.Empty(t, movies)
}

func TestTrackMovieReleasedDoesNotTouchExistingRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	registry := NewRegistry(store, nil, newTestLogger())

	require.NoError(t, registry.TrackMovie(ctx, &models.MovieInfo{ID: 7, Title: "Heat", Status: models.MovieStatusUnknown}, 1))

	err := registry.TrackMovie(ctx, &models.MovieInfo{ID: 7, Title: "Heat (1995)", Status: models.MovieStatusReleased}, 2)
	assert.ErrorIs(t, err, models.ErrAlreadyReleased)

	movies, err := store.ListMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Heat", movies[0].Title)
	assert.Equal(t, []int64{1}, movies[0].Subscribers)
}

func TestTrackRefreshesTitleOnDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	registry := NewRegistry(store, nil, newTestLogger())

	require.NoError(t, registry.TrackShow(ctx, &models.ShowInfo{ID: 1, Name: "Severance"}, 1))
	err := registry.TrackShow(ctx, &models.ShowInfo{ID: 1, Name: "Severance (2022)"}, 1)
	assert.ErrorIs(t, err, models.ErrAlreadyTracking)

	shows, err := store.ListShows(ctx)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.Equal(t, "Severance (2022)", shows[0].Title)
	assert.Equal(t, []int64{1}, shows[0].Subscribers)
}

func TestTrackShowStartsAtZeroBaseline(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	registry := NewRegistry(store, nil, newTestLogger())

	info := &models.ShowInfo{
		ID:        1399,
		Name:      "Game of Thrones",
		LastAired: &models.EpisodeInfo{Season: 8, Episode: 6},
	}
	require.NoError(t, registry.TrackShow(ctx, info, 1))

	shows, err := store.ListShows(ctx)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.Zero(t, shows[0].LastSeason)
	assert.Zero(t, shows[0].LastEpisode)
}

func TestConcurrentTrackKeepsEverySubscriber(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	registry := NewRegistry(store, nil, newTestLogger())

	info := &models.MovieInfo{ID: 42, Title: "Arrival", Status: models.MovieStatusUnreleased}

	var wg sync.WaitGroup
	for userID := int64(1); userID <= 10; userID++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			assert.NoError(t, registry.TrackMovie(ctx, info, userID))
		}(userID)
	}
	wg.Wait()

	movies, err := store.ListMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Len(t, movies[0].Subscribers, 10)
}

func TestUntrack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	registry := NewRegistry(store, nil, newTestLogger())

	require.NoError(t, registry.TrackShow(ctx, &models.ShowInfo{ID: 1, Name: "Severance"}, 1))

	removed, err := registry.Untrack(ctx, models.TitleRef{ID: 1, Kind: models.MediaTypeTV}, 2)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = registry.Untrack(ctx, models.TitleRef{ID: 1, Kind: models.MediaTypeTV}, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	shows, err := store.ListShows(ctx)
	require.NoError(t, err)
	assert.Empty(t, shows)

	_, err = registry.Untrack(ctx, models.TitleRef{ID: 1, Kind: "book"}, 1)
	assert.Error(t, err)
}
