package tmdb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/releasebot/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := NewClient("key", server.URL, logger,
		WithImageBaseURL("https://img.test/w500"),
		WithRetry(2, func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		WithCacheTTL(time.Minute),
	)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(" ", "https://example.com", logrus.New())
	assert.Error(t, err)
}

func TestLookupMovie(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/438631", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"id":438631,"title":"Dune","status":"Released","poster_path":"/dune.jpg"}`))
	})

	info, err := client.LookupMovie(context.Background(), 438631)
	require.NoError(t, err)
	assert.Equal(t, &models.MovieInfo{
		ID:        438631,
		Title:     "Dune",
		Status:    models.MovieStatusReleased,
		PosterURL: "https://img.test/w500/dune.jpg",
	}, info)
}

func TestMovieStatus(t *testing.T) {
	assert.Equal(t, models.MovieStatusReleased, movieStatus("Released"))
	assert.Equal(t, models.MovieStatusUnreleased, movieStatus("Post Production"))
	assert.Equal(t, models.MovieStatusUnreleased, movieStatus("Rumored"))
	assert.Equal(t, models.MovieStatusUnknown, movieStatus("Canceled"))
	assert.Equal(t, models.MovieStatusUnknown, movieStatus(""))
}

func TestLookupMovieNotFound(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status_code":34}`))
	})

	_, err := client.LookupMovie(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "not found is not retried")
}

func TestLookupRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"title":"Heat","status":"Planned"}`))
	})

	info, err := client.LookupMovie(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.MovieStatusUnreleased, info.Status)
	assert.Empty(t, info.PosterURL)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLookupGivesUpAfterRetries(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.LookupShow(context.Background(), 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLookupShow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/95396", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": 95396,
			"name": "Severance",
			"last_episode_to_air": {"season_number": 2, "episode_number": 10, "still_path": "/still.jpg"},
			"seasons": [
				{"season_number": 0, "poster_path": null},
				{"season_number": 1, "poster_path": "/s1.jpg"},
				{"season_number": 2, "poster_path": "/s2.jpg"}
			]
		}`))
	})

	info, err := client.LookupShow(context.Background(), 95396)
	require.NoError(t, err)
	assert.Equal(t, "Severance", info.Name)
	require.NotNil(t, info.LastAired)
	assert.Equal(t, models.EpisodeInfo{Season: 2, Episode: 10, StillURL: "https://img.test/w500/still.jpg"}, *info.LastAired)
	assert.Equal(t, map[int]string{
		1: "https://img.test/w500/s1.jpg",
		2: "https://img.test/w500/s2.jpg",
	}, info.SeasonPosters)
}

func TestLookupShowWithoutAiredEpisode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 1, "name": "Upcoming", "last_episode_to_air": null, "seasons": []}`))
	})

	info, err := client.LookupShow(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, info.LastAired)
	assert.Empty(t, info.SeasonPosters)
}

func TestFindByIMDB(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "imdb_id", r.URL.Query().Get("external_source"))
		switch r.URL.Path {
		case "/find/tt1160419":
			_, _ = w.Write([]byte(`{"movie_results":[{"id":438631}],"tv_results":[],"tv_episode_results":[]}`))
		case "/find/tt11280740":
			_, _ = w.Write([]byte(`{"movie_results":[],"tv_results":[{"id":95396}],"tv_episode_results":[]}`))
		case "/find/tt15242966":
			_, _ = w.Write([]byte(`{"movie_results":[],"tv_results":[],"tv_episode_results":[{"id":1,"show_id":95396}]}`))
		default:
			_, _ = w.Write([]byte(`{"movie_results":[],"tv_results":[],"tv_episode_results":[]}`))
		}
	})
	ctx := context.Background()

	ref, err := client.FindByIMDB(ctx, "tt1160419")
	require.NoError(t, err)
	assert.Equal(t, models.TitleRef{ID: 438631, Kind: models.MediaTypeMovie}, ref)

	ref, err = client.FindByIMDB(ctx, "tt11280740")
	require.NoError(t, err)
	assert.Equal(t, models.TitleRef{ID: 95396, Kind: models.MediaTypeTV}, ref)

	ref, err = client.FindByIMDB(ctx, "tt15242966")
	require.NoError(t, err)
	assert.Equal(t, models.TitleRef{ID: 95396, Kind: models.MediaTypeTV}, ref, "episodes resolve to their show")

	_, err = client.FindByIMDB(ctx, "tt0000000")
	assert.ErrorIs(t, err, models.ErrNotFound)

	before := atomic.LoadInt32(&calls)
	_, err = client.FindByIMDB(ctx, "tt1160419")
	require.NoError(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&calls), "resolution is cached")
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/multi", r.URL.Path)
		assert.Equal(t, "dune", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":438631,"media_type":"movie","title":"Dune","release_date":"2021-09-15"},
			{"id":10,"media_type":"person","name":"Someone"},
			{"id":90228,"media_type":"tv","name":"Dune: Prophecy","first_air_date":"2024-11-17"},
			{"id":841,"media_type":"movie","title":"Dune","release_date":""}
		]}`))
	})

	results, err := client.Search(context.Background(), "dune", 2)
	require.NoError(t, err)
	assert.Equal(t, []models.SearchResult{
		{TitleRef: models.TitleRef{ID: 438631, Kind: models.MediaTypeMovie}, Title: "Dune", Year: "2021"},
		{TitleRef: models.TitleRef{ID: 90228, Kind: models.MediaTypeTV}, Title: "Dune: Prophecy", Year: "2024"},
	}, results)

	_, err = client.Search(context.Background(), "  ", 5)
	assert.Error(t, err)
}

func TestNonPositiveCacheTTLDisablesCaching(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"movie_results":[{"id":438631}],"tv_results":[],"tv_episode_results":[]}`))
	}))
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	for _, ttl := range []time.Duration{0, -time.Minute} {
		client, err := NewClient("key", server.URL, logger, WithCacheTTL(ttl))
		require.NoError(t, err)

		before := atomic.LoadInt32(&calls)
		for i := 0; i < 2; i++ {
			_, err := client.FindByIMDB(context.Background(), "tt1160419")
			require.NoError(t, err)
		}
		assert.Equal(t, before+2, atomic.LoadInt32(&calls), "ttl %s", ttl)
	}
}

func TestSearchNegativeLimitReturnsAll(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":438631,"media_type":"movie","title":"Dune","release_date":"2021-09-15"},
			{"id":90228,"media_type":"tv","name":"Dune: Prophecy","first_air_date":"2024-11-17"}
		]}`))
	})

	var results []models.SearchResult
	require.NotPanics(t, func() {
		var err error
		results, err = client.Search(context.Background(), "dune", -1)
		require.NoError(t, err)
	})
	assert.Len(t, results, 2)
}
