package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/amaumene/releasebot/internal/models"
	"github.com/sirupsen/logrus"
)

// movieDetails is the subset of /movie/{id} we use
type movieDetails struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	PosterPath string `json:"poster_path"`
}

type episodeDetails struct {
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	StillPath     string `json:"still_path"`
}

type seasonSummary struct {
	SeasonNumber int    `json:"season_number"`
	PosterPath   string `json:"poster_path"`
}

// tvDetails is the subset of /tv/{id} we use
type tvDetails struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	LastEpisodeToAir *episodeDetails `json:"last_episode_to_air"`
	Seasons          []seasonSummary `json:"seasons"`
}

type findResult struct {
	ID     int64 `json:"id"`
	ShowID int64 `json:"show_id"`
}

type findResponse struct {
	MovieResults     []findResult `json:"movie_results"`
	TVResults        []findResult `json:"tv_results"`
	TVEpisodeResults []findResult `json:"tv_episode_results"`
	TVSeasonResults  []findResult `json:"tv_season_results"`
}

type searchResult struct {
	ID           int64  `json:"id"`
	MediaType    string `json:"media_type"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

type searchResponse struct {
	Page    int            `json:"page"`
	Results []searchResult `json:"results"`
}

// movieStatus maps the TMDB lifecycle string onto MovieStatus
func movieStatus(status string) models.MovieStatus {
	switch status {
	case "Released":
		return models.MovieStatusReleased
	case "Rumored", "Planned", "In Production", "Post Production":
		return models.MovieStatusUnreleased
	default:
		return models.MovieStatusUnknown
	}
}

// LookupMovie fetches current movie details. Returns models.ErrNotFound for
// unknown ids.
func (c *Client) LookupMovie(ctx context.Context, id int64) (*models.MovieInfo, error) {
	var details movieDetails
	if err := c.doRequest(ctx, fmt.Sprintf("/movie/%d", id), nil, &details); err != nil {
		return nil, fmt.Errorf("failed to get movie %d: %w", id, err)
	}

	return &models.MovieInfo{
		ID:        details.ID,
		Title:     details.Title,
		Status:    movieStatus(details.Status),
		PosterURL: c.imageURL(details.PosterPath),
	}, nil
}

// LookupShow fetches current show details including the last aired episode
func (c *Client) LookupShow(ctx context.Context, id int64) (*models.ShowInfo, error) {
	var details tvDetails
	if err := c.doRequest(ctx, fmt.Sprintf("/tv/%d", id), nil, &details); err != nil {
		return nil, fmt.Errorf("failed to get show %d: %w", id, err)
	}

	info := &models.ShowInfo{
		ID:            details.ID,
		Name:          details.Name,
		SeasonPosters: make(map[int]string, len(details.Seasons)),
	}
	if ep := details.LastEpisodeToAir; ep != nil {
		info.LastAired = &models.EpisodeInfo{
			Season:   ep.SeasonNumber,
			Episode:  ep.EpisodeNumber,
			StillURL: c.imageURL(ep.StillPath),
		}
	}
	for _, season := range details.Seasons {
		if season.PosterPath != "" {
			info.SeasonPosters[season.SeasonNumber] = c.imageURL(season.PosterPath)
		}
	}
	return info, nil
}

// FindByIMDB resolves an IMDb id (tt...) to a TMDB movie or show. Episode and
// season ids resolve to their show.
func (c *Client) FindByIMDB(ctx context.Context, imdbID string) (models.TitleRef, error) {
	key := "imdb:" + imdbID
	if cached, ok := c.cached(key); ok {
		return cached.(models.TitleRef), nil
	}

	params := url.Values{}
	params.Set("external_source", "imdb_id")

	var resp findResponse
	if err := c.doRequest(ctx, "/find/"+url.PathEscape(imdbID), params, &resp); err != nil {
		return models.TitleRef{}, fmt.Errorf("failed to find %s: %w", imdbID, err)
	}

	var ref models.TitleRef
	switch {
	case len(resp.MovieResults) > 0:
		ref = models.TitleRef{ID: resp.MovieResults[0].ID, Kind: models.MediaTypeMovie}
	case len(resp.TVResults) > 0:
		ref = models.TitleRef{ID: resp.TVResults[0].ID, Kind: models.MediaTypeTV}
	case len(resp.TVEpisodeResults) > 0:
		ref = models.TitleRef{ID: resp.TVEpisodeResults[0].ShowID, Kind: models.MediaTypeTV}
	case len(resp.TVSeasonResults) > 0:
		ref = models.TitleRef{ID: resp.TVSeasonResults[0].ShowID, Kind: models.MediaTypeTV}
	default:
		return models.TitleRef{}, fmt.Errorf("imdb id %s: %w", imdbID, models.ErrNotFound)
	}

	c.remember(key, ref)
	return ref, nil
}

// Search runs a multi search and returns up to limit movies and shows in
// the order TMDB ranks them
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}

	key := fmt.Sprintf("search:%d:%s", limit, strings.ToLower(query))
	if cached, ok := c.cached(key); ok {
		return cached.([]models.SearchResult), nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")

	var resp searchResponse
	if err := c.doRequest(ctx, "/search/multi", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}

	results := make([]models.SearchResult, 0, max(limit, 0))
	for _, r := range resp.Results {
		if limit > 0 && len(results) >= limit {
			break
		}
		switch r.MediaType {
		case string(models.MediaTypeMovie):
			results = append(results, models.SearchResult{
				TitleRef: models.TitleRef{ID: r.ID, Kind: models.MediaTypeMovie},
				Title:    r.Title,
				Year:     year(r.ReleaseDate),
			})
		case string(models.MediaTypeTV):
			results = append(results, models.SearchResult{
				TitleRef: models.TitleRef{ID: r.ID, Kind: models.MediaTypeTV},
				Title:    r.Name,
				Year:     year(r.FirstAirDate),
			})
		}
	}

	c.logger.WithFields(logrus.Fields{
		"query":   query,
		"results": len(results),
	}).Debug("TMDB search completed")

	c.remember(key, results)
	return results, nil
}

func year(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
