package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/releasebot/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
)

// Client handles communication with the TMDB API
type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	language     string
	httpClient   *http.Client
	maxRetries   uint64
	newBackOff   func() backoff.BackOff
	cache        *cache.Cache
	logger       *logrus.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithImageBaseURL sets the prefix for poster and still paths
func WithImageBaseURL(imageBaseURL string) Option {
	return func(c *Client) {
		c.imageBaseURL = strings.TrimRight(imageBaseURL, "/")
	}
}

// WithLanguage sets the language of returned titles
func WithLanguage(language string) Option {
	return func(c *Client) {
		c.language = strings.TrimSpace(language)
	}
}

// WithCacheTTL sets how long id resolutions and search results are kept.
// A ttl of zero or less disables caching. Title details are never cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// WithRetry sets the retry budget and backoff policy for transient failures
func WithRetry(maxRetries uint64, newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if newBackOff != nil {
			c.newBackOff = newBackOff
		}
	}
}

// NewClient creates a new TMDB API client
func NewClient(apiKey, baseURL string, logger *logrus.Logger, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}

	c := &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		imageBaseURL: "https://image.tmdb.org/t/p/w500",
		language:     "en-US",
		httpClient:   &http.Client{Timeout: defaultTimeout},
		maxRetries:   defaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		cache:  cache.New(time.Hour, 2*time.Hour),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) cached(key string) (any, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *Client) remember(key string, value any) {
	if c.cache != nil {
		c.cache.Set(key, value, cache.DefaultExpiration)
	}
}

// statusError is a non-2xx TMDB response
type statusError struct {
	path   string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tmdb %s returned %d: %s", e.path, e.status, e.body)
}

// doRequest performs a GET request against the TMDB API, retrying transient
// failures (network errors, 429 and 5xx) with backoff
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	fullURL := c.baseURL + path + "?" + params.Encode()

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("tmdb %s: %w", path, models.ErrNotFound))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &statusError{path: path, status: resp.StatusCode, body: string(body)}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(&statusError{path: path, status: resp.StatusCode, body: string(body)})
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	notify := func(err error, next time.Duration) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"path":  path,
			"retry": next,
		}).Debug("Retrying TMDB request")
	}
	return backoff.RetryNotify(operation, b, notify)
}

// imageURL joins an image path onto the configured image base URL
func (c *Client) imageURL(path string) string {
	if path == "" {
		return ""
	}
	return c.imageBaseURL + path
}
