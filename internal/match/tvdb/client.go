// Package tvdb implements the TVDB metadata provider.
package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/match"
	"github.com/reelmatch/reelmatch/internal/media"
)

// Client is a TVDB API client. The v4 API requires a bearer token obtained
// by exchanging the API key at /login; the token is cached and refreshed
// well before its 30-day expiry.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new TVDB client.
func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "tvdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tvdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// authenticate gets or refreshes the bearer token.
func (c *Client) authenticate(ctx context.Context) error {
	c.mu.RLock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	loginURL := fmt.Sprintf("%s/login", c.config.BaseURL)
	body, err := json.Marshal(LoginRequest{APIKey: c.config.APIKey})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return match.Transient("tvdb login", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Msg("TVDB authentication failed")
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: login rejected", match.ErrAuth)
		default:
			return match.Transientf("tvdb login", "status %d", resp.StatusCode)
		}
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	c.token = loginResp.Data.Token
	// Tokens expire after 30 days; refresh after 24 hours to be safe.
	c.tokenExpiry = time.Now().Add(24 * time.Hour)

	c.logger.Debug().Msg("TVDB authentication successful")
	return nil
}

// SearchMovies searches for movies by title with optional year filter.
func (c *Client) SearchMovies(ctx context.Context, title string, year int) ([]media.Candidate, error) {
	return c.search(ctx, title, year, "movie")
}

// SearchEpisodes searches for series matching the title; the returned
// candidates carry series ids, and episode fields are filled in by
// EpisodeDetails.
func (c *Client) SearchEpisodes(ctx context.Context, title string, year, season, episode int) ([]media.Candidate, error) {
	return c.search(ctx, title, year, "series")
}

func (c *Client) search(ctx context.Context, title string, year int, kind string) ([]media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/search", c.config.BaseURL)
	params := url.Values{}
	params.Set("query", title)
	params.Set("type", kind)
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var response SearchResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		if errors.Is(err, match.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	results := make([]media.Candidate, 0, len(response.Data))
	for _, item := range response.Data {
		if item.Type != kind {
			continue
		}
		results = append(results, c.searchResultToCandidate(item))
	}

	c.logger.Debug().
		Str("title", title).
		Str("type", kind).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}

// MovieDetails gets detailed movie info by TVDB id.
func (c *Client) MovieDetails(ctx context.Context, id string) (*media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/movies/%s/extended", c.config.BaseURL, url.PathEscape(id))

	var response MovieExtendedResponse
	if err := c.doRequest(ctx, endpoint, nil, &response); err != nil {
		return nil, err
	}

	movie := response.Data
	result := media.Candidate{
		Source:    "tvdb",
		ID:        id,
		Title:     movie.Name,
		Year:      atoiSafe(movie.Year),
		Runtime:   movie.Runtime,
		PosterURL: movie.Image,
		Cast:      characterNames(movie.Characters),
	}

	c.logger.Debug().
		Str("id", id).
		Str("title", result.Title).
		Msg("Got movie details")

	return &result, nil
}

// EpisodeDetails gets info for one episode of a series, looked up by season
// and episode number in the default episode ordering.
func (c *Client) EpisodeDetails(ctx context.Context, id string, season, episode int) (*media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/series/%s/episodes/default", c.config.BaseURL, url.PathEscape(id))
	params := url.Values{}
	params.Set("season", strconv.Itoa(season))
	params.Set("episodeNumber", strconv.Itoa(episode))

	var response SeriesEpisodesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	for _, ep := range response.Data.Episodes {
		if ep.SeasonNumber != season || ep.EpisodeNumber != episode {
			continue
		}
		result := media.Candidate{
			Source:      "tvdb",
			ID:          id,
			Title:       ep.Name,
			Year:        yearOf(ep.Aired),
			Overview:    ep.Overview,
			Runtime:     ep.Runtime,
			AirDate:     ep.Aired,
			BackdropURL: ep.Image,
		}

		c.logger.Debug().
			Str("id", id).
			Int("season", season).
			Int("episode", episode).
			Str("title", result.Title).
			Msg("Got episode details")

		return &result, nil
	}

	return nil, match.ErrNotFound
}

// Cast returns the billed cast for a movie or series from its extended
// record.
func (c *Client) Cast(ctx context.Context, id string, mediaType media.MediaType) ([]string, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	kind := "movies"
	if mediaType == media.TVEpisode {
		kind = "series"
	}
	endpoint := fmt.Sprintf("%s/%s/%s/extended", c.config.BaseURL, kind, url.PathEscape(id))

	if mediaType == media.TVEpisode {
		var response SeriesExtendedResponse
		if err := c.doRequest(ctx, endpoint, nil, &response); err != nil {
			return nil, err
		}
		return characterNames(response.Data.Characters), nil
	}

	var response MovieExtendedResponse
	if err := c.doRequest(ctx, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return characterNames(response.Data.Characters), nil
}

// doRequest performs an authenticated HTTP GET request and decodes the JSON
// response, mapping failures onto the shared provider error taxonomy.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A per-attempt deadline is a transient failure worth retrying;
		// only explicit cancellation aborts the call chain.
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return match.Transient("tvdb request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return match.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			// Token might be expired; clear it so the next call re-logs in.
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
			return match.Transientf("tvdb request", "token rejected, will re-authenticate")
		case http.StatusTooManyRequests:
			return match.Transientf("tvdb request", "rate limited")
		default:
			return match.Transientf("tvdb request", "status %d", resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) searchResultToCandidate(item SearchResult) media.Candidate {
	overview := item.Overview
	if overview == "" && item.Overviews != nil {
		if eng, ok := item.Overviews["eng"]; ok {
			overview = eng
		}
	}

	return media.Candidate{
		Source:    "tvdb",
		ID:        item.TvdbID,
		Title:     item.Name,
		Year:      atoiSafe(item.Year),
		Overview:  overview,
		PosterURL: item.ImageURL,
	}
}

// characterNames returns cast names ordered by billing, capped at ten.
func characterNames(characters []Character) []string {
	cast := append([]Character(nil), characters...)
	sort.SliceStable(cast, func(i, j int) bool {
		return cast[i].Sort < cast[j].Sort
	})

	names := make([]string, 0, 10)
	for _, ch := range cast {
		if ch.PeopleName == "" {
			continue
		}
		names = append(names, ch.PeopleName)
		if len(names) == 10 {
			break
		}
	}
	return names
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, _ := strconv.Atoi(date[:4])
	return year
}
