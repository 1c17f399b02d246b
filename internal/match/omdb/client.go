// Package omdb implements the OMDb metadata provider.
package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/match"
	"github.com/reelmatch/reelmatch/internal/media"
)

// Client is an OMDb API client. OMDb ids are IMDb ids.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger
}

// NewClient creates a new OMDb client.
func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "omdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "omdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// SearchMovies searches for movies by title with optional year filter.
func (c *Client) SearchMovies(ctx context.Context, title string, year int) ([]media.Candidate, error) {
	return c.search(ctx, title, year, "movie")
}

// SearchEpisodes searches for series matching the title; the returned
// candidates carry series IMDb ids, and episode fields are filled in by
// EpisodeDetails.
func (c *Client) SearchEpisodes(ctx context.Context, title string, year, season, episode int) ([]media.Candidate, error) {
	return c.search(ctx, title, year, "series")
}

func (c *Client) search(ctx context.Context, title string, year int, kind string) ([]media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}

	params := url.Values{}
	params.Set("apikey", c.config.APIKey)
	params.Set("s", title)
	params.Set("type", kind)
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	var response SearchResponse
	if err := c.doRequest(ctx, params, &response); err != nil {
		return nil, err
	}
	if response.Response == "False" {
		if err := bodyError(response.Error); err != nil {
			if errors.Is(err, match.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
	}

	results := make([]media.Candidate, 0, len(response.Search))
	for _, item := range response.Search {
		results = append(results, media.Candidate{
			Source:    "omdb",
			ID:        item.ImdbID,
			Title:     item.Title,
			Year:      yearOf(item.Year),
			PosterURL: posterURL(item.Poster),
		})
	}

	c.logger.Debug().
		Str("title", title).
		Str("type", kind).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}

// MovieDetails gets detailed movie info by IMDb id.
func (c *Client) MovieDetails(ctx context.Context, id string) (*media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}

	params := url.Values{}
	params.Set("apikey", c.config.APIKey)
	params.Set("i", id)
	params.Set("plot", "full")

	return c.fetchTitle(ctx, id, params)
}

// EpisodeDetails gets info for one episode of a series by the series IMDb
// id plus season and episode numbers.
func (c *Client) EpisodeDetails(ctx context.Context, id string, season, episode int) (*media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}

	params := url.Values{}
	params.Set("apikey", c.config.APIKey)
	params.Set("i", id)
	params.Set("Season", strconv.Itoa(season))
	params.Set("Episode", strconv.Itoa(episode))
	params.Set("plot", "full")

	return c.fetchTitle(ctx, id, params)
}

// Cast returns the billed cast for a title. OMDb inlines actors into the
// title payload, so this is a plain title fetch.
func (c *Client) Cast(ctx context.Context, id string, mediaType media.MediaType) ([]string, error) {
	detail, err := c.MovieDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail.Cast, nil
}

func (c *Client) fetchTitle(ctx context.Context, id string, params url.Values) (*media.Candidate, error) {
	var response TitleResponse
	if err := c.doRequest(ctx, params, &response); err != nil {
		return nil, err
	}
	if response.Response == "False" {
		if err := bodyError(response.Error); err != nil {
			return nil, err
		}
	}

	result := media.Candidate{
		Source:    "omdb",
		ID:        id,
		Title:     response.Title,
		Year:      yearOf(response.Year),
		Overview:  cleanField(response.Plot),
		Runtime:   runtimeMinutes(response.Runtime),
		AirDate:   cleanField(response.Released),
		PosterURL: posterURL(response.Poster),
		Cast:      splitActors(response.Actors),
	}

	c.logger.Debug().
		Str("id", id).
		Str("title", result.Title).
		Msg("Got title details")

	return &result, nil
}

// doRequest performs an HTTP GET request and decodes the JSON response,
// mapping transport failures onto the shared provider error taxonomy. OMDb
// reports most application errors inside a 200 body; those are handled by
// the callers via bodyError.
func (c *Client) doRequest(ctx context.Context, params url.Values, result interface{}) error {
	reqURL := fmt.Sprintf("%s?%s", c.config.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A per-attempt deadline is a transient failure worth retrying;
		// only explicit cancellation aborts the call chain.
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		c.logger.Error().Err(err).Msg("HTTP request failed")
		return match.Transient("omdb request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: invalid API key", match.ErrAuth)
		case http.StatusNotFound:
			return match.ErrNotFound
		case http.StatusTooManyRequests:
			return match.Transientf("omdb request", "rate limited")
		default:
			return match.Transientf("omdb request", "status %d", resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// bodyError classifies an OMDb in-body error message.
func bodyError(message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "not found") || strings.Contains(lower, "incorrect imdb id"):
		return match.ErrNotFound
	case strings.Contains(lower, "invalid api key"):
		return fmt.Errorf("%w: %s", match.ErrAuth, message)
	case strings.Contains(lower, "request limit"):
		return match.Transientf("omdb request", "%s", message)
	default:
		return match.Transientf("omdb request", "%s", message)
	}
}

// yearOf parses the leading year from OMDb year strings, which may be a
// range like "2019–2021" for series.
func yearOf(s string) int {
	if len(s) < 4 {
		return 0
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return year
}

// runtimeMinutes parses OMDb runtime strings like "136 min".
func runtimeMinutes(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	minutes, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return minutes
}

func splitActors(s string) []string {
	if s == "" || s == "N/A" {
		return nil
	}
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func cleanField(s string) string {
	if s == "N/A" {
		return ""
	}
	return s
}

func posterURL(s string) string {
	if s == "N/A" {
		return ""
	}
	return s
}
