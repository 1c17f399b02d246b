// Package tmdb implements the TMDB metadata provider.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/match"
	"github.com/reelmatch/reelmatch/internal/media"
)

const imageBaseURL = "https://image.tmdb.org/t/p"

// Client is a TMDB API client.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "tmdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tmdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// SearchMovies searches for movies by title with optional year filter.
func (c *Client) SearchMovies(ctx context.Context, title string, year int) ([]media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}

	endpoint := fmt.Sprintf("%s/search/movie", c.config.BaseURL)
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	params.Set("query", title)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var response SearchMoviesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		if errors.Is(err, match.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	results := make([]media.Candidate, len(response.Results))
	for i, movie := range response.Results {
		results[i] = c.toMovieCandidate(movie)
	}

	c.logger.Debug().
		Str("title", title).
		Int("year", year).
		Int("results", len(results)).
		Msg("Movie search completed")

	return results, nil
}

// SearchEpisodes searches for series matching the title. Each returned
// candidate carries the series id; episode-level fields are filled in by
// EpisodeDetails once a series is chosen.
func (c *Client) SearchEpisodes(ctx context.Context, title string, year, season, episode int) ([]media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}

	endpoint := fmt.Sprintf("%s/search/tv", c.config.BaseURL)
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	params.Set("query", title)
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}

	var response SearchTVResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		if errors.Is(err, match.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	results := make([]media.Candidate, len(response.Results))
	for i, tv := range response.Results {
		results[i] = c.toSeriesCandidate(tv)
	}

	c.logger.Debug().
		Str("title", title).
		Int("season", season).
		Int("episode", episode).
		Int("results", len(results)).
		Msg("TV search completed")

	return results, nil
}

// MovieDetails gets detailed movie info by TMDB id, credits included.
func (c *Client) MovieDetails(ctx context.Context, id string) (*media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}

	endpoint := fmt.Sprintf("%s/movie/%s", c.config.BaseURL, url.PathEscape(id))
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	params.Set("append_to_response", "credits")

	var details MovieDetails
	if err := c.doRequest(ctx, endpoint, params, &details); err != nil {
		return nil, err
	}

	result := c.movieDetailsToCandidate(details)

	c.logger.Debug().
		Str("id", id).
		Str("title", result.Title).
		Msg("Got movie details")

	return &result, nil
}

// EpisodeDetails gets detailed info for one episode of a series by TMDB
// series id.
func (c *Client) EpisodeDetails(ctx context.Context, id string, season, episode int) (*media.Candidate, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}

	endpoint := fmt.Sprintf("%s/tv/%s/season/%d/episode/%d",
		c.config.BaseURL, url.PathEscape(id), season, episode)
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	params.Set("append_to_response", "credits")

	var details EpisodeDetails
	if err := c.doRequest(ctx, endpoint, params, &details); err != nil {
		return nil, err
	}

	result := c.episodeDetailsToCandidate(id, details)

	c.logger.Debug().
		Str("id", id).
		Int("season", season).
		Int("episode", episode).
		Str("title", result.Title).
		Msg("Got episode details")

	return &result, nil
}

// Cast returns the billed cast list for a movie or series.
func (c *Client) Cast(ctx context.Context, id string, mediaType media.MediaType) ([]string, error) {
	if !c.IsConfigured() {
		return nil, match.ErrAuth
	}

	kind := "movie"
	if mediaType == media.TVEpisode {
		kind = "tv"
	}
	endpoint := fmt.Sprintf("%s/%s/%s/credits", c.config.BaseURL, kind, url.PathEscape(id))
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)

	var credits Credits
	if err := c.doRequest(ctx, endpoint, params, &credits); err != nil {
		return nil, err
	}

	return castNames(credits), nil
}

// doRequest performs an HTTP GET request and decodes the JSON response.
// Failures are mapped onto the shared provider error taxonomy so the caller
// can decide what to retry.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

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
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return match.Transient("tmdb request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("message", errResp.StatusMessage).
				Msg("TMDB API error")
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return match.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: invalid API key", match.ErrAuth)
		case http.StatusTooManyRequests:
			return match.Transientf("tmdb request", "rate limited")
		default:
			return match.Transientf("tmdb request", "status %d", resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) toMovieCandidate(movie MovieResult) media.Candidate {
	result := media.Candidate{
		Source:   "tmdb",
		ID:       strconv.Itoa(movie.ID),
		Title:    movie.Title,
		Year:     yearOf(movie.ReleaseDate),
		Overview: movie.Overview,
		AirDate:  movie.ReleaseDate,
	}

	if movie.PosterPath != nil {
		result.PosterURL = imageURL(*movie.PosterPath, "w500")
	}
	if movie.BackdropPath != nil {
		result.BackdropURL = imageURL(*movie.BackdropPath, "w780")
	}

	return result
}

func (c *Client) toSeriesCandidate(tv TVResult) media.Candidate {
	result := media.Candidate{
		Source:   "tmdb",
		ID:       strconv.Itoa(tv.ID),
		Title:    tv.Name,
		Year:     yearOf(tv.FirstAirDate),
		Overview: tv.Overview,
	}

	if tv.PosterPath != nil {
		result.PosterURL = imageURL(*tv.PosterPath, "w500")
	}
	if tv.BackdropPath != nil {
		result.BackdropURL = imageURL(*tv.BackdropPath, "w780")
	}

	return result
}

func (c *Client) movieDetailsToCandidate(details MovieDetails) media.Candidate {
	result := media.Candidate{
		Source:   "tmdb",
		ID:       strconv.Itoa(details.ID),
		Title:    details.Title,
		Year:     yearOf(details.ReleaseDate),
		Overview: details.Overview,
		Runtime:  details.Runtime,
		AirDate:  details.ReleaseDate,
	}

	if details.PosterPath != nil {
		result.PosterURL = imageURL(*details.PosterPath, "w500")
	}
	if details.BackdropPath != nil {
		result.BackdropURL = imageURL(*details.BackdropPath, "w780")
	}
	if details.Credits != nil {
		result.Cast = castNames(*details.Credits)
	}

	return result
}

func (c *Client) episodeDetailsToCandidate(seriesID string, details EpisodeDetails) media.Candidate {
	result := media.Candidate{
		Source:   "tmdb",
		ID:       seriesID,
		Title:    details.Name,
		Year:     yearOf(details.AirDate),
		Overview: details.Overview,
		Runtime:  details.Runtime,
		AirDate:  details.AirDate,
	}

	if details.StillPath != nil {
		result.BackdropURL = imageURL(*details.StillPath, "w780")
	}
	if details.Credits != nil {
		result.Cast = castNames(*details.Credits)
	}

	return result
}

// castNames returns billed cast in order, capped at the top ten.
func castNames(credits Credits) []string {
	cast := append([]CastMember(nil), credits.Cast...)
	sort.SliceStable(cast, func(i, j int) bool {
		return cast[i].Order < cast[j].Order
	})

	limit := 10
	if len(cast) < limit {
		limit = len(cast)
	}
	names := make([]string, 0, limit)
	for _, member := range cast[:limit] {
		if member.Name != "" {
			names = append(names, member.Name)
		}
	}
	return names
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, _ := strconv.Atoi(date[:4])
	return year
}

func imageURL(path, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", imageBaseURL, size, path)
}
