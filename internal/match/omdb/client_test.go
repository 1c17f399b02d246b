package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/match"
	"github.com/reelmatch/reelmatch/internal/media"
)

func newTestClient(server *httptest.Server) *Client {
	cfg := config.ProviderConfig{
		APIKey:  "test-api-key",
		BaseURL: server.URL,
		Timeout: 5,
	}
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_Name(t *testing.T) {
	client := NewClient(config.ProviderConfig{}, zerolog.Nop())
	if client.Name() != "omdb" {
		t.Errorf("Name() = %q, want %q", client.Name(), "omdb")
	}
}

func TestClient_SearchMovies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("s"); got != "Matrix" {
			t.Errorf("s = %q, want Matrix", got)
		}
		if got := r.URL.Query().Get("type"); got != "movie" {
			t.Errorf("type = %q, want movie", got)
		}
		json.NewEncoder(w).Encode(SearchResponse{
			Response:     "True",
			TotalResults: "2",
			Search: []SearchItem{
				{Title: "The Matrix", Year: "1999", ImdbID: "tt0133093", Type: "movie", Poster: "https://example.com/p.jpg"},
				{Title: "The Matrix Reloaded", Year: "2003", ImdbID: "tt0234215", Type: "movie", Poster: "N/A"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	results, err := client.SearchMovies(context.Background(), "Matrix", 0)
	if err != nil {
		t.Fatalf("SearchMovies() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "tt0133093" || results[0].Year != 1999 {
		t.Errorf("candidate = %+v, want tt0133093/1999", results[0])
	}
	if results[1].PosterURL != "" {
		t.Errorf("poster = %q, want N/A mapped to empty", results[1].PosterURL)
	}
}

func TestClient_SearchMoviesNotFoundIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SearchResponse{Response: "False", Error: "Movie not found!"})
	}))
	defer server.Close()

	client := newTestClient(server)
	results, err := client.SearchMovies(context.Background(), "Nonexistent", 0)
	if err != nil {
		t.Fatalf("SearchMovies() error = %v, want empty result", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestClient_SearchMoviesInvalidKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SearchResponse{Response: "False", Error: "Invalid API key!"})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.SearchMovies(context.Background(), "Matrix", 0)
	if !errors.Is(err, match.ErrAuth) {
		t.Errorf("error = %v, want ErrAuth", err)
	}
}

func TestClient_SearchMoviesRequestLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SearchResponse{Response: "False", Error: "Request limit reached!"})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.SearchMovies(context.Background(), "Matrix", 0)
	if !match.IsTransient(err) {
		t.Errorf("error = %v, want transient", err)
	}
}

func TestClient_MovieDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("i"); got != "tt0133093" {
			t.Errorf("i = %q, want tt0133093", got)
		}
		json.NewEncoder(w).Encode(TitleResponse{
			Response: "True",
			Title:    "The Matrix",
			Year:     "1999",
			Released: "31 Mar 1999",
			Runtime:  "136 min",
			Plot:     "A computer hacker learns about the true nature of reality.",
			Actors:   "Keanu Reeves, Laurence Fishburne, Carrie-Anne Moss",
			ImdbID:   "tt0133093",
			Type:     "movie",
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	detail, err := client.MovieDetails(context.Background(), "tt0133093")
	if err != nil {
		t.Fatalf("MovieDetails() error = %v", err)
	}
	if detail.Runtime != 136 {
		t.Errorf("runtime = %d, want 136 parsed from %q", detail.Runtime, "136 min")
	}
	if len(detail.Cast) != 3 || detail.Cast[0] != "Keanu Reeves" {
		t.Errorf("cast = %v, want the actors split", detail.Cast)
	}
}

func TestClient_EpisodeDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("Season") != "1" || q.Get("Episode") != "1" {
			t.Errorf("season/episode = %s/%s, want 1/1", q.Get("Season"), q.Get("Episode"))
		}
		json.NewEncoder(w).Encode(TitleResponse{
			Response: "True",
			Title:    "Pilot",
			Year:     "2008",
			Released: "20 Jan 2008",
			Runtime:  "58 min",
			Type:     "episode",
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	detail, err := client.EpisodeDetails(context.Background(), "tt0903747", 1, 1)
	if err != nil {
		t.Fatalf("EpisodeDetails() error = %v", err)
	}
	if detail.Title != "Pilot" || detail.Year != 2008 {
		t.Errorf("detail = %+v, want Pilot/2008", detail)
	}
	if detail.ID != "tt0903747" {
		t.Errorf("id = %q, want the series id carried through", detail.ID)
	}
}

func TestClient_SeriesYearRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SearchResponse{
			Response:     "True",
			TotalResults: "1",
			Search: []SearchItem{
				{Title: "Breaking Bad", Year: "2008–2013", ImdbID: "tt0903747", Type: "series"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	results, err := client.SearchEpisodes(context.Background(), "Breaking Bad", 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Year != 2008 {
		t.Errorf("year = %d, want leading year of the range", results[0].Year)
	}
}

func TestClient_CastUsesTitleFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TitleResponse{
			Response: "True",
			Title:    "The Matrix",
			Actors:   "Keanu Reeves, Carrie-Anne Moss",
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	cast, err := client.Cast(context.Background(), "tt0133093", media.Movie)
	if err != nil {
		t.Fatalf("Cast() error = %v", err)
	}
	if len(cast) != 2 {
		t.Errorf("cast = %v, want 2 names", cast)
	}
}

func TestClient_TimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(SearchResponse{Response: "True"})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	client := newTestClient(server)
	_, err := client.SearchMovies(ctx, "Matrix", 0)
	if !match.IsTransient(err) {
		t.Errorf("error = %v, want a deadline classified as transient", err)
	}
}
