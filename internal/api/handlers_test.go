package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/match"
	"github.com/reelmatch/reelmatch/internal/media"
	"github.com/reelmatch/reelmatch/internal/pipeline"
	"github.com/reelmatch/reelmatch/internal/websocket"
)

// stubResolver resolves every movie query to a fixed confident winner.
type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, query media.MediaQuery) (*match.Resolution, error) {
	best := &media.Candidate{Source: "tmdb", ID: "603", Title: query.Title, Year: query.Year, Score: 0.9}
	return &match.Resolution{Query: query, Candidates: []media.Candidate{*best}, Best: best}, nil
}

func (stubResolver) Search(ctx context.Context, query media.MediaQuery) ([]media.Candidate, error) {
	return []media.Candidate{
		{Source: "tmdb", ID: "603", Title: query.Title, Year: query.Year, Score: 0.9},
	}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Providers.OMDB.APIKey = "test-key"

	hub := websocket.NewHub()
	go hub.Run()

	pl := pipeline.New(stubResolver{}, hub, pipeline.Config{Workers: 2, QueueSize: 8}, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pl.Stop(ctx)
	})

	return NewServer(pl, stubResolver{}, hub, cfg, zerolog.Nop())
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSubmitMatchAccepted(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/match", `{"title":"The Matrix","year":1999}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TaskID   string `json:"taskId"`
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TaskID == "" || resp.Identity == "" {
		t.Errorf("incomplete ticket: %+v", resp)
	}
}

func TestSubmitMatchValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"year":1999}`},
		{"bad type", `{"title":"X","type":"song"}`},
		{"episode without numbers", `{"title":"Breaking Bad","type":"episode"}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/api/v1/match", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSubmitMatchConflictWhenSettled(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/match", `{"title":"Settled","year":2001}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	var ticket struct {
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ticket); err != nil {
		t.Fatal(err)
	}

	waitForStatus(t, s, ticket.Identity, match.StatusMatched)

	rec = doRequest(s, http.MethodPost, "/api/v1/match", `{"title":"Settled","year":2001}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("resubmit status = %d, want 409", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/search", `{"title":"The Matrix","year":1999}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var candidates []media.Candidate
	if err := json.Unmarshal(rec.Body.Bytes(), &candidates); err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(candidates))
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/items/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestItemLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/match", `{"title":"Lifecycle","year":2005}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d", rec.Code)
	}
	var ticket struct {
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ticket); err != nil {
		t.Fatal(err)
	}

	waitForStatus(t, s, ticket.Identity, match.StatusMatched)
	itemPath := "/api/v1/items/" + url.PathEscape(ticket.Identity)

	// Retry re-opens and resolves again.
	rec = doRequest(s, http.MethodPost, itemPath+"/retry", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("retry status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	waitForStatus(t, s, ticket.Identity, match.StatusMatched)

	// Skip on a matched item conflicts.
	rec = doRequest(s, http.MethodPost, itemPath+"/skip", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("skip status = %d, want 409 on a matched item", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/items", "")
	if rec.Code != http.StatusOK {
		t.Errorf("list status = %d, want 200", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/progress", "")
	if rec.Code != http.StatusOK {
		t.Errorf("progress status = %d, want 200", rec.Code)
	}
}

func waitForStatus(t *testing.T, s *Server, identity string, want match.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	path := "/api/v1/items/" + url.PathEscape(identity)
	for time.Now().Before(deadline) {
		rec := doRequest(s, http.MethodGet, path, "")
		if rec.Code == http.StatusOK {
			var m match.MediaMatch
			if err := json.Unmarshal(rec.Body.Bytes(), &m); err == nil && m.Status == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("item %q never reached status %q", identity, want)
}
