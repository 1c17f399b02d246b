package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/match"
	"github.com/reelmatch/reelmatch/internal/media"
	"github.com/reelmatch/reelmatch/internal/pipeline"
)

// matchRequest is the body of POST /match and POST /search.
type matchRequest struct {
	Title   string `json:"title"`
	Year    int    `json:"year"`
	Type    string `json:"type"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

func (r *matchRequest) toQuery() (media.MediaQuery, error) {
	if r.Title == "" {
		return media.MediaQuery{}, errors.New("title is required")
	}

	mediaType := media.Movie
	switch r.Type {
	case "", "movie":
	case "episode":
		mediaType = media.TVEpisode
		if r.Season < 1 || r.Episode < 1 {
			return media.MediaQuery{}, errors.New("episode queries require season and episode numbers")
		}
	default:
		return media.MediaQuery{}, errors.New("type must be movie or episode")
	}

	query := media.MediaQuery{
		Title: r.Title,
		Year:  r.Year,
		Type:  mediaType,
	}
	if mediaType == media.TVEpisode {
		query.Season = r.Season
		query.Episode = r.Episode
	}
	return query, nil
}

// ticketResponse is the 202 body for accepted submissions.
type ticketResponse struct {
	TaskID    string `json:"taskId"`
	Identity  string `json:"identity"`
	Coalesced bool   `json:"coalesced"`
}

func toTicketResponse(t *pipeline.Ticket) ticketResponse {
	return ticketResponse{
		TaskID:    t.TaskID.String(),
		Identity:  t.Identity,
		Coalesced: t.Coalesced,
	}
}

// healthCheck returns service health.
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

// getStatus returns a service overview.
func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"version":      config.Version,
		"cacheBackend": s.cfg.Cache.Backend,
		"progress":     s.pipeline.Progress(),
		"wsClients":    s.hub.ClientCount(),
	})
}

// getProgress returns the pipeline counters.
func (s *Server) getProgress(c echo.Context) error {
	return c.JSON(http.StatusOK, s.pipeline.Progress())
}

// submitMatch queues a query for asynchronous resolution.
func (s *Server) submitMatch(c echo.Context) error {
	var req matchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	query, err := req.toQuery()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ticket, err := s.pipeline.Submit(query)
	if err != nil {
		return pipelineError(err)
	}
	return c.JSON(http.StatusAccepted, toTicketResponse(ticket))
}

// search runs a synchronous provider search and returns the ranked
// candidates without touching the match ledger.
func (s *Server) search(c echo.Context) error {
	var req matchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	query, err := req.toQuery()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	candidates, err := s.resolver.Search(c.Request().Context(), query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if candidates == nil {
		candidates = []media.Candidate{}
	}
	return c.JSON(http.StatusOK, candidates)
}

// itemID returns the :id path parameter. Identities carry spaces and
// separator characters, so clients send them percent-encoded.
func itemID(c echo.Context) string {
	raw := c.Param("id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

// listItems returns every known match.
func (s *Server) listItems(c echo.Context) error {
	return c.JSON(http.StatusOK, s.pipeline.List())
}

// getItem returns one match by identity.
func (s *Server) getItem(c echo.Context) error {
	m, ok := s.pipeline.Get(itemID(c))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown media item")
	}
	return c.JSON(http.StatusOK, m)
}

// acceptItem applies a user-confirmed candidate.
func (s *Server) acceptItem(c echo.Context) error {
	var candidate media.Candidate
	if err := c.Bind(&candidate); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if candidate.Source == "" || candidate.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "candidate source and id are required")
	}

	m, err := s.pipeline.Accept(itemID(c), candidate)
	if err != nil {
		return pipelineError(err)
	}
	return c.JSON(http.StatusOK, m)
}

// skipItem marks an item as deliberately unmatched.
func (s *Server) skipItem(c echo.Context) error {
	m, err := s.pipeline.Skip(itemID(c))
	if err != nil {
		return pipelineError(err)
	}
	return c.JSON(http.StatusOK, m)
}

// retryItem re-opens a settled item and queues another resolution.
func (s *Server) retryItem(c echo.Context) error {
	ticket, err := s.pipeline.Retry(itemID(c))
	if err != nil {
		return pipelineError(err)
	}
	return c.JSON(http.StatusAccepted, toTicketResponse(ticket))
}

// cancelItem cancels an in-flight resolution.
func (s *Server) cancelItem(c echo.Context) error {
	if !s.pipeline.Cancel(itemID(c)) {
		return echo.NewHTTPError(http.StatusNotFound, "no resolution in flight")
	}
	return c.NoContent(http.StatusAccepted)
}

// pipelineError maps pipeline and state machine errors onto HTTP statuses.
func pipelineError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrUnknownItem):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrNotPending),
		errors.Is(err, pipeline.ErrBusy),
		errors.Is(err, match.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrQueueFull),
		errors.Is(err, pipeline.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
