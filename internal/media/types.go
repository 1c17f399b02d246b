// Package media holds the shared data model exchanged between the scanner,
// the matching engine, and the API surface.
package media

import "fmt"

// MediaType identifies what kind of content a query is about.
type MediaType string

const (
	// Movie is a feature film.
	Movie MediaType = "movie"
	// TVEpisode is a single episode of a series.
	TVEpisode MediaType = "episode"
)

// MediaQuery is the immutable input produced by the scanning subsystem for
// one discovered file. Year 0 means the year is unknown.
type MediaQuery struct {
	Title   string    `json:"title"`
	Year    int       `json:"year,omitempty"`
	Type    MediaType `json:"type"`
	Season  int       `json:"season,omitempty"`
	Episode int       `json:"episode,omitempty"`
}

// IsTV returns true for episode queries.
func (q MediaQuery) IsTV() bool {
	return q.Type == TVEpisode
}

// String renders the query for logging and cache keys.
func (q MediaQuery) String() string {
	if q.IsTV() {
		return fmt.Sprintf("%s (%d) S%02dE%02d", q.Title, q.Year, q.Season, q.Episode)
	}
	return fmt.Sprintf("%s (%d)", q.Title, q.Year)
}

// Candidate is one provider's proposed identification for a query.
// Candidates are immutable once scored; the merge winner's fields are copied
// into the item's MediaMatch.
type Candidate struct {
	Source      string   `json:"source"`
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Year        int      `json:"year,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	Runtime     int      `json:"runtime,omitempty"`
	AirDate     string   `json:"airDate,omitempty"`
	Cast        []string `json:"cast,omitempty"`
	PosterURL   string   `json:"posterUrl,omitempty"`
	BackdropURL string   `json:"backdropUrl,omitempty"`
	SubtitleURL string   `json:"subtitleUrl,omitempty"`

	// Score is the similarity against the originating query, in [0,1].
	Score float64 `json:"score"`
}
