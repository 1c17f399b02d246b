package match

import (
	"errors"
	"time"

	"github.com/reelmatch/reelmatch/internal/media"
)

// Status is the lifecycle state of a media item's match.
type Status string

const (
	// StatusPending means no resolution has been accepted yet.
	StatusPending Status = "pending"
	// StatusMatched means an automatic resolution was accepted.
	StatusMatched Status = "matched"
	// StatusManual means the user confirmed a candidate explicitly.
	StatusManual Status = "manual"
	// StatusSkipped means the user opted the item out of matching.
	StatusSkipped Status = "skipped"
)

// ErrInvalidTransition is returned when a state change is requested that the
// state machine does not allow from the item's current status.
var ErrInvalidTransition = errors.New("invalid match state transition")

// MediaMatch is the durable per-item output of the engine. It is mutated
// only through its transition methods, and the pipeline guarantees a single
// mutator per item at a time.
type MediaMatch struct {
	Query  media.MediaQuery `json:"query"`
	Status Status           `json:"status"`

	// Source and ExternalID identify the chosen candidate. Both are empty
	// until a match is accepted, and always set together.
	Source     string  `json:"source,omitempty"`
	ExternalID string  `json:"externalId,omitempty"`
	Confidence float64 `json:"confidence"`

	// Degraded marks a Pending result caused by total provider
	// unavailability rather than a confirmed absence of metadata.
	Degraded bool `json:"degraded,omitempty"`

	Title    string   `json:"title,omitempty"`
	Year     int      `json:"year,omitempty"`
	Overview string   `json:"overview,omitempty"`
	Runtime  int      `json:"runtime,omitempty"`
	AirDate  string   `json:"airDate,omitempty"`
	Cast     []string `json:"cast,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// NewMediaMatch creates the initial Pending match for a query.
func NewMediaMatch(query media.MediaQuery) *MediaMatch {
	return &MediaMatch{
		Query:     query,
		Status:    StatusPending,
		UpdatedAt: time.Now(),
	}
}

// ApplyResolution applies an automatic resolution. A confident winner moves
// Pending to Matched and copies the winner's fields; otherwise the item
// stays Pending (carrying the Degraded flag so callers can tell a provider
// outage from a confirmed no-match).
func (m *MediaMatch) ApplyResolution(res *Resolution) error {
	if m.Status != StatusPending {
		return ErrInvalidTransition
	}

	m.Degraded = res.Degraded
	m.UpdatedAt = time.Now()

	if res.Best == nil {
		return nil
	}

	m.copyCandidate(*res.Best)
	m.Confidence = res.Best.Score
	m.Status = StatusMatched
	return nil
}

// AcceptManual applies a user-confirmed candidate, copying exactly that
// candidate's fields irrespective of merge ranking. The confidence floor
// keeps the Manual invariant (confidence > 0) even for an unscored
// candidate the user picked by hand.
func (m *MediaMatch) AcceptManual(candidate media.Candidate) error {
	if m.Status != StatusPending {
		return ErrInvalidTransition
	}

	m.copyCandidate(candidate)
	m.Confidence = candidate.Score
	if m.Confidence <= 0 {
		m.Confidence = 0.01
	}
	m.Degraded = false
	m.Status = StatusManual
	m.UpdatedAt = time.Now()
	return nil
}

// Skip marks the item as deliberately unmatched. No provider call required.
func (m *MediaMatch) Skip() error {
	if m.Status != StatusPending {
		return ErrInvalidTransition
	}
	m.Status = StatusSkipped
	m.Confidence = 0
	m.UpdatedAt = time.Now()
	return nil
}

// Reset re-opens a Matched or Skipped item back to Pending for another
// resolution cycle. This is a deliberate external action, never automatic.
func (m *MediaMatch) Reset() error {
	if m.Status != StatusMatched && m.Status != StatusSkipped {
		return ErrInvalidTransition
	}

	m.Status = StatusPending
	m.Source = ""
	m.ExternalID = ""
	m.Confidence = 0
	m.Degraded = false
	m.Title = ""
	m.Year = 0
	m.Overview = ""
	m.Runtime = 0
	m.AirDate = ""
	m.Cast = nil
	m.UpdatedAt = time.Now()
	return nil
}

func (m *MediaMatch) copyCandidate(c media.Candidate) {
	m.Source = c.Source
	m.ExternalID = c.ID
	m.Title = c.Title
	m.Year = c.Year
	m.Overview = c.Overview
	m.Runtime = c.Runtime
	m.AirDate = c.AirDate
	m.Cast = append([]string(nil), c.Cast...)
}
