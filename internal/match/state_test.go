package match

import (
	"errors"
	"testing"

	"github.com/reelmatch/reelmatch/internal/media"
)

func testQuery() media.MediaQuery {
	return media.MediaQuery{Title: "The Matrix", Year: 1999, Type: media.Movie}
}

func TestNewMediaMatchStartsPending(t *testing.T) {
	m := NewMediaMatch(testQuery())
	if m.Status != StatusPending {
		t.Errorf("new match status = %q, want pending", m.Status)
	}
	if m.Confidence != 0 {
		t.Errorf("new match confidence = %v, want 0", m.Confidence)
	}
}

func TestApplyResolutionMatched(t *testing.T) {
	m := NewMediaMatch(testQuery())
	res := &Resolution{
		Query: testQuery(),
		Best:  &media.Candidate{Source: "tmdb", ID: "603", Title: "The Matrix", Year: 1999, Score: 0.97},
	}

	if err := m.ApplyResolution(res); err != nil {
		t.Fatalf("ApplyResolution() error = %v", err)
	}
	if m.Status != StatusMatched {
		t.Errorf("status = %q, want matched", m.Status)
	}
	if m.Source != "tmdb" || m.ExternalID != "603" {
		t.Errorf("chosen identity = %s/%s, want tmdb/603", m.Source, m.ExternalID)
	}
	if m.Confidence != 0.97 {
		t.Errorf("confidence = %v, want 0.97", m.Confidence)
	}
}

func TestApplyResolutionNoWinnerStaysPending(t *testing.T) {
	m := NewMediaMatch(testQuery())
	if err := m.ApplyResolution(&Resolution{Query: testQuery()}); err != nil {
		t.Fatalf("ApplyResolution() error = %v", err)
	}
	if m.Status != StatusPending {
		t.Errorf("status = %q, want pending when no winner", m.Status)
	}
}

func TestApplyResolutionDegraded(t *testing.T) {
	m := NewMediaMatch(testQuery())
	if err := m.ApplyResolution(&Resolution{Query: testQuery(), Degraded: true}); err != nil {
		t.Fatalf("ApplyResolution() error = %v", err)
	}
	if !m.Degraded {
		t.Error("expected degraded flag to be set")
	}
	if m.Status != StatusPending {
		t.Errorf("status = %q, want pending", m.Status)
	}
}

func TestApplyResolutionRejectedWhenNotPending(t *testing.T) {
	m := NewMediaMatch(testQuery())
	if err := m.Skip(); err != nil {
		t.Fatal(err)
	}
	err := m.ApplyResolution(&Resolution{Query: testQuery()})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ApplyResolution() on skipped item error = %v, want ErrInvalidTransition", err)
	}
}

func TestAcceptManual(t *testing.T) {
	m := NewMediaMatch(testQuery())
	candidate := media.Candidate{Source: "omdb", ID: "tt0133093", Title: "The Matrix", Year: 1999, Score: 0.4}

	if err := m.AcceptManual(candidate); err != nil {
		t.Fatalf("AcceptManual() error = %v", err)
	}
	if m.Status != StatusManual {
		t.Errorf("status = %q, want manual", m.Status)
	}
	// Manual selection copies the confirmed candidate even if a higher
	// scored one existed.
	if m.Source != "omdb" || m.ExternalID != "tt0133093" {
		t.Errorf("chosen identity = %s/%s, want omdb/tt0133093", m.Source, m.ExternalID)
	}
	if m.Confidence != 0.4 {
		t.Errorf("confidence = %v, want candidate score 0.4", m.Confidence)
	}
}

func TestAcceptManualUnscoredGetsConfidenceFloor(t *testing.T) {
	m := NewMediaMatch(testQuery())
	if err := m.AcceptManual(media.Candidate{Source: "tmdb", ID: "603"}); err != nil {
		t.Fatal(err)
	}
	if m.Confidence <= 0 {
		t.Errorf("confidence = %v, want > 0 for manual matches", m.Confidence)
	}
}

func TestSkip(t *testing.T) {
	m := NewMediaMatch(testQuery())
	if err := m.Skip(); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if m.Status != StatusSkipped {
		t.Errorf("status = %q, want skipped", m.Status)
	}
	if err := m.Skip(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Skip() error = %v, want ErrInvalidTransition", err)
	}
}

func TestResetFromMatched(t *testing.T) {
	m := NewMediaMatch(testQuery())
	res := &Resolution{
		Query: testQuery(),
		Best:  &media.Candidate{Source: "tmdb", ID: "603", Title: "The Matrix", Year: 1999, Cast: []string{"Keanu Reeves"}, Score: 0.97},
	}
	if err := m.ApplyResolution(res); err != nil {
		t.Fatal(err)
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if m.Status != StatusPending {
		t.Errorf("status = %q, want pending", m.Status)
	}
	if m.Source != "" || m.ExternalID != "" || m.Confidence != 0 || len(m.Cast) != 0 {
		t.Errorf("Reset() left chosen fields behind: %+v", m)
	}
}

func TestResetFromSkipped(t *testing.T) {
	m := NewMediaMatch(testQuery())
	if err := m.Skip(); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if m.Status != StatusPending {
		t.Errorf("status = %q, want pending", m.Status)
	}
}

func TestResetRejectedFromManualAndPending(t *testing.T) {
	m := NewMediaMatch(testQuery())
	if err := m.Reset(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Reset() from pending error = %v, want ErrInvalidTransition", err)
	}

	if err := m.AcceptManual(media.Candidate{Source: "tmdb", ID: "603", Score: 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Reset() from manual error = %v, want ErrInvalidTransition", err)
	}
}
