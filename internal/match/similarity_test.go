package match

import (
	"testing"

	"github.com/reelmatch/reelmatch/internal/media"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "The Matrix", "the matrix"},
		{"apostrophe stripped", "Schitt's Creek", "schitts creek"},
		{"curly apostrophe", "Schitt’s Creek", "schitts creek"},
		{"special chars to spaces", "Spider-Man: Homecoming", "spider man homecoming"},
		{"collapse spaces", "The   Good    Place", "the good place"},
		{"diacritics folded", "Amélie", "amelie"},
		{"mixed", "Léon: The Professional", "leon the professional"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.input); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTitlesMatch(t *testing.T) {
	if !TitlesMatch("Schitt's Creek", "schitts creek") {
		t.Error("expected titles to match after normalization")
	}
	if TitlesMatch("The Matrix", "The Matrix Reloaded") {
		t.Error("expected different titles not to match")
	}
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "The Matrix", "The Matrix", 1.0, 1.0},
		{"identical after normalization", "Amélie", "amelie", 1.0, 1.0},
		{"close", "The Matrix", "The Matrix ", 1.0, 1.0},
		{"one char off", "The Matrix", "The Matrux", 0.85, 0.99},
		{"different", "The Matrix", "Finding Nemo", 0.0, 0.5},
		{"both empty", "", "", 1.0, 1.0},
		{"one empty", "The Matrix", "", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TitleSimilarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("TitleSimilarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestScoreCandidate(t *testing.T) {
	query := media.MediaQuery{Title: "The Matrix", Year: 1999, Type: media.Movie}
	w := DefaultWeights()

	exact := ScoreCandidate(query, media.Candidate{Title: "The Matrix", Year: 1999}, w)
	if exact < 0.95 {
		t.Errorf("exact title+year score = %v, want >= 0.95", exact)
	}

	wrongYear := ScoreCandidate(query, media.Candidate{Title: "The Matrix", Year: 2003}, w)
	if wrongYear >= exact {
		t.Errorf("wrong year score %v should be below exact score %v", wrongYear, exact)
	}

	unknownYear := ScoreCandidate(query, media.Candidate{Title: "The Matrix"}, w)
	if unknownYear != exact {
		t.Errorf("unknown year should count as agreement: got %v, want %v", unknownYear, exact)
	}

	unrelated := ScoreCandidate(query, media.Candidate{Title: "Finding Nemo", Year: 2003}, w)
	if unrelated >= 0.65 {
		t.Errorf("unrelated candidate score = %v, want below auto-accept range", unrelated)
	}
}

func TestScoreCandidateZeroWeights(t *testing.T) {
	query := media.MediaQuery{Title: "The Matrix", Year: 1999}
	if got := ScoreCandidate(query, media.Candidate{Title: "The Matrix", Year: 1999}, Weights{}); got != 0 {
		t.Errorf("zero weights score = %v, want 0", got)
	}
}
