package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/reelmatch/reelmatch/internal/media"
)

var (
	apostropheRegex    = regexp.MustCompile("[''`‘’ʼ]")
	specialCharsRegex  = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	multipleSpaceRegex = regexp.MustCompile(`\s+`)
)

// NormalizeTitle converts a title to a normalized form for comparison.
// It folds diacritics, converts to lowercase, strips apostrophes (within-word
// punctuation), replaces remaining special characters with spaces, and
// collapses multiple spaces. Apostrophes are stripped rather than replaced
// with spaces so that titles like "Schitt's Creek" and "Schitts Creek" both
// normalize to "schitts creek".
func NormalizeTitle(title string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(folder, title); err == nil {
		title = folded
	}

	normalized := strings.ToLower(title)
	normalized = apostropheRegex.ReplaceAllString(normalized, "")
	normalized = specialCharsRegex.ReplaceAllString(normalized, " ")
	normalized = multipleSpaceRegex.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)
	return normalized
}

// TitlesMatch performs strict matching of two titles after normalization.
func TitlesMatch(a, b string) bool {
	return NormalizeTitle(a) == NormalizeTitle(b)
}

// TitleSimilarity returns a ratio in [0,1] based on the edit distance
// between the normalized titles: 1.0 for identical titles, approaching 0 as
// they diverge.
func TitleSimilarity(a, b string) float64 {
	na := NormalizeTitle(a)
	nb := NormalizeTitle(b)

	if na == "" && nb == "" {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	ra := []rune(na)
	rb := []rune(nb)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes the edit distance between two rune slices using the
// two-row dynamic programming formulation.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// Weights controls the similarity score composition. The score other
// components rely on is only guaranteed to be in [0,1] and to reflect
// title+year agreement monotonically; the exact blend is tunable.
type Weights struct {
	Title float64
	Year  float64
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{Title: 0.7, Year: 0.3}
}

// ScoreCandidate computes the similarity of a candidate against a query as a
// weighted sum of title similarity and year agreement. A year counts as
// agreeing when equal or when either side is unknown.
func ScoreCandidate(query media.MediaQuery, candidate media.Candidate, w Weights) float64 {
	total := w.Title + w.Year
	if total == 0 {
		return 0
	}

	title := TitleSimilarity(query.Title, candidate.Title)

	year := 0.0
	if query.Year == 0 || candidate.Year == 0 || query.Year == candidate.Year {
		year = 1.0
	}

	return (w.Title*title + w.Year*year) / total
}
