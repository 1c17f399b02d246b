package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reelmatch/reelmatch/internal/media"
)

// Merge deduplicates and ranks the union of candidate lists returned by all
// providers for one query. Candidates must already be similarity-scored.
// priority is the configured provider order used for tie-breaks; providers
// not listed rank after all listed ones.
func Merge(candidates []media.Candidate, priority []string) []media.Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	rank := priorityRank(priority)

	// Two candidates are the same logical result if source+id match, or if
	// their normalized titles match and their years are equal (or both
	// absent). Track both identities to the same surviving slot.
	seen := make(map[string]int)
	result := make([]media.Candidate, 0, len(candidates))

	for _, candidate := range candidates {
		idKey := "id:" + candidate.Source + "|" + strings.ToLower(strings.TrimSpace(candidate.ID))
		titleKey := fmt.Sprintf("title:%s|%d", NormalizeTitle(candidate.Title), candidate.Year)

		existingIdx := -1
		if idx, ok := seen[idKey]; ok {
			existingIdx = idx
		} else if idx, ok := seen[titleKey]; ok {
			existingIdx = idx
		}

		if existingIdx >= 0 {
			existing := result[existingIdx]
			if betterDuplicate(candidate, existing, rank) {
				result[existingIdx] = candidate
			}
			seen[idKey] = existingIdx
			seen[titleKey] = existingIdx
			continue
		}

		seen[idKey] = len(result)
		seen[titleKey] = len(result)
		result = append(result, candidate)
	}

	// Rank by score descending; ties go to the higher-priority provider,
	// then id for determinism.
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		ri, rj := providerRank(rank, result[i].Source), providerRank(rank, result[j].Source)
		if ri != rj {
			return ri < rj
		}
		return result[i].ID < result[j].ID
	})

	return result
}

// SelectBest returns the top-ranked candidate if its score meets the
// auto-accept threshold, nil otherwise.
func SelectBest(ranked []media.Candidate, threshold float64) *media.Candidate {
	if len(ranked) == 0 {
		return nil
	}
	if ranked[0].Score < threshold {
		return nil
	}
	best := ranked[0]
	return &best
}

// betterDuplicate reports whether candidate should replace existing among
// duplicates: higher score wins; ties keep the higher-priority provider.
func betterDuplicate(candidate, existing media.Candidate, rank map[string]int) bool {
	if candidate.Score != existing.Score {
		return candidate.Score > existing.Score
	}
	return providerRank(rank, candidate.Source) < providerRank(rank, existing.Source)
}

func priorityRank(priority []string) map[string]int {
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		rank[name] = i
	}
	return rank
}

func providerRank(rank map[string]int, source string) int {
	if r, ok := rank[source]; ok {
		return r
	}
	return len(rank)
}
