package personalize

import (
	"math"
	"sort"

	"github.com/strzhao/ai-news/internal/process"
)

// PersonalizedScore blends a type-preference multiplier into a base quality
// score. A blend of 0 disables personalization entirely.
func PersonalizedScore(baseQuality float64, primaryType string, typeMultipliers map[string]float64, blend float64) float64 {
	if blend <= 0 {
		return baseQuality
	}
	multiplier, ok := typeMultipliers[primaryType]
	if !ok {
		multiplier = 1.0
	}
	return baseQuality * (1.0 + (multiplier-1.0)*blend)
}

// ReorderByTypePreference re-sorts highlight candidates by personalized
// score, then walks the result restoring the raw-quality order wherever a
// pair's quality gap exceeds the guard band. Personalization may break ties
// and nudge close calls; it may not move a clearly better article below a
// clearly worse one. Returns the reordered slice and the number of
// positions that changed.
func ReorderByTypePreference(
	candidates []process.Candidate,
	typeMultipliers map[string]float64,
	blend float64,
	qualityGapGuard float64,
) ([]process.Candidate, int) {
	if len(candidates) == 0 || len(typeMultipliers) == 0 || blend <= 0 {
		return candidates, 0
	}

	type ranked struct {
		candidate    process.Candidate
		personalized float64
	}

	ordered := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, ranked{
			candidate:    c,
			personalized: PersonalizedScore(c.Article.Score, c.Article.PrimaryType, typeMultipliers, blend),
		})
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.personalized != b.personalized {
			return a.personalized > b.personalized
		}
		if a.candidate.Article.Score != b.candidate.Article.Score {
			return a.candidate.Article.Score > b.candidate.Article.Score
		}
		return a.candidate.Index < b.candidate.Index
	})

	gap := math.Max(0, qualityGapGuard)
	if gap > 0 {
		// Bubble pass: swap any adjacent pair whose raw quality difference
		// exceeds the guard band until the order is stable.
		changed := true
		for changed {
			changed = false
			for i := 1; i < len(ordered); i++ {
				if ordered[i].candidate.Article.Score-ordered[i-1].candidate.Article.Score > gap {
					ordered[i-1], ordered[i] = ordered[i], ordered[i-1]
					changed = true
				}
			}
		}
	}

	result := make([]process.Candidate, len(ordered))
	moved := 0
	for i, r := range ordered {
		result[i] = r.candidate
		if candidates[i].Article.ID != r.candidate.Article.ID {
			moved++
		}
	}
	return result, moved
}
