package quality

import (
	"math"
	"sort"

	"github.com/strzhao/ai-news/internal/domain"
)

// Per-tier fetch limits. The top third of sources by priority gets the
// high limit, the middle third the medium limit, the rest the low limit.
const (
	HighTierLimit   = 30
	MediumTierLimit = 22
	LowTierLimit    = 12
)

// RankSourcesByPriority orders sources by a blend of historical quality
// (70%) and configured weight (30%), scaled by the reader's click-behavior
// multiplier when available.
func RankSourcesByPriority(
	sources []domain.SourceConfig,
	historical map[string]domain.SourceQualityScore,
	behaviorMultipliers map[string]float64,
) []domain.SourceConfig {
	priority := func(source domain.SourceConfig) float64 {
		sourceQuality := populationMidpoint
		if hist, ok := historical[source.ID]; ok {
			sourceQuality = hist.QualityScore
		}
		p := sourceQuality*0.7 + source.Weight*100*0.3
		if multiplier, ok := behaviorMultipliers[source.ID]; ok {
			p *= multiplier
		}
		return p
	}

	ranked := make([]domain.SourceConfig, len(sources))
	copy(ranked, sources)
	sort.SliceStable(ranked, func(i, j int) bool {
		return priority(ranked[i]) > priority(ranked[j])
	})
	return ranked
}

// BuildSourceFetchLimits assigns tiered per-source fetch limits based on a
// source's position in the priority ranking.
func BuildSourceFetchLimits(prioritized []domain.SourceConfig) map[string]int {
	if len(prioritized) == 0 {
		return map[string]int{}
	}

	highCutoff := max(1, len(prioritized)/3)
	mediumCutoff := max(highCutoff+1, len(prioritized)*2/3)

	limits := make(map[string]int, len(prioritized))
	for idx, source := range prioritized {
		switch {
		case idx < highCutoff:
			limits[source.ID] = HighTierLimit
		case idx < mediumCutoff:
			limits[source.ID] = MediumTierLimit
		default:
			limits[source.ID] = LowTierLimit
		}
	}
	return limits
}

// BuildBudgetedSourceLimits shapes tier limits to a total fetch budget.
// Every source keeps a minimum quota, a fraction of the budget is reserved
// for sources with no quality history (exploration), and the remainder is
// handed out in priority order with preferred (high-click) sources first.
// A zero or negative budget leaves the tier limits untouched.
func BuildBudgetedSourceLimits(
	prioritized []domain.SourceConfig,
	tierLimits map[string]int,
	totalBudget int,
	minPerSource int,
	preferredSourceIDs map[string]bool,
	historical map[string]domain.SourceQualityScore,
	explorationRatio float64,
) map[string]int {
	if totalBudget <= 0 || len(prioritized) == 0 {
		return tierLimits
	}
	if minPerSource < 1 {
		minPerSource = 1
	}
	explorationRatio = math.Max(0, math.Min(1, explorationRatio))

	limits := make(map[string]int, len(prioritized))
	remaining := totalBudget

	// Guaranteed floor, in priority order; runs dry rather than overspend.
	for _, source := range prioritized {
		floor := min(minPerSource, tierLimits[source.ID])
		if floor > remaining {
			floor = remaining
		}
		limits[source.ID] = floor
		remaining -= floor
		if remaining == 0 {
			break
		}
	}

	if remaining <= 0 {
		return limits
	}

	// Exploration share for sources that have never been scored.
	var untested []domain.SourceConfig
	for _, source := range prioritized {
		if _, ok := historical[source.ID]; !ok {
			untested = append(untested, source)
		}
	}
	exploration := int(math.Round(float64(remaining) * explorationRatio))
	remaining -= distributeRoundRobin(untested, limits, tierLimits, exploration)

	// Preferred sources first, then the rest in priority order.
	ordered := make([]domain.SourceConfig, 0, len(prioritized))
	var rest []domain.SourceConfig
	for _, source := range prioritized {
		if preferredSourceIDs[source.ID] {
			ordered = append(ordered, source)
		} else {
			rest = append(rest, source)
		}
	}
	ordered = append(ordered, rest...)

	for _, source := range ordered {
		if remaining <= 0 {
			break
		}
		headroom := tierLimits[source.ID] - limits[source.ID]
		if headroom <= 0 {
			continue
		}
		grant := min(headroom, remaining)
		limits[source.ID] += grant
		remaining -= grant
	}

	return limits
}

// distributeRoundRobin grants one fetch slot at a time across sources until
// the pool is spent or every source hits its tier limit. Returns the number
// of slots actually granted.
func distributeRoundRobin(
	sources []domain.SourceConfig,
	limits map[string]int,
	tierLimits map[string]int,
	pool int,
) int {
	granted := 0
	for pool > granted {
		progressed := false
		for _, source := range sources {
			if granted >= pool {
				break
			}
			if limits[source.ID] >= tierLimits[source.ID] {
				continue
			}
			limits[source.ID]++
			granted++
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return granted
}
