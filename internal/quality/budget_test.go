package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strzhao/ai-news/internal/domain"
)

func source(id string, weight float64) domain.SourceConfig {
	return domain.SourceConfig{ID: id, Name: id, URL: "https://example.com/" + id, Weight: weight}
}

func TestRankSourcesByPriority(t *testing.T) {
	sources := []domain.SourceConfig{
		source("newcomer", 1.0),
		source("proven", 1.0),
		source("heavy", 1.5),
	}
	historical := map[string]domain.SourceQualityScore{
		"proven": {SourceID: "proven", QualityScore: 90},
	}

	ranked := RankSourcesByPriority(sources, historical, nil)
	require.Len(t, ranked, 3)

	// proven: 90*0.7 + 30 = 93; heavy: 35 + 45 = 80; newcomer: 35 + 30 = 65
	assert.Equal(t, "proven", ranked[0].ID)
	assert.Equal(t, "heavy", ranked[1].ID)
	assert.Equal(t, "newcomer", ranked[2].ID)
}

func TestRankSourcesByPriority_BehaviorMultiplierCanFlip(t *testing.T) {
	sources := []domain.SourceConfig{
		source("a", 1.0),
		source("b", 1.0),
	}
	multipliers := map[string]float64{"b": 1.2}

	ranked := RankSourcesByPriority(sources, nil, multipliers)
	assert.Equal(t, "b", ranked[0].ID)
}

func TestBuildSourceFetchLimits_Tiers(t *testing.T) {
	prioritized := []domain.SourceConfig{
		source("s1", 1), source("s2", 1), source("s3", 1),
		source("s4", 1), source("s5", 1), source("s6", 1),
	}

	limits := BuildSourceFetchLimits(prioritized)

	assert.Equal(t, HighTierLimit, limits["s1"])
	assert.Equal(t, HighTierLimit, limits["s2"])
	assert.Equal(t, MediumTierLimit, limits["s3"])
	assert.Equal(t, MediumTierLimit, limits["s4"])
	assert.Equal(t, LowTierLimit, limits["s5"])
	assert.Equal(t, LowTierLimit, limits["s6"])
}

func TestBuildSourceFetchLimits_SingleSource(t *testing.T) {
	limits := BuildSourceFetchLimits([]domain.SourceConfig{source("only", 1)})
	assert.Equal(t, map[string]int{"only": HighTierLimit}, limits)
}

func TestBuildBudgetedSourceLimits_ZeroBudgetKeepsTiers(t *testing.T) {
	prioritized := []domain.SourceConfig{source("a", 1)}
	tiers := map[string]int{"a": HighTierLimit}

	limits := BuildBudgetedSourceLimits(prioritized, tiers, 0, 2, nil, nil, 0.2)
	assert.Equal(t, tiers, limits)
}

func TestBuildBudgetedSourceLimits_FloorAndTotal(t *testing.T) {
	prioritized := []domain.SourceConfig{
		source("a", 1), source("b", 1), source("c", 1),
	}
	tiers := map[string]int{"a": 10, "b": 10, "c": 10}
	historical := map[string]domain.SourceQualityScore{
		"a": {SourceID: "a", QualityScore: 80},
		"b": {SourceID: "b", QualityScore: 70},
		"c": {SourceID: "c", QualityScore: 60},
	}

	limits := BuildBudgetedSourceLimits(prioritized, tiers, 18, 2, nil, historical, 0.2)

	total := 0
	for _, v := range limits {
		require.GreaterOrEqual(t, v, 2)
		require.LessOrEqual(t, v, 10)
		total += v
	}
	assert.Equal(t, 18, total)
	// remainder lands on the highest-priority source first
	assert.Equal(t, 10, limits["a"])
}

func TestBuildBudgetedSourceLimits_TightBudgetRunsDry(t *testing.T) {
	prioritized := []domain.SourceConfig{
		source("a", 1), source("b", 1), source("c", 1),
	}
	tiers := map[string]int{"a": 10, "b": 10, "c": 10}

	limits := BuildBudgetedSourceLimits(prioritized, tiers, 5, 3, nil, nil, 0)

	assert.Equal(t, 3, limits["a"])
	assert.Equal(t, 2, limits["b"])
	assert.Equal(t, 0, limits["c"])
}

func TestBuildBudgetedSourceLimits_ExplorationFavorsUntested(t *testing.T) {
	prioritized := []domain.SourceConfig{
		source("known", 1), source("fresh", 1),
	}
	tiers := map[string]int{"known": 20, "fresh": 20}
	historical := map[string]domain.SourceQualityScore{
		"known": {SourceID: "known", QualityScore: 90},
	}

	limits := BuildBudgetedSourceLimits(prioritized, tiers, 12, 1, nil, historical, 0.5)

	// floor 1 each, exploration hands half of the 10 remaining to fresh
	require.GreaterOrEqual(t, limits["fresh"], 6)
	assert.Equal(t, 12, limits["known"]+limits["fresh"])
}

func TestBuildBudgetedSourceLimits_PreferredGetRemainderFirst(t *testing.T) {
	prioritized := []domain.SourceConfig{
		source("top", 1), source("loved", 1),
	}
	tiers := map[string]int{"top": 10, "loved": 10}
	historical := map[string]domain.SourceQualityScore{
		"top":   {SourceID: "top", QualityScore: 90},
		"loved": {SourceID: "loved", QualityScore: 50},
	}
	preferred := map[string]bool{"loved": true}

	limits := BuildBudgetedSourceLimits(prioritized, tiers, 12, 1, preferred, historical, 0)

	// 2 spent on floors, the 10-slot remainder goes to the preferred source
	// up to its tier limit before the priority leader sees any of it
	assert.Equal(t, 10, limits["loved"])
	assert.Equal(t, 2, limits["top"])
}
