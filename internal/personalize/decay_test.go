package personalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func multiplierConfig() MultiplierConfig {
	return MultiplierConfig{
		LookbackDays:  90,
		HalfLifeDays:  21,
		MinMultiplier: 0.85,
		MaxMultiplier: 1.2,
	}
}

func TestComputeMultipliers_EmptyHistory(t *testing.T) {
	got := ComputeMultipliers(DailyClicks{}, multiplierConfig(), statsNow)
	assert.Empty(t, got)
}

func TestComputeMultipliers_PopularAboveUnpopular(t *testing.T) {
	clicks := DailyClicks{
		"hot":  {"2026-08-28": 30, "2026-08-27": 25},
		"cold": {"2026-08-28": 1},
	}
	got := ComputeMultipliers(clicks, multiplierConfig(), statsNow)

	require.Contains(t, got, "hot")
	require.Contains(t, got, "cold")
	assert.Greater(t, got["hot"], got["cold"])
}

func TestComputeMultipliers_ClampedToBounds(t *testing.T) {
	clicks := DailyClicks{
		"dominant": {"2026-08-28": 1000},
		"ignored":  {"2026-08-28": 1},
	}
	cfg := multiplierConfig()
	got := ComputeMultipliers(clicks, cfg, statsNow)

	assert.InDelta(t, cfg.MaxMultiplier, got["dominant"], 1e-9)
	assert.InDelta(t, cfg.MinMultiplier, got["ignored"], 1e-9)
}

func TestComputeMultipliers_OldClicksOutsideLookbackIgnored(t *testing.T) {
	clicks := DailyClicks{
		"stale": {"2025-01-01": 500},
	}
	got := ComputeMultipliers(clicks, multiplierConfig(), statsNow)
	assert.NotContains(t, got, "stale")
}

func TestDecayWeight_HalvesAtHalfLife(t *testing.T) {
	assert.InDelta(t, 1.0, decayWeight(0, 21), 1e-9)
	assert.InDelta(t, 0.5, decayWeight(21, 21), 1e-9)
	assert.InDelta(t, 0.25, decayWeight(42, 21), 1e-9)
}

func TestSelectPreferredSources_TopQuantileWithMinClicks(t *testing.T) {
	clicks := DailyClicks{
		"a": {"2026-08-28": 50},
		"b": {"2026-08-28": 20},
		"c": {"2026-08-28": 5},
		"d": {"2026-08-28": 1}, // below minClicks
	}
	got := SelectPreferredSources(clicks, 2, 0.3)

	// ceil(3 * 0.3) = 1: only the top clicker qualifies
	assert.Equal(t, map[string]bool{"a": true}, got)
}

func TestSelectPreferredSources_Empty(t *testing.T) {
	assert.Empty(t, SelectPreferredSources(DailyClicks{}, 2, 0.3))
}
