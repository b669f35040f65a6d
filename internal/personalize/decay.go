// Package personalize turns click history into bounded score multipliers
// for feed sources and article types, and applies a guarded reorder so
// personalization can nudge but never override clear quality differences.
package personalize

import (
	"math"
	"sort"
	"time"
)

// DailyClicks maps an entity id (source id or primary type) to clicks per
// ISO date.
type DailyClicks map[string]map[string]int

// MultiplierConfig bounds the decayed-click multipliers.
type MultiplierConfig struct {
	LookbackDays  int
	HalfLifeDays  float64
	MinMultiplier float64
	MaxMultiplier float64
}

// multiplierSlope scales how far a relative click surplus moves the
// multiplier away from 1.0 before clamping.
const multiplierSlope = 0.25

// ComputeMultipliers converts per-day click counts into multipliers around
// 1.0. Clicks decay exponentially with the configured half-life; each
// entity's decayed total is compared to the mean across entities and the
// relative difference is scaled and clamped. Entities with no clicks in the
// window get no entry. An empty history yields an empty map.
func ComputeMultipliers(clicks DailyClicks, cfg MultiplierConfig, nowUTC time.Time) map[string]float64 {
	days := cfg.LookbackDays
	if days < 1 {
		days = 1
	}
	maxAge := days - 1

	decayed := make(map[string]float64, len(clicks))
	for id, daily := range clicks {
		score := 0.0
		for dateText, count := range daily {
			date, err := time.Parse("2006-01-02", dateText)
			if err != nil {
				continue
			}
			ageDays := int(nowUTC.UTC().Truncate(24*time.Hour).Sub(date).Hours() / 24)
			if ageDays < 0 {
				ageDays = 0
			}
			if ageDays > maxAge {
				continue
			}
			if count < 0 {
				count = 0
			}
			score += float64(count) * decayWeight(ageDays, cfg.HalfLifeDays)
		}
		if score > 0 {
			decayed[id] = score
		}
	}

	if len(decayed) == 0 {
		return map[string]float64{}
	}

	var total float64
	for _, score := range decayed {
		total += score
	}
	baseline := total / float64(len(decayed))
	if baseline <= 0 {
		neutral := make(map[string]float64, len(decayed))
		for id := range decayed {
			neutral[id] = 1.0
		}
		return neutral
	}

	low := math.Min(cfg.MinMultiplier, cfg.MaxMultiplier)
	high := math.Max(cfg.MinMultiplier, cfg.MaxMultiplier)

	multipliers := make(map[string]float64, len(decayed))
	for id, score := range decayed {
		centered := (score - baseline) / baseline
		raw := 1.0 + centered*multiplierSlope
		multipliers[id] = math.Round(math.Max(low, math.Min(high, raw))*10000) / 10000
	}
	return multipliers
}

func decayWeight(ageDays int, halfLifeDays float64) float64 {
	if ageDays <= 0 || halfLifeDays <= 0 {
		return 1.0
	}
	return math.Pow(0.5, float64(ageDays)/halfLifeDays)
}

// SelectPreferredSources returns the top click quantile of sources with at
// least minClicks total clicks.
func SelectPreferredSources(clicks DailyClicks, minClicks int, topQuantile float64) map[string]bool {
	type total struct {
		id     string
		clicks int
	}

	totals := make([]total, 0, len(clicks))
	for id, daily := range clicks {
		sum := 0
		for _, count := range daily {
			if count > 0 {
				sum += count
			}
		}
		if sum >= minClicks {
			totals = append(totals, total{id, sum})
		}
	}
	if len(totals) == 0 {
		return map[string]bool{}
	}

	sort.SliceStable(totals, func(i, j int) bool { return totals[i].clicks > totals[j].clicks })

	quantile := math.Min(1.0, math.Max(0.01, topQuantile))
	keep := int(math.Ceil(float64(len(totals)) * quantile))
	if keep < 1 {
		keep = 1
	}

	preferred := make(map[string]bool, keep)
	for _, t := range totals[:keep] {
		preferred[t.id] = true
	}
	return preferred
}
