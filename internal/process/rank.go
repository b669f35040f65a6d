package process

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/strzhao/ai-news/internal/domain"
)

// ScoringConfig drives the keyword-heuristic ranker, the fallback scoring
// path that needs no LLM.
type ScoringConfig struct {
	Weights                 map[string]float64       `yaml:"weights"`
	KeywordSignals          map[string]KeywordSignal `yaml:"keyword_signals"`
	WorthThresholds         WorthThresholds          `yaml:"worth_thresholds"`
	SourceAuthorityDefaults map[string]float64       `yaml:"source_authority_defaults"`
	Penalties               Penalties                `yaml:"penalties"`
}

// KeywordSignal groups keywords by strength for one scoring dimension.
type KeywordSignal struct {
	Strong []string `yaml:"strong"`
	Medium []string `yaml:"medium"`
}

// WorthThresholds maps heuristic scores to worth labels.
type WorthThresholds struct {
	MustRead     float64 `yaml:"must_read"`
	WorthReading float64 `yaml:"worth_reading"`
}

// Penalties configures score deductions for stale or marketing-heavy content.
type Penalties struct {
	OutdatedDays         int      `yaml:"outdated_days"`
	OutdatedPenalty      float64  `yaml:"outdated_penalty"`
	OverlyMarketingTerms []string `yaml:"overly_marketing_terms"`
	MarketingPenalty     float64  `yaml:"marketing_penalty"`
}

// RankArticles scores articles with keyword, authority, and recency signals
// and returns them sorted by descending score. This is the non-LLM fallback
// ranker; the primary path uses per-article LLM assessments.
func RankArticles(
	articles []domain.Article,
	cfg ScoringConfig,
	sourceWeights map[string]float64,
	nowUTC time.Time,
) []domain.ScoredArticle {
	weights := cfg.Weights
	if len(weights) == 0 {
		weights = map[string]float64{
			"engineering_value": 35, "novelty": 25, "authority": 20,
			"actionability": 15, "recency": 5,
		}
	}
	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		totalWeight = 1.0
	}

	thresholds := cfg.WorthThresholds
	if thresholds.MustRead == 0 {
		thresholds.MustRead = 75
	}
	if thresholds.WorthReading == 0 {
		thresholds.WorthReading = 55
	}

	scored := make([]domain.ScoredArticle, 0, len(articles))
	for _, article := range articles {
		components := map[string]float64{
			"engineering_value": signalScore(article.ContentText, cfg.KeywordSignals["engineering_value"]),
			"novelty":           signalScore(article.ContentText, cfg.KeywordSignals["novelty"]),
			"actionability":     signalScore(article.ContentText, cfg.KeywordSignals["actionability"]),
			"authority":         authorityScore(article, cfg.SourceAuthorityDefaults, sourceWeights),
			"recency":           recencyScore(article, nowUTC),
		}

		score := 0.0
		for name, value := range components {
			score += value * weights[name]
		}
		score /= totalWeight
		score = applyPenalties(score, article, cfg.Penalties, nowUTC)

		worth := worthFromScore(score, thresholds)
		scored = append(scored, domain.ScoredArticle{
			Article:     article,
			Score:       math.Round(score*100) / 100,
			Worth:       worth,
			ReasonShort: reasonShort(article, components, worth),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

// signalScore gives a baseline for non-empty text plus weighted keyword
// hits, capped at 100.
func signalScore(text string, signal KeywordSignal) float64 {
	const (
		strongWeight = 20.0
		mediumWeight = 10.0
		baseline     = 45.0
	)

	haystack := strings.ToLower(text)
	score := 0.0
	if strings.TrimSpace(text) != "" {
		score = baseline
	}
	score += float64(countHits(haystack, signal.Strong)) * strongWeight
	score += float64(countHits(haystack, signal.Medium)) * mediumWeight
	return math.Min(score, 100)
}

func countHits(haystack string, keywords []string) int {
	hits := 0
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(haystack, strings.ToLower(keyword)) {
			hits++
		}
	}
	return hits
}

func authorityScore(article domain.Article, defaults map[string]float64, sourceWeights map[string]float64) float64 {
	base, ok := defaults[article.SourceID]
	if !ok {
		base = 70
	}
	weight, ok := sourceWeights[article.SourceID]
	if !ok {
		weight = 1.0
	}
	return math.Min(base*weight, 100)
}

func recencyScore(article domain.Article, nowUTC time.Time) float64 {
	if article.PublishedAt == nil {
		return 50
	}
	days := math.Max(nowUTC.Sub(*article.PublishedAt).Hours()/24, 0)
	switch {
	case days <= 1:
		return 100
	case days <= 3:
		return 85
	case days <= 7:
		return 70
	case days <= 14:
		return 50
	default:
		return 30
	}
}

func applyPenalties(score float64, article domain.Article, penalties Penalties, nowUTC time.Time) float64 {
	outdatedDays := penalties.OutdatedDays
	if outdatedDays == 0 {
		outdatedDays = 14
	}
	outdatedPenalty := penalties.OutdatedPenalty
	if outdatedPenalty == 0 {
		outdatedPenalty = 12
	}
	marketingPenalty := penalties.MarketingPenalty
	if marketingPenalty == 0 {
		marketingPenalty = 6
	}

	if article.PublishedAt != nil && nowUTC.Sub(*article.PublishedAt) > time.Duration(outdatedDays)*24*time.Hour {
		score -= outdatedPenalty
	}

	content := strings.ToLower(article.ContentText)
	for _, term := range penalties.OverlyMarketingTerms {
		if term != "" && strings.Contains(content, strings.ToLower(term)) {
			score -= marketingPenalty
			break
		}
	}

	return math.Max(score, 0)
}

func worthFromScore(score float64, thresholds WorthThresholds) domain.Worth {
	switch {
	case score >= thresholds.MustRead:
		return domain.WorthMustRead
	case score >= thresholds.WorthReading:
		return domain.WorthWorthReading
	default:
		return domain.WorthSkip
	}
}

// reasonShort names the two strongest components behind a score.
func reasonShort(article domain.Article, components map[string]float64, worth domain.Worth) string {
	labels := []struct {
		key   string
		label string
	}{
		{"engineering_value", "engineering value"},
		{"novelty", "novelty"},
		{"authority", "source authority"},
		{"actionability", "actionability"},
	}

	sort.SliceStable(labels, func(i, j int) bool {
		return components[labels[i].key] > components[labels[j].key]
	})

	parts := []string{labels[0].label, labels[1].label}
	if article.PublishedAt != nil {
		parts = append(parts, "recency")
	}
	return fmt.Sprintf("%s: %s", worth, strings.Join(parts, " + "))
}
