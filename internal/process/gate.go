package process

import (
	"math"

	"github.com/strzhao/ai-news/internal/domain"
)

// GateConfig holds the selection-gate thresholds.
type GateConfig struct {
	TopN              int
	MinHighlightScore float64
	MinWorthReading   float64
	MinConfidence     float64
	DynamicPercentile float64
	SelectionRatio    float64
	MinCount          int
	MaxInfoDup        int
}

// GateStats records why candidates were filtered out, for run analysis.
type GateStats struct {
	EffectiveThreshold float64 `json:"effective_threshold"`
	DynamicThreshold   float64 `json:"dynamic_threshold"`
	SelectionCap       int     `json:"selection_cap"`
	SkippedWorth       int     `json:"skipped_worth"`
	LowConfidence      int     `json:"low_confidence"`
	BelowThreshold     int     `json:"below_threshold"`
	RepeatLimitBlocked int     `json:"repeat_limit_blocked"`
}

// Candidate is one gated highlight candidate carrying its position in the
// summarizer's ranking.
type Candidate struct {
	Index      int
	Highlight  domain.AIHighlight
	Article    domain.ScoredArticle
	Assessment domain.ArticleAssessment
}

// HighlightCap bounds the number of selected highlights: at least minimum,
// at most topN, scaled by ratio of the assessed pool size. Ratio is clamped
// to [0.05, 1.0].
func HighlightCap(totalAssessed, topN int, ratio float64, minimum int) int {
	ratio = math.Min(1.0, math.Max(0.05, ratio))
	if minimum < 1 {
		minimum = 1
	}
	capped := int(math.Round(float64(totalAssessed) * ratio))
	if capped < minimum {
		capped = minimum
	}
	if capped > topN {
		capped = topN
	}
	if capped < 1 {
		capped = 1
	}
	return capped
}

// EffectiveThreshold computes the must-read score cutoff: the configured
// floor raised to the dynamic percentile of non-skip quality scores.
func EffectiveThreshold(assessments map[string]domain.ArticleAssessment, cfg GateConfig) (effective, dynamic float64, poolSize int) {
	scores := make([]float64, 0, len(assessments))
	for _, a := range assessments {
		if a.Worth != domain.WorthSkip {
			scores = append(scores, a.QualityScore)
		}
	}

	dynamic = cfg.MinHighlightScore
	if len(scores) > 0 {
		dynamic = Percentile(scores, cfg.DynamicPercentile)
	}
	effective = math.Max(cfg.MinHighlightScore, dynamic)
	return effective, dynamic, len(scores)
}

// FilterCandidates applies per-article gates to the summarizer's highlight
// ordering and splits survivors into must-read and worth-reading pools.
// Articles without an assessment, below confidence, or below their worth
// tier's score floor are dropped; the run is never aborted here.
func FilterCandidates(
	highlights []domain.AIHighlight,
	articles map[string]domain.Article,
	assessments map[string]domain.ArticleAssessment,
	cfg GateConfig,
	effectiveThreshold float64,
	stats *GateStats,
) (mustRead, worthReading []Candidate) {
	for index, highlight := range highlights {
		if highlight.Worth == domain.WorthSkip {
			stats.SkippedWorth++
			continue
		}
		article, ok := articles[highlight.ArticleID]
		if !ok {
			continue
		}
		assessment, ok := assessments[article.ID]
		if !ok {
			continue
		}
		if assessment.Worth == domain.WorthSkip {
			stats.SkippedWorth++
			continue
		}
		if assessment.Confidence < cfg.MinConfidence {
			stats.LowConfidence++
			continue
		}
		if assessment.Worth == domain.WorthMustRead && assessment.QualityScore < effectiveThreshold {
			stats.BelowThreshold++
			continue
		}
		if assessment.Worth == domain.WorthWorthReading && assessment.QualityScore < cfg.MinWorthReading {
			stats.BelowThreshold++
			continue
		}

		oneLine := highlight.OneLineSummary
		if oneLine == "" {
			oneLine = assessment.OneLineSummary
		}
		reason := highlight.ReasonShort
		if reason == "" {
			reason = assessment.ReasonShort
		}

		scored := domain.ScoredArticle{
			Article:        article,
			Score:          assessment.QualityScore,
			Worth:          assessment.Worth,
			ReasonShort:    reason,
			PrimaryType:    assessment.PrimaryType,
			SecondaryTypes: append([]string(nil), assessment.SecondaryTypes...),
		}
		// The digest shows the one-line summary in place of the raw lead.
		scored.LeadParagraph = oneLine

		candidate := Candidate{
			Index:      index,
			Highlight:  highlight,
			Article:    scored,
			Assessment: assessment,
		}
		if assessment.Worth == domain.WorthMustRead {
			mustRead = append(mustRead, candidate)
		} else {
			worthReading = append(worthReading, candidate)
		}
	}
	return mustRead, worthReading
}

// SelectHighlights fills the highlight list from must-read candidates first
// and worth-reading candidates as fallback, enforcing the per-info-cluster
// repeat limit and the selection cap.
func SelectHighlights(mustRead, worthReading []Candidate, selectionCap, maxInfoDup int, stats *GateStats) []domain.TaggedArticle {
	if maxInfoDup < 1 {
		maxInfoDup = 1
	}

	infoKeyCounts := make(map[string]int)
	titleKeyCounts := make(map[string]int)

	reserveSlot := func(article domain.ScoredArticle) bool {
		infoKey := BuildInfoKey(article)
		titleKey := BuildTitleKey(article.Title)
		if infoKeyCounts[infoKey] >= maxInfoDup || titleKeyCounts[titleKey] >= maxInfoDup {
			stats.RepeatLimitBlocked++
			return false
		}
		infoKeyCounts[infoKey]++
		titleKeyCounts[titleKey]++
		return true
	}

	selected := make([]domain.TaggedArticle, 0, selectionCap)
	for _, pool := range [][]Candidate{mustRead, worthReading} {
		for _, candidate := range pool {
			if len(selected) >= selectionCap {
				return selected
			}
			if !reserveSlot(candidate.Article) {
				continue
			}
			selected = append(selected, domain.TaggedArticle{Article: candidate.Article})
		}
	}
	return selected
}
