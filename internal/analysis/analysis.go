// Package analysis builds the per-run diagnostic report: score
// distributions, gate outcomes, dedupe hits, and rule-based improvement
// suggestions, rendered both as JSON and as markdown.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/strzhao/ai-news/internal/domain"
	"github.com/strzhao/ai-news/internal/process"
)

// PipelineOverview counts articles at each pipeline stage.
type PipelineOverview struct {
	SourceCount             int `json:"source_count"`
	FetchedCount            int `json:"fetched_count"`
	NormalizedCount         int `json:"normalized_count"`
	DedupedCount            int `json:"deduped_count"`
	EvaluationPoolCount     int `json:"evaluation_pool_count"`
	MaxEvalArticles         int `json:"max_eval_articles"`
	EvalCapSkippedCount     int `json:"eval_cap_skipped_count"`
	EvaluatedCount          int `json:"evaluated_count"`
	SelectedHighlightsCount int `json:"selected_highlights_count"`
}

// GateSkips counts why candidates fell out of the highlight gate.
type GateSkips struct {
	SkippedWorth       int `json:"skipped_worth"`
	LowConfidence      int `json:"low_confidence"`
	BelowThreshold     int `json:"below_threshold"`
	RepeatLimitBlocked int `json:"repeat_limit_blocked"`
}

// Thresholds snapshots the effective gate settings for the run.
type Thresholds struct {
	MinHighlightScore  float64 `json:"min_highlight_score"`
	DynamicThreshold   float64 `json:"dynamic_threshold"`
	EffectiveThreshold float64 `json:"effective_threshold"`
	MinConfidence      float64 `json:"min_confidence"`
	SelectionCap       int     `json:"selection_cap"`
}

// SelectionMix describes what made it into the highlight list.
type SelectionMix struct {
	MustRead     int `json:"must_read"`
	WorthReading int `json:"worth_reading"`
}

// SelectionGates groups the gate snapshot for the report.
type SelectionGates struct {
	Thresholds   Thresholds   `json:"thresholds"`
	GateSkips    GateSkips    `json:"gate_skips"`
	SelectionMix SelectionMix `json:"selection_mix"`
}

// DroppedItem records one article removed during dedupe.
type DroppedItem struct {
	Reason       string  `json:"reason"`
	Title        string  `json:"title"`
	SourceID     string  `json:"source_id"`
	URL          string  `json:"url"`
	MatchedTitle string  `json:"matched_title,omitempty"`
	Similarity   float64 `json:"similarity,omitempty"`
}

// SkippedItem records one article cut by the evaluation pool cap.
type SkippedItem struct {
	Title       string `json:"title"`
	SourceID    string `json:"source_id"`
	PublishedAt string `json:"published_at"`
	URL         string `json:"url"`
}

// DedupeAndRepeat groups dedupe and repeat-guard outcomes.
type DedupeAndRepeat struct {
	URLDuplicates       int           `json:"url_duplicates"`
	TitleDuplicates     int           `json:"title_duplicates"`
	RepeatGuardEnabled  bool          `json:"repeat_guard_enabled"`
	MaxInfoDup          int           `json:"max_info_dup"`
	RepeatBlocked       int           `json:"repeat_blocked"`
	EvalCapSkippedCount int           `json:"eval_cap_skipped_count"`
	DroppedItems        []DroppedItem `json:"dropped_items,omitempty"`
	DroppedItemsTotal   int           `json:"dropped_items_total"`
	EvalCapSkippedItems []SkippedItem `json:"eval_cap_skipped_items,omitempty"`
}

// PersonalizationImpact summarizes what personalization changed.
type PersonalizationImpact struct {
	BehaviorSummary map[string]any `json:"behavior_summary"`
	TypeSummary     map[string]any `json:"type_summary"`
	ReorderImpact   map[string]any `json:"reorder_impact"`
}

// SourceSnapshot is one source in the quality snapshot.
type SourceSnapshot struct {
	SourceID     string  `json:"source_id"`
	QualityScore float64 `json:"quality_score"`
	ArticleCount int     `json:"article_count"`
}

// SourceQualitySnapshot lists the best and worst sources of the run.
type SourceQualitySnapshot struct {
	TopSources    []SourceSnapshot `json:"top_sources"`
	BottomSources []SourceSnapshot `json:"bottom_sources"`
}

// QualityDistribution aggregates score and worth statistics.
type QualityDistribution struct {
	WorthCounts           map[string]int     `json:"worth_counts"`
	TypeCounts            map[string]int     `json:"type_counts"`
	QualityPercentiles    map[string]float64 `json:"quality_percentiles"`
	ConfidencePercentiles map[string]float64 `json:"confidence_percentiles"`
	AvgQuality            float64            `json:"avg_quality"`
	AvgConfidence         float64            `json:"avg_confidence"`
	SkipRate              float64            `json:"skip_rate"`
}

// ImprovementActions carries rule-based and AI-suggested follow-ups.
type ImprovementActions struct {
	RuleBasedActions []string `json:"rule_based_actions"`
	AISummary        string   `json:"ai_summary"`
	AIActions        []string `json:"ai_actions"`
}

// Analysis is the full diagnostic report for one digest run.
type Analysis struct {
	ReportDate            string                `json:"report_date"`
	Timezone              string                `json:"timezone"`
	GeneratedAt           string                `json:"generated_at"`
	PipelineOverview      PipelineOverview      `json:"pipeline_overview"`
	QualityDistribution   QualityDistribution   `json:"quality_distribution"`
	SelectionGates        SelectionGates        `json:"selection_gates"`
	DedupeAndRepeat       DedupeAndRepeat       `json:"dedupe_and_repeat"`
	PersonalizationImpact PersonalizationImpact `json:"personalization_impact"`
	SourceQualitySnapshot SourceQualitySnapshot `json:"source_quality_snapshot"`
	DiagnosticFlags       []string              `json:"diagnostic_flags"`
	ImprovementActions    ImprovementActions    `json:"improvement_actions"`
}

// Context is everything the builder needs from the pipeline run.
type Context struct {
	ReportDate            string
	Timezone              string
	GeneratedAt           string
	PipelineOverview      PipelineOverview
	Assessments           map[string]domain.ArticleAssessment
	SelectionGates        SelectionGates
	DedupeAndRepeat       DedupeAndRepeat
	PersonalizationImpact PersonalizationImpact
	SourceScores          map[string]domain.SourceQualityScore
	DiagnosticFlags       []string
}

// Build computes the diagnostic report from a run context.
func Build(ctx Context) Analysis {
	var qualityScores, confidenceScores []float64
	worthCounts := map[string]int{}
	typeCounts := map[string]int{}
	for _, assessment := range ctx.Assessments {
		qualityScores = append(qualityScores, assessment.QualityScore)
		confidenceScores = append(confidenceScores, assessment.Confidence)
		worthCounts[string(assessment.Worth)]++
		typeCounts[assessment.PrimaryType]++
	}

	evaluated := len(ctx.Assessments)
	skipRate := 0.0
	if evaluated > 0 {
		skipRate = float64(worthCounts[string(domain.WorthSkip)]) / float64(evaluated)
	}

	analysis := Analysis{
		ReportDate:       ctx.ReportDate,
		Timezone:         ctx.Timezone,
		GeneratedAt:      ctx.GeneratedAt,
		PipelineOverview: ctx.PipelineOverview,
		QualityDistribution: QualityDistribution{
			WorthCounts: worthCounts,
			TypeCounts:  typeCounts,
			QualityPercentiles: map[string]float64{
				"p10": round(process.Percentile(qualityScores, 10), 2),
				"p25": round(process.Percentile(qualityScores, 25), 2),
				"p50": round(process.Percentile(qualityScores, 50), 2),
				"p75": round(process.Percentile(qualityScores, 75), 2),
				"p90": round(process.Percentile(qualityScores, 90), 2),
			},
			ConfidencePercentiles: map[string]float64{
				"p10": round(process.Percentile(confidenceScores, 10), 3),
				"p50": round(process.Percentile(confidenceScores, 50), 3),
				"p90": round(process.Percentile(confidenceScores, 90), 3),
			},
			AvgQuality:    round(mean(qualityScores), 2),
			AvgConfidence: round(mean(confidenceScores), 3),
			SkipRate:      round(skipRate, 4),
		},
		SelectionGates:        ctx.SelectionGates,
		DedupeAndRepeat:       ctx.DedupeAndRepeat,
		PersonalizationImpact: ctx.PersonalizationImpact,
		SourceQualitySnapshot: buildSourceSnapshot(ctx.SourceScores),
		DiagnosticFlags:       ctx.DiagnosticFlags,
	}
	analysis.ImprovementActions.RuleBasedActions = ruleActions(analysis)
	return analysis
}

// ruleActions derives concrete follow-ups from the run's signals.
func ruleActions(a Analysis) []string {
	var actions []string
	pool := a.PipelineOverview.EvaluationPoolCount
	selected := a.PipelineOverview.SelectedHighlightsCount

	if pool > 0 && selected <= maxInt(2, pool*8/100) {
		actions = append(actions, "Highlight selection is low; consider lowering the must_read threshold or fetching more from high-quality sources.")
	}
	if a.QualityDistribution.SkipRate >= 0.7 {
		actions = append(actions, "Skip rate is very high; tighten the source pool and penalize low source_quality sources harder.")
	}
	if a.SelectionGates.GateSkips.LowConfidence >= maxInt(5, pool*15/100) {
		actions = append(actions, "Many candidates lost to low confidence; refine the evaluation prompt and raise the retry limit.")
	}
	if a.SelectionGates.GateSkips.RepeatLimitBlocked > 0 {
		actions = append(actions, "The repeat guard blocked candidates, which signals homogeneous content; diversify sources and topic coverage.")
	}
	if a.DedupeAndRepeat.URLDuplicates+a.DedupeAndRepeat.TitleDuplicates >= maxInt(8, pool*20/100) {
		actions = append(actions, "Dedupe hit rate is high; strengthen aggregator dedupe and near-title filtering at fetch time.")
	}
	if len(actions) == 0 {
		actions = append(actions, "Pipeline signals look stable; keep current thresholds and watch the 7-day rolling metrics.")
	}
	if len(actions) > 8 {
		actions = actions[:8]
	}
	return actions
}

func buildSourceSnapshot(scores map[string]domain.SourceQualityScore) SourceQualitySnapshot {
	sorted := make([]SourceSnapshot, 0, len(scores))
	for _, score := range scores {
		sorted = append(sorted, SourceSnapshot{
			SourceID:     score.SourceID,
			QualityScore: score.QualityScore,
			ArticleCount: score.ArticleCount,
		})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].QualityScore != sorted[j].QualityScore {
			return sorted[i].QualityScore > sorted[j].QualityScore
		}
		return sorted[i].SourceID < sorted[j].SourceID
	})

	snapshot := SourceQualitySnapshot{}
	top := minInt(5, len(sorted))
	snapshot.TopSources = append(snapshot.TopSources, sorted[:top]...)
	if len(sorted) > top {
		bottomStart := maxInt(top, len(sorted)-5)
		snapshot.BottomSources = append(snapshot.BottomSources, sorted[bottomStart:]...)
	}
	return snapshot
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round(value float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(value*scale) / scale
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Preview returns the text archived as the analysis preview.
func (a Analysis) Preview() string {
	if a.ImprovementActions.AISummary != "" {
		return a.ImprovementActions.AISummary
	}
	if len(a.ImprovementActions.RuleBasedActions) > 0 {
		return a.ImprovementActions.RuleBasedActions[0]
	}
	return fmt.Sprintf("Digest run %s: %d evaluated, %d selected.",
		a.ReportDate, a.PipelineOverview.EvaluatedCount, a.PipelineOverview.SelectedHighlightsCount)
}
