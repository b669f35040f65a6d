package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strzhao/ai-news/internal/domain"
)

func runContext() Context {
	assessments := map[string]domain.ArticleAssessment{}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("a%d", i)
		worth := domain.WorthWorthReading
		if i < 2 {
			worth = domain.WorthMustRead
		}
		if i >= 8 {
			worth = domain.WorthSkip
		}
		assessments[id] = domain.ArticleAssessment{
			ArticleID:    id,
			Worth:        worth,
			QualityScore: float64(50 + i*5),
			Confidence:   0.6 + float64(i)*0.03,
			PrimaryType:  "research",
		}
	}
	return Context{
		ReportDate:  "2026-08-29",
		Timezone:    "Asia/Shanghai",
		GeneratedAt: "2026-08-29T08:00:00+08:00",
		PipelineOverview: PipelineOverview{
			SourceCount:             8,
			FetchedCount:            60,
			NormalizedCount:         58,
			DedupedCount:            50,
			EvaluationPoolCount:     50,
			MaxEvalArticles:         60,
			EvaluatedCount:          10,
			SelectedHighlightsCount: 6,
		},
		Assessments: assessments,
		SourceScores: map[string]domain.SourceQualityScore{
			"strong": {SourceID: "strong", QualityScore: 88, ArticleCount: 12},
			"weak":   {SourceID: "weak", QualityScore: 41, ArticleCount: 4},
		},
	}
}

func TestBuild_Distribution(t *testing.T) {
	got := Build(runContext())

	q := got.QualityDistribution
	assert.Equal(t, map[string]int{
		"must_read":     2,
		"worth_reading": 6,
		"skip":          2,
	}, q.WorthCounts)
	assert.Equal(t, map[string]int{"research": 10}, q.TypeCounts)
	assert.InDelta(t, 0.2, q.SkipRate, 1e-9)
	assert.InDelta(t, 72.5, q.AvgQuality, 1e-9)
	assert.InDelta(t, q.QualityPercentiles["p50"], 72.5, 0.01)
	assert.LessOrEqual(t, q.QualityPercentiles["p10"], q.QualityPercentiles["p90"])
}

func TestBuild_EmptyAssessments(t *testing.T) {
	ctx := runContext()
	ctx.Assessments = nil

	got := Build(ctx)
	assert.Zero(t, got.QualityDistribution.SkipRate)
	assert.Zero(t, got.QualityDistribution.AvgQuality)
	assert.Empty(t, got.QualityDistribution.WorthCounts)
}

func TestBuild_SourceSnapshotOrder(t *testing.T) {
	got := Build(runContext())

	require.Len(t, got.SourceQualitySnapshot.TopSources, 2)
	assert.Equal(t, "strong", got.SourceQualitySnapshot.TopSources[0].SourceID)
	assert.Equal(t, "weak", got.SourceQualitySnapshot.TopSources[1].SourceID)
	assert.Empty(t, got.SourceQualitySnapshot.BottomSources)
}

func TestRuleActions_StablePipeline(t *testing.T) {
	got := Build(runContext())

	require.Len(t, got.ImprovementActions.RuleBasedActions, 1)
	assert.Contains(t, got.ImprovementActions.RuleBasedActions[0], "stable")
}

func TestRuleActions_FlagsProblems(t *testing.T) {
	ctx := runContext()
	ctx.PipelineOverview.SelectedHighlightsCount = 1
	ctx.SelectionGates.GateSkips.LowConfidence = 20
	ctx.SelectionGates.GateSkips.RepeatLimitBlocked = 3
	ctx.DedupeAndRepeat.URLDuplicates = 10
	ctx.DedupeAndRepeat.TitleDuplicates = 5

	// push skip rate over 0.7
	for id := range ctx.Assessments {
		a := ctx.Assessments[id]
		a.Worth = domain.WorthSkip
		ctx.Assessments[id] = a
	}

	got := Build(ctx)
	actions := strings.Join(got.ImprovementActions.RuleBasedActions, "\n")

	assert.Contains(t, actions, "Highlight selection is low")
	assert.Contains(t, actions, "Skip rate is very high")
	assert.Contains(t, actions, "low confidence")
	assert.Contains(t, actions, "repeat guard")
	assert.Contains(t, actions, "Dedupe hit rate is high")
}

func TestPreview(t *testing.T) {
	a := Build(runContext())

	a.ImprovementActions.AISummary = "model summary"
	assert.Equal(t, "model summary", a.Preview())

	a.ImprovementActions.AISummary = ""
	assert.Equal(t, a.ImprovementActions.RuleBasedActions[0], a.Preview())

	a.ImprovementActions.RuleBasedActions = nil
	assert.Contains(t, a.Preview(), "2026-08-29")
}

func TestRenderMarkdown(t *testing.T) {
	a := Build(runContext())
	a.DedupeAndRepeat.DroppedItems = []DroppedItem{{
		Reason:       "title_similarity",
		Title:        "GPT-5 launches",
		SourceID:     "hn_ai",
		URL:          "https://example.com/dup",
		MatchedTitle: "GPT-5 launch",
		Similarity:   0.95,
	}}
	a.DedupeAndRepeat.DroppedItemsTotal = 1

	md := RenderMarkdown(a)

	assert.Contains(t, md, "## Run Overview")
	assert.Contains(t, md, "## Quality Distribution")
	assert.Contains(t, md, "## Selection Gates")
	assert.Contains(t, md, "## Dropped During Dedupe")
	assert.Contains(t, md, "title_similarity")
	assert.Contains(t, md, "Rule: ")
	assert.True(t, strings.HasSuffix(md, "\n"))
	assert.False(t, strings.HasSuffix(md, "\n\n"))
}
