package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RenderMarkdown renders the diagnostic report as a markdown document.
func RenderMarkdown(a Analysis) string {
	var b strings.Builder

	section(&b, "Run Overview")
	line(&b, "Report date: %s (%s), generated at %s", dash(a.ReportDate), dash(a.Timezone), dash(a.GeneratedAt))
	o := a.PipelineOverview
	line(&b, "Pipeline volume: %d sources, %d fetched, %d normalized, %d after dedupe, %d in evaluation pool (cap %d, %d truncated), %d evaluated, %d selected.",
		o.SourceCount, o.FetchedCount, o.NormalizedCount, o.DedupedCount,
		o.EvaluationPoolCount, o.MaxEvalArticles, o.EvalCapSkippedCount,
		o.EvaluatedCount, o.SelectedHighlightsCount)
	b.WriteString("\n")

	q := a.QualityDistribution
	section(&b, "Quality Distribution")
	line(&b, "Worth counts: %s", compactJSON(q.WorthCounts))
	line(&b, "Type counts: %s", compactJSON(q.TypeCounts))
	line(&b, "Quality percentiles: %s; average quality %.2f.", compactJSON(q.QualityPercentiles), q.AvgQuality)
	line(&b, "Confidence percentiles: %s; average confidence %.3f, skip rate %.4f.",
		compactJSON(q.ConfidencePercentiles), q.AvgConfidence, q.SkipRate)
	b.WriteString("\n")

	g := a.SelectionGates
	section(&b, "Selection Gates")
	line(&b, "Thresholds: %s", compactJSON(g.Thresholds))
	line(&b, "Gate skips: %s", compactJSON(g.GateSkips))
	line(&b, "Selection mix: %s", compactJSON(g.SelectionMix))
	b.WriteString("\n")

	d := a.DedupeAndRepeat
	section(&b, "Dedupe and Repeat Guard")
	line(&b, "URL duplicates: %d, near-title duplicates: %d.", d.URLDuplicates, d.TitleDuplicates)
	line(&b, "Repeat guard: enabled=%t, max=%d, blocked=%d.", d.RepeatGuardEnabled, d.MaxInfoDup, d.RepeatBlocked)
	line(&b, "Evaluation pool cap: max_eval=%d, skipped=%d.", o.MaxEvalArticles, d.EvalCapSkippedCount)
	b.WriteString("\n")

	p := a.PersonalizationImpact
	section(&b, "Personalization Impact")
	line(&b, "Behavior personalization: %s", compactJSON(p.BehaviorSummary))
	line(&b, "Type personalization: %s", compactJSON(p.TypeSummary))
	line(&b, "Reorder impact: %s", compactJSON(p.ReorderImpact))
	b.WriteString("\n")

	s := a.SourceQualitySnapshot
	section(&b, "Source Quality Snapshot")
	line(&b, "Top sources: %s", compactJSON(s.TopSources))
	line(&b, "Bottom sources: %s", compactJSON(s.BottomSources))
	b.WriteString("\n")

	if len(a.DiagnosticFlags) > 0 {
		section(&b, "Diagnostic Flags")
		for _, flag := range a.DiagnosticFlags {
			line(&b, "%s", flag)
		}
		b.WriteString("\n")
	}

	section(&b, "Improvement Actions")
	if a.ImprovementActions.AISummary != "" {
		line(&b, "AI summary: %s", a.ImprovementActions.AISummary)
	}
	for _, action := range a.ImprovementActions.RuleBasedActions {
		line(&b, "Rule: %s", action)
	}
	for _, action := range a.ImprovementActions.AIActions {
		line(&b, "AI: %s", action)
	}
	b.WriteString("\n")

	if len(d.DroppedItems) > 0 {
		section(&b, "Dropped During Dedupe")
		line(&b, "Showing %d of %d", len(d.DroppedItems), maxInt(d.DroppedItemsTotal, len(d.DroppedItems)))
		for _, item := range d.DroppedItems {
			line(&b, "[%s] %s | source=%s | similarity=%.4f | matched=%s | url=%s",
				dash(item.Reason), dash(item.Title), dash(item.SourceID),
				item.Similarity, dash(item.MatchedTitle), dash(item.URL))
		}
		b.WriteString("\n")
	}

	if len(d.EvalCapSkippedItems) > 0 {
		section(&b, "Truncated From Evaluation Pool")
		line(&b, "Showing %d of %d", len(d.EvalCapSkippedItems), maxInt(d.EvalCapSkippedCount, len(d.EvalCapSkippedItems)))
		for _, item := range d.EvalCapSkippedItems {
			line(&b, "%s | source=%s | published_at=%s | url=%s",
				dash(item.Title), dash(item.SourceID), dash(item.PublishedAt), dash(item.URL))
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "## %s\n", title)
}

func line(b *strings.Builder, format string, args ...any) {
	fmt.Fprintf(b, "- "+format+"\n", args...)
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
