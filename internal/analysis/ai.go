package analysis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/strzhao/ai-news/internal/llm"
)

const improvementSystemPrompt = `You are an AI content strategy and quality optimization advisor. From the digest pipeline diagnostics you receive, produce one concise summary and at most 6 actionable improvement suggestions. Output JSON only with fields summary:string and actions:string[]. Keep the summary short and every action concrete and engineering-oriented, no platitudes.`

// GenerateAIImprovement asks the model for an improvement summary based on
// the compact diagnostics. Failures degrade to empty output; the rule-based
// actions still ship.
func GenerateAIImprovement(ctx context.Context, client llm.ChatClient, a Analysis) (string, []string) {
	if client == nil {
		return "", nil
	}

	payload, err := json.Marshal(map[string]any{
		"pipeline_overview":      a.PipelineOverview,
		"quality_distribution":   a.QualityDistribution,
		"selection_gates":        a.SelectionGates,
		"dedupe_and_repeat":      trimDedupe(a.DedupeAndRepeat),
		"personalization_impact": a.PersonalizationImpact,
		"diagnostic_flags":       a.DiagnosticFlags,
	})
	if err != nil {
		return "", nil
	}

	var result struct {
		Summary string   `json:"summary"`
		Actions []string `json:"actions"`
	}
	if err := client.ChatJSON(ctx, improvementSystemPrompt, string(payload), 0.1, &result); err != nil {
		return "", nil
	}

	var actions []string
	for _, action := range result.Actions {
		if action = strings.TrimSpace(action); action != "" {
			actions = append(actions, action)
		}
		if len(actions) == 6 {
			break
		}
	}
	return strings.TrimSpace(result.Summary), actions
}

// trimDedupe drops the per-item lists to keep the advisory payload compact.
func trimDedupe(d DedupeAndRepeat) DedupeAndRepeat {
	d.DroppedItems = nil
	d.EvalCapSkippedItems = nil
	return d
}
