package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/strzhao/ai-news/internal/domain"
)

const maxDailyTags = 12

var tagSplitRe = regexp.MustCompile(`[,/\n，、;；|]+`)

const summarizerSystemPrompt = `You are a top-tier AI news editor with an industry-practice bias. You receive article metadata together with per-article assessments that are already final; your job is the second-pass editorial arrangement. Output strict JSON, never markdown or explanations.
Produce: 1) a daily overview of 2-3 lines; 2) a ranked highlight list (at most top_n); 3) a one-sentence summary per highlight (you may reuse the per-article conclusion); 4) a reading recommendation (must_read/worth_reading/skip); 5) a short reading reason; 6) digest-level technical tags daily_tags (3-10), technical dimensions only.
Ranking rules: reading ROI (quality_score) and company/team/personal impact plus execution_clarity first, then novelty, recency, and source_quality_score. The goal is helping the company, teams, and individuals keep improving at AI; never apply a mechanical "must contain code" test.
The overview must synthesize themes across articles; never list one line per article. highlights is a strict shortlist, not the full set: return 4-10 by default and approach top_n only when high-leverage content is clearly abundant. Do not put worth=skip articles into highlights.
Output fields: top_summary:string[], highlights:object[], daily_tags:string[]. Each highlight has: article_id, rank, one_line_summary, worth, reason_short.`

// DigestContent is the summarizer's output for one day.
type DigestContent struct {
	TopSummary string
	Highlights []domain.AIHighlight
	DailyTags  []string
}

// Summarizer turns the day's selected articles into the digest overview,
// ranked highlights, and daily tags with a single completion call.
type Summarizer struct {
	client ChatClient
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(client ChatClient) *Summarizer {
	return &Summarizer{client: client}
}

// BuildDigestContent summarizes the articles for date. An empty article list
// yields placeholder content without calling the model.
func (s *Summarizer) BuildDigestContent(
	ctx context.Context,
	articles []domain.Article,
	date, timezoneName string,
	topN int,
	assessments map[string]domain.ArticleAssessment,
	sourceScores map[string]domain.SourceQualityScore,
) (DigestContent, error) {
	if len(articles) == 0 {
		return DigestContent{TopSummary: "No high-quality AI updates today."}, nil
	}
	if topN <= 0 {
		topN = 8
	}

	inputs := make([]map[string]any, 0, len(articles))
	for _, article := range articles {
		publishedAt := ""
		if article.PublishedAt != nil {
			publishedAt = article.PublishedAt.Format(time.RFC3339)
		}
		row := map[string]any{
			"article_id":     article.ID,
			"title":          article.Title,
			"source":         article.SourceName,
			"url":            article.URL,
			"published_at":   publishedAt,
			"summary":        article.Summary,
			"lead_paragraph": article.LeadParagraph,
		}
		if assessment, ok := assessments[article.ID]; ok {
			row["assessment"] = assessment
		}
		if score, ok := sourceScores[article.SourceID]; ok {
			row["source_quality_score"] = score.QualityScore
		}
		inputs = append(inputs, row)
	}

	userPayload, err := json.Marshal(map[string]any{
		"date":     date,
		"timezone": timezoneName,
		"top_n":    topN,
		"articles": inputs,
	})
	if err != nil {
		return DigestContent{}, fmt.Errorf("encode summarize payload: %w", err)
	}

	var result struct {
		TopSummary []string          `json:"top_summary"`
		Highlights []json.RawMessage `json:"highlights"`
		DailyTags  json.RawMessage   `json:"daily_tags"`
	}
	if err := s.client.ChatJSON(ctx, summarizerSystemPrompt, string(userPayload), 0.1, &result); err != nil {
		return DigestContent{}, err
	}

	var summaryLines []string
	for _, line := range result.TopSummary {
		if strings.TrimSpace(line) != "" {
			summaryLines = append(summaryLines, "- "+strings.TrimSpace(line))
		}
	}
	if len(summaryLines) == 0 {
		return DigestContent{}, errors.New("llm: empty top_summary")
	}

	highlights, err := parseHighlights(result.Highlights, topN)
	if err != nil {
		return DigestContent{}, err
	}
	if len(highlights) == 0 {
		return DigestContent{}, errors.New("llm: no highlights returned")
	}

	return DigestContent{
		TopSummary: strings.Join(summaryLines, "\n"),
		Highlights: highlights,
		DailyTags:  parseDailyTags(result.DailyTags),
	}, nil
}

func parseHighlights(rows []json.RawMessage, topN int) ([]domain.AIHighlight, error) {
	var parsed []domain.AIHighlight
	for _, raw := range rows {
		var row struct {
			ArticleID      string  `json:"article_id"`
			Rank           float64 `json:"rank"`
			OneLineSummary string  `json:"one_line_summary"`
			Worth          string  `json:"worth"`
			ReasonShort    string  `json:"reason_short"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		articleID := strings.TrimSpace(row.ArticleID)
		if articleID == "" {
			continue
		}
		worth := domain.Worth(strings.TrimSpace(row.Worth))
		if !worth.Valid() {
			return nil, fmt.Errorf("invalid worth label %q in highlights", row.Worth)
		}
		rank := int(row.Rank)
		if rank <= 0 {
			rank = len(parsed) + 1
		}
		parsed = append(parsed, domain.AIHighlight{
			ArticleID:      articleID,
			Rank:           rank,
			OneLineSummary: strings.TrimSpace(row.OneLineSummary),
			Worth:          worth,
			ReasonShort:    strings.TrimSpace(row.ReasonShort),
		})
	}

	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].Rank < parsed[j].Rank })
	if len(parsed) > topN {
		parsed = parsed[:topN]
	}
	return parsed, nil
}

// parseDailyTags accepts either a JSON array or a delimited string of tags
// and normalizes everything to "#tag" form, deduplicated and capped.
func parseDailyTags(raw json.RawMessage) []string {
	var tags []string
	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		tags = asList
	} else {
		var asString string
		if err := json.Unmarshal(raw, &asString); err == nil {
			tags = splitTagString(asString)
		}
	}

	var cleaned []string
	seen := map[string]bool{}
	for _, tag := range tags {
		value := strings.TrimLeft(strings.TrimSpace(tag), "#")
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		cleaned = append(cleaned, "#"+value)
		if len(cleaned) == maxDailyTags {
			break
		}
	}
	return cleaned
}

func splitTagString(raw string) []string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "#", " "))
	if raw == "" {
		return nil
	}
	var parts []string
	if tagSplitRe.MatchString(raw) {
		parts = tagSplitRe.Split(raw, -1)
	} else {
		parts = strings.Fields(raw)
	}
	var out []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
