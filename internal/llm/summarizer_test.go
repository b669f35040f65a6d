package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strzhao/ai-news/internal/domain"
)

func TestBuildDigestContent_EmptyArticles(t *testing.T) {
	s := NewSummarizer(&fakeChat{})
	got, err := s.BuildDigestContent(context.Background(), nil, "2026-08-29", "UTC", 8, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "No high-quality AI updates today.", got.TopSummary)
	assert.Empty(t, got.Highlights)
}

func TestBuildDigestContent_ParsesSummaryHighlightsTags(t *testing.T) {
	response := "```json\n" + `{
		"top_summary": ["Model releases dominated", "  ", "Evals got cheaper"],
		"highlights": [
			{"article_id": "a2", "rank": 2, "one_line_summary": "Second",  "worth": "worth_reading", "reason_short": "r2"},
			{"article_id": "a1", "rank": 1, "one_line_summary": "First", "worth": "must_read", "reason_short": "r1"},
			{"article_id": "", "rank": 3, "worth": "must_read"}
		],
		"daily_tags": "AI, #LLM, ai-infra, LLM"
	}` + "\n```"
	s := NewSummarizer(&fakeChat{responses: []string{response}})

	articles := []domain.Article{
		{ID: "a1", Title: "One", URL: "https://example.com/1"},
		{ID: "a2", Title: "Two", URL: "https://example.com/2"},
	}
	got, err := s.BuildDigestContent(context.Background(), articles, "2026-08-29", "UTC", 8, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "- Model releases dominated\n- Evals got cheaper", got.TopSummary)
	require.Len(t, got.Highlights, 2)
	assert.Equal(t, "a1", got.Highlights[0].ArticleID, "highlights are sorted by rank")
	assert.Equal(t, "a2", got.Highlights[1].ArticleID)
	assert.Equal(t, []string{"#AI", "#LLM", "#ai-infra"}, got.DailyTags)
}

func TestBuildDigestContent_TopNCapsHighlights(t *testing.T) {
	response := `{
		"top_summary": ["Busy day"],
		"highlights": [
			{"article_id": "a1", "rank": 1, "worth": "must_read"},
			{"article_id": "a2", "rank": 2, "worth": "must_read"},
			{"article_id": "a3", "rank": 3, "worth": "must_read"}
		],
		"daily_tags": ["ai"]
	}`
	s := NewSummarizer(&fakeChat{responses: []string{response}})

	got, err := s.BuildDigestContent(context.Background(),
		[]domain.Article{{ID: "a1"}}, "2026-08-29", "UTC", 2, nil, nil)
	require.NoError(t, err)
	assert.Len(t, got.Highlights, 2)
}

func TestBuildDigestContent_InvalidWorthFails(t *testing.T) {
	response := `{
		"top_summary": ["Something"],
		"highlights": [{"article_id": "a1", "rank": 1, "worth": "meh"}],
		"daily_tags": []
	}`
	s := NewSummarizer(&fakeChat{responses: []string{response}})

	_, err := s.BuildDigestContent(context.Background(),
		[]domain.Article{{ID: "a1"}}, "2026-08-29", "UTC", 8, nil, nil)
	assert.Error(t, err)
}

func TestBuildDigestContent_EmptySummaryFails(t *testing.T) {
	response := `{"top_summary": [], "highlights": [{"article_id": "a1", "rank": 1, "worth": "must_read"}], "daily_tags": []}`
	s := NewSummarizer(&fakeChat{responses: []string{response}})

	_, err := s.BuildDigestContent(context.Background(),
		[]domain.Article{{ID: "a1"}}, "2026-08-29", "UTC", 8, nil, nil)
	assert.Error(t, err)
}

func TestExtractJSONPayload_StripsFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSONPayload("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, ExtractJSONPayload("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, ExtractJSONPayload(`  {"a":1}  `))
}
