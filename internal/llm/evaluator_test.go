package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strzhao/ai-news/internal/cache"
	"github.com/strzhao/ai-news/internal/domain"
)

// fakeChat replays canned JSON responses, one per call.
type fakeChat struct {
	model     string
	responses []string
	calls     int
}

func (f *fakeChat) ChatJSON(_ context.Context, _, _ string, _ float64, out any) error {
	if f.calls >= len(f.responses) {
		return ErrEmptyResponse
	}
	raw := f.responses[f.calls]
	f.calls++
	return json.Unmarshal([]byte(ExtractJSONPayload(raw)), out)
}

func (f *fakeChat) Model() string {
	if f.model == "" {
		return "fake-model"
	}
	return f.model
}

func testStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func evalArticle(id string) domain.Article {
	return domain.Article{
		ID: id, Title: "Title " + id, URL: "https://example.com/" + id,
		SourceID: "src", Summary: "summary", LeadParagraph: "lead",
	}
}

const validAssessmentJSON = `{
	"article_id": "a1",
	"worth": "must_read",
	"reading_roi_score": 8.5,
	"company_impact": 70,
	"team_impact": 80,
	"personal_impact": 90,
	"execution_clarity": 60,
	"one_line_summary": "Big release",
	"reason_short": "strong signal",
	"confidence": 0.8,
	"primary_type": "model_release",
	"secondary_types": ["research", "model_release", "research", "bogus"]
}`

func TestEvaluateArticles_ParsesAndRescalesScores(t *testing.T) {
	client := &fakeChat{responses: []string{validAssessmentJSON}}
	e := NewEvaluator(client, testStore(t), EvaluatorOptions{
		ArticleTypes: []string{"model_release", "research"},
	}, nil)

	got, err := e.EvaluateArticles(context.Background(), []domain.Article{evalArticle("a1")})
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got["a1"]
	assert.Equal(t, domain.WorthMustRead, a.Worth)
	// a 0-10 answer is rescaled to the 0-100 scale
	assert.InDelta(t, 85.0, a.QualityScore, 1e-9)
	assert.InDelta(t, 80.0, a.PracticalityScore, 1e-9)
	assert.InDelta(t, 60.0, a.ActionabilityScore, 1e-9)
	assert.InDelta(t, 0.8, a.Confidence, 1e-9)
	assert.Equal(t, "model_release", a.PrimaryType)
	// primary type, duplicates, and unknown types are filtered out
	assert.Equal(t, []string{"research"}, a.SecondaryTypes)
	assert.Equal(t, []string{"none"}, a.EvidenceSignals)
}

func TestEvaluateArticles_CacheHitSkipsLLM(t *testing.T) {
	store := testStore(t)
	client := &fakeChat{responses: []string{validAssessmentJSON}}
	e := NewEvaluator(client, store, EvaluatorOptions{ArticleTypes: []string{"model_release"}}, nil)

	articles := []domain.Article{evalArticle("a1")}
	_, err := e.EvaluateArticles(context.Background(), articles)
	require.NoError(t, err)
	require.Equal(t, 1, client.calls)

	got, err := e.EvaluateArticles(context.Background(), articles)
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls, "second pass must be served from cache")
	assert.Len(t, got, 1)
}

func TestEvaluateArticles_InvalidWorthSkipsArticle(t *testing.T) {
	client := &fakeChat{responses: []string{
		`{"worth": "maybe", "one_line_summary": "x", "reason_short": "y"}`,
	}}
	e := NewEvaluator(client, testStore(t), EvaluatorOptions{MaxRetries: -1}, nil)

	got, err := e.EvaluateArticles(context.Background(), []domain.Article{evalArticle("a1")})
	require.NoError(t, err)
	assert.Empty(t, got, "articles that never parse are omitted, not fatal")
}

func TestEvaluateArticles_UnknownPrimaryTypeFallsBack(t *testing.T) {
	client := &fakeChat{responses: []string{
		`{"worth": "skip", "quality_score": 20, "one_line_summary": "x", "reason_short": "y", "primary_type": "astrology"}`,
	}}
	e := NewEvaluator(client, testStore(t), EvaluatorOptions{ArticleTypes: []string{"research"}}, nil)

	got, err := e.EvaluateArticles(context.Background(), []domain.Article{evalArticle("a1")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got["a1"].PrimaryType)
}

func TestEvaluateArticles_NumericStringScore(t *testing.T) {
	client := &fakeChat{responses: []string{
		`{"worth": "worth_reading", "quality_score": "72", "one_line_summary": "x", "reason_short": "y", "confidence": "1.4"}`,
	}}
	e := NewEvaluator(client, testStore(t), EvaluatorOptions{}, nil)

	got, err := e.EvaluateArticles(context.Background(), []domain.Article{evalArticle("a1")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 72.0, got["a1"].QualityScore, 1e-9)
	assert.InDelta(t, 1.0, got["a1"].Confidence, 1e-9, "confidence is clamped to [0,1]")
}
