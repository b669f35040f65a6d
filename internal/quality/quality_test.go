package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strzhao/ai-news/internal/domain"
)

var qualityNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func scoredArticle(id, sourceID string, publishedAgo time.Duration) domain.Article {
	published := qualityNow.Add(-publishedAgo)
	return domain.Article{
		ID:          id,
		SourceID:    sourceID,
		Title:       "article " + id,
		URL:         "https://example.com/" + id,
		PublishedAt: &published,
	}
}

func assessment(articleID string, quality float64, worth domain.Worth) domain.ArticleAssessment {
	return domain.ArticleAssessment{
		ArticleID:    articleID,
		Worth:        worth,
		QualityScore: quality,
		Confidence:   0.8,
	}
}

func TestComputeSourceQualityScores_Empty(t *testing.T) {
	got := ComputeSourceQualityScores(nil, nil, nil, qualityNow)
	assert.Empty(t, got)
}

func TestComputeSourceQualityScores_SmallBatchShrinksTowardMidpoint(t *testing.T) {
	articles := []domain.Article{scoredArticle("a1", "src", 24*time.Hour)}
	assessments := map[string]domain.ArticleAssessment{
		"a1": assessment("a1", 100, domain.WorthMustRead),
	}

	got := ComputeSourceQualityScores(articles, assessments, nil, qualityNow)
	require.Len(t, got, 1)

	// one article of eight needed for reliability keeps the score near the
	// population midpoint instead of jumping to the batch value
	assert.Equal(t, "src", got[0].SourceID)
	assert.Greater(t, got[0].QualityScore, 50.0)
	assert.Less(t, got[0].QualityScore, 60.0)
	assert.Equal(t, 1, got[0].ArticleCount)
	assert.InDelta(t, 1.0, got[0].MustReadRate, 1e-9)
}

func TestComputeSourceQualityScores_BlendsWithHistory(t *testing.T) {
	articles := make([]domain.Article, 0, 8)
	assessments := map[string]domain.ArticleAssessment{}
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		articles = append(articles, scoredArticle(id, "src", 24*time.Hour))
		assessments[id] = assessment(id, 90, domain.WorthWorthReading)
	}
	historical := map[string]domain.SourceQualityScore{
		"src": {SourceID: "src", QualityScore: 40},
	}

	got := ComputeSourceQualityScores(articles, assessments, historical, qualityNow)
	require.Len(t, got, 1)

	// batch quality: 90*0.45 + 0 + 0.8*100*0.15 + 1*100*0.10 = 62.5
	// blended: 40*0.35 + 62.5*0.65 = 54.625
	assert.InDelta(t, 54.63, got[0].QualityScore, 0.01)
}

func TestComputeSourceQualityScores_IgnoresStaleAndUnassessed(t *testing.T) {
	articles := []domain.Article{
		scoredArticle("old", "src", 45*24*time.Hour),
		scoredArticle("skipped", "src", 24*time.Hour),
	}
	assessments := map[string]domain.ArticleAssessment{
		"old": assessment("old", 90, domain.WorthMustRead),
	}

	got := ComputeSourceQualityScores(articles, assessments, nil, qualityNow)
	assert.Empty(t, got)
}

func TestComputeSourceQualityScores_SortedByScore(t *testing.T) {
	articles := []domain.Article{
		scoredArticle("a1", "weak", 24*time.Hour),
		scoredArticle("b1", "strong", 24*time.Hour),
	}
	assessments := map[string]domain.ArticleAssessment{
		"a1": assessment("a1", 20, domain.WorthSkip),
		"b1": assessment("b1", 95, domain.WorthMustRead),
	}

	got := ComputeSourceQualityScores(articles, assessments, nil, qualityNow)
	require.Len(t, got, 2)
	assert.Equal(t, "strong", got[0].SourceID)
	assert.Equal(t, "weak", got[1].SourceID)
}
