// Package quality maintains the per-source rolling reputation and derives
// fetch priorities and budgets from it.
package quality

import (
	"math"
	"sort"
	"time"

	"github.com/strzhao/ai-news/internal/domain"
)

// populationMidpoint is the neutral quality assumed for sources with no
// history. Low-sample batches are shrunk toward it.
const populationMidpoint = 50.0

// Blending and lookback defaults.
const (
	defaultLookbackDays    = 30
	recentWindowDays       = 7
	minArticlesForReliable = 8
	historicalBlendWeight  = 0.35
	batchQualityWeight     = 0.45
	mustReadRateWeight     = 0.30
	avgConfidenceWeight    = 0.15
	freshnessWeight        = 0.10
)

// ComputeSourceQualityScores folds today's assessments into each source's
// rolling quality score. Small daily batches are shrunk toward the
// historical score (or the population midpoint when the source is new) so
// one noisy day cannot whipsaw a source's reputation.
func ComputeSourceQualityScores(
	articles []domain.Article,
	assessments map[string]domain.ArticleAssessment,
	historical map[string]domain.SourceQualityScore,
	nowUTC time.Time,
) []domain.SourceQualityScore {
	lookbackThreshold := nowUTC.AddDate(0, 0, -defaultLookbackDays)
	recentThreshold := nowUTC.AddDate(0, 0, -recentWindowDays)

	type row struct {
		article    domain.Article
		assessment domain.ArticleAssessment
	}
	grouped := make(map[string][]row)
	for _, article := range articles {
		if article.PublishedAt != nil && article.PublishedAt.Before(lookbackThreshold) {
			continue
		}
		assessment, ok := assessments[article.ID]
		if !ok {
			continue
		}
		grouped[article.SourceID] = append(grouped[article.SourceID], row{article, assessment})
	}

	results := make([]domain.SourceQualityScore, 0, len(grouped))
	for sourceID, rows := range grouped {
		count := len(rows)
		var sumQuality, sumConfidence float64
		var mustReads, fresh int
		for _, r := range rows {
			sumQuality += r.assessment.QualityScore
			sumConfidence += r.assessment.Confidence
			if r.assessment.Worth == domain.WorthMustRead {
				mustReads++
			}
			if r.article.PublishedAt != nil && !r.article.PublishedAt.Before(recentThreshold) {
				fresh++
			}
		}

		avgQuality := sumQuality / float64(count)
		mustReadRate := float64(mustReads) / float64(count)
		avgConfidence := sumConfidence / float64(count)
		freshness := float64(fresh) / float64(count)

		batchQuality := avgQuality*batchQualityWeight +
			mustReadRate*100*mustReadRateWeight +
			avgConfidence*100*avgConfidenceWeight +
			freshness*100*freshnessWeight

		hist, hasHist := historical[sourceID]
		var quality float64
		switch {
		case hasHist && count < minArticlesForReliable:
			weight := float64(count) / float64(minArticlesForReliable)
			quality = hist.QualityScore*(1-weight) + batchQuality*weight
		case hasHist:
			quality = hist.QualityScore*historicalBlendWeight + batchQuality*(1-historicalBlendWeight)
		case count < minArticlesForReliable:
			weight := float64(count) / float64(minArticlesForReliable)
			quality = populationMidpoint*(1-weight) + batchQuality*weight
		default:
			quality = batchQuality
		}

		results = append(results, domain.SourceQualityScore{
			SourceID:      sourceID,
			QualityScore:  round2(math.Max(0, math.Min(100, quality))),
			ArticleCount:  count,
			MustReadRate:  round4(mustReadRate),
			AvgConfidence: round4(avgConfidence),
			Freshness:     round4(freshness),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].QualityScore > results[j].QualityScore
	})
	return results
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
