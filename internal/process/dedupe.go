package process

import "github.com/strzhao/ai-news/internal/domain"

// DefaultTitleSimilarityThreshold is the similarity at or above which two
// titles are treated as the same story.
const DefaultTitleSimilarityThreshold = 0.93

// Drop reasons recorded in DedupeStats.
const (
	DropReasonURLDuplicate = "url_duplicate"
	DropReasonTitleSimilar = "title_similar"
)

// DroppedArticle records one article removed during deduplication together
// with the survivor it matched.
type DroppedArticle struct {
	Reason           string  `json:"reason"`
	ArticleID        string  `json:"article_id"`
	Title            string  `json:"title"`
	SourceID         string  `json:"source_id"`
	URL              string  `json:"url"`
	MatchedArticleID string  `json:"matched_article_id"`
	MatchedTitle     string  `json:"matched_title"`
	MatchedURL       string  `json:"matched_url"`
	Similarity       float64 `json:"similarity"`
}

// DedupeStats summarizes a deduplication pass for diagnostics.
type DedupeStats struct {
	TotalInput      int              `json:"total_input"`
	Kept            int              `json:"kept"`
	URLDuplicates   int              `json:"url_duplicates"`
	TitleDuplicates int              `json:"title_duplicates"`
	DroppedItems    []DroppedArticle `json:"dropped_items"`
}

// DedupeArticles removes duplicates in two passes: an O(1) set lookup on
// the normalized URL, then a pairwise title-similarity scan against the
// survivors. The first occurrence always wins.
func DedupeArticles(articles []domain.Article, titleSimilarityThreshold float64) ([]domain.Article, DedupeStats) {
	if titleSimilarityThreshold <= 0 {
		titleSimilarityThreshold = DefaultTitleSimilarityThreshold
	}

	stats := DedupeStats{TotalInput: len(articles)}
	deduped := make([]domain.Article, 0, len(articles))
	seenURLs := make(map[string]domain.Article, len(articles))

	for _, article := range articles {
		normalized := NormalizeURL(article.URL)
		if matched, ok := seenURLs[normalized]; ok {
			stats.URLDuplicates++
			stats.DroppedItems = append(stats.DroppedItems, DroppedArticle{
				Reason:           DropReasonURLDuplicate,
				ArticleID:        article.ID,
				Title:            article.Title,
				SourceID:         article.SourceID,
				URL:              article.URL,
				MatchedArticleID: matched.ID,
				MatchedTitle:     matched.Title,
				MatchedURL:       matched.URL,
				Similarity:       1.0,
			})
			continue
		}

		dropped := false
		for _, existing := range deduped {
			similarity := TitleSimilarity(article.Title, existing.Title)
			if similarity >= titleSimilarityThreshold {
				stats.TitleDuplicates++
				stats.DroppedItems = append(stats.DroppedItems, DroppedArticle{
					Reason:           DropReasonTitleSimilar,
					ArticleID:        article.ID,
					Title:            article.Title,
					SourceID:         article.SourceID,
					URL:              article.URL,
					MatchedArticleID: existing.ID,
					MatchedTitle:     existing.Title,
					MatchedURL:       existing.URL,
					Similarity:       similarity,
				})
				dropped = true
				break
			}
		}
		if dropped {
			continue
		}

		seenURLs[normalized] = article
		deduped = append(deduped, article)
	}

	stats.Kept = len(deduped)
	return deduped, stats
}
