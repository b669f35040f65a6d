// Package process implements the pure pipeline stages between fetching and
// selection: normalization, deduplication, info clustering, heuristic
// ranking, and the highlight gate.
package process

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/strzhao/ai-news/internal/domain"
)

var multiSpaceRe = regexp.MustCompile(`\s+`)

// Field length caps applied during normalization.
const (
	maxTitleLen   = 240
	maxSummaryLen = 1600
	maxLeadLen    = 320
	maxContentLen = 2400
)

// NormalizeArticles trims and collapses whitespace, truncates long fields,
// and converts timestamps to UTC. Pure and total.
func NormalizeArticles(articles []domain.Article) []domain.Article {
	normalized := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		publishedAt := a.PublishedAt
		if publishedAt != nil {
			utc := publishedAt.UTC()
			publishedAt = &utc
		}

		normalized = append(normalized, domain.Article{
			ID:            a.ID,
			Title:         normalizeText(a.Title, maxTitleLen),
			URL:           strings.TrimSpace(a.URL),
			SourceID:      a.SourceID,
			SourceName:    a.SourceName,
			PublishedAt:   publishedAt,
			Summary:       normalizeText(a.Summary, maxSummaryLen),
			LeadParagraph: normalizeText(a.LeadParagraph, maxLeadLen),
			ContentText:   normalizeText(a.ContentText, maxContentLen),
			InfoURL:       strings.TrimSpace(a.InfoURL),
		})
	}
	return normalized
}

// normalizeText collapses runs of whitespace and truncates to maxLen runes
// with a "..." marker.
func normalizeText(value string, maxLen int) string {
	value = strings.TrimSpace(multiSpaceRe.ReplaceAllString(value, " "))
	runes := []rune(value)
	if len(runes) <= maxLen {
		return value
	}
	return strings.TrimRight(string(runes[:maxLen]), " ") + "..."
}

// SortByPublishedDesc orders articles newest first; articles without a
// timestamp sort last.
func SortByPublishedDesc(articles []domain.Article) []domain.Article {
	sorted := make([]domain.Article, len(articles))
	copy(sorted, articles)

	keyOf := func(a domain.Article) time.Time {
		if a.PublishedAt == nil {
			return time.Time{}
		}
		return *a.PublishedAt
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return keyOf(sorted[i]).After(keyOf(sorted[j]))
	})
	return sorted
}
