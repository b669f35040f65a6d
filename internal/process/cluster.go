package process

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/strzhao/ai-news/internal/domain"
)

// BuildTitleKey derives a stable key for an article title, used to cap how
// many entries about the same story reach one digest.
func BuildTitleKey(title string) string {
	normalized := normalizedTitle(title)
	if normalized == "" {
		return "title:empty"
	}
	digest := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("title:%s", hex.EncodeToString(digest[:])[:16])
}

// BuildInfoKey identifies the info cluster an article belongs to: the
// normalized external link when present, else the normalized article URL,
// else the title key.
func BuildInfoKey(article domain.ScoredArticle) string {
	for _, candidate := range []string{article.InfoURL, article.URL} {
		if normalized := normalizeAbsoluteURL(candidate); normalized != "" {
			return normalized
		}
	}
	return BuildTitleKey(article.Title)
}

// normalizeAbsoluteURL is NormalizeURL restricted to absolute http(s) URLs;
// anything else yields "".
func normalizeAbsoluteURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return NormalizeURL(trimmed)
}
