// Package feed pulls RSS and Atom feeds for configured sources and converts
// entries into articles ready for deduplication and evaluation.
package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/strzhao/ai-news/internal/domain"
	"github.com/strzhao/ai-news/internal/logger"
)

// DefaultMaxPerSource bounds how many entries are taken from one feed when
// no per-source budget is supplied.
const DefaultMaxPerSource = 25

const leadMaxLen = 280

// Fetcher downloads and parses feeds. A failing source is logged and skipped
// so one broken feed never sinks the whole run.
type Fetcher struct {
	parser     *gofeed.Parser
	httpClient *http.Client
	log        logger.Logger
}

// NewFetcher creates a Fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration, log logger.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Fetcher{
		parser:     gofeed.NewParser(),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// FetchArticles pulls every source and flattens the results. limits maps
// source ID to the per-source entry budget; sources absent from the map get
// DefaultMaxPerSource. Sources that fail to fetch or parse are skipped.
func (f *Fetcher) FetchArticles(ctx context.Context, sources []domain.SourceConfig, limits map[string]int) []domain.Article {
	var articles []domain.Article
	for _, source := range sources {
		limit, ok := limits[source.ID]
		if !ok || limit <= 0 {
			limit = DefaultMaxPerSource
		}

		fetched, err := f.fetchSource(ctx, source, limit)
		if err != nil {
			f.log.Warn("feed fetch failed, skipping source",
				logger.String("source_id", source.ID),
				logger.String("url", source.URL),
				logger.Error(err))
			continue
		}
		f.log.Debug("fetched source",
			logger.String("source_id", source.ID),
			logger.Int("articles", len(fetched)))
		articles = append(articles, fetched...)
	}
	return articles
}

func (f *Fetcher) fetchSource(ctx context.Context, source domain.SourceConfig, limit int) ([]domain.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", "ai-news/1.0 (+feed-reader)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	feedHost := hostOf(source.URL)
	var articles []domain.Article
	for _, item := range parsed.Items {
		if len(articles) >= limit {
			break
		}
		article, ok := itemToArticle(source, item)
		if !ok {
			continue
		}
		if source.OnlyExternalLinks && sameHost(feedHost, article.URL) {
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func itemToArticle(source domain.SourceConfig, item *gofeed.Item) (domain.Article, bool) {
	title := CleanHTMLText(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return domain.Article{}, false
	}

	summary := CleanHTMLText(item.Description)
	lead := extractLead(item, summary, title)
	contentText := joinNonEmpty(" ", title, summary, lead)

	return domain.Article{
		ID:            makeArticleID(source.ID, link, title),
		Title:         title,
		URL:           link,
		SourceID:      source.ID,
		SourceName:    source.Name,
		PublishedAt:   publishedAt(item),
		Summary:       summary,
		LeadParagraph: lead,
		ContentText:   contentText,
		InfoURL:       infoURL(item, link),
	}, true
}

// extractLead takes the first sentence of the item body, falling back to the
// summary and finally the title.
func extractLead(item *gofeed.Item, summary, title string) string {
	if content := CleanHTMLText(item.Content); content != "" {
		if lead := firstSentence(content); lead != "" {
			return lead
		}
	}
	if summary != "" {
		return firstSentence(summary)
	}
	return truncate(title, leadMaxLen)
}

func firstSentence(text string) string {
	cut := len(text)
	for _, token := range []string{"。", ".", "!", "?", "\n"} {
		if idx := strings.Index(text, token); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return truncate(strings.TrimSpace(text[:cut]), leadMaxLen)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}

func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

// infoURL prefers the first non-self link so aggregator feeds cluster by the
// story they point at rather than the aggregator page.
func infoURL(item *gofeed.Item, selfLink string) string {
	for _, link := range item.Links {
		link = strings.TrimSpace(link)
		if link != "" && link != selfLink {
			return link
		}
	}
	return ""
}

func makeArticleID(sourceID, articleURL, title string) string {
	sum := sha256.Sum256([]byte(sourceID + "|" + articleURL + "|" + title))
	return sourceID + "-" + hex.EncodeToString(sum[:])[:12]
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

func sameHost(feedHost, articleURL string) bool {
	if feedHost == "" {
		return false
	}
	return hostOf(articleURL) == feedHost
}
