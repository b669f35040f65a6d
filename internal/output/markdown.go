// Package output renders the daily digest as markdown and as flomo webhook
// content, and writes report files to disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/strzhao/ai-news/internal/domain"
)

// LinkResolver maps an article to the URL printed in rendered output. The
// tracking builder plugs in here; the identity resolver keeps raw links.
type LinkResolver func(article domain.ScoredArticle) string

// RawLinks is the identity LinkResolver.
func RawLinks(article domain.ScoredArticle) string {
	return article.URL
}

// RenderDigestMarkdown renders the digest report. resolve decides the link
// printed for each article; nil means raw links.
func RenderDigestMarkdown(digest domain.DailyDigest, resolve LinkResolver) string {
	if resolve == nil {
		resolve = RawLinks
	}

	var lines []string
	lines = append(lines, "## Today at a Glance")
	if summary := strings.TrimSpace(digest.TopSummary); summary != "" {
		lines = append(lines, summary)
	} else {
		lines = append(lines, "- No high-quality AI updates today.")
	}
	lines = append(lines, "", "## Highlights")

	if len(digest.Highlights) == 0 {
		lines = append(lines, "- No articles met the highlight threshold today.")
	}
	for idx, tagged := range digest.Highlights {
		article := tagged.Article
		lines = append(lines,
			fmt.Sprintf("### %d. %s", idx+1, article.Title),
			fmt.Sprintf("- Source: %s", article.SourceName),
			fmt.Sprintf("- Link: %s", resolve(article)),
			fmt.Sprintf("- One-line summary: %s", article.LeadParagraph),
			fmt.Sprintf("- Recommendation: **%s**", article.Worth),
			fmt.Sprintf("- Why: %s", article.ReasonShort),
			"")
	}

	if len(digest.Extras) > 0 {
		lines = append(lines, "## Also Worth a Look")
		for _, tagged := range digest.Extras {
			article := tagged.Article
			lines = append(lines, fmt.Sprintf("- [%s](%s) (%s)", article.Title, resolve(article), article.Worth))
		}
		lines = append(lines, "")
	}

	if len(digest.DailyTags) > 0 {
		lines = append(lines, strings.Join(digest.DailyTags, " "), "")
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}

// WriteDigestMarkdown writes the rendered digest to outputDir/<date>.md.
func WriteDigestMarkdown(content, reportDate, outputDir string) (string, error) {
	return writeReport(content, reportDate+".md", outputDir)
}

// WriteAnalysisMarkdown writes the run analysis to outputDir/<date>.analysis.md.
func WriteAnalysisMarkdown(content, reportDate, outputDir string) (string, error) {
	return writeReport(content, reportDate+".analysis.md", outputDir)
}

func writeReport(content, filename, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "reports"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
