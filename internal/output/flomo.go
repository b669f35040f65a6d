package output

import (
	"fmt"
	"strings"

	"github.com/strzhao/ai-news/internal/domain"
)

// flomoTagLimit caps the trailing tag line of a flomo memo.
const flomoTagLimit = 20

// RenderFlomoContent renders the digest as a plain-text flomo memo.
func RenderFlomoContent(digest domain.DailyDigest, resolve LinkResolver) string {
	if resolve == nil {
		resolve = RawLinks
	}

	var lines []string
	lines = append(lines, "[Today at a Glance]")
	summary := strings.TrimSpace(digest.TopSummary)
	if summary != "" {
		for _, line := range strings.Split(summary, "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
	} else {
		lines = append(lines, "- No high-quality AI updates today.")
	}
	lines = append(lines, "", "[Highlights]")

	for idx, tagged := range digest.Highlights {
		article := tagged.Article
		lines = append(lines,
			fmt.Sprintf("%d. %s", idx+1, article.Title),
			fmt.Sprintf("Summary: %s", article.LeadParagraph),
			fmt.Sprintf("Recommendation: %s | Why: %s", article.Worth, article.ReasonShort),
			fmt.Sprintf("Link: %s", resolve(article)),
			"")
	}

	if len(digest.DailyTags) > 0 {
		tags := digest.DailyTags
		if len(tags) > flomoTagLimit {
			tags = tags[:flomoTagLimit]
		}
		lines = append(lines, strings.Join(tags, " "))
	}

	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
}

// BuildFlomoPayload wraps the rendered memo with its per-day dedupe key.
func BuildFlomoPayload(digest domain.DailyDigest, resolve LinkResolver) domain.FlomoPayload {
	return domain.FlomoPayload{
		Content:   RenderFlomoContent(digest, resolve),
		DedupeKey: "digest-" + digest.Date,
	}
}
