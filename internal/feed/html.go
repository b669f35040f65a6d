package feed

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var multiSpaceRe = regexp.MustCompile(`\s+`)

// CleanHTMLText strips markup from a feed field and collapses whitespace.
// Input that fails to parse as HTML is returned whitespace-normalized.
func CleanHTMLText(value string) string {
	if value == "" {
		return ""
	}
	// Pad tag boundaries so adjacent elements keep a word break once the
	// markup is removed.
	padded := strings.ReplaceAll(value, "<", " <")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(padded))
	if err != nil {
		return multiSpaceRe.ReplaceAllString(strings.TrimSpace(value), " ")
	}
	doc.Find("script, style").Remove()
	text := doc.Text()
	return multiSpaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
}
