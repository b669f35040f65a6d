// Package domain defines the core entities of the digest pipeline.
// All entities are created fresh per run and treated as immutable after
// construction; the only persisted entities are ArticleAssessment (via the
// evaluation cache) and SourceQualityScore.
package domain

import "time"

// Worth is the tri-state reading recommendation attached to an article.
type Worth string

const (
	// WorthMustRead marks an article as a must-read highlight candidate.
	WorthMustRead Worth = "must_read"
	// WorthWorthReading marks an article as worth reading if space allows.
	WorthWorthReading Worth = "worth_reading"
	// WorthSkip marks an article as not worth the reader's time.
	WorthSkip Worth = "skip"
)

// Valid reports whether w is one of the three allowed labels.
func (w Worth) Valid() bool {
	switch w {
	case WorthMustRead, WorthWorthReading, WorthSkip:
		return true
	}
	return false
}

// SourceConfig describes a single configured feed source. Loaded once per
// run from YAML configuration and never mutated afterwards.
type SourceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// RSSHubRoute is joined onto the RSSHub base URL when URL is not set
	// directly.
	RSSHubRoute       string  `yaml:"rsshub_route"`
	Weight            float64 `yaml:"source_weight"`
	SourceType        string  `yaml:"source_type"`
	OnlyExternalLinks bool    `yaml:"only_external_links"`
}

// Article is a raw fetched feed item after HTML stripping.
type Article struct {
	ID            string
	Title         string
	URL           string
	SourceID      string
	SourceName    string
	PublishedAt   *time.Time
	Summary       string
	LeadParagraph string
	ContentText   string
	// InfoURL is the external link an aggregator entry points at, when the
	// entry itself is only a syndication wrapper.
	InfoURL string
}

// ScoredArticle is an Article augmented with the outcome of evaluation.
type ScoredArticle struct {
	Article

	Score          float64
	Worth          Worth
	ReasonShort    string
	PrimaryType    string
	SecondaryTypes []string
}

// TaggedArticle pairs a scored article with its generated tags.
type TaggedArticle struct {
	Article       ScoredArticle
	GeneratedTags []string
}

// DailyDigest is the final output of a pipeline run.
type DailyDigest struct {
	Date       string
	Timezone   string
	TopSummary string
	Highlights []TaggedArticle
	DailyTags  []string
	Extras     []TaggedArticle
}
