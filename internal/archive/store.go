// Package archive persists rendered digests and their run analyses in Redis
// so past reports stay browsable from the API.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	maxListDays     = 180
	maxItemsPerDay  = 50
	previewMaxChars = 180
)

// Entry is one archived digest.
type Entry struct {
	DigestID       string `json:"digest_id"`
	Date           string `json:"date"`
	GeneratedAt    string `json:"generated_at"`
	HighlightCount int    `json:"highlight_count"`
	HasHighlights  bool   `json:"has_highlights"`
	SummaryPreview string `json:"summary_preview"`
	Markdown       string `json:"markdown,omitempty"`
}

// Analysis is the archived run analysis for a digest.
type Analysis struct {
	DigestID         string         `json:"digest_id"`
	Date             string         `json:"date"`
	GeneratedAt      string         `json:"generated_at"`
	AnalysisPreview  string         `json:"analysis_preview"`
	AnalysisMarkdown string         `json:"analysis_markdown"`
	AnalysisJSON     map[string]any `json:"analysis_json"`
}

// ListItem is the per-digest row returned by List, without the full markdown.
type ListItem struct {
	DigestID        string `json:"digest_id"`
	Date            string `json:"date"`
	GeneratedAt     string `json:"generated_at"`
	HighlightCount  int    `json:"highlight_count"`
	HasHighlights   bool   `json:"has_highlights"`
	SummaryPreview  string `json:"summary_preview"`
	AnalysisPreview string `json:"analysis_preview"`
	ViewURL         string `json:"view_url"`
	AnalysisURL     string `json:"analysis_url"`
}

// DateGroup groups list items under their report date, newest date first.
type DateGroup struct {
	Date  string     `json:"date"`
	Items []ListItem `json:"items"`
}

// Store reads and writes the digest archive.
type Store struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewStore creates a Store on the given Redis client.
func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb, now: time.Now}
}

// BuildDigestID derives a stable digest ID from the report date, generation
// time, and rendered markdown.
func BuildDigestID(reportDate, generatedAt, markdown string) string {
	sum := sha256.Sum256([]byte(markdown))
	return fmt.Sprintf("%s_%d_%s", reportDate, isoToEpochMS(generatedAt, time.Now), hex.EncodeToString(sum[:])[:8])
}

// SaveDigest stores a digest entry and indexes it by date.
func (s *Store) SaveDigest(ctx context.Context, entry Entry) error {
	if entry.DigestID == "" {
		return fmt.Errorf("archive: empty digest id")
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, "digest:entry:"+entry.DigestID, map[string]any{
		"digest_id":       entry.DigestID,
		"date":            entry.Date,
		"generated_at":    entry.GeneratedAt,
		"highlight_count": entry.HighlightCount,
		"has_highlights":  boolFlag(entry.HasHighlights),
		"summary_preview": preview(entry.SummaryPreview),
		"markdown":        entry.Markdown,
	})
	pipe.ZAdd(ctx, "digest:date:"+entry.Date, redis.Z{
		Score:  float64(isoToEpochMS(entry.GeneratedAt, s.now)),
		Member: entry.DigestID,
	})
	pipe.ZAdd(ctx, "digest:dates", redis.Z{
		Score:  float64(dateScore(entry.Date, s.now)),
		Member: entry.Date,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// SaveAnalysis stores the run analysis alongside a digest.
func (s *Store) SaveAnalysis(ctx context.Context, analysis Analysis) error {
	if analysis.DigestID == "" {
		return fmt.Errorf("archive: empty digest id")
	}

	analysisJSON, err := json.Marshal(analysis.AnalysisJSON)
	if err != nil {
		return fmt.Errorf("encode analysis json: %w", err)
	}
	previewSource := analysis.AnalysisPreview
	if previewSource == "" {
		previewSource = analysis.AnalysisMarkdown
	}

	return s.rdb.HSet(ctx, "digest:analysis:"+analysis.DigestID, map[string]any{
		"digest_id":         analysis.DigestID,
		"date":              analysis.Date,
		"generated_at":      analysis.GeneratedAt,
		"analysis_preview":  preview(previewSource),
		"analysis_markdown": analysis.AnalysisMarkdown,
		"analysis_json":     string(analysisJSON),
	}).Err()
}

// List returns archived digests grouped by date, newest first.
func (s *Store) List(ctx context.Context, days, limitPerDay int) ([]DateGroup, error) {
	days = clampInt(days, 1, maxListDays)
	limitPerDay = clampInt(limitPerDay, 1, maxItemsPerDay)

	dates, err := s.rdb.ZRevRange(ctx, "digest:dates", 0, int64(days-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list archive dates: %w", err)
	}
	if len(dates) == 0 {
		return nil, nil
	}

	var groups []DateGroup
	for _, date := range dates {
		digestIDs, err := s.rdb.ZRevRange(ctx, "digest:date:"+date, 0, int64(limitPerDay-1)).Result()
		if err != nil {
			return nil, fmt.Errorf("list archive ids for %s: %w", date, err)
		}

		var items []ListItem
		for _, digestID := range digestIDs {
			row, err := s.rdb.HGetAll(ctx, "digest:entry:"+digestID).Result()
			if err != nil || len(row) == 0 {
				continue
			}
			analysisPreview, _ := s.rdb.HGet(ctx, "digest:analysis:"+digestID, "analysis_preview").Result()

			entryDate := row["date"]
			if entryDate == "" {
				entryDate = date
			}
			items = append(items, ListItem{
				DigestID:        digestID,
				Date:            entryDate,
				GeneratedAt:     row["generated_at"],
				HighlightCount:  atoiLoose(row["highlight_count"]),
				HasHighlights:   parseFlag(row["has_highlights"]),
				SummaryPreview:  row["summary_preview"],
				AnalysisPreview: analysisPreview,
				ViewURL:         "/api/archive/" + digestID,
				AnalysisURL:     "/api/archive/" + digestID + "/analysis",
			})
		}
		if len(items) > 0 {
			groups = append(groups, DateGroup{Date: date, Items: items})
		}
	}
	return groups, nil
}

// Get returns one archived digest with its markdown, or nil if absent.
func (s *Store) Get(ctx context.Context, digestID string) (*Entry, error) {
	digestID = strings.TrimSpace(digestID)
	if digestID == "" {
		return nil, nil
	}
	row, err := s.rdb.HGetAll(ctx, "digest:entry:"+digestID).Result()
	if err != nil {
		return nil, fmt.Errorf("read archive entry: %w", err)
	}
	if len(row) == 0 {
		return nil, nil
	}
	return &Entry{
		DigestID:       digestID,
		Date:           row["date"],
		GeneratedAt:    row["generated_at"],
		HighlightCount: atoiLoose(row["highlight_count"]),
		HasHighlights:  parseFlag(row["has_highlights"]),
		SummaryPreview: row["summary_preview"],
		Markdown:       row["markdown"],
	}, nil
}

// GetAnalysis returns the archived analysis for a digest, or nil if absent.
func (s *Store) GetAnalysis(ctx context.Context, digestID string) (*Analysis, error) {
	digestID = strings.TrimSpace(digestID)
	if digestID == "" {
		return nil, nil
	}
	row, err := s.rdb.HGetAll(ctx, "digest:analysis:"+digestID).Result()
	if err != nil {
		return nil, fmt.Errorf("read archive analysis: %w", err)
	}
	if len(row) == 0 {
		return nil, nil
	}

	parsed := map[string]any{}
	if raw := row["analysis_json"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			parsed = map[string]any{}
		}
	}
	return &Analysis{
		DigestID:         digestID,
		Date:             row["date"],
		GeneratedAt:      row["generated_at"],
		AnalysisPreview:  row["analysis_preview"],
		AnalysisMarkdown: row["analysis_markdown"],
		AnalysisJSON:     parsed,
	}, nil
}

func isoToEpochMS(value string, now func() time.Time) int64 {
	value = strings.TrimSpace(value)
	if value != "" {
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			return parsed.UnixMilli()
		}
	}
	return now().UTC().UnixMilli()
}

// dateScore turns YYYY-MM-DD into a sortable YYYYMMDD integer.
func dateScore(reportDate string, now func() time.Time) int64 {
	var digits strings.Builder
	for _, r := range reportDate {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 8 {
		score, err := strconv.ParseInt(digits.String(), 10, 64)
		if err == nil {
			return score
		}
	}
	score, _ := strconv.ParseInt(now().UTC().Format("20060102"), 10, 64)
	return score
}

func preview(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	runes := []rune(normalized)
	if len(runes) <= previewMaxChars {
		return normalized
	}
	return strings.TrimSpace(string(runes[:previewMaxChars-1])) + "…"
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func atoiLoose(raw string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
