// Package cache persists LLM article assessments and rolling source quality
// stats in a local SQLite database so repeat evaluations of unchanged
// articles are free.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/strzhao/ai-news/internal/domain"
)

// DefaultMaxRows is the assessment row count kept after pruning.
const DefaultMaxRows = 5000

const schema = `
CREATE TABLE IF NOT EXISTS article_assessments (
	cache_key TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	article_id TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	model_name TEXT NOT NULL,
	prompt_version TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS source_stats (
	source_id TEXT PRIMARY KEY,
	quality_score REAL NOT NULL,
	article_count INTEGER NOT NULL,
	must_read_rate REAL NOT NULL,
	avg_confidence REAL NOT NULL,
	freshness REAL NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store wraps the SQLite evaluation cache.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the cache database at dbPath, creating parent
// directories and the schema as needed. Use ":memory:" for an ephemeral store.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(".cache", "ai-news", "article_eval.sqlite3")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAssessment returns the cached assessment for cache_key, or nil on a miss.
func (s *Store) GetAssessment(cacheKey string) (*domain.ArticleAssessment, error) {
	var payload string
	err := s.db.QueryRow(
		"SELECT payload_json FROM article_assessments WHERE cache_key = ?", cacheKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read assessment: %w", err)
	}

	var assessment domain.ArticleAssessment
	if err := json.Unmarshal([]byte(payload), &assessment); err != nil {
		return nil, fmt.Errorf("decode cached assessment: %w", err)
	}
	if assessment.PrimaryType == "" {
		assessment.PrimaryType = "other"
	}
	assessment.CacheKey = cacheKey
	return &assessment, nil
}

// AssessmentRecord carries the identity columns stored alongside a payload.
type AssessmentRecord struct {
	CacheKey      string
	SourceID      string
	ArticleID     string
	ContentHash   string
	ModelName     string
	PromptVersion string
}

// SetAssessment upserts an assessment under its cache key.
func (s *Store) SetAssessment(rec AssessmentRecord, assessment domain.ArticleAssessment) error {
	payload, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO article_assessments (
			cache_key, source_id, article_id, content_hash, model_name,
			prompt_version, payload_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			source_id = excluded.source_id,
			article_id = excluded.article_id,
			content_hash = excluded.content_hash,
			model_name = excluded.model_name,
			prompt_version = excluded.prompt_version,
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at`,
		rec.CacheKey, rec.SourceID, rec.ArticleID, rec.ContentHash,
		rec.ModelName, rec.PromptVersion, string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write assessment: %w", err)
	}
	return nil
}

// Prune deletes the oldest assessment rows until at most maxRows remain.
func (s *Store) Prune(maxRows int) error {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM article_assessments").Scan(&total); err != nil {
		return fmt.Errorf("count assessments: %w", err)
	}
	if total <= maxRows {
		return nil
	}

	_, err := s.db.Exec(`
		DELETE FROM article_assessments
		WHERE cache_key IN (
			SELECT cache_key FROM article_assessments
			ORDER BY updated_at ASC
			LIMIT ?
		)`, total-maxRows)
	if err != nil {
		return fmt.Errorf("prune assessments: %w", err)
	}
	return nil
}

// LoadSourceScores returns all persisted source quality scores keyed by source ID.
func (s *Store) LoadSourceScores() (map[string]domain.SourceQualityScore, error) {
	rows, err := s.db.Query(`
		SELECT source_id, quality_score, article_count, must_read_rate, avg_confidence, freshness
		FROM source_stats`)
	if err != nil {
		return nil, fmt.Errorf("read source stats: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]domain.SourceQualityScore)
	for rows.Next() {
		var score domain.SourceQualityScore
		if err := rows.Scan(
			&score.SourceID, &score.QualityScore, &score.ArticleCount,
			&score.MustReadRate, &score.AvgConfidence, &score.Freshness,
		); err != nil {
			return nil, fmt.Errorf("scan source stats: %w", err)
		}
		scores[score.SourceID] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source stats: %w", err)
	}
	return scores, nil
}

// UpsertSourceScores writes the latest per-source quality scores.
func (s *Store) UpsertSourceScores(scores []domain.SourceQualityScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin source stats tx: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, score := range scores {
		if _, err := tx.Exec(`
			INSERT INTO source_stats (
				source_id, quality_score, article_count, must_read_rate,
				avg_confidence, freshness, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_id) DO UPDATE SET
				quality_score = excluded.quality_score,
				article_count = excluded.article_count,
				must_read_rate = excluded.must_read_rate,
				avg_confidence = excluded.avg_confidence,
				freshness = excluded.freshness,
				updated_at = excluded.updated_at`,
			score.SourceID, score.QualityScore, score.ArticleCount,
			score.MustReadRate, score.AvgConfidence, score.Freshness, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert source stats: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit source stats: %w", err)
	}
	return nil
}
