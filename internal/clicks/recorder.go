// Package clicks records and reads click counters in Redis. Counters are
// daily hashes keyed by UTC date so history ages out naturally via TTL.
package clicks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strzhao/ai-news/internal/process"
)

// CounterTTL keeps roughly four months of daily counters.
const CounterTTL = 120 * 24 * time.Hour

// botUATokens marks user agents whose clicks are not counted. Link previews
// from chat apps would otherwise inflate every shared digest.
var botUATokens = []string{
	"bot",
	"spider",
	"crawler",
	"preview",
	"slackbot",
	"discordbot",
	"telegrambot",
	"facebookexternalhit",
	"curl",
}

// ShouldSkipTracking reports whether a request should be redirected without
// counting. HEAD requests are always skipped.
func ShouldSkipTracking(method, userAgent string) bool {
	if strings.EqualFold(method, "HEAD") {
		return true
	}
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return false
	}
	for _, token := range botUATokens {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}

// DateKey formats a time as the YYYYMMDD hash suffix, in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// Click holds the fields counted for one redirect.
type Click struct {
	TargetURL   string
	SourceID    string
	PrimaryType string
}

// Recorder increments the daily click hashes.
type Recorder struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewRecorder creates a Recorder on the given Redis client.
func NewRecorder(rdb redis.Cmdable) *Recorder {
	return &Recorder{rdb: rdb, now: time.Now}
}

// Record counts one click under today's source, article, meta, and type
// hashes. Each touched key gets its TTL refreshed.
func (r *Recorder) Record(ctx context.Context, click Click) error {
	dateKey := DateKey(r.now())
	articleField := HashInfoKey(process.NormalizeURL(click.TargetURL))

	pipe := r.rdb.Pipeline()
	incrWithTTL(ctx, pipe, "clicks:source:"+dateKey, click.SourceID)
	incrWithTTL(ctx, pipe, "clicks:article:"+dateKey, articleField)
	incrWithTTL(ctx, pipe, "clicks:meta:"+dateKey, "total")
	if pt := strings.TrimSpace(click.PrimaryType); pt != "" {
		incrWithTTL(ctx, pipe, "clicks:type:"+dateKey, pt)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RecordInvalidSignature bumps the invalid_sig counter for today.
func (r *Recorder) RecordInvalidSignature(ctx context.Context) error {
	pipe := r.rdb.Pipeline()
	incrWithTTL(ctx, pipe, "clicks:meta:"+DateKey(r.now()), "invalid_sig")
	_, err := pipe.Exec(ctx)
	return err
}

func incrWithTTL(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	pipe.Expire(ctx, key, CounterTTL)
}

// HashInfoKey fingerprints a normalized article URL for the per-article hash.
func HashInfoKey(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])[:24]
}
