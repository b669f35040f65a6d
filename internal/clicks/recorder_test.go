package clicks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

var fixedNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func TestRecord_IncrementsAllHashes(t *testing.T) {
	mr, rdb := testRedis(t)
	rec := NewRecorder(rdb)
	rec.now = func() time.Time { return fixedNow }

	err := rec.Record(context.Background(), Click{
		TargetURL:   "https://example.com/story?utm_source=digest",
		SourceID:    "openai_blog",
		PrimaryType: "model_release",
	})
	require.NoError(t, err)

	assert.Equal(t, "1", mr.HGet("clicks:source:20260829", "openai_blog"))
	assert.Equal(t, "1", mr.HGet("clicks:meta:20260829", "total"))
	assert.Equal(t, "1", mr.HGet("clicks:type:20260829", "model_release"))

	// the article field is the hash of the normalized URL, so tracking
	// params do not split counters
	article := HashInfoKey("https://example.com/story")
	assert.Equal(t, "1", mr.HGet("clicks:article:20260829", article))
	assert.Len(t, article, 24)

	ttl := mr.TTL("clicks:source:20260829")
	assert.Greater(t, ttl, 119*24*time.Hour)
}

func TestRecord_EmptyTypeSkipsTypeHash(t *testing.T) {
	mr, rdb := testRedis(t)
	rec := NewRecorder(rdb)
	rec.now = func() time.Time { return fixedNow }

	require.NoError(t, rec.Record(context.Background(), Click{
		TargetURL: "https://example.com/a", SourceID: "src",
	}))
	assert.False(t, mr.Exists("clicks:type:20260829"))
}

func TestRecordInvalidSignature(t *testing.T) {
	mr, rdb := testRedis(t)
	rec := NewRecorder(rdb)
	rec.now = func() time.Time { return fixedNow }

	require.NoError(t, rec.RecordInvalidSignature(context.Background()))
	require.NoError(t, rec.RecordInvalidSignature(context.Background()))
	assert.Equal(t, "2", mr.HGet("clicks:meta:20260829", "invalid_sig"))
}

func TestShouldSkipTracking(t *testing.T) {
	assert.True(t, ShouldSkipTracking("HEAD", "Mozilla/5.0"))
	assert.True(t, ShouldSkipTracking("GET", "Slackbot-LinkExpanding 1.0"))
	assert.True(t, ShouldSkipTracking("GET", "curl/8.5.0"))
	assert.True(t, ShouldSkipTracking("GET", "facebookexternalhit/1.1"))
	assert.False(t, ShouldSkipTracking("GET", "Mozilla/5.0 (Macintosh)"))
	assert.False(t, ShouldSkipTracking("GET", ""))
}

func TestReader_SourceDaily(t *testing.T) {
	_, rdb := testRedis(t)
	rec := NewRecorder(rdb)
	rec.now = func() time.Time { return fixedNow }
	reader := NewReader(rdb)
	reader.now = func() time.Time { return fixedNow }

	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, Click{TargetURL: "https://example.com/a", SourceID: "src_b"}))
	require.NoError(t, rec.Record(ctx, Click{TargetURL: "https://example.com/b", SourceID: "src_a"}))
	require.NoError(t, rec.Record(ctx, Click{TargetURL: "https://example.com/c", SourceID: "src_a"}))

	rows, err := reader.SourceDaily(ctx, 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, DailyRow{Date: "2026-08-29", Key: "src_a", Clicks: 2}, rows[0])
	assert.Equal(t, DailyRow{Date: "2026-08-29", Key: "src_b", Clicks: 1}, rows[1])
}

func TestReader_TypeDailyAcrossDays(t *testing.T) {
	_, rdb := testRedis(t)
	rec := NewRecorder(rdb)
	reader := NewReader(rdb)
	reader.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	rec.now = func() time.Time { return fixedNow.AddDate(0, 0, -1) }
	require.NoError(t, rec.Record(ctx, Click{TargetURL: "https://example.com/a", SourceID: "s", PrimaryType: "research"}))
	rec.now = func() time.Time { return fixedNow }
	require.NoError(t, rec.Record(ctx, Click{TargetURL: "https://example.com/b", SourceID: "s", PrimaryType: "research"}))

	rows, err := reader.TypeDaily(ctx, 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-08-28", rows[0].Date)
	assert.Equal(t, "2026-08-29", rows[1].Date)
}
