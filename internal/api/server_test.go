package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strzhao/ai-news/internal/archive"
	"github.com/strzhao/ai-news/internal/clicks"
	"github.com/strzhao/ai-news/internal/config"
	"github.com/strzhao/ai-news/internal/digest"
	"github.com/strzhao/ai-news/internal/logger"
	"github.com/strzhao/ai-news/internal/tracking"
)

const testSecret = "test-signing-secret"

type stubRunner struct {
	result  digest.Result
	err     error
	gotOpts digest.Options
}

func (r *stubRunner) Run(_ context.Context, opts digest.Options) (digest.Result, error) {
	r.gotOpts = opts
	return r.result, r.err
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config, deps *Deps)) (*Server, redis.Cmdable) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg, err := config.Load("")
	require.NoError(t, err)

	deps := Deps{
		Signer:   tracking.NewSigner(testSecret),
		Recorder: clicks.NewRecorder(rdb),
		Reader:   clicks.NewReader(rdb),
		Archive:  archive.NewStore(rdb),
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}
	return NewServer(cfg, deps, logger.NewNop()), rdb
}

func signedRedirectURL(t *testing.T, mutate func(q url.Values)) string {
	t.Helper()
	params := tracking.ClickParams{
		TargetURL:   "https://example.com/article",
		SourceID:    "openai_blog",
		ArticleID:   "abc123",
		DigestDate:  "2026-08-29",
		Channel:     "markdown",
		PrimaryType: "research",
	}
	q := params.Values()
	q.Set("sig", tracking.NewSigner(testSecret).Sign(q))
	if mutate != nil {
		mutate(q)
	}
	return "/r?" + q.Encode()
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestRedirect_Follows(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, signedRedirectURL(t, nil), nil))

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/article", w.Header().Get("Location"))
}

func TestRedirect_BrowserGetsInterstitial(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, signedRedirectURL(t, nil), nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "https://example.com/article")
}

func TestRedirect_MissingParams(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/r?u=https%3A%2F%2Fexample.com", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing required parameters")
}

func TestRedirect_InvalidSignature(t *testing.T) {
	srv, rdb := newTestServer(t, nil)

	target := signedRedirectURL(t, func(q url.Values) {
		q.Set("sig", "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	})
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid signature")

	keys, err := rdb.Keys(context.Background(), "clicks:meta:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	count, err := rdb.HGet(context.Background(), keys[0], "invalid_sig").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestRedirect_RejectsNonHTTPTarget(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	params := tracking.ClickParams{
		TargetURL:  "javascript:alert(1)",
		SourceID:   "s",
		ArticleID:  "a",
		DigestDate: "2026-08-29",
		Channel:    "markdown",
	}
	q := params.Values()
	q.Set("sig", tracking.NewSigner(testSecret).Sign(q))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/r?"+q.Encode(), nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported redirect target")
}

func TestRedirect_BotSkipsCounting(t *testing.T) {
	srv, rdb := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, signedRedirectURL(t, nil), nil)
	req.Header.Set("User-Agent", "Googlebot/2.1 (+http://www.google.com/bot.html)")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	keys, err := rdb.Keys(context.Background(), "clicks:source:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedirect_RecordsClick(t *testing.T) {
	srv, rdb := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, signedRedirectURL(t, nil), nil))
	require.Equal(t, http.StatusFound, w.Code)

	keys, err := rdb.Keys(context.Background(), "clicks:source:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	count, err := rdb.HGet(context.Background(), keys[0], "openai_blog").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestCronDigest_OpenWithoutSecrets(t *testing.T) {
	runner := &stubRunner{result: digest.Result{
		ExitCode:   digest.ExitOK,
		RunID:      "run-1",
		ReportDate: "2026-08-29",
		DigestID:   "2026-08-29_123_abcd1234",
	}}
	srv, _ := newTestServer(t, func(cfg *config.Config, deps *Deps) {
		deps.Runner = runner
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/cron/digest?date=2026-08-29&sync_flomo=false", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "2026-08-29_123_abcd1234", body["digest_id"])
	assert.Equal(t, "2026-08-29", runner.gotOpts.Date)
	assert.False(t, runner.gotOpts.SyncFlomo)
}

func TestCronDigest_RequiresSecret(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config, deps *Deps) {
		cfg.Server.CronSecret = "cron-secret"
		cfg.Server.ManualToken = "manual-token"
		deps.Runner = &stubRunner{result: digest.Result{ExitCode: digest.ExitOK}}
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cron/digest", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/cron/digest", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cron/digest?token=manual-token", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCronDigest_RunFailure(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config, deps *Deps) {
		deps.Runner = &stubRunner{
			result: digest.Result{ExitCode: digest.ExitNoArticles, ReportDate: "2026-08-29"},
			err:    errors.New("no usable articles after fetch and dedupe"),
		}
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cron/digest", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, float64(digest.ExitNoArticles), body["exit_code"])
	assert.NotEmpty(t, body["error"])
}

func TestStats_TokenGuard(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config, deps *Deps) {
		cfg.Tracker.APIToken = "stats-token"
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats/sources", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/sources", nil)
	req.Header.Set("Authorization", "Bearer stats-token")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStats_SourceRows(t *testing.T) {
	srv, rdb := newTestServer(t, nil)

	// a recorded click shows up in the source stats
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, signedRedirectURL(t, nil), nil))
	require.Equal(t, http.StatusFound, w.Code)

	keys, err := rdb.Keys(context.Background(), "clicks:source:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats/sources?days=7", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Days int              `json:"days"`
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 7, body.Days)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "openai_blog", body.Rows[0]["source_id"])
	assert.Equal(t, float64(1), body.Rows[0]["clicks"])
}

func TestArchive_GetAndList(t *testing.T) {
	srv, rdb := newTestServer(t, nil)

	store := archive.NewStore(rdb)
	entry := archive.Entry{
		DigestID:       "2026-08-29_1756450800000_abcd1234",
		Date:           "2026-08-29",
		GeneratedAt:    "2026-08-29T08:00:00+08:00",
		HighlightCount: 5,
		HasHighlights:  true,
		SummaryPreview: "- Model releases dominated the day.",
		Markdown:       "## Today at a Glance\n",
	}
	require.NoError(t, store.SaveDigest(context.Background(), entry))

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/archive/"+entry.DigestID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), entry.DigestID)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/archive", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2026-08-29")
}

func TestArchive_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/archive/missing-id", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/archive/missing-id/analysis", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchive_Unconfigured(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config, deps *Deps) {
		deps.Archive = nil
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/archive", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
