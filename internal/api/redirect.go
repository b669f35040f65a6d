package api

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/strzhao/ai-news/internal/clicks"
	"github.com/strzhao/ai-news/internal/logger"
	"github.com/strzhao/ai-news/internal/tracking"
)

var errMissingRedirectParams = gin.H{"error": "missing required parameters (u, sid, aid, d, ch)"}

var interstitialTmpl = template.Must(template.New("interstitial").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="2;url={{.Target}}">
<title>Redirecting…</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 18vh auto; max-width: 28rem; text-align: center; color: #333; }
a { color: #0969da; word-break: break-all; }
.hint { color: #888; font-size: .85rem; margin-top: 2rem; }
</style>
</head>
<body>
<p>Taking you to the article…</p>
<p><a href="{{.Target}}">{{.Target}}</a></p>
<p class="hint">You will be redirected automatically. If not, use the link above.</p>
</body>
</html>
`))

// handleRedirect validates a signed tracking link, counts the click, and
// forwards the reader to the article.
func (s *Server) handleRedirect(c *gin.Context) {
	params := tracking.ClickParams{
		TargetURL:   c.Query("u"),
		SourceID:    c.Query("sid"),
		ArticleID:   c.Query("aid"),
		DigestDate:  c.Query("d"),
		Channel:     c.Query("ch"),
		PrimaryType: c.Query("pt"),
	}
	if params.TargetURL == "" || params.SourceID == "" || params.ArticleID == "" ||
		params.DigestDate == "" || params.Channel == "" {
		c.JSON(http.StatusBadRequest, errMissingRedirectParams)
		return
	}

	target, ok := tracking.ParseRedirectTarget(params.TargetURL)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported redirect target"})
		return
	}

	if !s.deps.Signer.VerifyWithLegacyFallback(params.Values(), c.Query("sig")) {
		if s.deps.Recorder != nil {
			if err := s.deps.Recorder.RecordInvalidSignature(c.Request.Context()); err != nil {
				s.log.Warn("failed to count invalid signature", logger.Error(err))
			}
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.InvalidSignatures.Inc()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if clicks.ShouldSkipTracking(c.Request.Method, c.Request.UserAgent()) {
		if s.deps.Metrics != nil {
			s.deps.Metrics.BotRedirects.Inc()
		}
		c.Redirect(http.StatusFound, target)
		return
	}

	if s.deps.Recorder != nil {
		err := s.deps.Recorder.Record(c.Request.Context(), clicks.Click{
			TargetURL:   target,
			SourceID:    params.SourceID,
			PrimaryType: params.PrimaryType,
		})
		if err != nil {
			s.log.Warn("failed to record click",
				logger.String("source_id", params.SourceID), logger.Error(err))
		} else if s.deps.Metrics != nil {
			s.deps.Metrics.ClicksRecorded.WithLabelValues(params.Channel).Inc()
		}
	}

	if wantsHTML(c.GetHeader("Accept")) {
		c.Header("Cache-Control", "no-store")
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		_ = interstitialTmpl.Execute(c.Writer, gin.H{"Target": target})
		return
	}
	c.Redirect(http.StatusFound, target)
}

// wantsHTML reports whether the client is a browser expecting a page rather
// than a bare 302.
func wantsHTML(accept string) bool {
	return strings.Contains(accept, "text/html") ||
		strings.Contains(accept, "application/xhtml+xml")
}
