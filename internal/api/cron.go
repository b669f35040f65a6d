package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/strzhao/ai-news/internal/digest"
	"github.com/strzhao/ai-news/internal/logger"
)

// handleCronDigest runs the digest pipeline on demand. The scheduler
// authenticates with the cron secret; a manual token is accepted as a
// fallback for ad-hoc triggers. With neither configured the endpoint is
// open, which is only sensible for local runs.
func (s *Server) handleCronDigest(c *gin.Context) {
	if !s.authorizeCron(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if s.deps.Runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "digest runner not configured"})
		return
	}

	startedAt := s.now().UTC()
	opts := digest.Options{
		Date:      c.Query("date"),
		SyncFlomo: c.Query("sync_flomo") != "false",
	}

	result, err := s.deps.Runner.Run(c.Request.Context(), opts)
	elapsed := s.now().UTC().Sub(startedAt)
	if s.deps.Metrics != nil {
		s.deps.Metrics.DigestRuns.WithLabelValues(strconv.Itoa(result.ExitCode)).Inc()
		s.deps.Metrics.DigestDuration.Observe(elapsed.Seconds())
		s.deps.Metrics.Highlights.Observe(float64(len(result.Digest.Highlights)))
	}

	body := gin.H{
		"ok":          result.ExitCode == digest.ExitOK,
		"run_id":      result.RunID,
		"exit_code":   result.ExitCode,
		"report_date": result.ReportDate,
		"started_at":  startedAt.Format(time.RFC3339),
		"elapsed_ms":  elapsed.Milliseconds(),
	}
	if result.DigestID != "" {
		body["digest_id"] = result.DigestID
	}
	if err != nil {
		s.log.Error("digest run failed",
			logger.Int("exit_code", result.ExitCode), logger.Error(err))
		body["error"] = err.Error()
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	s.log.Info("digest run finished",
		logger.String("report_date", result.ReportDate),
		logger.Duration("elapsed", elapsed))
	c.JSON(http.StatusOK, body)
}

func (s *Server) authorizeCron(c *gin.Context) bool {
	cronSecret := s.cfg.Server.CronSecret
	manualToken := s.cfg.Server.ManualToken
	if cronSecret == "" && manualToken == "" {
		return true
	}

	presented := bearerToken(c.GetHeader("Authorization"))
	if presented == "" {
		presented = c.Query("token")
	}
	if cronSecret != "" && secureEqual(presented, cronSecret) {
		return true
	}
	if manualToken != "" && secureEqual(presented, manualToken) {
		return true
	}
	return false
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
