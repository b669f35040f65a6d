package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/strzhao/ai-news/internal/clicks"
)

const defaultStatsDays = 90

// requireAPIToken guards the stats endpoints with a bearer token. When no
// token is configured the endpoints stay open.
func (s *Server) requireAPIToken(c *gin.Context) {
	token := s.cfg.Tracker.APIToken
	if token == "" {
		c.Next()
		return
	}
	if bearerToken(c.GetHeader("Authorization")) != token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func (s *Server) handleSourceStats(c *gin.Context) {
	s.handleDailyStats(c, "source_id", func(days int) ([]clicks.DailyRow, error) {
		return s.deps.Reader.SourceDaily(c.Request.Context(), days)
	})
}

func (s *Server) handleTypeStats(c *gin.Context) {
	s.handleDailyStats(c, "primary_type", func(days int) ([]clicks.DailyRow, error) {
		return s.deps.Reader.TypeDaily(c.Request.Context(), days)
	})
}

func (s *Server) handleDailyStats(c *gin.Context, keyField string, fetch func(days int) ([]clicks.DailyRow, error)) {
	if s.deps.Reader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "click stats not configured"})
		return
	}
	days := queryInt(c, "days", defaultStatsDays)

	dailyRows, err := fetch(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read click stats"})
		return
	}

	rows := make([]gin.H, 0, len(dailyRows))
	for _, row := range dailyRows {
		rows = append(rows, gin.H{
			"date":   row.Date,
			keyField: row.Key,
			"clicks": row.Clicks,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"days":         days,
		"generated_at": s.now().UTC().Format(time.RFC3339),
		"rows":         rows,
	})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
