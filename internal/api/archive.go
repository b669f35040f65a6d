package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultArchiveDays   = 14
	defaultArchivePerDay = 10
)

func (s *Server) handleArchiveList(c *gin.Context) {
	if s.deps.Archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive not configured"})
		return
	}
	days := queryInt(c, "days", defaultArchiveDays)
	limit := queryInt(c, "limit", defaultArchivePerDay)

	groups, err := s.deps.Archive.List(c.Request.Context(), days, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list archive"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"days":         days,
		"generated_at": s.now().UTC().Format(time.RFC3339),
		"dates":        groups,
	})
}

func (s *Server) handleArchiveGet(c *gin.Context) {
	if s.deps.Archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive not configured"})
		return
	}
	entry, err := s.deps.Archive.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read archive entry"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "digest not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleArchiveAnalysis(c *gin.Context) {
	if s.deps.Archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive not configured"})
		return
	}
	analysis, err := s.deps.Archive.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read analysis"})
		return
	}
	if analysis == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	c.JSON(http.StatusOK, analysis)
}
