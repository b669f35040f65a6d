// Package api exposes the HTTP surface: the click redirect, tracker stats,
// the digest archive, and the cron trigger.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/strzhao/ai-news/internal/archive"
	"github.com/strzhao/ai-news/internal/clicks"
	"github.com/strzhao/ai-news/internal/config"
	"github.com/strzhao/ai-news/internal/digest"
	"github.com/strzhao/ai-news/internal/logger"
	"github.com/strzhao/ai-news/internal/metrics"
	"github.com/strzhao/ai-news/internal/tracking"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 15 * time.Minute // the cron trigger runs a full pipeline inline
	defaultIdleTimeout  = 60 * time.Second
)

// DigestRunner triggers a pipeline run.
type DigestRunner interface {
	Run(ctx context.Context, opts digest.Options) (digest.Result, error)
}

// Deps bundles the server's collaborators. Recorder, Reader, Archive, and
// Metrics are optional.
type Deps struct {
	Runner   DigestRunner
	Signer   *tracking.Signer
	Recorder *clicks.Recorder
	Reader   *clicks.Reader
	Archive  *archive.Store
	Metrics  *metrics.Metrics
}

// Server is the HTTP server for the tracker and archive API.
type Server struct {
	cfg    *config.Config
	log    logger.Logger
	engine *gin.Engine
	deps   Deps
	now    func() time.Time
}

// NewServer builds the router and wraps it in a Server.
func NewServer(cfg *config.Config, deps Deps, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		log:    log,
		engine: engine,
		deps:   deps,
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() http.Handler { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealthz)

	s.engine.GET("/r", s.handleRedirect)
	s.engine.HEAD("/r", s.handleRedirect)

	apiGroup := s.engine.Group("/api")
	apiGroup.GET("/cron/digest", s.handleCronDigest)
	apiGroup.POST("/cron/digest", s.handleCronDigest)

	stats := apiGroup.Group("/stats", s.requireAPIToken)
	stats.GET("/sources", s.handleSourceStats)
	stats.GET("/types", s.handleTypeStats)

	apiGroup.GET("/archive", s.handleArchiveList)
	apiGroup.GET("/archive/:id", s.handleArchiveGet)
	apiGroup.GET("/archive/:id/analysis", s.handleArchiveAnalysis)

	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":  true,
		"now": s.now().UTC().Format(time.RFC3339),
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.engine,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
