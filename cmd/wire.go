package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strzhao/ai-news/internal/archive"
	"github.com/strzhao/ai-news/internal/cache"
	"github.com/strzhao/ai-news/internal/config"
	"github.com/strzhao/ai-news/internal/digest"
	"github.com/strzhao/ai-news/internal/feed"
	"github.com/strzhao/ai-news/internal/flomo"
	"github.com/strzhao/ai-news/internal/llm"
	"github.com/strzhao/ai-news/internal/logger"
	"github.com/strzhao/ai-news/internal/personalize"
)

const statsClientTimeout = 10 * time.Second

// loadConfig resolves the config file path and parses it. A missing
// --config flag falls back to ./config.yml when present.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yml"); err == nil {
			path = "config.yml"
		}
	}
	return config.Load(path)
}

// app holds everything a digest run needs, plus the handles the caller must
// close when done.
type app struct {
	cfg    *config.Config
	log    logger.Logger
	store  *cache.Store
	runner *digest.Runner
	rdb    *redis.Client
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// buildApp wires the pipeline from configuration. withRedis additionally
// connects the archive store, which only the server needs.
func buildApp(cfg *config.Config, withRedis bool) (*app, error) {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := cache.Open(cfg.Cache.DBPath)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("open evaluation cache: %w", err)
	}

	client, err := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		_ = store.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	evaluator := llm.NewEvaluator(client, store, llm.EvaluatorOptions{
		PromptVersion: cfg.LLM.PromptVersion,
		MaxRetries:    cfg.LLM.MaxRetries,
		ArticleTypes:  cfg.ArticleTypes,
	}, log)
	summarizer := llm.NewSummarizer(client)
	fetcher := feed.NewFetcher(cfg.Fetch.Timeout, log)
	stats := personalize.NewStatsClient(cfg.Tracker.BaseURL, cfg.Tracker.APIToken, statsClientTimeout)

	var flomoClient digest.FlomoSender
	fc, err := flomo.NewClient(flomo.Config{
		APIURL:       cfg.Flomo.APIURL,
		APIToken:     cfg.Flomo.APIToken,
		TokenHeader:  cfg.Flomo.TokenHeader,
		TokenPrefix:  cfg.Flomo.TokenPrefix,
		ContentField: cfg.Flomo.ContentField,
		DedupeField:  cfg.Flomo.DedupeField,
	}, log)
	switch {
	case err == nil:
		flomoClient = fc
	case errors.Is(err, flomo.ErrNotConfigured):
		log.Info("flomo sync disabled, webhook not configured")
	default:
		_ = store.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("init flomo client: %w", err)
	}

	a := &app{cfg: cfg, log: log, store: store}
	deps := digest.RunnerDeps{
		Store:      store,
		Fetcher:    fetcher,
		Evaluator:  evaluator,
		Summarizer: summarizer,
		Stats:      stats,
		Flomo:      flomoClient,
		AIAdvisor:  client,
	}

	if withRedis {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		deps.Archiver = archive.NewStore(a.rdb)
	}

	a.runner = digest.NewRunner(cfg, deps, log)
	return a, nil
}
