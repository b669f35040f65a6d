// Package config loads the digest configuration from YAML with environment
// variable overrides. A .env file, when present, is loaded before overrides
// are applied so local runs and deployed runs resolve settings the same way.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/strzhao/ai-news/internal/domain"
	"github.com/strzhao/ai-news/internal/logger"
	"github.com/strzhao/ai-news/internal/process"
)

// Default tunables. Every value can be overridden in YAML or by env.
const (
	defaultTopN              = 32
	defaultTimezone          = "Asia/Shanghai"
	defaultOutputDir         = "reports"
	defaultFetchTimeout      = 20 * time.Second
	defaultMaxEvalArticles   = 120
	defaultFetchBudget       = 60
	defaultMinFetchPerSource = 3
	defaultExplorationRatio  = 0.15

	defaultTitleSimilarityThreshold = 0.93

	defaultMinHighlightScore      = 62.0
	defaultMinWorthReadingScore   = 58.0
	defaultMinHighlightConfidence = 0.55
	defaultDynamicPercentile      = 70.0
	defaultSelectionRatio         = 1.0
	defaultHighlightMinCount      = 8
	defaultMaxInfoDupPerDigest    = 2

	defaultLookbackDays  = 90
	defaultHalfLifeDays  = 21.0
	defaultTypeBlend     = 0.2
	defaultQualityGuard  = 8.0
	defaultMinMultiplier = 0.85
	defaultMaxMultiplier = 1.2

	defaultCacheDBPath  = ".cache/ai-news/article_eval.sqlite3"
	defaultCacheMaxRows = 5000

	defaultServerPort = 8080
)

// Config is the full application configuration, threaded explicitly into
// each pipeline stage.
type Config struct {
	Logging      logger.Config         `yaml:"logging"`
	LLM          LLMConfig             `yaml:"llm"`
	Fetch        FetchConfig           `yaml:"fetch"`
	Scoring      process.ScoringConfig `yaml:"scoring"`
	Selection    SelectionConfig       `yaml:"selection"`
	Personalize  PersonalizeConfig     `yaml:"personalization"`
	Cache        CacheConfig           `yaml:"cache"`
	Redis        RedisConfig           `yaml:"redis"`
	Tracker      TrackerConfig         `yaml:"tracker"`
	Flomo        FlomoConfig           `yaml:"flomo"`
	Server       ServerConfig          `yaml:"server"`
	Digest       DigestConfig          `yaml:"digest"`
	ArticleTypes []string              `yaml:"article_types"`
	Sources      []domain.SourceConfig `yaml:"sources"`
	SourcesFile  string                `yaml:"sources_file"`
}

// LLMConfig configures the chat-completions endpoint used for evaluation
// and summarization. The endpoint is OpenAI wire compatible.
type LLMConfig struct {
	APIKey        string `env:"DEEPSEEK_API_KEY" yaml:"api_key"`
	Model         string `env:"DEEPSEEK_MODEL" yaml:"model"`
	BaseURL       string `env:"DEEPSEEK_BASE_URL" yaml:"base_url"`
	PromptVersion string `env:"AI_EVAL_PROMPT_VERSION" yaml:"prompt_version"`
	MaxRetries    int    `env:"AI_EVAL_MAX_RETRIES" yaml:"max_retries"`
	TimeoutSecs   int    `yaml:"timeout_seconds"`
}

// FetchConfig controls feed fetching and the per-source budget allocator.
type FetchConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxEvalArticles  int           `env:"MAX_EVAL_ARTICLES" yaml:"max_eval_articles"`
	TotalBudget      int           `env:"SOURCE_FETCH_BUDGET" yaml:"total_budget"`
	MinPerSource     int           `env:"MIN_FETCH_PER_SOURCE" yaml:"min_per_source"`
	ExplorationRatio float64       `env:"EXPLORATION_RATIO" yaml:"exploration_ratio"`
	TitleSimilarity  float64       `yaml:"title_similarity_threshold"`
}

// SelectionConfig controls the highlight gate.
type SelectionConfig struct {
	TopN              int     `yaml:"top_n"`
	MinHighlightScore float64 `env:"MIN_HIGHLIGHT_SCORE" yaml:"min_highlight_score"`
	MinWorthReading   float64 `env:"MIN_WORTH_READING_SCORE" yaml:"min_worth_reading_score"`
	MinConfidence     float64 `env:"MIN_HIGHLIGHT_CONFIDENCE" yaml:"min_confidence"`
	DynamicPercentile float64 `env:"HIGHLIGHT_DYNAMIC_PERCENTILE" yaml:"dynamic_percentile"`
	SelectionRatio    float64 `env:"HIGHLIGHT_SELECTION_RATIO" yaml:"selection_ratio"`
	MinCount          int     `env:"HIGHLIGHT_MIN_COUNT" yaml:"min_count"`
	MaxInfoDup        int     `env:"MAX_INFO_DUP_PER_DIGEST" yaml:"max_info_dup"`
}

// PersonalizeConfig controls click-behavior and type-preference weighting.
type PersonalizeConfig struct {
	Enabled           bool    `env:"PERSONALIZATION_ENABLED" yaml:"enabled"`
	TypeEnabled       bool    `env:"TYPE_PERSONALIZATION_ENABLED" yaml:"type_enabled"`
	LookbackDays      int     `env:"PERSONALIZATION_LOOKBACK_DAYS" yaml:"lookback_days"`
	HalfLifeDays      float64 `env:"PERSONALIZATION_HALF_LIFE_DAYS" yaml:"half_life_days"`
	MinMultiplier     float64 `env:"PERSONALIZATION_MIN_MULTIPLIER" yaml:"min_multiplier"`
	MaxMultiplier     float64 `env:"PERSONALIZATION_MAX_MULTIPLIER" yaml:"max_multiplier"`
	TypeBlend         float64 `env:"TYPE_PERSONALIZATION_BLEND" yaml:"type_blend"`
	QualityGapGuard   float64 `env:"TYPE_PERSONALIZATION_QUALITY_GAP_GUARD" yaml:"quality_gap_guard"`
	TypeMinMultiplier float64 `env:"TYPE_PERSONALIZATION_MIN_MULTIPLIER" yaml:"type_min_multiplier"`
	TypeMaxMultiplier float64 `env:"TYPE_PERSONALIZATION_MAX_MULTIPLIER" yaml:"type_max_multiplier"`
}

// CacheConfig configures the SQLite evaluation cache.
type CacheConfig struct {
	DBPath  string `env:"AI_EVAL_CACHE_DB" yaml:"db_path"`
	MaxRows int    `yaml:"max_rows"`
}

// RedisConfig configures the click-counter and archive store.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" yaml:"addr"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB" yaml:"db"`
}

// TrackerConfig configures signed click-tracking URLs and the stats API.
type TrackerConfig struct {
	BaseURL       string `env:"TRACKER_BASE_URL" yaml:"base_url"`
	SigningSecret string `env:"TRACKER_SIGNING_SECRET" yaml:"signing_secret"`
	APIToken      string `env:"TRACKER_API_TOKEN" yaml:"api_token"`
}

// FlomoConfig configures the digest webhook.
type FlomoConfig struct {
	APIURL       string `env:"FLOMO_API_URL" yaml:"api_url"`
	APIToken     string `env:"FLOMO_API_TOKEN" yaml:"api_token"`
	TokenHeader  string `env:"FLOMO_TOKEN_HEADER" yaml:"token_header"`
	TokenPrefix  string `env:"FLOMO_TOKEN_PREFIX" yaml:"token_prefix"`
	ContentField string `env:"FLOMO_CONTENT_FIELD" yaml:"content_field"`
	DedupeField  string `env:"FLOMO_DEDUPE_FIELD" yaml:"dedupe_field"`
}

// ServerConfig configures the HTTP server and cron trigger.
type ServerConfig struct {
	Port         int    `env:"SERVER_PORT" yaml:"port"`
	CronSecret   string `env:"CRON_SECRET" yaml:"cron_secret"`
	ManualToken  string `env:"DIGEST_MANUAL_TOKEN" yaml:"manual_token"`
	CronSchedule string `env:"DIGEST_CRON_SCHEDULE" yaml:"cron_schedule"`
}

// DigestConfig holds run-level settings shared by CLI and cron trigger.
type DigestConfig struct {
	Timezone  string `env:"DIGEST_TIMEZONE" yaml:"timezone"`
	OutputDir string `env:"DIGEST_OUTPUT_DIR" yaml:"output_dir"`
}

// Load reads the YAML file at path (optional), loads .env files, applies
// defaults, and applies environment overrides. Env always wins.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	var cfg Config
	// Personalization defaults to on; YAML or env can switch it off.
	cfg.Personalize.Enabled = true
	cfg.Personalize.TypeEnabled = true

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.setDefaults()
	applyEnvOverrides(&cfg)

	if cfg.SourcesFile != "" && len(cfg.Sources) == 0 {
		sources, err := LoadSources(cfg.SourcesFile)
		if err != nil {
			return nil, err
		}
		cfg.Sources = sources
	}

	return &cfg, nil
}

// LoadSources reads the feed source list from its own YAML file.
func LoadSources(path string) ([]domain.SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}

	var doc struct {
		Sources []domain.SourceConfig `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	rsshubBase := strings.TrimRight(os.Getenv("RSSHUB_BASE_URL"), "/")
	sources := make([]domain.SourceConfig, 0, len(doc.Sources))
	for _, source := range doc.Sources {
		if source.URL == "" && source.RSSHubRoute != "" {
			// RSSHub routes only work when a base instance is configured;
			// without one the source is skipped rather than failing the run.
			if rsshubBase == "" {
				continue
			}
			source.URL = rsshubBase + "/" + strings.TrimLeft(source.RSSHubRoute, "/")
		}
		if source.URL == "" {
			continue
		}
		if source.Weight == 0 {
			source.Weight = 1.0
		}
		sources = append(sources, source)
	}

	return sources, nil
}

// loadEnvFiles loads .env.local then .env; missing files are not an error.
func loadEnvFiles() {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
		return
	}
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
}

func (c *Config) setDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = "deepseek-chat"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.deepseek.com"
	}
	if c.LLM.PromptVersion == "" {
		c.LLM.PromptVersion = "v7"
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 2
	}
	if c.LLM.TimeoutSecs == 0 {
		c.LLM.TimeoutSecs = 45
	}

	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = defaultFetchTimeout
	}
	if c.Fetch.MaxEvalArticles == 0 {
		c.Fetch.MaxEvalArticles = defaultMaxEvalArticles
	}
	if c.Fetch.TotalBudget == 0 {
		c.Fetch.TotalBudget = defaultFetchBudget
	}
	if c.Fetch.MinPerSource == 0 {
		c.Fetch.MinPerSource = defaultMinFetchPerSource
	}
	if c.Fetch.ExplorationRatio == 0 {
		c.Fetch.ExplorationRatio = defaultExplorationRatio
	}
	if c.Fetch.TitleSimilarity == 0 {
		c.Fetch.TitleSimilarity = defaultTitleSimilarityThreshold
	}

	if c.Selection.TopN == 0 {
		c.Selection.TopN = defaultTopN
	}
	if c.Selection.MinHighlightScore == 0 {
		c.Selection.MinHighlightScore = defaultMinHighlightScore
	}
	if c.Selection.MinWorthReading == 0 {
		c.Selection.MinWorthReading = defaultMinWorthReadingScore
	}
	if c.Selection.MinConfidence == 0 {
		c.Selection.MinConfidence = defaultMinHighlightConfidence
	}
	if c.Selection.DynamicPercentile == 0 {
		c.Selection.DynamicPercentile = defaultDynamicPercentile
	}
	if c.Selection.SelectionRatio == 0 {
		c.Selection.SelectionRatio = defaultSelectionRatio
	}
	if c.Selection.MinCount == 0 {
		c.Selection.MinCount = defaultHighlightMinCount
	}
	if c.Selection.MaxInfoDup == 0 {
		c.Selection.MaxInfoDup = defaultMaxInfoDupPerDigest
	}

	if c.Personalize.LookbackDays == 0 {
		c.Personalize.LookbackDays = defaultLookbackDays
	}
	if c.Personalize.HalfLifeDays == 0 {
		c.Personalize.HalfLifeDays = defaultHalfLifeDays
	}
	if c.Personalize.MinMultiplier == 0 {
		c.Personalize.MinMultiplier = defaultMinMultiplier
	}
	if c.Personalize.MaxMultiplier == 0 {
		c.Personalize.MaxMultiplier = defaultMaxMultiplier
	}
	if c.Personalize.TypeBlend == 0 {
		c.Personalize.TypeBlend = defaultTypeBlend
	}
	if c.Personalize.QualityGapGuard == 0 {
		c.Personalize.QualityGapGuard = defaultQualityGuard
	}
	if c.Personalize.TypeMinMultiplier == 0 {
		c.Personalize.TypeMinMultiplier = 0.9
	}
	if c.Personalize.TypeMaxMultiplier == 0 {
		c.Personalize.TypeMaxMultiplier = 1.15
	}

	if c.Cache.DBPath == "" {
		c.Cache.DBPath = defaultCacheDBPath
	}
	if c.Cache.MaxRows == 0 {
		c.Cache.MaxRows = defaultCacheMaxRows
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Flomo.TokenHeader == "" {
		c.Flomo.TokenHeader = "Authorization"
	}
	if c.Flomo.TokenPrefix == "" {
		c.Flomo.TokenPrefix = "Bearer"
	}
	if c.Flomo.ContentField == "" {
		c.Flomo.ContentField = "content"
	}

	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}

	if c.Digest.Timezone == "" {
		c.Digest.Timezone = defaultTimezone
	}
	if c.Digest.OutputDir == "" {
		c.Digest.OutputDir = defaultOutputDir
	}

	if len(c.ArticleTypes) == 0 {
		c.ArticleTypes = []string{
			"model_release", "engineering_practice", "tooling", "research",
			"industry_news", "opinion", "tutorial", "other",
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
