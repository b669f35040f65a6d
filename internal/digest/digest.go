// Package digest orchestrates a full pipeline run: fetch, normalize,
// dedupe, evaluate, summarize, gate, personalize, render, and archive.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strzhao/ai-news/internal/analysis"
	"github.com/strzhao/ai-news/internal/archive"
	"github.com/strzhao/ai-news/internal/cache"
	"github.com/strzhao/ai-news/internal/config"
	"github.com/strzhao/ai-news/internal/domain"
	"github.com/strzhao/ai-news/internal/feed"
	"github.com/strzhao/ai-news/internal/llm"
	"github.com/strzhao/ai-news/internal/logger"
	"github.com/strzhao/ai-news/internal/output"
	"github.com/strzhao/ai-news/internal/personalize"
	"github.com/strzhao/ai-news/internal/process"
	"github.com/strzhao/ai-news/internal/quality"
	"github.com/strzhao/ai-news/internal/tracking"
)

// Exit codes of a digest run. Non-zero codes identify which stage made the
// run unusable.
const (
	ExitOK               = 0
	ExitConfigError      = 2
	ExitNoArticles       = 3
	ExitNoAssessments    = 4
	ExitSummarizerFailed = 5
	ExitNoHighlights     = 6
)

// Fetcher pulls articles for the configured sources.
type Fetcher interface {
	FetchArticles(ctx context.Context, sources []domain.SourceConfig, limits map[string]int) []domain.Article
}

// Evaluator scores articles.
type Evaluator interface {
	EvaluateArticles(ctx context.Context, articles []domain.Article) (map[string]domain.ArticleAssessment, error)
}

// Summarizer produces the digest overview, highlights, and tags.
type Summarizer interface {
	BuildDigestContent(ctx context.Context, articles []domain.Article, date, timezoneName string, topN int,
		assessments map[string]domain.ArticleAssessment, sourceScores map[string]domain.SourceQualityScore) (llm.DigestContent, error)
}

// StatsSource provides click history for personalization.
type StatsSource interface {
	Enabled() bool
	SourceDailyClicks(ctx context.Context, days int) (personalize.DailyClicks, error)
	TypeDailyClicks(ctx context.Context, days int) (personalize.DailyClicks, error)
}

// Archiver persists rendered digests and analyses.
type Archiver interface {
	SaveDigest(ctx context.Context, entry archive.Entry) error
	SaveAnalysis(ctx context.Context, a archive.Analysis) error
}

// FlomoSender posts the digest memo to the webhook.
type FlomoSender interface {
	Send(ctx context.Context, payload domain.FlomoPayload) error
}

// Runner wires the pipeline stages together.
type Runner struct {
	cfg        *config.Config
	log        logger.Logger
	store      *cache.Store
	fetcher    Fetcher
	evaluator  Evaluator
	summarizer Summarizer
	stats      StatsSource
	archiver   Archiver
	flomo      FlomoSender
	aiAdvisor  llm.ChatClient
	now        func() time.Time
}

// RunnerDeps bundles the Runner's collaborators. Stats, Archiver, Flomo,
// and AIAdvisor are optional; a nil value disables that concern.
type RunnerDeps struct {
	Store      *cache.Store
	Fetcher    Fetcher
	Evaluator  Evaluator
	Summarizer Summarizer
	Stats      StatsSource
	Archiver   Archiver
	Flomo      FlomoSender
	AIAdvisor  llm.ChatClient
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, deps RunnerDeps, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		log:        log,
		store:      deps.Store,
		fetcher:    deps.Fetcher,
		evaluator:  deps.Evaluator,
		summarizer: deps.Summarizer,
		stats:      deps.Stats,
		archiver:   deps.Archiver,
		flomo:      deps.Flomo,
		aiAdvisor:  deps.AIAdvisor,
		now:        time.Now,
	}
}

// Options carries per-run overrides on top of the configuration.
type Options struct {
	Date      string // YYYY-MM-DD; empty means today in the run timezone
	Timezone  string
	TopN      int
	OutputDir string
	SyncFlomo bool
}

// Result reports what a run produced.
type Result struct {
	ExitCode     int
	RunID        string
	ReportDate   string
	DigestID     string
	MarkdownPath string
	AnalysisPath string
	Digest       domain.DailyDigest
	Analysis     analysis.Analysis
}

// Run executes the full pipeline. The returned error describes the failure
// behind a non-zero exit code; outputs written before a late failure are
// kept.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	tzName := opts.Timezone
	if tzName == "" {
		tzName = r.cfg.Digest.Timezone
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = r.cfg.Selection.TopN
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = r.cfg.Digest.OutputDir
	}

	runID := uuid.NewString()
	reportDate, err := r.targetDate(opts.Date, tzName)
	if err != nil {
		return Result{ExitCode: ExitConfigError, RunID: runID}, err
	}
	result := Result{ExitCode: ExitOK, RunID: runID, ReportDate: reportDate}
	log := r.log.With(logger.String("run_id", runID), logger.String("report_date", reportDate))
	log.Info("digest run started", logger.String("timezone", tzName), logger.Int("top_n", topN))

	historicalScores, err := r.store.LoadSourceScores()
	if err != nil {
		log.Warn("failed to load historical source scores", logger.Error(err))
		historicalScores = map[string]domain.SourceQualityScore{}
	}

	behaviorMultipliers, typeMultipliers, preferredSources := r.loadPersonalization(ctx)

	// Per-source fetch budgeting.
	prioritized := quality.RankSourcesByPriority(r.cfg.Sources, historicalScores, behaviorMultipliers)
	limits := quality.BuildSourceFetchLimits(prioritized)
	limits = quality.BuildBudgetedSourceLimits(
		prioritized, limits,
		r.cfg.Fetch.TotalBudget, r.cfg.Fetch.MinPerSource,
		preferredSources, historicalScores, r.cfg.Fetch.ExplorationRatio,
	)

	fetched := r.fetcher.FetchArticles(ctx, prioritized, limits)
	normalized := process.NormalizeArticles(fetched)
	deduped, dedupeStats := process.DedupeArticles(normalized, r.cfg.Fetch.TitleSimilarity)
	deduped = process.SortByPublishedDesc(deduped)

	var capSkipped []domain.Article
	if len(deduped) > r.cfg.Fetch.MaxEvalArticles {
		capSkipped = deduped[r.cfg.Fetch.MaxEvalArticles:]
		deduped = deduped[:r.cfg.Fetch.MaxEvalArticles]
	}
	log.Info("pipeline intake",
		logger.Int("sources", len(prioritized)),
		logger.Int("fetched", len(fetched)),
		logger.Int("normalized", len(normalized)),
		logger.Int("deduped", len(deduped)),
		logger.Int("eval_cap_skipped", len(capSkipped)))

	if len(deduped) == 0 {
		result.ExitCode = ExitNoArticles
		return result, fmt.Errorf("no usable articles after fetch and dedupe")
	}

	assessments, err := r.evaluator.EvaluateArticles(ctx, deduped)
	if err != nil {
		result.ExitCode = ExitNoAssessments
		return result, fmt.Errorf("evaluate articles: %w", err)
	}
	if len(assessments) == 0 {
		result.ExitCode = ExitNoAssessments
		return result, fmt.Errorf("article evaluation produced no results")
	}

	sourceScoreList := quality.ComputeSourceQualityScores(deduped, assessments, historicalScores, r.now().UTC())
	if err := r.store.UpsertSourceScores(sourceScoreList); err != nil {
		log.Warn("failed to persist source scores", logger.Error(err))
	}
	sourceScores := make(map[string]domain.SourceQualityScore, len(sourceScoreList))
	for _, score := range sourceScoreList {
		sourceScores[score.SourceID] = score
	}

	content, err := r.summarizer.BuildDigestContent(ctx, deduped, reportDate, tzName, topN, assessments, sourceScores)
	if err != nil {
		result.ExitCode = ExitSummarizerFailed
		return result, fmt.Errorf("build digest content: %w", err)
	}

	// Highlight gating and guarded personalization reorder.
	gateCfg := process.GateConfig{
		TopN:              topN,
		MinHighlightScore: r.cfg.Selection.MinHighlightScore,
		MinWorthReading:   r.cfg.Selection.MinWorthReading,
		MinConfidence:     r.cfg.Selection.MinConfidence,
		DynamicPercentile: r.cfg.Selection.DynamicPercentile,
		SelectionRatio:    r.cfg.Selection.SelectionRatio,
		MinCount:          r.cfg.Selection.MinCount,
		MaxInfoDup:        r.cfg.Selection.MaxInfoDup,
	}
	gateStats := process.GateStats{}
	effective, dynamic, poolSize := process.EffectiveThreshold(assessments, gateCfg)
	gateStats.EffectiveThreshold = effective
	gateStats.DynamicThreshold = dynamic
	selectionCap := process.HighlightCap(poolSize, topN, gateCfg.SelectionRatio, gateCfg.MinCount)
	gateStats.SelectionCap = selectionCap
	log.Info("highlight gating",
		logger.Float64("effective_threshold", effective),
		logger.Float64("dynamic_threshold", dynamic),
		logger.Int("selection_cap", selectionCap))

	articleMap := make(map[string]domain.Article, len(deduped))
	for _, article := range deduped {
		articleMap[article.ID] = article
	}
	mustRead, worthReading := process.FilterCandidates(content.Highlights, articleMap, assessments, gateCfg, effective, &gateStats)

	blend := r.cfg.Personalize.TypeBlend
	guard := r.cfg.Personalize.QualityGapGuard
	mustRead, mustReadMoved := personalize.ReorderByTypePreference(mustRead, typeMultipliers, blend, guard)
	worthReading, worthReadingMoved := personalize.ReorderByTypePreference(worthReading, typeMultipliers, blend, guard)
	if len(typeMultipliers) > 0 {
		log.Info("type personalization reorder",
			logger.Int("must_read_moved", mustReadMoved),
			logger.Int("worth_reading_moved", worthReadingMoved))
	}

	highlights := process.SelectHighlights(mustRead, worthReading, selectionCap, gateCfg.MaxInfoDup, &gateStats)

	digest := domain.DailyDigest{
		Date:       reportDate,
		Timezone:   tzName,
		TopSummary: content.TopSummary,
		Highlights: highlights,
		DailyTags:  content.DailyTags,
	}
	result.Digest = digest

	// Rendering and delivery. Tracking links carry the output channel.
	trackerURL := func(channel string) output.LinkResolver {
		builder := tracking.NewBuilder(r.cfg.Tracker.BaseURL, r.cfg.Tracker.SigningSecret, channel)
		return func(article domain.ScoredArticle) string {
			return builder.TrackingURL(tracking.ClickParams{
				TargetURL:   article.URL,
				SourceID:    article.SourceID,
				ArticleID:   article.ID,
				DigestDate:  reportDate,
				PrimaryType: article.PrimaryType,
			})
		}
	}

	markdown := output.RenderDigestMarkdown(digest, trackerURL("markdown"))
	markdownPath, err := output.WriteDigestMarkdown(markdown, reportDate, outputDir)
	if err != nil {
		return result, err
	}
	result.MarkdownPath = markdownPath
	log.Info("digest report generated", logger.String("path", markdownPath))

	if opts.SyncFlomo && r.flomo != nil {
		payload := output.BuildFlomoPayload(digest, trackerURL("flomo"))
		if err := r.flomo.Send(ctx, payload); err != nil {
			log.Warn("flomo sync failed", logger.Error(err))
		}
	}

	generatedAt := r.now().UTC().Format(time.RFC3339)
	runAnalysis := r.buildAnalysis(ctx, analysisInputs{
		reportDate:        reportDate,
		tzName:            tzName,
		generatedAt:       generatedAt,
		sourceCount:       len(prioritized),
		fetched:           fetched,
		normalized:        normalized,
		deduped:           deduped,
		capSkipped:        capSkipped,
		assessments:       assessments,
		dedupeStats:       dedupeStats,
		gateCfg:           gateCfg,
		gateStats:         gateStats,
		selected:          highlights,
		sourceScores:      sourceScores,
		behaviorWeights:   behaviorMultipliers,
		typeWeights:       typeMultipliers,
		mustReadMoved:     mustReadMoved,
		worthReadingMoved: worthReadingMoved,
	})
	result.Analysis = runAnalysis

	analysisMarkdown := analysis.RenderMarkdown(runAnalysis)
	analysisPath, err := output.WriteAnalysisMarkdown(analysisMarkdown, reportDate, outputDir)
	if err != nil {
		log.Warn("failed to write analysis report", logger.Error(err))
	} else {
		result.AnalysisPath = analysisPath
	}

	result.DigestID = r.archiveRun(ctx, digest, markdown, generatedAt, runAnalysis, analysisMarkdown)

	if len(highlights) == 0 {
		result.ExitCode = ExitNoHighlights
		return result, fmt.Errorf("no highlight articles survived the gate")
	}
	return result, nil
}

// targetDate resolves the report date, defaulting to today in tz.
func (r *Runner) targetDate(date, tzName string) (string, error) {
	if date != "" {
		return date, nil
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return "", fmt.Errorf("load timezone %s: %w", tzName, err)
	}
	return r.now().In(loc).Format("2006-01-02"), nil
}

// loadPersonalization fetches click history and converts it to multipliers.
// Any failure degrades to static priorities rather than failing the run.
func (r *Runner) loadPersonalization(ctx context.Context) (behavior, typePrefs map[string]float64, preferred map[string]bool) {
	behavior = map[string]float64{}
	typePrefs = map[string]float64{}
	preferred = map[string]bool{}
	if r.stats == nil || !r.stats.Enabled() {
		return behavior, typePrefs, preferred
	}
	pcfg := r.cfg.Personalize
	nowUTC := r.now().UTC()

	if pcfg.Enabled {
		sourceClicks, err := r.stats.SourceDailyClicks(ctx, pcfg.LookbackDays)
		if err != nil {
			r.log.Warn("failed to load tracker source stats, using static source priority", logger.Error(err))
		} else {
			behavior = personalize.ComputeMultipliers(sourceClicks, personalize.MultiplierConfig{
				LookbackDays:  pcfg.LookbackDays,
				HalfLifeDays:  pcfg.HalfLifeDays,
				MinMultiplier: pcfg.MinMultiplier,
				MaxMultiplier: pcfg.MaxMultiplier,
			}, nowUTC)
			preferred = personalize.SelectPreferredSources(sourceClicks, 2, 0.3)
			r.log.Info("behavior personalization enabled",
				logger.Int("click_sources", len(sourceClicks)),
				logger.Int("behavior_weights", len(behavior)),
				logger.Int("preferred_sources", len(preferred)))
		}
	}

	if pcfg.TypeEnabled {
		typeClicks, err := r.stats.TypeDailyClicks(ctx, pcfg.LookbackDays)
		if err != nil {
			r.log.Warn("failed to load tracker type stats, using baseline ranking", logger.Error(err))
		} else {
			typePrefs = personalize.ComputeMultipliers(typeClicks, personalize.MultiplierConfig{
				LookbackDays:  pcfg.LookbackDays,
				HalfLifeDays:  pcfg.HalfLifeDays,
				MinMultiplier: pcfg.TypeMinMultiplier,
				MaxMultiplier: pcfg.TypeMaxMultiplier,
			}, nowUTC)
			r.log.Info("type personalization enabled",
				logger.Int("click_types", len(typeClicks)),
				logger.Int("type_weights", len(typePrefs)))
		}
	}
	return behavior, typePrefs, preferred
}

type analysisInputs struct {
	reportDate        string
	tzName            string
	generatedAt       string
	sourceCount       int
	fetched           []domain.Article
	normalized        []domain.Article
	deduped           []domain.Article
	capSkipped        []domain.Article
	assessments       map[string]domain.ArticleAssessment
	dedupeStats       process.DedupeStats
	gateCfg           process.GateConfig
	gateStats         process.GateStats
	selected          []domain.TaggedArticle
	sourceScores      map[string]domain.SourceQualityScore
	behaviorWeights   map[string]float64
	typeWeights       map[string]float64
	mustReadMoved     int
	worthReadingMoved int
}

func (r *Runner) buildAnalysis(ctx context.Context, in analysisInputs) analysis.Analysis {
	mix := analysis.SelectionMix{}
	for _, tagged := range in.selected {
		switch tagged.Article.Worth {
		case domain.WorthMustRead:
			mix.MustRead++
		case domain.WorthWorthReading:
			mix.WorthReading++
		}
	}

	dropped := make([]analysis.DroppedItem, 0, len(in.dedupeStats.DroppedItems))
	for _, item := range in.dedupeStats.DroppedItems {
		dropped = append(dropped, analysis.DroppedItem{
			Reason:       item.Reason,
			Title:        item.Title,
			SourceID:     item.SourceID,
			URL:          item.URL,
			MatchedTitle: item.MatchedTitle,
			Similarity:   item.Similarity,
		})
	}
	skipped := make([]analysis.SkippedItem, 0, len(in.capSkipped))
	for _, article := range in.capSkipped {
		publishedAt := ""
		if article.PublishedAt != nil {
			publishedAt = article.PublishedAt.Format(time.RFC3339)
		}
		skipped = append(skipped, analysis.SkippedItem{
			Title:       article.Title,
			SourceID:    article.SourceID,
			PublishedAt: publishedAt,
			URL:         article.URL,
		})
	}

	runAnalysis := analysis.Build(analysis.Context{
		ReportDate:  in.reportDate,
		Timezone:    in.tzName,
		GeneratedAt: in.generatedAt,
		PipelineOverview: analysis.PipelineOverview{
			SourceCount:             in.sourceCount,
			FetchedCount:            len(in.fetched),
			NormalizedCount:         len(in.normalized),
			DedupedCount:            len(in.deduped),
			EvaluationPoolCount:     len(in.deduped),
			MaxEvalArticles:         r.cfg.Fetch.MaxEvalArticles,
			EvalCapSkippedCount:     len(in.capSkipped),
			EvaluatedCount:          len(in.assessments),
			SelectedHighlightsCount: len(in.selected),
		},
		Assessments: in.assessments,
		SelectionGates: analysis.SelectionGates{
			Thresholds: analysis.Thresholds{
				MinHighlightScore:  in.gateCfg.MinHighlightScore,
				DynamicThreshold:   in.gateStats.DynamicThreshold,
				EffectiveThreshold: in.gateStats.EffectiveThreshold,
				MinConfidence:      in.gateCfg.MinConfidence,
				SelectionCap:       in.gateStats.SelectionCap,
			},
			GateSkips: analysis.GateSkips{
				SkippedWorth:       in.gateStats.SkippedWorth,
				LowConfidence:      in.gateStats.LowConfidence,
				BelowThreshold:     in.gateStats.BelowThreshold,
				RepeatLimitBlocked: in.gateStats.RepeatLimitBlocked,
			},
			SelectionMix: mix,
		},
		DedupeAndRepeat: analysis.DedupeAndRepeat{
			URLDuplicates:       in.dedupeStats.URLDuplicates,
			TitleDuplicates:     in.dedupeStats.TitleDuplicates,
			RepeatGuardEnabled:  true,
			MaxInfoDup:          in.gateCfg.MaxInfoDup,
			RepeatBlocked:       in.gateStats.RepeatLimitBlocked,
			EvalCapSkippedCount: len(in.capSkipped),
			DroppedItems:        dropped,
			DroppedItemsTotal:   len(dropped),
			EvalCapSkippedItems: skipped,
		},
		PersonalizationImpact: analysis.PersonalizationImpact{
			BehaviorSummary: map[string]any{
				"enabled": r.cfg.Personalize.Enabled,
				"weights": len(in.behaviorWeights),
			},
			TypeSummary: map[string]any{
				"enabled": r.cfg.Personalize.TypeEnabled,
				"weights": len(in.typeWeights),
			},
			ReorderImpact: map[string]any{
				"must_read_moved":     in.mustReadMoved,
				"worth_reading_moved": in.worthReadingMoved,
				"blend":               r.cfg.Personalize.TypeBlend,
				"quality_gap_guard":   r.cfg.Personalize.QualityGapGuard,
			},
		},
		SourceScores: in.sourceScores,
	})

	if r.aiAdvisor != nil {
		summary, actions := analysis.GenerateAIImprovement(ctx, r.aiAdvisor, runAnalysis)
		runAnalysis.ImprovementActions.AISummary = summary
		runAnalysis.ImprovementActions.AIActions = actions
	}
	return runAnalysis
}

// archiveRun persists the digest and its analysis; failures only warn.
func (r *Runner) archiveRun(ctx context.Context, digest domain.DailyDigest, markdown, generatedAt string, runAnalysis analysis.Analysis, analysisMarkdown string) string {
	if r.archiver == nil {
		return ""
	}

	digestID := archive.BuildDigestID(digest.Date, generatedAt, markdown)
	if err := r.archiver.SaveDigest(ctx, archive.Entry{
		DigestID:       digestID,
		Date:           digest.Date,
		GeneratedAt:    generatedAt,
		HighlightCount: len(digest.Highlights),
		HasHighlights:  len(digest.Highlights) > 0,
		SummaryPreview: digest.TopSummary,
		Markdown:       markdown,
	}); err != nil {
		r.log.Warn("failed to archive digest", logger.Error(err))
		return ""
	}

	analysisJSON := map[string]any{}
	if data, err := json.Marshal(runAnalysis); err == nil {
		_ = json.Unmarshal(data, &analysisJSON)
	}
	if err := r.archiver.SaveAnalysis(ctx, archive.Analysis{
		DigestID:         digestID,
		Date:             digest.Date,
		GeneratedAt:      generatedAt,
		AnalysisPreview:  runAnalysis.Preview(),
		AnalysisMarkdown: analysisMarkdown,
		AnalysisJSON:     analysisJSON,
	}); err != nil {
		r.log.Warn("failed to archive analysis", logger.Error(err))
	}
	return digestID
}
