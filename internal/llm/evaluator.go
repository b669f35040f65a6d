package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/strzhao/ai-news/internal/cache"
	"github.com/strzhao/ai-news/internal/domain"
	"github.com/strzhao/ai-news/internal/logger"
)

const evaluatorSystemPrompt = `You are the AI editor-in-chief of an internet company. Judge whether each article materially helps the company, its teams, and individual engineers make progress on AI. The core question is reading ROI: will it lead to better decisions, execution, or capability within the next 7-30 days.
Weigh company_impact, team_impact, personal_impact, execution_clarity, and novelty. High-leverage mental models and decision frameworks may be must_read even without code, but vague opinions and marketing should be downgraded. Do not over-rate common-sense advice: if it only restates practices teams already follow, without new data, counterintuitive lessons, transferable frameworks, or failure postmortems, it is usually worth_reading. Easy-to-execute but low-information articles should not get a high reading_roi_score.
Spread the scores: 70+ is reserved for high-leverage content, 55-69 is ordinary worth_reading, below 55 is usually skip. must_read is strict: it needs explicit evidence signals (code, benchmark, deployment, case_study) or high-value methodology, and must significantly affect at least two of company, team, and personal.
Output JSON only, no explanation text. Fields: article_id, worth, reading_roi_score, company_impact, team_impact, personal_impact, execution_clarity, novelty, clarity_score, one_line_summary, reason_short, action_hint, best_for_roles, evidence_signals, confidence, primary_type, secondary_types.
worth must be one of: must_read, worth_reading, skip.
best_for_roles is a string array (e.g. manager, tech_lead, engineer, product).
evidence_signals is a string array (e.g. code, benchmark, deployment, cost, architecture, case_study, none).
primary_type must be chosen from this enum: %s.
secondary_types is a string array with at most 2 entries from the same enum, deduplicated against primary_type.
Keep one_line_summary to one short sentence and reason_short even shorter.`

// Evaluator scores articles one at a time with a read-through cache keyed on
// model, prompt version, URL, and content hash.
type Evaluator struct {
	client        ChatClient
	store         *cache.Store
	promptVersion string
	maxRetries    int
	articleTypes  []string
	sleep         func(time.Duration)
	log           logger.Logger
}

// EvaluatorOptions configures an Evaluator.
type EvaluatorOptions struct {
	PromptVersion string
	MaxRetries    int
	ArticleTypes  []string
}

// NewEvaluator creates an Evaluator. The article type enum always ends with
// "other" so an off-enum model answer has somewhere to land.
func NewEvaluator(client ChatClient, store *cache.Store, opts EvaluatorOptions, log logger.Logger) *Evaluator {
	if opts.PromptVersion == "" {
		opts.PromptVersion = "v7"
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if log == nil {
		log = logger.NewNop()
	}

	types := make([]string, 0, len(opts.ArticleTypes)+1)
	seen := map[string]bool{}
	for _, t := range opts.ArticleTypes {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	if !seen["other"] {
		types = append(types, "other")
	}

	return &Evaluator{
		client:        client,
		store:         store,
		promptVersion: opts.PromptVersion,
		maxRetries:    opts.MaxRetries,
		articleTypes:  types,
		sleep:         time.Sleep,
		log:           log,
	}
}

// EvaluateArticles returns assessments keyed by article ID. Articles whose
// evaluation keeps failing are omitted so downstream stages skip them.
func (e *Evaluator) EvaluateArticles(ctx context.Context, articles []domain.Article) (map[string]domain.ArticleAssessment, error) {
	assessments := make(map[string]domain.ArticleAssessment, len(articles))
	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return assessments, err
		}

		contentHash := cache.ContentHash(article.Title, article.Summary, article.LeadParagraph)
		cacheKey := cache.Key(e.client.Model(), e.promptVersion, article.URL, contentHash)

		if cached, err := e.store.GetAssessment(cacheKey); err != nil {
			e.log.Warn("assessment cache read failed", logger.String("article_id", article.ID), logger.Error(err))
		} else if cached != nil {
			assessments[article.ID] = *cached
			continue
		}

		assessment, err := e.evaluateWithRetries(ctx, article)
		if err != nil {
			e.log.Warn("article evaluation failed, skipping",
				logger.String("article_id", article.ID),
				logger.Error(err))
			continue
		}
		assessment.CacheKey = cacheKey

		if err := e.store.SetAssessment(cache.AssessmentRecord{
			CacheKey:      cacheKey,
			SourceID:      article.SourceID,
			ArticleID:     article.ID,
			ContentHash:   contentHash,
			ModelName:     e.client.Model(),
			PromptVersion: e.promptVersion,
		}, assessment); err != nil {
			e.log.Warn("assessment cache write failed", logger.String("article_id", article.ID), logger.Error(err))
		}
		assessments[article.ID] = assessment
	}

	if err := e.store.Prune(cache.DefaultMaxRows); err != nil {
		e.log.Warn("assessment cache prune failed", logger.Error(err))
	}
	return assessments, nil
}

func (e *Evaluator) evaluateWithRetries(ctx context.Context, article domain.Article) (domain.ArticleAssessment, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		assessment, err := e.evaluateArticle(ctx, article)
		if err == nil {
			return assessment, nil
		}
		lastErr = err
		if attempt < e.maxRetries {
			e.sleep(time.Duration(float64(attempt+1) * 0.35 * float64(time.Second)))
		}
	}
	return domain.ArticleAssessment{}, lastErr
}

func (e *Evaluator) evaluateArticle(ctx context.Context, article domain.Article) (domain.ArticleAssessment, error) {
	publishedAt := ""
	if article.PublishedAt != nil {
		publishedAt = article.PublishedAt.Format(time.RFC3339)
	}
	payload, err := json.Marshal(map[string]string{
		"article_id":     article.ID,
		"title":          article.Title,
		"published_at":   publishedAt,
		"summary":        article.Summary,
		"lead_paragraph": article.LeadParagraph,
	})
	if err != nil {
		return domain.ArticleAssessment{}, fmt.Errorf("encode evaluation payload: %w", err)
	}

	system := fmt.Sprintf(evaluatorSystemPrompt, strings.Join(e.articleTypes, ", "))

	var row rawAssessment
	if err := e.client.ChatJSON(ctx, system, string(payload), 0.1, &row); err != nil {
		return domain.ArticleAssessment{}, err
	}
	return e.parseAssessment(article.ID, row)
}

type rawAssessment struct {
	ArticleID       string          `json:"article_id"`
	Worth           string          `json:"worth"`
	ReadingROIScore json.RawMessage `json:"reading_roi_score"`
	QualityScore    json.RawMessage `json:"quality_score"`
	CompanyImpact   json.RawMessage `json:"company_impact"`
	TeamImpact      json.RawMessage `json:"team_impact"`
	PersonalImpact  json.RawMessage `json:"personal_impact"`
	ExecClarity     json.RawMessage `json:"execution_clarity"`
	Actionability   json.RawMessage `json:"actionability_score"`
	Novelty         json.RawMessage `json:"novelty"`
	NoveltyScore    json.RawMessage `json:"novelty_score"`
	ClarityScore    json.RawMessage `json:"clarity_score"`
	OneLineSummary  string          `json:"one_line_summary"`
	ReasonShort     string          `json:"reason_short"`
	ActionHint      string          `json:"action_hint"`
	BestForRoles    []string        `json:"best_for_roles"`
	EvidenceSignals []string        `json:"evidence_signals"`
	Confidence      json.RawMessage `json:"confidence"`
	PrimaryType     string          `json:"primary_type"`
	SecondaryTypes  []string        `json:"secondary_types"`
}

func (e *Evaluator) parseAssessment(articleID string, row rawAssessment) (domain.ArticleAssessment, error) {
	worth := domain.Worth(strings.TrimSpace(row.Worth))
	if !worth.Valid() {
		return domain.ArticleAssessment{}, fmt.Errorf("invalid worth label %q", row.Worth)
	}

	oneLine := strings.TrimSpace(row.OneLineSummary)
	if oneLine == "" {
		return domain.ArticleAssessment{}, fmt.Errorf("empty one_line_summary")
	}
	reason := strings.TrimSpace(row.ReasonShort)
	if reason == "" {
		return domain.ArticleAssessment{}, fmt.Errorf("empty reason_short")
	}

	qualityScore := pickScore(0, row.ReadingROIScore, row.QualityScore)
	companyImpact := pickScore(qualityScore, row.CompanyImpact)
	teamImpact := pickScore(qualityScore, row.TeamImpact)
	personalImpact := pickScore(qualityScore, row.PersonalImpact)
	execClarity := pickScore(qualityScore, row.ExecClarity, row.Actionability)

	allowed := make(map[string]bool, len(e.articleTypes))
	for _, t := range e.articleTypes {
		allowed[t] = true
	}
	primaryType := strings.TrimSpace(row.PrimaryType)
	if primaryType == "" || !allowed[primaryType] {
		primaryType = "other"
	}
	var secondaryTypes []string
	seen := map[string]bool{}
	for _, t := range row.SecondaryTypes {
		t = strings.TrimSpace(t)
		if t == "" || t == primaryType || !allowed[t] || seen[t] {
			continue
		}
		seen[t] = true
		secondaryTypes = append(secondaryTypes, t)
		if len(secondaryTypes) == 2 {
			break
		}
	}

	evidence := dedupeStrings(row.EvidenceSignals)
	if len(evidence) == 0 {
		evidence = []string{"none"}
	}

	id := strings.TrimSpace(row.ArticleID)
	if id == "" {
		id = articleID
	}

	return domain.ArticleAssessment{
		ArticleID:          id,
		Worth:              worth,
		QualityScore:       qualityScore,
		PracticalityScore:  (companyImpact + teamImpact + personalImpact) / 3,
		ActionabilityScore: execClarity,
		NoveltyScore:       pickScore(0, row.Novelty, row.NoveltyScore),
		ClarityScore:       pickScore(0, row.ClarityScore),
		OneLineSummary:     oneLine,
		ReasonShort:        reason,
		CompanyImpact:      companyImpact,
		TeamImpact:         teamImpact,
		PersonalImpact:     personalImpact,
		ExecutionClarity:   execClarity,
		ActionHint:         strings.TrimSpace(row.ActionHint),
		BestForRoles:       dedupeStrings(row.BestForRoles),
		EvidenceSignals:    evidence,
		Confidence:         coerceConfidence(row.Confidence),
		PrimaryType:        primaryType,
		SecondaryTypes:     secondaryTypes,
	}, nil
}

// pickScore returns the first raw value that parses as a number, rescaling
// answers that came back on a 0-10 scale and clamping to [0, 100].
func pickScore(fallback float64, raws ...json.RawMessage) float64 {
	for _, raw := range raws {
		value, ok := parseNumber(raw)
		if !ok {
			continue
		}
		if value >= 0 && value <= 10 {
			value *= 10
		}
		if value < 0 {
			value = 0
		}
		if value > 100 {
			value = 100
		}
		return value
	}
	return fallback
}

func coerceConfidence(raw json.RawMessage) float64 {
	value, ok := parseNumber(raw)
	if !ok {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var asFloat float64
	if err := json.Unmarshal(raw, &asFloat); err == nil {
		return asFloat, true
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var parsed float64
		if _, err := fmt.Sscanf(strings.TrimSpace(asString), "%g", &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func dedupeStrings(values []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
