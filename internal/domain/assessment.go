package domain

// ArticleAssessment is the LLM-produced per-article judgment. Numeric
// scores are clamped to [0,100] and confidence to [0,1] by the evaluator
// before an assessment is constructed.
type ArticleAssessment struct {
	ArticleID          string   `json:"article_id"`
	Worth              Worth    `json:"worth"`
	QualityScore       float64  `json:"quality_score"`
	PracticalityScore  float64  `json:"practicality_score"`
	ActionabilityScore float64  `json:"actionability_score"`
	CompanyImpact      float64  `json:"company_impact"`
	TeamImpact         float64  `json:"team_impact"`
	PersonalImpact     float64  `json:"personal_impact"`
	ExecutionClarity   float64  `json:"execution_clarity"`
	NoveltyScore       float64  `json:"novelty_score"`
	ClarityScore       float64  `json:"clarity_score"`
	OneLineSummary     string   `json:"one_line_summary"`
	ReasonShort        string   `json:"reason_short"`
	ActionHint         string   `json:"action_hint"`
	BestForRoles       []string `json:"best_for_roles"`
	EvidenceSignals    []string `json:"evidence_signals"`
	Confidence         float64  `json:"confidence"`
	PrimaryType        string   `json:"primary_type"`
	SecondaryTypes     []string `json:"secondary_types"`
	CacheKey           string   `json:"-"`
}

// AIHighlight is one entry of the summarizer's re-ranked highlight list.
type AIHighlight struct {
	ArticleID      string `json:"article_id"`
	Rank           int    `json:"rank"`
	OneLineSummary string `json:"one_line_summary"`
	Worth          Worth  `json:"worth"`
	ReasonShort    string `json:"reason_short"`
}

// SourceQualityScore is the rolling per-source reputation persisted across
// runs and blended with each day's batch statistics.
type SourceQualityScore struct {
	SourceID      string  `json:"source_id"`
	QualityScore  float64 `json:"quality_score"`
	ArticleCount  int     `json:"article_count"`
	MustReadRate  float64 `json:"must_read_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
	Freshness     float64 `json:"freshness"`
}

// FlomoPayload is the webhook body for a rendered digest.
type FlomoPayload struct {
	Content   string
	DedupeKey string
}
