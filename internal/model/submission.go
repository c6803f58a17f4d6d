// Package model holds the data types shared across the strategic analysis
// pipeline: submissions, reports, source results, and the bookkeeping
// records behind caching, cost tracking, and confidence learning.
package model

import "time"

// Submission is the input to a pipeline run.
type Submission struct {
	ID                int64   `json:"id" validate:"required"`
	Company           string  `json:"company" validate:"required"`
	Industry          string  `json:"industry" validate:"required"`
	Website           *string `json:"website,omitempty" validate:"omitempty,url"`
	Challenge         *string `json:"challenge,omitempty"`
	LinkedInCompany   *string `json:"linkedin_company,omitempty"`
	LinkedInFounder   *string `json:"linkedin_founder,omitempty"`
}

// UsageStats is the token accounting header attached to every stage output.
type UsageStats struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ProcessingState is the coarse lifecycle state of a submission. Nothing
// in this module sets or reports it; the store that persists it is an
// external collaborator, out of scope here.
type ProcessingState string

const (
	StateQueued        ProcessingState = "queued"
	StateDataGathering ProcessingState = "data_gathering"
	StateAIAnalyzing   ProcessingState = "ai_analyzing"
	StateFinalizing    ProcessingState = "finalizing"
	StateCompleted     ProcessingState = "completed"
	StateFailed        ProcessingState = "failed"
)

// ErrorType classifies why a source adapter call did not produce data.
type ErrorType string

const (
	ErrorTypeNone        ErrorType = ""
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeAuth        ErrorType = "auth_error"
	ErrorTypeRateLimit   ErrorType = "rate_limited"
	ErrorTypeCircuitOpen ErrorType = "circuit_open"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// SourceResult is the normalized output of a single data-source adapter
// call. Fields map into the shared field lexicon; only a subset is
// populated by any given adapter.
type SourceResult struct {
	Source    string         `json:"source"`
	Success   bool           `json:"success"`
	Fields    map[string]any `json:"fields,omitempty"`
	CostUSD   float64        `json:"cost_usd"`
	ErrorType ErrorType      `json:"error_type,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Report is the final output of the pipeline: stage outputs merged into
// one tree plus run metadata. Section bodies are loosely typed because
// the underlying prompts are versioned independently of this code, but
// the top-level shape itself is the four-part Portuguese structure the
// client contract names literally: Onde Estamos (current state),
// Onde Queremos Ir (target state), Como Chegar Lá (the path there), and
// O Que Fazer Agora (immediate actions).
type Report struct {
	CompanyInfo map[string]any `json:"company_info,omitempty"`
	DataGaps    []string       `json:"data_gaps,omitempty"`

	// Parte1OndeEstamos groups the diagnostic frameworks: analise_pestel,
	// sete_forcas_porter, analise_swot.
	Parte1OndeEstamos map[string]any `json:"parte_1_onde_estamos,omitempty"`
	// Parte2OndeQueremosIr groups the target-state frameworks:
	// estrategia_oceano_azul, posicionamento_competitivo, tam_sam_som,
	// balanced_scorecard.
	Parte2OndeQueremosIr map[string]any `json:"parte_2_onde_queremos_ir,omitempty"`
	// Parte3ComoChegarLa groups the path-to-target frameworks:
	// okrs_propostos, roadmap_implementacao, growth_hacking_loops.
	Parte3ComoChegarLa map[string]any `json:"parte_3_como_chegar_la,omitempty"`
	// Parte4OQueFazerAgora groups the immediate-action frameworks:
	// planejamento_cenarios, recomendacoes_prioritarias,
	// matriz_decisao_multicriterio.
	Parte4OQueFazerAgora map[string]any `json:"parte_4_o_que_fazer_agora,omitempty"`

	// StrategySections holds the Stage 3 sections that sit outside the
	// four parts: the optional integration map, Brazilian case
	// references, and the review cycle. Keyed by the same section names
	// qualitytier.SectionSet gates.
	StrategySections map[string]any `json:"strategy_sections,omitempty"`
	CompetitiveIntel map[string]any `json:"inteligencia_competitiva,omitempty"`
	RiskPriority     map[string]any `json:"analise_risco_prioridade,omitempty"`
	FollowUpResearch map[string]any `json:"pesquisa_adicional,omitempty"`
	Metadata         Metadata       `json:"_metadata"`
}

// TAMSAMSOM holds the total/serviceable/obtainable market sizing section.
// InsufficientData is the sentinel set when Stage 3 cannot ground a
// numeric estimate, instead of fabricating one; Status/Mensagem/
// OQueFornecer carry the client-facing explanation of what's missing.
type TAMSAMSOM struct {
	TAM              string   `json:"tam,omitempty"`
	SAM              string   `json:"sam,omitempty"`
	SOM              string   `json:"som,omitempty"`
	InsufficientData bool     `json:"insufficient_data,omitempty"`
	Status           string   `json:"status,omitempty"`
	Mensagem         string   `json:"mensagem,omitempty"`
	OQueFornecer     []string `json:"o_que_fornecer,omitempty"`
}

// CompetitorProfile is one row of the Stage 4 competitive matrix.
type CompetitorProfile struct {
	Name            string   `json:"name"`
	Strengths       []string `json:"strengths,omitempty"`
	Weaknesses      []string `json:"weaknesses,omitempty"`
	MarketPosition  string   `json:"market_position,omitempty"`
}

// RiskItem is one row of the Stage 5 risk register.
type RiskItem struct {
	Description string  `json:"description"`
	Likelihood  float64 `json:"likelihood"`
	Impact      float64 `json:"impact"`
	RiskScore   float64 `json:"risk_score"`
}

// PriorityMatrix ranks recommendations by effort/impact.
type PriorityMatrix struct {
	QuickWins            []string `json:"quick_wins,omitempty"`
	StrategicInvestments []string `json:"strategic_investments,omitempty"`
	FillIns              []string `json:"fill_ins,omitempty"`
	Avoid                []string `json:"avoid,omitempty"`
	CriticalPath         []string `json:"critical_path,omitempty"`
}

// Metadata is the run-level trailer attached to every report.
type Metadata struct {
	GeneratedAt           time.Time      `json:"generated_at"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
	Pipeline              string         `json:"pipeline"`
	StagesCompleted       []string       `json:"stages_completed"`
	ModelsUsed            map[string]string `json:"models_used"`
	QualityTier            string         `json:"quality_tier"`
	UsedResearch          bool           `json:"used_research"`
	DataGapsIdentified    int            `json:"data_gaps_identified"`
	DataGapsFilled        int            `json:"data_gaps_filled"`
	TotalCostActualUSD    float64        `json:"total_cost_actual_usd"`
	TotalTokens           int            `json:"total_tokens"`
	TotalInputTokens      int            `json:"total_input_tokens"`
	TotalOutputTokens     int            `json:"total_output_tokens"`
	LoggingSummary        LoggingSummary `json:"logging_summary"`
}

// LoggingSummary aggregates per-stage timing/cost/warning data collected
// by AnalysisLogger over the course of one run.
type LoggingSummary struct {
	TotalCostUSD      float64           `json:"total_cost_usd"`
	TotalTokens       int               `json:"total_tokens"`
	TotalInputTokens  int               `json:"total_input_tokens"`
	TotalOutputTokens int               `json:"total_output_tokens"`
	Stages            []StageLogEntry   `json:"stages"`
	Warnings          []string          `json:"warnings,omitempty"`
}

// StageLogEntry records one stage's execution outcome for the logging
// summary.
type StageLogEntry struct {
	Stage        string  `json:"stage"`
	Model        string  `json:"model"`
	DurationSec  float64 `json:"duration_seconds"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Success      bool    `json:"success"`
	Error        string  `json:"error,omitempty"`
}
