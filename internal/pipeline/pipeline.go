// Package pipeline implements the six-stage strategic-analysis
// orchestrator: it sequences Stage 1 (extraction) through Stage 6
// (executive polish), fans out the data-source adapters and reconciles
// their results ahead of Stage 1, drives every stage through the
// per-stage content-hashed cache, and assembles the final report with
// its cost/quality metadata.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/apperr"
	"github.com/sells-group/strategy-pipeline/internal/cache"
	"github.com/sells-group/strategy-pipeline/internal/hash"
	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/internal/reconcile"
	"github.com/sells-group/strategy-pipeline/internal/sources"
	"github.com/sells-group/strategy-pipeline/internal/store"
)

// estimatedStageCostUSD mirrors the original implementation's
// pre-computed per-stage cost estimates, used only for cache-value
// reporting (model.StageCacheEntry.CostUSD) — the actual cost a run
// spent is always the CostTracker's running sum, never this table.
var estimatedStageCostUSD = map[string]float64{
	"extraction":   0.002,
	"gap_analysis": 0.003,
	"strategy":     0.05,
	"competitive":  0.03,
	"risk_scoring": 0.02,
	"polish":       0.015,
}

// Deps bundles every collaborator one Analyse run needs beyond
// StageDeps: the session store, the multi-tier enrichment cache, the
// per-stage LLM cache, and the registered data-source adapters. One Deps
// value is built per submission (StageDeps.Log and StageDeps.Tracker are
// both fresh per run) by the caller (cmd/, or a test).
type Deps struct {
	StageDeps
	Store           store.Store
	MultiTier       *cache.MultiTier
	StageCache      *cache.StageCache
	Sources         []sources.Registered
	SourceBudget    sources.Tier
	AnalysisTimeout time.Duration // 0 disables the outer deadline
}

// enrichmentLayer is the MultiTier layer the whole-company fan-out
// result is cached under. Layer 2 is deliberately chosen over 1 or 3:
// MultiTier only offers a result to the cold tier at layer 2, and the
// cold tier's own static-field filter (internal/cache.extractStaticFields)
// already limits what actually gets persisted there — using layer 2
// here means the cold pathway "just works" without a second cache call.
const enrichmentLayer = 2

// Analyse runs the full six-stage pipeline for one submission. runAll
// controls whether Stage 2 (gap follow-up), Stage 4 (competitive) and
// Stage 5 (risk/priority) run at all — a false value runs only Stages
// 1, 3 and 6, mirroring the original's quick/"core only" mode.
//
// Stage 1 or Stage 3 failing is fatal: Analyse returns an
// *apperr.FatalPipelineError and no report. Every other stage failure is
// logged and the corresponding report section is simply omitted.
func Analyse(ctx context.Context, deps Deps, sub model.Submission, runAll bool) (model.Report, error) {
	start := time.Now()

	if deps.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.AnalysisTimeout)
		defer cancel()
	}

	website := ""
	if sub.Website != nil {
		website = *sub.Website
	}
	challenge := ""
	if sub.Challenge != nil {
		challenge = *sub.Challenge
	}

	var report model.Report
	var stagesCompleted []string

	externalFields, coverage := gatherExternalData(ctx, deps, sub, website)

	institutionalCtx, _ := loadInstitutionalMemory(ctx, deps.Store, sub.Company, sub.Industry)

	// Stage 1 — extraction (fatal on failure).
	stage1In := Stage1Input{
		Company:              sub.Company,
		Industry:             sub.Industry,
		Website:              website,
		Challenge:            challenge,
		ExternalData:         externalFields,
		InstitutionalContext: institutionalCtx,
	}
	stage1Out, err := runStage1Cached(ctx, deps, sub, stage1In)
	if err != nil {
		return model.Report{}, &apperr.FatalPipelineError{FailedStage: "extraction", Cause: err}
	}
	stagesCompleted = append(stagesCompleted, "extraction")

	coverage.HasWebsite = website != ""
	coverage.HasFinancials = hasFinancials(externalFields)
	tier := AssessTier(coverage)

	companySize, _ := externalFields["company_size"].(string)

	// Stage 2 — gap follow-up (non-fatal, full runs only).
	var stage2Out Stage2Output
	if runAll && deps.Research != nil {
		out, err := runStage2Cached(ctx, deps, sub, Stage2Input{Company: sub.Company, Industry: sub.Industry, Stage1: stage1Out})
		if err != nil {
			zap.L().Warn("pipeline: gap analysis failed, continuing without follow-up", zap.Error(err))
			deps.Log.Warn("gap_analysis: " + err.Error())
		} else {
			stage2Out = out
			stagesCompleted = append(stagesCompleted, "gap_analysis")
		}
	}
	coverage.FollowUpComplete = stage2Out.FollowUpCompleted
	tier = AssessTier(coverage)

	// Stage 3 — strategic frameworks (fatal on failure).
	stage3In := Stage3Input{
		Company:     sub.Company,
		Industry:    sub.Industry,
		Challenge:   challenge,
		Stage1:      stage1Out,
		Tier:        tier,
		CompanySize: companySize,
	}
	stage3Out, err := runStage3Cached(ctx, deps, sub, stage3In)
	if err != nil {
		return model.Report{}, &apperr.FatalPipelineError{FailedStage: "strategy", Cause: err}
	}
	stagesCompleted = append(stagesCompleted, "strategy")

	// Stage 4 — competitive matrix (non-fatal, full runs only).
	var stage4Out Stage4Output
	stage4OK := false
	if runAll {
		out, err := runStage4Cached(ctx, deps, sub, Stage4Input{Company: sub.Company, Industry: sub.Industry, Stage1: stage1Out, FollowUp: stage2Out})
		if err != nil {
			zap.L().Warn("pipeline: competitive matrix failed, omitting section", zap.Error(err))
			deps.Log.Warn("competitive: " + err.Error())
		} else {
			stage4Out = out
			stage4OK = true
			stagesCompleted = append(stagesCompleted, "competitive")
		}
	}

	// Stage 5 — risk & priority (non-fatal, full runs only).
	var stage5Out Stage5Output
	stage5OK := false
	if runAll {
		out, err := runStage5Cached(ctx, deps, sub, Stage5Input{Company: sub.Company, Industry: sub.Industry, Stage1: stage1Out, Recommendations: stage3Out.Recommendations})
		if err != nil {
			zap.L().Warn("pipeline: risk scoring failed, omitting section", zap.Error(err))
			deps.Log.Warn("risk_scoring: " + err.Error())
		} else {
			stage5Out = out
			stage5OK = true
			stagesCompleted = append(stagesCompleted, "risk_scoring")
		}
	}

	// Stage 6 — executive polish, with graceful degradation to Stage 3's
	// output on any failure.
	finalStrategy := runStage6Cached(ctx, deps, sub, Stage6Input{Company: sub.Company, Industry: sub.Industry, Stage3: stage3Out})
	stagesCompleted = append(stagesCompleted, "polish")

	report.CompanyInfo = stage1Out.CompanyFacts
	report.DataGaps = stage1Out.DataGaps
	report.Parte1OndeEstamos = map[string]any{
		"analise_pestel":     finalStrategy.PESTEL,
		"sete_forcas_porter": finalStrategy.Porter,
		"analise_swot":       finalStrategy.SWOT,
	}
	report.Parte2OndeQueremosIr = map[string]any{
		"estrategia_oceano_azul":    finalStrategy.BlueOcean,
		"posicionamento_competitivo": finalStrategy.Positioning,
		"tam_sam_som":                finalStrategy.TAMSAMSOM,
		"balanced_scorecard":         finalStrategy.StrategySections["balanced_scorecard"],
	}
	report.Parte3ComoChegarLa = map[string]any{
		"okrs_propostos":        finalStrategy.OKRs,
		"roadmap_implementacao": finalStrategy.Roadmap,
		"growth_hacking_loops":  finalStrategy.StrategySections["growth_loops"],
	}
	report.Parte4OQueFazerAgora = map[string]any{
		"planejamento_cenarios":       finalStrategy.Scenarios,
		"recomendacoes_prioritarias":  finalStrategy.Recommendations,
		"matriz_decisao_multicriterio": finalStrategy.StrategySections["decision_matrix"],
	}
	report.StrategySections = map[string]any{
		"mapa_integracao_frameworks":    finalStrategy.StrategySections["integration_map"],
		"referencias_casos_brasileiros": finalStrategy.StrategySections["case_references"],
		"ciclo_revisao":                 finalStrategy.StrategySections["review_cycle"],
	}

	if stage4OK {
		report.CompetitiveIntel = toMap(stage4Out)
	}
	if stage5OK {
		report.RiskPriority = toMap(stage5Out)
	}
	if stage2Out.FollowUpCompleted {
		report.FollowUpResearch = toMap(stage2Out)
	}

	saveInstitutionalMemory(ctx, deps.Store, sub.Company, sub.Industry, summarizeFacts(stage1Out.CompanyFacts), stage1Out.DataGaps)

	report.Metadata = model.Metadata{
		GeneratedAt:           time.Now(),
		ProcessingTimeSeconds: time.Since(start).Seconds(),
		Pipeline:              "strategic-analysis-v1",
		StagesCompleted:       stagesCompleted,
		ModelsUsed:            modelsUsedFromTracker(deps.Tracker),
		QualityTier:           string(tier),
		UsedResearch:          stage2Out.FollowUpCompleted,
		DataGapsIdentified:    len(stage1Out.DataGaps),
		DataGapsFilled:        stage2Out.DataGapsFilled,
		TotalCostActualUSD:    deps.Tracker.Total(),
		LoggingSummary:        deps.Log.Summary(),
	}
	report.Metadata.TotalTokens = report.Metadata.LoggingSummary.TotalTokens
	report.Metadata.TotalInputTokens = report.Metadata.LoggingSummary.TotalInputTokens
	report.Metadata.TotalOutputTokens = report.Metadata.LoggingSummary.TotalOutputTokens

	return report, nil
}

// gatherExternalData runs the data-source fan-out (through the
// multi-tier enrichment cache) and reconciliation, returning the merged
// field map (with the coverage-tracking keys stripped) and the raw
// success/attempt counts those keys carried.
func gatherExternalData(ctx context.Context, deps Deps, sub model.Submission, website string) (map[string]any, InputCoverage) {
	domainKey := sub.Company
	if website != "" {
		domainKey = website
	}

	selected := sources.Select(deps.SourceBudget, deps.Sources)
	companyRef := sources.CompanyRef{
		Domain:   hash.Domain(website),
		Name:     sub.Company,
		Industry: sub.Industry,
	}

	var estimatedCost float64
	for _, a := range selected {
		estimatedCost += a.EstimatedCostUSD()
	}

	merged, err := deps.MultiTier.GetOrEnrich(ctx, domainKey, enrichmentLayer, estimatedCost, func(ctx context.Context) (map[string]any, error) {
		results := sources.FanOut(ctx, selected, companyRef)

		succeeded, attempted := 0, 0
		for _, r := range results {
			attempted++
			if r.Success {
				succeeded++
			}
			deps.Tracker.RecordSource(r.Source, r.CostUSD, false)
		}

		reconciled := reconcile.Reconcile(results)
		fields := reconciled.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		fields["_coverage_succeeded"] = succeeded
		fields["_coverage_attempted"] = attempted
		return fields, nil
	})
	if err != nil {
		zap.L().Warn("pipeline: source fan-out failed, continuing with no external data", zap.Error(err))
		return map[string]any{}, InputCoverage{}
	}

	succeeded := popCoverageCount(merged, "_coverage_succeeded")
	attempted := popCoverageCount(merged, "_coverage_attempted")

	return merged, InputCoverage{SourcesSucceeded: succeeded, SourcesAttempted: attempted}
}

// popCoverageCount reads and deletes key from fields, tolerating the
// float64 a JSON round-trip through a cache tier produces in place of
// the int it was written as.
func popCoverageCount(fields map[string]any, key string) int {
	defer delete(fields, key)
	switch v := fields[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func hasFinancials(fields map[string]any) bool {
	_, hasEmployees := fields["employee_count"]
	_, hasRevenue := fields["annual_revenue"]
	return hasEmployees || hasRevenue
}

func summarizeFacts(facts map[string]any) string {
	raw, err := json.Marshal(facts)
	if err != nil {
		return ""
	}
	return truncateRunes(string(raw), 500)
}

// toMap round-trips v through JSON into a plain map, for report sections
// whose typed stage output needs to land in model.Report's loosely-typed
// fields.
func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// modelsUsedFromTracker derives _metadata.models_used from the cost
// ledger: the last model recorded against each stage, since callChain
// only logs a cost entry for the model that actually succeeded.
// Source-fanout entries are excluded — they name a data source, not an
// LLM model.
func modelsUsedFromTracker(tracker interface {
	Entries() []model.CostTraceEntry
}) map[string]string {
	out := make(map[string]string)
	for _, e := range tracker.Entries() {
		if e.Stage == "source_fanout" {
			continue
		}
		out[e.Stage] = e.Model
	}
	return out
}
