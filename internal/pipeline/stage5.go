package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const stage5MaxTokens = 3500
const temperatureRisk = 0.5
const englishGiveawayThreshold = 5

// Stage5Input is the risk-and-priority stage's input: Stage 1's facts
// plus Stage 3's recommendations, which this stage scores and ranks.
type Stage5Input struct {
	Company         string
	Industry        string
	Stage1          Stage1Output
	Recommendations []map[string]any
}

// Stage5Output is the risk-analysis-and-priority section of the final
// report. Non-fatal on failure.
type Stage5Output struct {
	RiskAnalysis          []RiskEntry           `json:"risk_analysis"`
	RecommendationScoring []RecommendationEntry `json:"recommendation_scoring"`
	PriorityMatrix        model.PriorityMatrix  `json:"priority_matrix"`
	CriticalPath          []string              `json:"critical_path,omitempty"`
}

// RiskEntry is one row of the risk register. RiskScore =
// Probability*Impact, computed here rather than trusted from the model.
type RiskEntry struct {
	Description string  `json:"description"`
	Probability float64 `json:"probability"`
	Impact      float64 `json:"impact"`
	RiskScore   float64 `json:"risk_score"`
	Severity    string  `json:"severity"`
	Mitigation  string  `json:"mitigation,omitempty"`
}

// RecommendationEntry is one recommendation scored by effort/impact.
// EfficiencyRatio = Impact/Effort, computed here rather than trusted
// from the model.
type RecommendationEntry struct {
	Recommendation  string  `json:"recommendation"`
	Effort          float64 `json:"effort"`
	Impact          float64 `json:"impact"`
	EfficiencyRatio float64 `json:"efficiency_ratio"`
	ROI             any     `json:"roi,omitempty"`
	PriorityTier    string  `json:"priority_tier,omitempty"`
}

// severityBand buckets a risk_score (probability*impact, impact in
// [1,10]) into a severity label.
func severityBand(score float64) string {
	switch {
	case score >= 7:
		return "critical"
	case score >= 4:
		return "high"
	case score >= 2:
		return "medium"
	default:
		return "low"
	}
}

// RunStage5 scores risks and recommendations. Model tier: premium
// (Sonnet-class). Enforces Portuguese by scanning for a shortlist of
// English giveaway words and, if the count exceeds a threshold,
// re-running once with a stricter instruction appended to the user
// prompt, on the primary model and then the free-fallback model.
func RunStage5(ctx context.Context, deps StageDeps, in Stage5Input) (Stage5Output, model.UsageStats, error) {
	slot := deps.Models.RiskScoring
	prompt := buildStage5Prompt(in)
	systemPrompt := "Você é um analista de risco estratégico brasileiro sênior. Responda SOMENTE em português do Brasil. Apenas JSON."

	raw, usage, modelUsed, err := callChain(ctx, deps, "risk_scoring", []string{slot.Primary, slot.PaidFallback, slot.FreeFallback}, systemPrompt, prompt, temperatureRisk, stage5MaxTokens)
	if err != nil {
		return Stage5Output{}, usage, err
	}

	if englishGiveawayCount(raw) > englishGiveawayThreshold {
		zap.L().Warn("stage5: english giveaway words detected above threshold, rerunning with stricter prompt")
		strictPrompt := prompt + "\n\n**ATENÇÃO: responda ESTRITAMENTE em português do Brasil. Nenhuma palavra em inglês é permitida.**"
		retryRaw, retryUsage, retryModel, retryErr := callChain(ctx, deps, "risk_scoring", []string{slot.Primary, slot.FreeFallback}, systemPrompt, strictPrompt, temperatureRisk, stage5MaxTokens)
		if retryErr == nil && englishGiveawayCount(retryRaw) <= englishGiveawayThreshold {
			raw, usage, modelUsed = retryRaw, retryUsage, retryModel
		}
	}

	var out Stage5Output
	if err := decodeStageJSON("risk_scoring", modelUsed, raw, &out); err != nil {
		return Stage5Output{}, usage, err
	}

	normalizeRiskScores(out.RiskAnalysis)
	normalizeEfficiencyRatios(out.RecommendationScoring)

	return out, usage, nil
}

// normalizeRiskScores recomputes RiskScore and Severity from
// Probability/Impact rather than trusting whatever arithmetic the model
// did, matching spec.md §4.6's "risk_score = probability·impact" and
// severity-from-risk_score invariant.
func normalizeRiskScores(entries []RiskEntry) {
	for i := range entries {
		entries[i].RiskScore = entries[i].Probability * entries[i].Impact
		entries[i].Severity = severityBand(entries[i].RiskScore)
	}
}

// normalizeEfficiencyRatios recomputes EfficiencyRatio = Impact/Effort,
// guarding against a zero-effort entry rather than propagating +Inf.
func normalizeEfficiencyRatios(entries []RecommendationEntry) {
	for i := range entries {
		if entries[i].Effort <= 0 {
			entries[i].EfficiencyRatio = 0
			continue
		}
		entries[i].EfficiencyRatio = entries[i].Impact / entries[i].Effort
	}
}

var englishGiveawayWords = []string{
	" the ", " and ", " with ", " for ", " of ", " is ", " are ", " this ", " that ", " will ",
}

var wordBoundary = regexp.MustCompile(`\s+`)

// englishGiveawayCount counts occurrences of a shortlist of common
// English function words in raw, a cheap proxy for "the model drifted
// into English" without a full language detector.
func englishGiveawayCount(raw string) int {
	padded := " " + strings.ToLower(wordBoundary.ReplaceAllString(raw, " ")) + " "
	count := 0
	for _, word := range englishGiveawayWords {
		count += strings.Count(padded, word)
	}
	return count
}

func buildStage5Prompt(in Stage5Input) string {
	facts, _ := json.MarshalIndent(in.Stage1.CompanyFacts, "", "  ")
	recs, _ := json.MarshalIndent(in.Recommendations, "", "  ")

	return fmt.Sprintf(`# ANÁLISE DE RISCO E PRIORIZAÇÃO PARA %s (%s)

## Fatos da Empresa
%s

## Recomendações a Priorizar
%s

# SUA TAREFA

Identifique riscos estratégicos com probabilidade (0-1), impacto (1-10) e mitigação. Pontue cada recomendação por esforço (1-10) e impacto (1-10), com ROI estimado e nível de prioridade. Construa uma matriz de priorização (quick_wins, strategic_investments, fill_ins, avoid) e um caminho crítico mês a mês.

Retorne JSON com as chaves: risk_analysis (array de {description, probability, impact, mitigation}), recommendation_scoring (array de {recommendation, effort, impact, roi, priority_tier}), priority_matrix ({quick_wins, strategic_investments, fill_ins, avoid}), critical_path (array mensal).

Responda SOMENTE em português do Brasil. Apenas JSON, sem markdown.`, in.Company, in.Industry, string(facts), string(recs))
}
