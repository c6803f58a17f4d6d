package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/llm"
	"github.com/sells-group/strategy-pipeline/internal/model"
)

// deepAnalysisEstimatedCostUSD is a typical GPT-4o-class call at the
// prompt/response sizes this adapter uses; internal/cost.Calculator
// computes the exact figure from actual token usage once the call
// returns, this is only the pre-call estimate used for budget gating.
const deepAnalysisEstimatedCostUSD = 0.15

// DeepAnalysisAdapter is the premium tier: a GPT-4o-class model asked to
// synthesize a qualitative read of the company (positioning, likely
// competitors, growth signals) from everything gathered so far, rather
// than to source any single factual field. Orchestrator only selects it
// under the "premium" enrichment budget.
type DeepAnalysisAdapter struct {
	client  LLMCaller
	modelID string
}

func NewDeepAnalysisAdapter(client LLMCaller, modelID string) *DeepAnalysisAdapter {
	return &DeepAnalysisAdapter{client: client, modelID: modelID}
}

func (a *DeepAnalysisAdapter) Name() string              { return "deep_analysis" }
func (a *DeepAnalysisAdapter) EstimatedCostUSD() float64 { return deepAnalysisEstimatedCostUSD }

const deepAnalysisPrompt = `You are assessing a company for a business strategy engagement.

Domain: %s
Name: %s
Industry: %s
Country: %s

Using public knowledge, produce a brief qualitative assessment. Respond with JSON only, no markdown:
{
  "market_position": "string or null, one short sentence",
  "likely_competitors": ["array of up to 5 company names, or empty"],
  "growth_signals": ["array of up to 5 short observations, or empty"],
  "risk_flags": ["array of up to 5 short observations, or empty"]
}`

func (a *DeepAnalysisAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	if company.Domain == "" && company.Name == "" {
		return model.SourceResult{}, eris.New("sources: deep_analysis adapter requires a domain or name")
	}

	prompt := fmt.Sprintf(deepAnalysisPrompt, company.Domain, company.Name, company.Industry, company.Country)
	content, usage, err := a.client.CallWithRetry(ctx, llm.CallRequest{
		Stage:       "source:deep_analysis",
		Model:       a.modelID,
		Prompt:      prompt,
		Temperature: 0.4,
		MaxTokens:   800,
	})
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: deep_analysis call")
	}

	var parsed struct {
		MarketPosition    *string  `json:"market_position"`
		LikelyCompetitors []string `json:"likely_competitors"`
		GrowthSignals     []string `json:"growth_signals"`
		RiskFlags         []string `json:"risk_flags"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: unmarshal deep_analysis response")
	}

	fields := map[string]any{}
	if parsed.MarketPosition != nil && *parsed.MarketPosition != "" {
		fields["market_position"] = *parsed.MarketPosition
	}
	if len(parsed.LikelyCompetitors) > 0 {
		fields["likely_competitors"] = limitStrings(parsed.LikelyCompetitors, 5)
	}
	if len(parsed.GrowthSignals) > 0 {
		fields["growth_signals"] = limitStrings(parsed.GrowthSignals, 5)
	}
	if len(parsed.RiskFlags) > 0 {
		fields["risk_flags"] = limitStrings(parsed.RiskFlags, 5)
	}

	if len(fields) == 0 {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	costUSD := deepAnalysisEstimatedCostUSD
	if usage.InputTokens > 0 || usage.OutputTokens > 0 {
		costUSD = estimateGPT4oCostUSD(usage)
	}

	return model.SourceResult{
		Source:    a.Name(),
		Success:   true,
		Fields:    fields,
		CostUSD:   costUSD,
		FetchedAt: time.Now(),
	}, nil
}

// estimateGPT4oCostUSD mirrors internal/cost.Calculator's openai/gpt-4o
// pricing ($2.50/M input, $10.00/M output) without importing the cost
// package, which tracks run-level spend rather than per-call estimates.
func estimateGPT4oCostUSD(usage model.UsageStats) float64 {
	return float64(usage.InputTokens)/1_000_000*2.50 + float64(usage.OutputTokens)/1_000_000*10.00
}
