package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const stage1MaxTokens = 3000
const temperatureFactual = 0.3

// Stage1Input is Stage 1's raw material: the submission plus whatever
// external adapter/research data the fan-out gathered.
type Stage1Input struct {
	Company              string
	Industry             string
	Website              string
	Challenge            string
	ExternalData         map[string]any // reconciled sources.FanOut output, pre-sanitization
	ResearchData         map[string]any
	InstitutionalContext string `json:"-"` // prior-analysis summary from loadInstitutionalMemory, if any; left out of the stage-cache key
}

// Stage1Output is Stage 1's extracted, structured view of a company.
type Stage1Output struct {
	CompanyFacts         map[string]any   `json:"company_facts"`
	Competitors          []map[string]any `json:"competitors"`
	MarketIntelligence   map[string]any   `json:"market_intelligence"`
	IndustryTrends       []map[string]any `json:"industry_trends"`
	NewsAndDevelopments  []map[string]any `json:"news_and_developments"`
	CustomerIntelligence map[string]any   `json:"customer_intelligence"`
	DataGaps             []string         `json:"data_gaps"`
}

// RunStage1 extracts structured facts from every gathered data source.
// Model tier: budget (primary, falling through to the free fallback on
// refusal or invalid output — paid fallback is skipped for this cheap,
// high-volume stage).
func RunStage1(ctx context.Context, deps StageDeps, in Stage1Input) (Stage1Output, model.UsageStats, error) {
	slot := deps.Models.Extraction

	safeExternal := sanitizeAny(in.ExternalData)
	safeResearch := sanitizeAny(in.ResearchData)

	prompt := buildStage1Prompt(in, safeExternal, safeResearch)
	systemPrompt := "You are a data extraction specialist. Extract facts, skip fluff. Output JSON only."

	raw, usage, modelUsed, err := callChain(ctx, deps, "extraction", []string{slot.Primary, slot.FreeFallback}, systemPrompt, prompt, temperatureFactual, stage1MaxTokens)
	if err != nil {
		return Stage1Output{}, usage, err
	}

	var out Stage1Output
	if err := decodeStageJSON("extraction", modelUsed, raw, &out); err != nil {
		return Stage1Output{}, usage, err
	}
	return out, usage, nil
}

func buildStage1Prompt(in Stage1Input, safeExternal, safeResearch any) string {
	externalJSON, _ := json.MarshalIndent(safeExternal, "", "  ")
	researchJSON, _ := json.MarshalIndent(safeResearch, "", "  ")

	institutional := ""
	if in.InstitutionalContext != "" {
		institutional = "\n## Institutional Memory\n" + in.InstitutionalContext + "\n"
	}

	return fmt.Sprintf(`# RAW DATA SOURCES

## Company Information
- Name: %s
- Industry: %s
- Website: %s
- Challenge: %s
%s
## Gathered Data Sources (SANITIZED)
%s

## Follow-Up Research (SANITIZED)
%s

# YOUR TASK

Extract and structure ALL key facts from the data above into clean JSON matching this shape:

{
  "company_facts": {...},
  "competitors": [...],
  "market_intelligence": {"tam_total_market": "...", "sam_available_market": "...", "som_obtainable_market": "..."},
  "industry_trends": [...],
  "news_and_developments": [...],
  "customer_intelligence": {...},
  "data_gaps": ["Missing: ..."]
}

For every quantitative claim, include a source annotation: "R$ X milhões (fonte: ...)" or "N/A - dados insuficientes" if no concrete source exists. Never fabricate a number without one.

Return ONLY valid JSON. No markdown, no explanations.`, in.Company, in.Industry, orNA(in.Website), orNA(in.Challenge), institutional, string(externalJSON), string(researchJSON))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
