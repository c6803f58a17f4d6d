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

const aiInferenceFreeEstimatedCostUSD = 0

// LLMCaller is the subset of llm.Client this adapter needs.
type LLMCaller interface {
	CallWithRetry(ctx context.Context, req llm.CallRequest) (string, model.UsageStats, error)
}

var _ LLMCaller = (*llm.Client)(nil)

// AIInferenceFreeAdapter infers likely company attributes (industry,
// employee-count band, business model) from a free-tier LLM when no
// structured source has them. SOURCE_RELIABILITY
// "ai_inference_enhanced": 75 in the original confidence scorer —
// higher than IP/metadata guesses, lower than any verified source.
type AIInferenceFreeAdapter struct {
	client  LLMCaller
	modelID string
}

func NewAIInferenceFreeAdapter(client LLMCaller, modelID string) *AIInferenceFreeAdapter {
	return &AIInferenceFreeAdapter{client: client, modelID: modelID}
}

func (a *AIInferenceFreeAdapter) Name() string              { return "ai_inference_enhanced" }
func (a *AIInferenceFreeAdapter) EstimatedCostUSD() float64 { return aiInferenceFreeEstimatedCostUSD }

const aiInferencePrompt = `Given a company with domain "%s", name "%s", and industry "%s", infer the following fields as best you can from public knowledge. Respond with JSON only, no markdown:
{
  "industry": "string or null",
  "employee_count_band": "one of: 1-10, 11-50, 51-200, 201-1000, 1000+, or null",
  "business_model": "one of: b2b, b2c, b2b2c, or null",
  "likely_tech_stack": ["array of strings, or empty"]
}`

func (a *AIInferenceFreeAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	if company.Domain == "" && company.Name == "" {
		return model.SourceResult{}, eris.New("sources: ai_inference_free adapter requires a domain or name")
	}

	prompt := fmt.Sprintf(aiInferencePrompt, company.Domain, company.Name, company.Industry)
	content, _, err := a.client.CallWithRetry(ctx, llm.CallRequest{
		Stage:       "source:ai_inference_enhanced",
		Model:       a.modelID,
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: ai_inference_free call")
	}

	var inferred struct {
		Industry          *string  `json:"industry"`
		EmployeeCountBand *string  `json:"employee_count_band"`
		BusinessModel     *string  `json:"business_model"`
		LikelyTechStack   []string `json:"likely_tech_stack"`
	}
	if err := json.Unmarshal([]byte(content), &inferred); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: unmarshal ai_inference_free response")
	}

	fields := map[string]any{}
	if inferred.Industry != nil {
		fields["industry"] = *inferred.Industry
	}
	if inferred.EmployeeCountBand != nil {
		fields["employee_count_band"] = *inferred.EmployeeCountBand
	}
	if inferred.BusinessModel != nil {
		fields["business_model"] = *inferred.BusinessModel
	}
	if len(inferred.LikelyTechStack) > 0 {
		fields["likely_tech_stack"] = inferred.LikelyTechStack
	}

	if len(fields) == 0 {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	return model.SourceResult{
		Source:    a.Name(),
		Success:   true,
		Fields:    fields,
		FetchedAt: time.Now(),
	}, nil
}
