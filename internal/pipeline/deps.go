package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/analysislog"
	"github.com/sells-group/strategy-pipeline/internal/apperr"
	"github.com/sells-group/strategy-pipeline/internal/config"
	"github.com/sells-group/strategy-pipeline/internal/cost"
	"github.com/sells-group/strategy-pipeline/internal/llm"
	"github.com/sells-group/strategy-pipeline/internal/model"
)

// ResearchClient dispatches one follow-up research query to a
// Perplexity-class real-time research provider, used by Stage 2.
type ResearchClient interface {
	Research(ctx context.Context, query string, maxTokens int) (string, model.UsageStats, error)
}

// StageDeps bundles the collaborators every stage function needs. One
// StageDeps is built per pipeline run and threaded through stage1..6.
type StageDeps struct {
	LLM      *llm.Client
	Research ResearchClient // nil disables Stage 2 follow-up research
	Calc     *cost.Calculator
	Tracker  *cost.Tracker
	Log      *analysislog.Logger
	Models   config.ModelsConfig
}

// callChain tries each model ID in order, advancing to the next on a
// content-policy refusal or invalid/exhausted output, returning the
// first success. The model actually used is returned alongside the
// response so the caller can record it in models_used.
func callChain(ctx context.Context, deps StageDeps, stage string, models []string, systemPrompt, prompt string, temperature float64, maxTokens int) (string, model.UsageStats, string, error) {
	var lastErr error
	for _, modelID := range models {
		if modelID == "" {
			continue
		}
		content, usage, err := deps.LLM.CallWithRetry(ctx, llm.CallRequest{
			Stage:        stage,
			Model:        modelID,
			SystemPrompt: systemPrompt,
			Prompt:       prompt,
			Temperature:  temperature,
			MaxTokens:    maxTokens,
		})
		if err != nil {
			lastErr = err
			continue
		}

		costUSD := deps.Calc.LLM(modelID, usage.InputTokens, usage.OutputTokens)
		deps.Tracker.RecordLLM(stage, modelID, usage.InputTokens, usage.OutputTokens, costUSD, false)
		return content, usage, modelID, nil
	}

	return "", model.UsageStats{}, "", &apperr.InvalidLLMOutput{Stage: stage, Model: models[len(models)-1], Cause: lastErr}
}

// decodeStageJSON unmarshals a stage's cleaned JSON response into out,
// wrapping any failure as an apperr.InvalidLLMOutput (this should only
// ever trigger on a schema mismatch — CallWithRetry already guarantees
// syntactically valid JSON).
func decodeStageJSON(stage, modelID string, raw string, out any) error {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &apperr.InvalidLLMOutput{Stage: stage, Model: modelID, Cause: eris.Wrap(err, "decode stage output")}
	}
	return nil
}
