package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/config"
	"github.com/sells-group/strategy-pipeline/internal/model"
	anthropicpkg "github.com/sells-group/strategy-pipeline/pkg/anthropic"
)

const defaultSystemPrompt = "Output JSON ONLY. No markdown. No explanations."

const strictJSONSuffix = "\n\n**CRITICAL: Output ONLY valid JSON. " +
	"No markdown, no code blocks, no explanations. Start with { and end with }.**"

// Client is the single call-site for completions against either the
// OpenRouter-style endpoint or, for "anthropic/"-prefixed model IDs, the
// Anthropic API directly (OQ-1). One Client is shared across stages and
// goroutines; per-model circuit breakers are created lazily and reused.
type Client struct {
	openrouter *openRouterTransport
	anthropic  anthropicpkg.Client // nil if no premium tier configured
	costLogger CostLogger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

// NewClient builds a Client. anthropicClient may be nil if the premium
// tier is not configured; calls to an "anthropic/"-prefixed model then
// fail fast with a clear error instead of silently falling through to
// OpenRouter under a model ID it doesn't recognize.
func NewClient(orCfg config.OpenRouterConfig, anthropicClient anthropicpkg.Client, costLogger CostLogger) *Client {
	return &Client{
		openrouter: newOpenRouterTransport(orCfg),
		anthropic:  anthropicClient,
		costLogger: costLogger,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[string]),
	}
}

// CallWithRetry calls req.Model with automatic retry, progressive
// temperature reduction, content-policy refusal detection, and markdown/
// JSON repair, mirroring LLMClient.call_with_retry from the original
// implementation. It returns the cleaned JSON string and token usage.
func (c *Client) CallWithRetry(ctx context.Context, req CallRequest) (string, model.UsageStats, error) {
	req = withDefaults(req)

	var lastErr error
	for attempt := 0; attempt < req.MaxRetries; attempt++ {
		currentTemp := req.Temperature
		for i := 0; i < attempt; i++ {
			currentTemp *= defaultTemperatureDecay
		}

		prompt := req.Prompt
		systemPrompt := req.SystemPrompt
		if systemPrompt == "" {
			systemPrompt = defaultSystemPrompt
		}
		if attempt > 0 {
			prompt += strictJSONSuffix
			zap.L().Warn("llm: retrying",
				zap.String("stage", req.Stage),
				zap.String("model", req.Model),
				zap.Int("attempt", attempt+1),
				zap.Float64("temperature", currentTemp),
			)
		}

		content, usage, err := c.callOnce(ctx, req.Model, systemPrompt, prompt, currentTemp, req.MaxTokens)
		if err != nil {
			lastErr = err
			zap.L().Error("llm: call failed",
				zap.String("stage", req.Stage), zap.String("model", req.Model),
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		if IsRefusal(content) {
			lastErr = eris.Wrapf(ErrContentPolicyRefusal, "%s: %s", req.Stage, truncate(content, 100))
			zap.L().Warn("llm: content policy refusal", zap.String("stage", req.Stage), zap.String("model", req.Model))
			continue
		}

		cleaned := CleanJSONResponse(content)
		if !json.Valid([]byte(cleaned)) {
			lastErr = eris.Errorf("llm: %s invalid JSON from %s (attempt %d)", req.Stage, req.Model, attempt+1)
			continue
		}

		if c.costLogger != nil {
			c.costLogger.Log(req.Stage, req.Model, usage.InputTokens, usage.OutputTokens)
		}
		return cleaned, usage, nil
	}

	return "", model.UsageStats{}, eris.Wrapf(lastErr, "llm: %s failed after %d attempts", req.Stage, req.MaxRetries)
}

func (c *Client) callOnce(ctx context.Context, modelID, systemPrompt, prompt string, temperature float64, maxTokens int) (string, model.UsageStats, error) {
	breaker := c.breakerFor(modelID)

	var usage model.UsageStats
	content, err := breaker.Execute(func() (string, error) {
		var innerErr error
		var c2 string
		if isAnthropicModel(modelID) {
			if c.anthropic == nil {
				return "", eris.Errorf("llm: model %s requires the anthropic tier, which is not configured", modelID)
			}
			c2, usage, innerErr = completeAnthropic(ctx, c.anthropic, modelID, systemPrompt, prompt, temperature, maxTokens)
		} else {
			c2, usage, innerErr = c.openrouter.complete(ctx, modelID, systemPrompt, prompt, temperature, maxTokens)
		}
		return c2, innerErr
	})
	if err != nil {
		if eris.Is(err, gobreaker.ErrOpenState) || eris.Is(err, gobreaker.ErrTooManyRequests) {
			return "", model.UsageStats{}, fmt.Errorf("%w: %s", ErrCircuitOpen, modelID)
		}
		return "", model.UsageStats{}, err
	}
	return content, usage, nil
}

func (c *Client) breakerFor(modelID string) *gobreaker.CircuitBreaker[string] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.breakers[modelID]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        modelID,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Info("llm: circuit breaker state change",
				zap.String("model", modelID), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	c.breakers[modelID] = b
	return b
}
