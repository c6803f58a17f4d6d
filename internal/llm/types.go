// Package llm is the single call-site for generative model completions
// used by every pipeline stage: it builds the request, retries with
// temperature decay, detects content-policy refusals, repairs
// markdown-wrapped JSON, and reports usage for cost tracking. Choosing
// which model to call first and which fallback to try next is the
// orchestrator's job (internal/pipeline); this package only knows how to
// call one model well.
package llm

import (
	"github.com/rotisserie/eris"
)

// ErrContentPolicyRefusal is returned when a model declines to answer.
// Kept distinct from a JSON-parse failure so callers can react
// differently (e.g. skip straight to the next fallback model).
var ErrContentPolicyRefusal = eris.New("llm: content policy refusal")

// ErrCircuitOpen is returned when a model's circuit breaker has tripped.
var ErrCircuitOpen = eris.New("llm: circuit open")

const (
	defaultTemperature      = 0.7
	defaultMaxTokens        = 4000
	defaultMaxRetries       = 3
	defaultTemperatureDecay = 0.7
)

// CallRequest describes one stage's request for a completion.
type CallRequest struct {
	Stage        string
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  float64 // defaults to 0.7 if zero
	MaxTokens    int     // defaults to 4000 if zero
	MaxRetries   int     // defaults to 3 if zero
}

// CostLogger receives token usage after a successful call, so the caller
// can price and accumulate cost without this package depending on
// internal/cost directly.
type CostLogger interface {
	Log(stage, modelID string, inputTokens, outputTokens int)
}

func withDefaults(req CallRequest) CallRequest {
	if req.Temperature <= 0 {
		req.Temperature = defaultTemperature
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.MaxRetries <= 0 {
		req.MaxRetries = defaultMaxRetries
	}
	return req
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
