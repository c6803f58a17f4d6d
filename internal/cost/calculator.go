// Package cost prices LLM and data-source API calls and accumulates a
// run-level ledger of what an analysis spent.
package cost

import (
	"github.com/sells-group/strategy-pipeline/internal/config"
)

// Calculator prices individual LLM and data-source calls from a
// PricingConfig loaded at startup.
type Calculator struct {
	models  map[string]config.ModelPricing
	sources map[string]float64
}

// NewCalculator builds a Calculator from the loaded pricing configuration.
func NewCalculator(cfg config.PricingConfig) *Calculator {
	c := &Calculator{
		models:  make(map[string]config.ModelPricing, len(cfg.Models)),
		sources: make(map[string]float64, len(cfg.Sources)),
	}
	for k, v := range cfg.Models {
		c.models[k] = v
	}
	for k, v := range cfg.Sources {
		c.sources[k] = v
	}
	return c
}

// LLM returns the USD cost of one completion call against the named
// OpenRouter model ID. Unknown models price at zero rather than erroring,
// since a misconfigured rate table should not fail the pipeline run.
func (c *Calculator) LLM(model string, inputTokens, outputTokens int) float64 {
	rate, ok := c.models[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1e6)*rate.Input + (float64(outputTokens)/1e6)*rate.Output
}

// Source returns the flat per-call USD cost of the named data-source
// adapter (e.g. "clearbit", "google_places"). Adapters with no configured
// rate, including every free adapter, cost zero.
func (c *Calculator) Source(name string) float64 {
	return c.sources[name]
}

// DefaultPricing returns the out-of-the-box rate table used when no
// pricing section is present in config, covering the configured model
// slots and the paid data-source adapters.
func DefaultPricing() config.PricingConfig {
	return config.PricingConfig{
		Models: map[string]config.ModelPricing{
			"google/gemini-2.5-flash":                     {Input: 0.075, Output: 0.30},
			"openai/gpt-4o-mini":                           {Input: 0.15, Output: 0.60},
			"meta-llama/llama-3.1-70b-instruct:free":       {Input: 0, Output: 0},
			"openai/gpt-4o":                                {Input: 2.50, Output: 10.00},
			"anthropic/claude-sonnet-4-5":                  {Input: 3.00, Output: 15.00},
			"anthropic/claude-haiku-4-5":                   {Input: 0.80, Output: 4.00},
		},
		Sources: map[string]float64{
			"clearbit":       0.10,
			"google_places":  0.02,
			"proxycurl":      0.03,
			"research_query": 0.005,
		},
	}
}
