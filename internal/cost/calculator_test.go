package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/strategy-pipeline/internal/config"
)

func testPricing() config.PricingConfig {
	return config.PricingConfig{
		Models: map[string]config.ModelPricing{
			"openai/gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"openai/gpt-4o":      {Input: 2.50, Output: 10.00},
			"free/model:free":    {Input: 0, Output: 0},
		},
		Sources: map[string]float64{
			"clearbit": 0.05,
		},
	}
}

func TestCalculator_LLM(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testPricing())

	tests := []struct {
		name   string
		model  string
		input  int
		output int
		want   float64
	}{
		{"gpt-4o-mini", "openai/gpt-4o-mini", 1_000_000, 100_000, 0.15 + 0.06},
		{"gpt-4o", "openai/gpt-4o", 1_000_000, 100_000, 2.50 + 1.00},
		{"free model", "free/model:free", 1_000_000, 1_000_000, 0},
		{"unknown model", "nonexistent", 1_000_000, 1_000_000, 0},
		{"zero tokens", "openai/gpt-4o", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.LLM(tt.model, tt.input, tt.output)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestCalculator_Source(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testPricing())

	assert.InDelta(t, 0.05, calc.Source("clearbit"), 0.0001)
	assert.Equal(t, float64(0), calc.Source("geoip"))
}

func TestDefaultPricing(t *testing.T) {
	t.Parallel()
	p := DefaultPricing()

	assert.Contains(t, p.Models, "openai/gpt-4o")
	assert.Contains(t, p.Models, "anthropic/claude-sonnet-4-5")
	assert.Contains(t, p.Sources, "clearbit")

	calc := NewCalculator(p)
	assert.Greater(t, calc.LLM("openai/gpt-4o", 1_000_000, 1_000_000), 0.0)
	assert.Equal(t, float64(0), calc.LLM("meta-llama/llama-3.1-70b-instruct:free", 1_000_000, 1_000_000))
}
