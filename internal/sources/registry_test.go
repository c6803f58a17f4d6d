package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/config"
	"github.com/sells-group/strategy-pipeline/internal/llm"
)

func TestNewRegistry_BuildsOneAdapterPerSource(t *testing.T) {
	t.Parallel()
	cfg := config.SourcesConfig{FreeInferenceModel: "llama-3.1-70b-versatile", DeepAnalysisModel: "openai/gpt-4o"}
	llmClient := llm.NewClient(config.OpenRouterConfig{}, nil, nil)

	registered := NewRegistry(cfg, llmClient)
	require.Len(t, registered, 12)

	names := make(map[string]bool)
	for _, r := range registered {
		assert.NotEmpty(t, r.Adapter.Name())
		assert.False(t, names[r.Adapter.Name()], "duplicate adapter name %q", r.Adapter.Name())
		names[r.Adapter.Name()] = true
	}
}

func TestSelect_BudgetGatesTier(t *testing.T) {
	t.Parallel()
	cfg := config.SourcesConfig{}
	llmClient := llm.NewClient(config.OpenRouterConfig{}, nil, nil)
	registered := NewRegistry(cfg, llmClient)

	free := Select(TierFree, registered)
	paid := Select(TierPaid, registered)
	premium := Select(TierPremium, registered)

	assert.Less(t, len(free), len(paid))
	assert.Less(t, len(paid), len(premium))
	assert.Equal(t, len(registered), len(premium))
}
