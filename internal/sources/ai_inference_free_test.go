package sources

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/llm"
	"github.com/sells-group/strategy-pipeline/internal/model"
)

type fakeLLMCaller struct {
	content string
	err     error
}

func (f *fakeLLMCaller) CallWithRetry(ctx context.Context, req llm.CallRequest) (string, model.UsageStats, error) {
	return f.content, model.UsageStats{}, f.err
}

func TestAIInferenceFreeAdapter_RequiresIdentifier(t *testing.T) {
	t.Parallel()
	a := NewAIInferenceFreeAdapter(&fakeLLMCaller{}, "free-model")

	_, err := a.Fetch(context.Background(), CompanyRef{})
	assert.Error(t, err)
}

func TestAIInferenceFreeAdapter_MapsFields(t *testing.T) {
	t.Parallel()
	client := &fakeLLMCaller{content: `{"industry":"saas","employee_count_band":"11-50","business_model":"b2b","likely_tech_stack":["React"]}`}
	a := NewAIInferenceFreeAdapter(client, "free-model")

	res, err := a.Fetch(context.Background(), CompanyRef{Domain: "acme.com", Name: "Acme"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ai_inference_enhanced", res.Source)
	assert.Equal(t, "saas", res.Fields["industry"])
	assert.Equal(t, "11-50", res.Fields["employee_count_band"])
	assert.Equal(t, "b2b", res.Fields["business_model"])
	assert.Contains(t, res.Fields["likely_tech_stack"], "React")
}

func TestAIInferenceFreeAdapter_AllNullFieldsIsNotFound(t *testing.T) {
	t.Parallel()
	client := &fakeLLMCaller{content: `{"industry":null,"employee_count_band":null,"business_model":null,"likely_tech_stack":[]}`}
	a := NewAIInferenceFreeAdapter(client, "free-model")

	res, err := a.Fetch(context.Background(), CompanyRef{Domain: "acme.com"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeNotFound, res.ErrorType)
}

func TestAIInferenceFreeAdapter_PropagatesCallError(t *testing.T) {
	t.Parallel()
	client := &fakeLLMCaller{err: eris.New("boom")}
	a := NewAIInferenceFreeAdapter(client, "free-model")

	_, err := a.Fetch(context.Background(), CompanyRef{Domain: "acme.com"})
	assert.Error(t, err)
}
