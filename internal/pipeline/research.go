package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/pkg/perplexity"
)

// PerplexityResearch adapts pkg/perplexity.Client to the ResearchClient
// interface Stage 2's follow-up research dispatches through.
type PerplexityResearch struct {
	client perplexity.Client
	model  string
}

// NewPerplexityResearch builds a ResearchClient backed by a real-time
// research provider. modelID selects the provider's model (e.g.
// "sonar-pro").
func NewPerplexityResearch(client perplexity.Client, modelID string) *PerplexityResearch {
	return &PerplexityResearch{client: client, model: modelID}
}

// Research dispatches one follow-up query and returns the answer text
// plus its token usage.
func (r *PerplexityResearch) Research(ctx context.Context, query string, maxTokens int) (string, model.UsageStats, error) {
	resp, err := r.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:     r.model,
		Messages:  []perplexity.Message{{Role: "user", Content: query}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", model.UsageStats{}, eris.Wrap(err, "research: chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", model.UsageStats{}, eris.New("research: empty response")
	}

	usage := model.UsageStats{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}
