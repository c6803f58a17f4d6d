package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	anthropicpkg "github.com/sells-group/strategy-pipeline/pkg/anthropic"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// anthropicModelPrefix marks model IDs in the OpenRouter-style slot
// config that should instead route directly to the Anthropic API —
// wrapped behind this same Client interface rather than routed through
// OpenRouter.
const anthropicModelPrefix = "anthropic/"

func isAnthropicModel(modelID string) bool {
	return strings.HasPrefix(modelID, anthropicModelPrefix)
}

func nativeAnthropicModel(modelID string) string {
	return strings.TrimPrefix(modelID, anthropicModelPrefix)
}

func completeAnthropic(ctx context.Context, client anthropicpkg.Client, modelID, systemPrompt, prompt string, temperature float64, maxTokens int) (string, model.UsageStats, error) {
	temp := temperature
	req := anthropicpkg.MessageRequest{
		Model:       nativeAnthropicModel(modelID),
		MaxTokens:   int64(maxTokens),
		Temperature: &temp,
		Messages:    []anthropicpkg.Message{{Role: "user", Content: prompt}},
	}
	if systemPrompt != "" {
		req.System = []anthropicpkg.SystemBlock{{Text: systemPrompt}}
	}

	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return "", model.UsageStats{}, eris.Wrap(err, "llm: anthropic create message")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	usage := model.UsageStats{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	return text.String(), usage, nil
}
