package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/config"
	"github.com/sells-group/strategy-pipeline/internal/model"
)

// openRouterTransport performs chat completions against an
// OpenRouter-shaped endpoint, grounded on pkg/perplexity/client.go's
// request/response shape and HTTP client configuration.
type openRouterTransport struct {
	apiKey   string
	baseURL  string
	referrer string
	appTitle string
	http     *http.Client
}

func newOpenRouterTransport(cfg config.OpenRouterConfig) *openRouterTransport {
	return &openRouterTransport{
		apiKey:   cfg.Key,
		baseURL:  cfg.BaseURL,
		referrer: cfg.Referrer,
		appTitle: cfg.AppTitle,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterRequest struct {
	Model       string               `json:"model"`
	Messages    []openRouterMessage  `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
}

type openRouterResponse struct {
	Choices []struct {
		Message openRouterMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (t *openRouterTransport) complete(ctx context.Context, modelID, systemPrompt, prompt string, temperature float64, maxTokens int) (string, model.UsageStats, error) {
	req := openRouterRequest{
		Model:       modelID,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, openRouterMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, openRouterMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(req)
	if err != nil {
		return "", model.UsageStats{}, eris.Wrap(err, "llm: marshal openrouter request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", model.UsageStats{}, eris.Wrap(err, "llm: create openrouter request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	if t.referrer != "" {
		httpReq.Header.Set("HTTP-Referer", t.referrer)
	}
	if t.appTitle != "" {
		httpReq.Header.Set("X-Title", t.appTitle)
	}

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return "", model.UsageStats{}, eris.Wrap(err, "llm: send openrouter request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.UsageStats{}, eris.Wrap(err, "llm: read openrouter response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", model.UsageStats{}, eris.Errorf("llm: openrouter status %d: %s", resp.StatusCode, string(respBody))
	}

	var result openRouterResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", model.UsageStats{}, eris.Wrap(err, "llm: unmarshal openrouter response")
	}
	if len(result.Choices) == 0 {
		return "", model.UsageStats{}, eris.New("llm: openrouter response had no choices")
	}

	usage := model.UsageStats{
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}
	return result.Choices[0].Message.Content, usage, nil
}
