package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider is an Anthropic messages-API provider.
type AnthropicProvider struct {
	Model  string
	APIKey string
	client *http.Client
	usage  *UsageLog
}

// NewAnthropicProvider creates a new Anthropic provider reading the key from
// the named environment variable.
func NewAnthropicProvider(model, apiKeyEnv string, timeout time.Duration, usage *UsageLog) *AnthropicProvider {
	return &AnthropicProvider{
		Model:  model,
		APIKey: os.Getenv(apiKeyEnv),
		client: &http.Client{Timeout: timeout},
		usage:  usage,
	}
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

// IsConfigured checks if a real API key is set.
func (a *AnthropicProvider) IsConfigured() bool {
	return !isPlaceholderKey(a.APIKey)
}

// Complete sends a messages request to Anthropic. The system prompt travels
// in its own top-level field, not as a message.
func (a *AnthropicProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	if !a.IsConfigured() {
		return nil, fmt.Errorf("Anthropic API key not configured")
	}

	body := map[string]any{
		"model":      a.Model,
		"max_tokens": req.MaxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": req.User},
		},
		"temperature": req.Temperature,
	}
	if req.System != "" {
		body["system"] = req.System
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", anthropicBaseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Anthropic API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Content) == 0 {
		return nil, fmt.Errorf("no content in Anthropic response")
	}

	comp := &Completion{
		Text:         result.Content[0].Text,
		Model:        a.Model,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		Elapsed:      time.Since(start),
	}
	a.usage.Record("anthropic", a.Model, comp.InputTokens, comp.OutputTokens)
	return comp, nil
}
