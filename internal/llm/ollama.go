package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaProvider is a local Ollama chat provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
	usage   *UsageLog
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, timeout time.Duration, usage *UsageLog) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		usage:   usage,
	}
}

func (o *OllamaProvider) Name() string { return "ollama" }

// IsConfigured reports true unconditionally; Ollama needs no key. An
// unreachable daemon surfaces as a Complete error and falls back like any
// other provider failure.
func (o *OllamaProvider) IsConfigured() bool { return true }

// Complete sends a chat request to Ollama.
func (o *OllamaProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	messages := []map[string]string{}
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.User})

	body := map[string]any{
		"model":    o.Model,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"num_predict": req.MaxTokens,
			"temperature": req.Temperature,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	comp := &Completion{
		Text:         result.Message.Content,
		Model:        o.Model,
		InputTokens:  result.PromptEvalCount,
		OutputTokens: result.EvalCount,
		Elapsed:      time.Since(start),
	}
	o.usage.Record("ollama", o.Model, comp.InputTokens, comp.OutputTokens)
	return comp, nil
}
