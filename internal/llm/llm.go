package llm

import (
	"context"
	"log"
	"strings"
	"time"
)

// Request is one completion request to an AI provider.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completion is a successful provider response with usage accounting.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Elapsed      time.Duration
}

// Provider is the interface for AI completion providers. Callers must treat
// any error uniformly: auth, rate limit, network, and malformed responses
// all mean "fall back", never "crash".
type Provider interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
	Name() string
	IsConfigured() bool
}

// Embedder is the interface for generating embeddings. Used at ingestion
// time only; a failure skips the individual chunk, never the batch.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Placeholder keys shipped in example configs count as unconfigured.
func isPlaceholderKey(key string) bool {
	return key == "" || strings.HasPrefix(key, "your-") || key == "changeme"
}

// Options carries provider construction settings.
type Options struct {
	Provider        string // openai, anthropic, ollama, none
	OpenAIModel     string
	OpenAIKeyEnv    string
	AnthropicModel  string
	AnthropicKeyEnv string
	OllamaModel     string
	OllamaURL       string
	Timeout         time.Duration
	Usage           *UsageLog
}

// NewProvider selects a completion provider at construction time. Returns
// nil when no provider is configured; the response path treats nil as
// "template only".
func NewProvider(opts Options) Provider {
	switch strings.ToLower(opts.Provider) {
	case "openai":
		p := NewOpenAIProvider(opts.OpenAIModel, opts.OpenAIKeyEnv, opts.Timeout, opts.Usage)
		if p.IsConfigured() {
			log.Printf("Using OpenAI with model: %s", opts.OpenAIModel)
			return p
		}
		log.Println("OpenAI API key not set; AI responses disabled")
	case "anthropic":
		p := NewAnthropicProvider(opts.AnthropicModel, opts.AnthropicKeyEnv, opts.Timeout, opts.Usage)
		if p.IsConfigured() {
			log.Printf("Using Anthropic with model: %s", opts.AnthropicModel)
			return p
		}
		log.Println("Anthropic API key not set; AI responses disabled")
	case "ollama":
		p := NewOllamaProvider(opts.OllamaModel, opts.OllamaURL, opts.Timeout, opts.Usage)
		log.Printf("Using Ollama with model: %s", opts.OllamaModel)
		return p
	case "", "none":
	default:
		log.Printf("Unknown AI provider %q; AI responses disabled", opts.Provider)
	}
	return nil
}
