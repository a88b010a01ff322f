package llm

import (
	"strings"
	"sync"
	"time"
)

// usageCapacity bounds the in-memory usage log. Older entries are discarded.
const usageCapacity = 100

// Cost per million tokens, input/output, by model prefix. Longer prefixes
// first so gpt-4o-mini is not priced as gpt-4o. Unknown models cost zero;
// the numbers are estimates for the admin dashboard, not billing.
var modelPricing = []struct {
	prefix string
	in     float64
	out    float64
}{
	{"gpt-4o-mini", 0.15, 0.60},
	{"gpt-4o", 2.50, 10.00},
	{"claude-3-5-haiku", 0.80, 4.00},
	{"claude-3-haiku", 0.25, 1.25},
}

// UsageEntry records one completed AI request.
type UsageEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	InputTokens   int       `json:"input_tokens"`
	OutputTokens  int       `json:"output_tokens"`
	EstimatedCost float64   `json:"estimated_cost"`
}

// UsageSummary aggregates the retained entries for the admin endpoint.
type UsageSummary struct {
	TotalRequests int            `json:"total_requests"`
	TotalTokens   int            `json:"total_tokens"`
	TotalCost     float64        `json:"total_cost"`
	ByProvider    map[string]int `json:"by_provider"`
	Recent        []UsageEntry   `json:"recent"`
}

// UsageLog is a bounded in-memory log of AI requests. Safe for concurrent
// use. A nil log is valid and records nothing.
type UsageLog struct {
	mu      sync.Mutex
	entries []UsageEntry
}

// NewUsageLog creates an empty usage log.
func NewUsageLog() *UsageLog {
	return &UsageLog{}
}

// Record appends one request, discarding the oldest entry past capacity.
func (u *UsageLog) Record(provider, model string, inputTokens, outputTokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	u.entries = append(u.entries, UsageEntry{
		Timestamp:     time.Now().UTC(),
		Provider:      provider,
		Model:         model,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		EstimatedCost: estimateCost(model, inputTokens, outputTokens),
	})
	if len(u.entries) > usageCapacity {
		u.entries = u.entries[len(u.entries)-usageCapacity:]
	}
}

// Summary aggregates the retained entries. Recent holds the newest ten,
// newest first.
func (u *UsageLog) Summary() UsageSummary {
	s := UsageSummary{ByProvider: map[string]int{}}
	if u == nil {
		return s
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, e := range u.entries {
		s.TotalRequests++
		s.TotalTokens += e.InputTokens + e.OutputTokens
		s.TotalCost += e.EstimatedCost
		s.ByProvider[e.Provider]++
	}

	n := len(u.entries)
	for i := n - 1; i >= 0 && len(s.Recent) < 10; i-- {
		s.Recent = append(s.Recent, u.entries[i])
	}
	return s
}

func estimateCost(model string, inputTokens, outputTokens int) float64 {
	for _, p := range modelPricing {
		if strings.HasPrefix(model, p.prefix) {
			return float64(inputTokens)*p.in/1e6 + float64(outputTokens)*p.out/1e6
		}
	}
	return 0
}
