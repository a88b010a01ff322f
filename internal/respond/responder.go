package respond

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"rulechat/internal/database"
	"rulechat/internal/llm"
	"rulechat/internal/scorer"
)

const (
	maxContextRules = 5
	maxRuleChars    = 500
	maxSources      = 3

	aiConfidence       = 0.95
	noResultConfidence = 0.1
)

// Responder assembles structured answers from ranked rules, with an AI
// completion path and a deterministic template path. The template path is
// the fallback for every provider failure class; nothing AI-related ever
// reaches the caller as an error.
type Responder struct {
	provider    llm.Provider
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// New creates a responder. A nil provider means template-only operation.
func New(provider llm.Provider, timeout time.Duration, maxTokens int) *Responder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Responder{
		provider:    provider,
		timeout:     timeout,
		maxTokens:   maxTokens,
		temperature: 0.3,
	}
}

// Answer produces the uniform result for one query. Never returns an error
// for AI failures; those switch to the template path with no retry.
func (r *Responder) Answer(ctx context.Context, query string, game *database.Game, ranked []scorer.ScoredCandidate) *Result {
	if len(ranked) == 0 {
		return noResults(game)
	}

	top := ranked
	if len(top) > maxContextRules {
		top = top[:maxContextRules]
	}

	if r.provider != nil {
		result, err := r.aiAnswer(ctx, query, game, top)
		if err == nil {
			return result
		}
		log.Printf("AI completion failed, using template fallback: %v", err)
		result = r.templateAnswer(query, game, ranked, top)
		result.SearchMethod = MethodTemplateFallback
		result.FallbackReason = err.Error()
		return result
	}

	return r.templateAnswer(query, game, ranked, top)
}

func noResults(game *database.Game) *Result {
	name := "this game"
	if game != nil {
		name = game.Name
	}
	return &Result{
		Response: StructuredResponse{
			Summary: Summary{
				Text:       fmt.Sprintf("No rules found for %s matching your question. Try rephrasing or ask about a different topic.", name),
				Confidence: noResultConfidence,
			},
			Sections: []Section{},
			Sources:  []Source{},
		},
		SearchMethod: MethodScoring,
	}
}

func (r *Responder) aiAnswer(ctx context.Context, query string, game *database.Game, top []scorer.ScoredCandidate) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	comp, err := r.provider.Complete(ctx, llm.Request{
		System:      systemPrompt(game),
		User:        userMessage(query, top),
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(comp.Text) == "" {
		return nil, fmt.Errorf("empty completion")
	}

	return &Result{
		Response: StructuredResponse{
			Summary: Summary{Text: comp.Text, Confidence: aiConfidence},
			Sections: []Section{{
				ID:          "answer",
				Title:       "Answer",
				Content:     comp.Text,
				Type:        "markdown",
				Level:       1,
				Collapsible: false,
				Expanded:    true,
			}},
			Sources: sources(game, top),
		},
		SearchMethod: MethodAIPowered,
		AIPowered:    true,
		Model:        comp.Model,
		Usage:        &Usage{InputTokens: comp.InputTokens, OutputTokens: comp.OutputTokens},
	}, nil
}

func systemPrompt(game *database.Game) string {
	name := "the game"
	if game != nil {
		name = game.Name
	}
	return fmt.Sprintf(`You are an expert on the rules of %s. Answer the player's question using only the rule excerpts provided.

Format your answer in three parts:
1. A bold one-sentence direct answer.
2. A short explanation with an example.
3. 3-5 related rule bullets.

If the excerpts do not cover the question, say so instead of guessing.`, name)
}

func userMessage(query string, top []scorer.ScoredCandidate) string {
	var b strings.Builder
	b.WriteString("Relevant rules:\n\n")
	for _, c := range top {
		b.WriteString("## ")
		b.WriteString(c.Rule.Title)
		b.WriteString("\n")
		b.WriteString(truncate(c.Rule.Content, maxRuleChars))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

// sources renders the top ranked rules as citations. Page numbers are not
// tracked for Markdown rulebooks.
func sources(game *database.Game, top []scorer.ScoredCandidate) []Source {
	name := "Game"
	if game != nil {
		name = game.Name
	}
	n := len(top)
	if n > maxSources {
		n = maxSources
	}
	srcs := make([]Source, 0, n)
	for _, c := range top[:n] {
		srcs = append(srcs, Source{
			Type:      "rulebook",
			Reference: name + " Rules - " + categoryName(c.Rule.GameID, c.Rule.CategoryID),
		})
	}
	return srcs
}

// categoryName turns a category_id back into a display name by stripping the
// game prefix and title-casing the remainder.
func categoryName(gameID, categoryID string) string {
	name := strings.TrimPrefix(categoryID, gameID+"_")
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// truncate cuts s to at most n bytes, backing up to a rune boundary so a
// multi-byte character is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
