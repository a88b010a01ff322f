package respond

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"rulechat/internal/database"
	"rulechat/internal/llm"
	"rulechat/internal/scorer"
)

type mockProvider struct {
	text string
	err  error
}

func (m *mockProvider) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Completion{Text: m.text, Model: "mock", InputTokens: 10, OutputTokens: 20}, nil
}

func (m *mockProvider) Name() string       { return "mock" }
func (m *mockProvider) IsConfigured() bool { return true }

func chessGame() *database.Game {
	return &database.Game{GameID: "chess", Name: "Chess"}
}

func ranked(rules ...database.Rule) []scorer.ScoredCandidate {
	var out []scorer.ScoredCandidate
	for i, r := range rules {
		out = append(out, scorer.ScoredCandidate{Rule: r, Score: 100 - i})
	}
	return out
}

func pawnRule() database.Rule {
	return database.Rule{
		GameID:     "chess",
		CategoryID: "chess_movement",
		Title:      "Pawn Movement",
		Content:    "Pawns move forward one square at a time. They capture diagonally.",
	}
}

func TestNoResults(t *testing.T) {
	r := New(&mockProvider{text: "unused"}, time.Second, 100)
	result := r.Answer(context.Background(), "anything", chessGame(), nil)

	if result.Response.Summary.Confidence > 0.3 {
		t.Errorf("expected low confidence, got %v", result.Response.Summary.Confidence)
	}
	if len(result.Response.Sections) != 0 || len(result.Response.Sources) != 0 {
		t.Error("expected empty sections and sources")
	}
	if result.AIPowered {
		t.Error("no-results path must not report AI")
	}
}

func TestAISuccess(t *testing.T) {
	r := New(&mockProvider{text: "**Pawns move forward.** They capture diagonally."}, time.Second, 100)
	result := r.Answer(context.Background(), "How do pawns move?", chessGame(), ranked(pawnRule()))

	if result.SearchMethod != MethodAIPowered {
		t.Fatalf("expected ai_powered, got %q", result.SearchMethod)
	}
	if !result.AIPowered || result.Model != "mock" {
		t.Error("expected AI metadata")
	}
	if result.Usage == nil || result.Usage.InputTokens != 10 {
		t.Error("expected usage accounting")
	}
	if result.Response.Summary.Confidence != 0.95 {
		t.Errorf("expected 0.95 confidence, got %v", result.Response.Summary.Confidence)
	}
}

func TestProviderErrorFallsBack(t *testing.T) {
	for _, tc := range []struct {
		name     string
		provider llm.Provider
	}{
		{"transport error", &mockProvider{err: errors.New("connection refused")}},
		{"auth error", &mockProvider{err: errors.New("API returned 401: invalid key")}},
		{"rate limit", &mockProvider{err: errors.New("API returned 429")}},
		{"empty completion", &mockProvider{text: "   "}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := New(tc.provider, time.Second, 100)
			result := r.Answer(context.Background(), "How do pawns move?", chessGame(), ranked(pawnRule()))

			if result.SearchMethod != MethodTemplateFallback {
				t.Fatalf("expected template_fallback, got %q", result.SearchMethod)
			}
			if result.AIPowered {
				t.Error("fallback must not report AI")
			}
			if result.FallbackReason == "" {
				t.Error("expected fallback reason recorded")
			}
			if result.Response.Summary.Text == "" {
				t.Error("expected a template answer")
			}
		})
	}
}

func TestTimeoutFallsBack(t *testing.T) {
	slow := &slowProvider{delay: 200 * time.Millisecond}
	r := New(slow, 10*time.Millisecond, 100)
	result := r.Answer(context.Background(), "How do pawns move?", chessGame(), ranked(pawnRule()))

	if result.SearchMethod != MethodTemplateFallback {
		t.Fatalf("expected template_fallback after timeout, got %q", result.SearchMethod)
	}
}

type slowProvider struct {
	delay time.Duration
}

func (s *slowProvider) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	select {
	case <-time.After(s.delay):
		return &llm.Completion{Text: "late"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *slowProvider) Name() string       { return "slow" }
func (s *slowProvider) IsConfigured() bool { return true }

func TestNoProviderUsesScoring(t *testing.T) {
	r := New(nil, time.Second, 100)
	result := r.Answer(context.Background(), "How do pawns move?", chessGame(), ranked(pawnRule()))

	if result.SearchMethod != MethodScoring {
		t.Fatalf("expected intelligent_scoring, got %q", result.SearchMethod)
	}
	if result.AIPowered {
		t.Error("template path must not report AI")
	}
}

func TestMatchedTemplateConfidence(t *testing.T) {
	r := New(nil, time.Second, 100)
	result := r.Answer(context.Background(), "How do pawns move?", chessGame(), ranked(pawnRule()))

	if result.Response.Summary.Confidence != matchedConfidence {
		t.Errorf("expected matched confidence %v, got %v", matchedConfidence, result.Response.Summary.Confidence)
	}
	if len(result.Response.Sections) < 3 {
		t.Fatalf("expected answer, explanation, and related sections, got %d", len(result.Response.Sections))
	}
}

func TestGenericFallbackConfidence(t *testing.T) {
	r := New(nil, time.Second, 100)
	rules := ranked(
		database.Rule{GameID: "chess", CategoryID: "chess_general", Title: "Scoring", Content: "Points are tallied at the end. Each capture is worth one point."},
		database.Rule{GameID: "chess", CategoryID: "chess_general", Title: "Draws", Content: "A draw splits the point. Both players score half."},
	)
	result := r.Answer(context.Background(), "tell me about points", chessGame(), rules)

	got := result.Response.Summary.Confidence
	if got != 0.5 {
		t.Errorf("expected 0.3 + 0.1*2 = 0.5, got %v", got)
	}
	if result.Response.Summary.Text == "" {
		t.Error("expected generic answer from top rule")
	}
}

func TestSourcesCappedAtThree(t *testing.T) {
	r := New(nil, time.Second, 100)
	rules := ranked(pawnRule(), pawnRule(), pawnRule(), pawnRule(), pawnRule())
	result := r.Answer(context.Background(), "How do pawns move?", chessGame(), rules)

	if len(result.Response.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(result.Response.Sources))
	}
	want := "Chess Rules - Movement"
	if result.Response.Sources[0].Reference != want {
		t.Errorf("expected %q, got %q", want, result.Response.Sources[0].Reference)
	}
	if result.Response.Sources[0].Page != nil {
		t.Error("page numbers are never populated")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// é is two bytes; an odd byte limit lands mid-rune.
	s := strings.Repeat("é", 300)
	for _, n := range []int{99, 100, 101, 500} {
		got := truncate(s, n)
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%d) produced invalid UTF-8", n)
		}
		if len(s) > n {
			if !strings.HasSuffix(got, "...") {
				t.Errorf("truncate(%d) missing ellipsis", n)
			}
			if len(got) > n+3 {
				t.Errorf("truncate(%d) returned %d bytes", n, len(got))
			}
		} else if got != s {
			t.Errorf("truncate(%d) modified a string under the limit", n)
		}
	}

	if got := truncate("plain ascii", 5); got != "plain..." {
		t.Errorf("expected plain..., got %q", got)
	}
}

func TestMatchTopicPriority(t *testing.T) {
	cases := []struct {
		query string
		topic string
	}{
		{"how do pawns move", "pawn_movement"},
		{"how does the knight move", "knight_movement"},
		{"what is checkmate", "checkmate"},
		{"what is check", "check"},
		{"what is castling", "castling"},
		{"what is en passant", "en_passant"},
		{"can I castle out of check", "castling_rights"},
	}
	for _, c := range cases {
		topic, ok := matchTopic(c.query)
		if !ok || topic != c.topic {
			t.Errorf("%q: expected %q, got %q (ok=%v)", c.query, c.topic, topic, ok)
		}
	}

	if _, ok := matchTopic("tell me about scoring"); ok {
		t.Error("expected no topic for generic query")
	}
}
