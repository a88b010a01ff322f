package scorer

import (
	"strings"
	"testing"

	"rulechat/internal/database"
)

func rule(title, content, categoryID string) database.Rule {
	return database.Rule{GameID: "chess", CategoryID: categoryID, Title: title, Content: content}
}

var chessRules = []database.Rule{
	rule("Pawn Movement", "Pawns move forward one square. Pawn captures are diagonal.", "chess_movement"),
	rule("Knight Movement", "Knights move in an L-shape and jump over pieces.", "chess_movement"),
	rule("Castling", "The king moves two squares toward a rook when castling.", "chess_special_moves"),
	rule("Checkmate", "Checkmate ends the game when the king cannot escape check.", "chess_endgame"),
	rule("Board Overview", "The board has 64 squares in an 8x8 grid.", "chess_general"),
	rule("Game Setup", "Place the pieces on the back ranks.", "chess_general"),
}

func TestTokenize(t *testing.T) {
	terms := Tokenize("How do pawns move?")
	want := []string{"pawns", "move"}
	if len(terms) != len(want) {
		t.Fatalf("expected %v, got %v", want, terms)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("term %d: expected %q, got %q", i, want[i], terms[i])
		}
	}
}

func TestTokenizeStopWordsOnly(t *testing.T) {
	if terms := Tokenize("how can it be"); len(terms) != 0 {
		t.Errorf("expected no terms, got %v", terms)
	}
}

func TestPawnQueryPrefersPawnMovement(t *testing.T) {
	ranked := Rank("How do pawns move?", chessRules)
	if len(ranked) == 0 {
		t.Fatal("expected results")
	}
	if ranked[0].Rule.Title != "Pawn Movement" {
		t.Fatalf("expected Pawn Movement first, got %q", ranked[0].Rule.Title)
	}

	// The piece-specific match must clearly separate from the generic
	// movement rule for the other piece.
	var knight int
	for _, c := range ranked {
		if c.Rule.Title == "Knight Movement" {
			knight = c.Score
		}
	}
	if ranked[0].Score-knight < 20 {
		t.Errorf("expected pawn to lead knight by >= 20, got %d vs %d", ranked[0].Score, knight)
	}
}

func TestCastlingQuery(t *testing.T) {
	ranked := Rank("What is castling?", chessRules)
	if len(ranked) == 0 || ranked[0].Rule.Title != "Castling" {
		t.Fatalf("expected Castling first, got %v", ranked)
	}
}

func TestCheckmateBeatsCheck(t *testing.T) {
	ranked := Rank("What is checkmate?", chessRules)
	if len(ranked) == 0 || ranked[0].Rule.Title != "Checkmate" {
		t.Fatalf("expected Checkmate first, got %v", ranked)
	}
}

func TestOnlyFirstPieceBranchFires(t *testing.T) {
	terms := Tokenize("pawn knight")
	termSet := map[string]bool{"pawn": true, "knight": true}

	// Pawn precedes knight in the priority order, so the knight rule gets
	// no piece bonus beyond content/title term matches.
	pawnScore := Score(terms, termSet, chessRules[0])
	knightScore := Score(terms, termSet, chessRules[1])
	if pawnScore <= knightScore {
		t.Errorf("expected pawn rule to outscore knight rule, got %d vs %d", pawnScore, knightScore)
	}
}

func TestOverviewPenalty(t *testing.T) {
	// One content occurrence (+2) minus the overview penalty (-5) drops the
	// rule out of the results entirely.
	for _, c := range Rank("squares", chessRules) {
		if c.Rule.Title == "Board Overview" {
			t.Errorf("expected penalized overview rule to be dropped, got score %d", c.Score)
		}
	}

	// Asking for the overview directly skips the penalty.
	ranked := Rank("board overview", chessRules)
	if len(ranked) == 0 || ranked[0].Rule.Title != "Board Overview" {
		t.Fatalf("expected Board Overview first for direct query, got %v", ranked)
	}
}

func TestNonPositiveScoresDropped(t *testing.T) {
	ranked := Rank("dragons", chessRules)
	if len(ranked) != 0 {
		t.Errorf("expected no results for unrelated query, got %v", ranked)
	}
}

func TestRankDeterministic(t *testing.T) {
	first := Rank("How do pawns move?", chessRules)
	for i := 0; i < 10; i++ {
		again := Rank("How do pawns move?", chessRules)
		if len(again) != len(first) {
			t.Fatal("result length changed between runs")
		}
		for j := range first {
			if again[j].Rule.Title != first[j].Rule.Title || again[j].Score != first[j].Score {
				t.Fatalf("run %d: order or score changed at %d", i, j)
			}
		}
	}
}

func TestTiesKeepRetrievalOrder(t *testing.T) {
	tied := []database.Rule{
		rule("Alpha", "the same words here", "chess_general"),
		rule("Beta", "the same words here", "chess_general"),
	}
	ranked := Rank("words", tied)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].Rule.Title != "Alpha" || ranked[1].Rule.Title != "Beta" {
		t.Errorf("expected stable order Alpha, Beta; got %q, %q", ranked[0].Rule.Title, ranked[1].Rule.Title)
	}
}

func TestExactTitleMatchNeverLowersScore(t *testing.T) {
	// Querying a rule by its own title must score at least as high as the
	// same rule under a diluted title.
	for _, r := range chessRules {
		query := strings.ToLower(r.Title)
		terms := Tokenize(query)
		termSet := make(map[string]bool, len(terms))
		for _, term := range terms {
			termSet[term] = true
		}

		diluted := r
		diluted.Title = r.Title + " Details"
		if exact, loose := Score(terms, termSet, r), Score(terms, termSet, diluted); exact < loose {
			t.Errorf("%q: exact title scored %d, below diluted title's %d", r.Title, exact, loose)
		}
	}

	// Single-word titles carry the exact bonus on top of the substring bonus.
	terms := Tokenize("castling")
	termSet := map[string]bool{"castling": true}
	exact := Score(terms, termSet, rule("Castling", "castle details", "chess_special_moves"))
	partial := Score(terms, termSet, rule("Castling Basics", "castle details", "chess_special_moves"))
	if exact-partial != 20 {
		t.Errorf("expected exact-title bonus of 20, got %d vs %d", exact, partial)
	}
}

func TestEmptyQuery(t *testing.T) {
	if ranked := Rank("", chessRules); len(ranked) != 0 {
		t.Errorf("expected no results for empty query, got %d", len(ranked))
	}
}
