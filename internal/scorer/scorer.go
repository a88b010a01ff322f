// Package scorer ranks rule records against a free-text query with a
// hand-tuned keyword heuristic. Pure term-frequency scoring under-ranks
// domain vocabulary (a piece name in a short title beats the same word
// buried in a long section), so title and piece/action matches carry
// tiered bonuses. Scores are integers, not probabilities.
package scorer

import (
	"sort"
	"strings"

	"rulechat/internal/database"
)

// ScoredCandidate pairs a rule with its relevance score. Ephemeral: produced
// here, consumed by the response assembler, never persisted.
type ScoredCandidate struct {
	Rule  database.Rule
	Score int
}

// pieces in fixed priority order. Only the first piece name present in the
// query triggers the tiered bonus branch; a query naming two pieces gets
// bonuses for one. Kept as-is deliberately; tests pin this behavior.
var pieces = []string{"pawn", "knight", "king", "queen", "bishop", "rook"}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "do": true,
	"does": true, "did": true, "can": true, "could": true, "will": true,
	"would": true, "should": true, "how": true, "what": true, "when": true,
	"where": true, "why": true, "which": true, "who": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "and": true, "or": true, "it": true, "my": true, "i": true,
}

// Tokenize splits a query on whitespace, strips trailing punctuation,
// lowercases, and removes stop words.
func Tokenize(query string) []string {
	var terms []string
	for _, field := range strings.Fields(query) {
		term := strings.ToLower(strings.TrimRight(field, "?.,!"))
		if term == "" || stopWords[term] {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// Rank scores every candidate against the query and returns those with a
// positive score, highest first. Ties keep their original retrieval order.
// Deterministic: same query and candidates always produce the same result.
func Rank(query string, candidates []database.Rule) []ScoredCandidate {
	terms := Tokenize(query)
	termSet := make(map[string]bool, len(terms))
	for _, t := range terms {
		termSet[t] = true
	}

	var scored []ScoredCandidate
	for _, rule := range candidates {
		if s := Score(terms, termSet, rule); s > 0 {
			scored = append(scored, ScoredCandidate{Rule: rule, Score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Score computes one candidate's relevance score for the tokenized query.
func Score(terms []string, termSet map[string]bool, rule database.Rule) int {
	title := strings.ToLower(rule.Title)
	content := strings.ToLower(rule.Content)
	category := strings.ToLower(rule.CategoryID)

	score := 0
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += 10
			if term == title {
				score += 20
			}
		}
		score += 2 * strings.Count(content, term)
		if strings.Contains(category, term) {
			score += 5
		}
	}

	score += domainBonus(termSet, title, content)

	// Generic sections are weak answers unless asked for directly.
	if strings.Contains(title, "overview") && !termSet["overview"] {
		score -= 5
	}
	if strings.Contains(title, "setup") && !termSet["setup"] && !termSet["start"] {
		score -= 3
	}

	return score
}

// domainBonus applies the mutually exclusive piece/action branches in fixed
// priority order. Exactly one branch fires per candidate.
func domainBonus(termSet map[string]bool, title, content string) int {
	for _, piece := range pieces {
		if !termSet[piece] && !termSet[piece+"s"] {
			continue
		}
		bonus := 0
		movement := piece + " movement"
		switch {
		case strings.Contains(title, movement) || strings.Contains(content, movement):
			bonus = 25
		case strings.Contains(title, piece):
			bonus = 20
		case strings.Contains(content, piece):
			bonus = 15
		}
		if strings.Contains(title, "illegal") || strings.Contains(title, "penalty") {
			bonus -= 10
		}
		return bonus
	}

	switch {
	case termSet["castle"] || termSet["castling"]:
		if strings.Contains(title, "castl") || strings.Contains(content, "castl") {
			return 15
		}
	case termSet["checkmate"]:
		if strings.Contains(title, "checkmate") || strings.Contains(content, "checkmate") {
			return 15
		}
	case termSet["check"]:
		if strings.Contains(title, "check") || strings.Contains(content, "check") {
			return 15
		}
	case termSet["move"] || termSet["moves"] || termSet["movement"]:
		bonus := 0
		if strings.Contains(title, "move") || strings.Contains(content, "move") {
			bonus = 10
		}
		for _, piece := range pieces {
			if strings.Contains(title, piece) {
				bonus += 15
			}
		}
		return bonus
	}
	return 0
}
