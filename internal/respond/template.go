package respond

import (
	"strings"

	"rulechat/internal/database"
	"rulechat/internal/scorer"
)

const (
	matchedConfidence = 0.95
	maxExplanation    = 400
	maxBulletChars    = 100
	maxRelated        = 4
)

// topicTemplate is one canned answer: direct statement, worked example, and
// fixed related-rule bullets.
type topicTemplate struct {
	Direct      string
	Explanation string
	Related     []string
}

var topics = map[string]topicTemplate{
	"pawn_movement": {
		Direct:      "**Pawns move forward one square** (or two squares from their starting position) and capture diagonally one square forward.",
		Explanation: "A pawn on e2 may advance to e3 or e4 on its first move. After that it advances one square at a time. It captures only diagonally: a pawn on e4 can take an enemy piece on d5 or f5, but never the piece directly in front of it.",
		Related: []string{
			"**En Passant**: a pawn that just advanced two squares can be captured in passing by an adjacent enemy pawn.",
			"**Promotion**: a pawn reaching the last rank must be exchanged for a queen, rook, bishop, or knight.",
			"**Blocked Pawns**: a pawn cannot advance into an occupied square.",
		},
	},
	"knight_movement": {
		Direct:      "**Knights move in an L-shape**: two squares in one direction, then one square perpendicular to it.",
		Explanation: "A knight on g1 can reach f3, h3, or e2. Knights are the only pieces that jump over others, so that move is legal even with pawns still on f2 and g2.",
		Related: []string{
			"**Jumping**: knights ignore pieces standing between their start and destination squares.",
			"**Forks**: a knight attacking two pieces at once is a common tactic.",
			"**Capturing**: a knight captures by landing on the enemy piece's square.",
		},
	},
	"king_movement": {
		Direct:      "**The king moves one square in any direction**: horizontally, vertically, or diagonally.",
		Explanation: "A king on e1 can move to d1, d2, e2, f2, or f1, provided the square is not attacked by an enemy piece. The king may never move into check.",
		Related: []string{
			"**Castling**: once per game the king may move two squares toward a rook.",
			"**Check**: a king under attack must escape immediately.",
			"**Checkmate**: a king in check with no escape loses the game.",
		},
	},
	"queen_movement": {
		Direct:      "**The queen moves any number of squares** horizontally, vertically, or diagonally.",
		Explanation: "A queen on d4 controls the whole d-file, the fourth rank, and both diagonals through d4. She combines the powers of a rook and a bishop but cannot jump over pieces.",
		Related: []string{
			"**Rook Movement**: rooks move any distance along ranks and files.",
			"**Bishop Movement**: bishops move any distance along diagonals.",
			"**Capturing**: the queen captures by landing on the enemy piece's square.",
		},
	},
	"bishop_movement": {
		Direct:      "**Bishops move diagonally any number of squares** and stay on their starting color for the whole game.",
		Explanation: "A bishop on c1 travels the dark diagonals, for example to b2, a3, d2, or h6. It cannot jump over pieces, so its diagonal must be clear.",
		Related: []string{
			"**Queen Movement**: the queen also moves diagonally, plus ranks and files.",
			"**Bishop Pair**: the two bishops together cover both square colors.",
			"**Blocked Lines**: a bishop cannot pass through occupied squares.",
		},
	},
	"rook_movement": {
		Direct:      "**Rooks move any number of squares horizontally or vertically** along clear ranks and files.",
		Explanation: "A rook on a1 can slide along the first rank or up the a-file until it reaches a piece. It captures by stopping on the enemy piece's square.",
		Related: []string{
			"**Castling**: the rook participates in castling with the king.",
			"**Open Files**: rooks are strongest on files with no pawns.",
			"**Queen Movement**: the queen includes the rook's movement pattern.",
		},
	},
	"checkmate": {
		Direct:      "**Checkmate ends the game**: the king is in check and there is no legal move that removes the threat.",
		Explanation: "In the back-rank mate a rook delivers check along the eighth rank while the defending king is trapped behind its own pawns on f7, g7, and h7. No piece can block or capture, so the game is over.",
		Related: []string{
			"**Check**: an attack on the king that must be answered immediately.",
			"**Stalemate**: no legal moves but the king is not in check; the game is drawn.",
			"**King Safety**: castling early helps avoid mating attacks.",
		},
	},
	"check": {
		Direct:      "**Check means the king is under attack** and the player must remove the threat on their next move.",
		Explanation: "There are three ways out of check: move the king to a safe square, block the attack with another piece, or capture the checking piece. If none is possible, the position is checkmate.",
		Related: []string{
			"**Checkmate**: check with no legal escape ends the game.",
			"**Illegal Moves**: a move that leaves your own king in check is not allowed.",
			"**Double Check**: when two pieces give check, only a king move can answer.",
		},
	},
	"castling": {
		Direct:      "**Castling moves the king two squares toward a rook**, and that rook jumps to the square the king crossed.",
		Explanation: "Kingside castling puts the white king on g1 and the rook on f1. It is the only move where two pieces move at once, and the only time the king moves two squares.",
		Related: []string{
			"**Castling Rights**: neither the king nor the chosen rook may have moved.",
			"**Check Restrictions**: you cannot castle out of, through, or into check.",
			"**King Safety**: castling tucks the king behind a pawn shield.",
		},
	},
	"en_passant": {
		Direct:      "**En passant lets a pawn capture an enemy pawn that just advanced two squares**, as if it had moved only one.",
		Explanation: "If a black pawn on d4 sees White play e2 to e4, Black may capture on e3 with that pawn, but only on the very next move. The right expires immediately afterward.",
		Related: []string{
			"**Pawn Movement**: pawns may advance two squares only from their starting rank.",
			"**Pawn Captures**: pawns normally capture one square diagonally forward.",
			"**Promotion**: pawns reaching the last rank promote.",
		},
	},
	"castling_rights": {
		Direct:      "**Yes, you can castle** if neither the king nor the chosen rook has moved, the squares between them are empty, and the king is not in, moving through, or landing in check.",
		Explanation: "Castling rights are lost permanently once the king moves, and lost on one side once that rook moves. Being in check does not remove the right; you simply cannot castle while the condition holds.",
		Related: []string{
			"**Castling**: the king moves two squares toward the rook.",
			"**Check**: a king in check must resolve the threat before anything else.",
			"**King Safety**: castling early is the usual way to shelter the king.",
		},
	},
}

// matchTopic maps a query to a canned topic using fixed keyword rules.
// Checkmate and en passant are tested before check so the shorter keyword
// does not shadow them.
func matchTopic(lower string) (string, bool) {
	if strings.Contains(lower, "how") && strings.Contains(lower, "move") {
		for _, piece := range []string{"pawn", "knight", "king", "queen", "bishop", "rook"} {
			if strings.Contains(lower, piece) {
				return piece + "_movement", true
			}
		}
	}
	if strings.Contains(lower, "what") {
		switch {
		case strings.Contains(lower, "checkmate"):
			return "checkmate", true
		case strings.Contains(lower, "en passant"):
			return "en_passant", true
		case strings.Contains(lower, "castling"):
			return "castling", true
		case strings.Contains(lower, "check"):
			return "check", true
		}
	}
	if strings.Contains(lower, "can") && strings.Contains(lower, "castle") {
		return "castling_rights", true
	}
	return "", false
}

// templateAnswer builds the deterministic response. The caller sets the
// final search method; this path defaults to scoring-only.
func (r *Responder) templateAnswer(query string, game *database.Game, ranked, top []scorer.ScoredCandidate) *Result {
	var (
		direct, explanation string
		related             []string
		confidence          float64
	)

	if topic, ok := matchTopic(strings.ToLower(query)); ok {
		tpl := topics[topic]
		direct = tpl.Direct
		explanation = tpl.Explanation
		related = tpl.Related
		confidence = matchedConfidence
	} else {
		topRule := top[0].Rule
		direct = "**" + topRule.Title + ":** " + firstSentence(contentBody(topRule.Content), 200)
		explanation = fallbackExplanation(topRule.Content)
		related = fallbackRelated(ranked)
		n := len(ranked)
		if n > 3 {
			n = 3
		}
		confidence = 0.3 + 0.1*float64(n)
	}

	sections := []Section{{
		ID:          "direct_answer",
		Title:       "Answer",
		Content:     direct,
		Type:        "markdown",
		Level:       1,
		Collapsible: false,
		Expanded:    true,
	}}
	if explanation != "" {
		sections = append(sections, Section{
			ID:          "explanation",
			Title:       "Explanation",
			Content:     explanation,
			Type:        "markdown",
			Level:       2,
			Collapsible: true,
			Expanded:    true,
		})
	}
	if len(related) > 0 {
		sections = append(sections, Section{
			ID:          "related_rules",
			Title:       "Related Rules",
			Content:     "- " + strings.Join(related, "\n- "),
			Type:        "markdown",
			Level:       2,
			Collapsible: true,
			Expanded:    false,
		})
	}

	return &Result{
		Response: StructuredResponse{
			Summary:  Summary{Text: direct, Confidence: confidence},
			Sections: sections,
			Sources:  sources(game, top),
		},
		SearchMethod: MethodScoring,
	}
}

// contentBody strips Markdown headings and bold-label metadata lines so
// sentence extraction works on prose.
func contentBody(content string) string {
	var kept []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, "**") && strings.Contains(trimmed, "**:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func firstSentence(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if idx := strings.Index(text, ". "); idx >= 0 {
		text = text[:idx+1]
	}
	return truncate(text, limit)
}

// fallbackExplanation picks the first substantial paragraph of the top rule.
func fallbackExplanation(content string) string {
	for _, para := range strings.Split(contentBody(content), "\n\n") {
		para = strings.TrimSpace(para)
		if len(para) > 50 {
			return truncate(para, maxExplanation)
		}
	}
	return ""
}

// fallbackRelated summarizes the next ranked rules after the top one.
func fallbackRelated(ranked []scorer.ScoredCandidate) []string {
	var related []string
	for _, c := range ranked[1:] {
		if len(related) >= maxRelated {
			break
		}
		summary := firstSentence(contentBody(c.Rule.Content), maxBulletChars)
		if summary == "" {
			continue
		}
		related = append(related, "**"+c.Rule.Title+"**: "+summary)
	}
	return related
}
