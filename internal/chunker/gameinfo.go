package chunker

import (
	"regexp"
	"strings"
)

// GameInfo is the game metadata derived from one rulebook document. Derived
// once per document, independent of chunking.
type GameInfo struct {
	GameID      string
	Name        string
	Publisher   string
	Version     string
	Description string
	Complexity  string
	MinPlayers  int
	MaxPlayers  int
	AITags      []string
}

var (
	gameTitleRe   = regexp.MustCompile(`(?m)^#\s+Game:\s*(.+)$`)
	idSeparatorRe = regexp.MustCompile(`[_\-\s]+`)
	idInvalidRe   = regexp.MustCompile(`[^a-z0-9]`)
)

// Keyword sets for tag inference over the lowercased document text.
var (
	chessTerms = []string{"chess", "checkmate", "pawn", "knight", "bishop"}
	diceTerms  = []string{"dice", "roll", "d20", "rpg"}
	cardTerms  = []string{"card", "deck", "hand"}
)

// ExtractGameInfo derives game metadata from a rulebook body and filename.
// Frontmatter values, merged by the caller, take precedence over these.
func ExtractGameInfo(content, filename string) *GameInfo {
	info := &GameInfo{
		GameID:     GameIDFromFilename(filename),
		Publisher:  "Unknown",
		Version:    "1.0",
		Complexity: "medium",
		MinPlayers: 1,
		MaxPlayers: 2,
	}

	if m := gameTitleRe.FindStringSubmatch(content); m != nil {
		info.Name = strings.TrimSpace(m[1])
	}

	lower := strings.ToLower(content)
	if containsAny(lower, chessTerms) {
		info.AITags = append(info.AITags, "strategy", "board-game", "two-player", "classic")
		info.MinPlayers = 2
		info.MaxPlayers = 2
	}
	if containsAny(lower, diceTerms) {
		info.AITags = append(info.AITags, "dice-based", "rpg")
	}
	if containsAny(lower, cardTerms) {
		info.AITags = append(info.AITags, "card-game")
	}

	if info.Name == "" {
		info.Name = titleFromID(info.GameID)
	}
	return info
}

// GameIDFromFilename derives a slug-like game id from the upload filename:
// the first hyphen/underscore/space-separated part, non-alphanumerics removed.
func GameIDFromFilename(filename string) string {
	base := strings.ToLower(filename)
	base = strings.TrimSuffix(base, ".markdown")
	base = strings.TrimSuffix(base, ".md")

	parts := idSeparatorRe.Split(base, -1)
	if len(parts) == 0 {
		return "unknown"
	}
	id := idInvalidRe.ReplaceAllString(parts[0], "")
	if id == "" {
		return "unknown"
	}
	return id
}

func titleFromID(gameID string) string {
	words := strings.Split(strings.ReplaceAll(gameID, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
