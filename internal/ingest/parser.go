package ingest

import (
	"fmt"
	"strings"

	"rulechat/internal/chunker"
	"rulechat/internal/database"
)

// ParsedUpload is one rulebook reduced to a game record and rule drafts.
// Embeddings are attached later by the ingestor.
type ParsedUpload struct {
	Game  *database.Game
	Rules []database.Rule
}

// UploadParser converts raw Markdown into a parsed upload. The parser is
// chosen at construction time; there is no call-time fallback between them.
type UploadParser interface {
	Parse(content, filename string) (*ParsedUpload, error)
}

// FullParser runs the complete pipeline: frontmatter, metadata inference,
// and token-bounded section chunking.
type FullParser struct{}

func (FullParser) Parse(content, filename string) (*ParsedUpload, error) {
	doc := chunker.ParseDocument(content, filename)
	info := chunker.ExtractGameInfo(doc.Content, filename)
	game := mergeGameInfo(info, doc)

	rules := chunker.ChunkDocument(doc, game.GameID)
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rule sections found in %s", filename)
	}
	return &ParsedUpload{Game: game, Rules: rules}, nil
}

// mergeGameInfo combines inferred metadata with frontmatter. Frontmatter
// wins wherever it sets a value.
func mergeGameInfo(info *chunker.GameInfo, doc *chunker.Document) *database.Game {
	game := &database.Game{
		GameID:         info.GameID,
		Name:           info.Name,
		Publisher:      info.Publisher,
		Version:        info.Version,
		Description:    info.Description,
		Complexity:     info.Complexity,
		MinPlayers:     info.MinPlayers,
		MaxPlayers:     info.MaxPlayers,
		AITags:         info.AITags,
		AutoRegistered: true,
	}
	if !doc.HasMeta {
		return game
	}

	m := doc.Meta
	if m.GameID != "" {
		game.GameID = m.GameID
	}
	if m.Name != "" {
		game.Name = m.Name
	}
	if m.Publisher != "" {
		game.Publisher = m.Publisher
	}
	if m.Version != "" {
		game.Version = m.Version
	}
	if m.Description != "" {
		game.Description = m.Description
	}
	if m.Complexity != "" {
		game.Complexity = m.Complexity
	}
	if m.MinPlayers > 0 {
		game.MinPlayers = m.MinPlayers
	}
	if m.MaxPlayers > 0 {
		game.MaxPlayers = m.MaxPlayers
	}
	if len(m.AITags) > 0 {
		game.AITags = m.AITags
	}
	return game
}

// SimpleParser splits on ## headers only: no frontmatter, no metadata
// inference, no token bounds. Every rule lands in the game's general
// category. Useful for quick imports of plain documents.
type SimpleParser struct{}

func (SimpleParser) Parse(content, filename string) (*ParsedUpload, error) {
	gameID := chunker.GameIDFromFilename(filename)
	game := &database.Game{
		GameID:         gameID,
		Name:           strings.TrimSuffix(strings.TrimSuffix(filename, ".md"), ".markdown"),
		Publisher:      "Unknown",
		Version:        "1.0",
		Complexity:     "medium",
		MinPlayers:     1,
		MaxPlayers:     2,
		AutoRegistered: true,
	}

	categoryID := gameID + "_general"
	var rules []database.Rule
	for idx, section := range strings.Split(content, "\n## ") {
		if strings.TrimSpace(section) == "" {
			continue
		}
		if idx > 0 {
			section = "## " + section
		}

		title := "Introduction"
		if line, _, ok := strings.Cut(section, "\n"); ok || line != "" {
			if strings.HasPrefix(line, "## ") {
				title = strings.TrimSpace(line[3:])
			}
		}

		rules = append(rules, database.Rule{
			GameID:      gameID,
			CategoryID:  categoryID,
			ContentType: "rule_text",
			Title:       title,
			Content:     section,
			Ancestors:   []string{gameID, gameID + "_rules", categoryID},
			Metadata: database.RuleMeta{
				Tokens:       chunker.EstimateTokens(section),
				Mandatory:    true,
				SourceFile:   filename,
				SectionIndex: idx,
			},
		})
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rule sections found in %s", filename)
	}
	return &ParsedUpload{Game: game, Rules: rules}, nil
}
