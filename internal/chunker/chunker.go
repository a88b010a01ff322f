package chunker

import (
	"strconv"
	"strings"

	"rulechat/internal/database"
)

// maxChunkTokens is the per-chunk token ceiling. Sections over the ceiling
// are re-split on ### boundaries; a single oversized sub-section is kept
// whole rather than split mid-text.
const maxChunkTokens = 500

// ruleInfo is the metadata extracted from one ## section.
type ruleInfo struct {
	Title           string
	Category        string
	ComplexityScore float64
	Mandatory       bool
}

// ChunkDocument converts a parsed rulebook body into an ordered list of rule
// drafts, one per bounded-size chunk. Empty sections are dropped.
func ChunkDocument(doc *Document, gameID string) []database.Rule {
	sections := strings.Split(doc.Content, "\n## ")

	var rules []database.Rule
	for sectionIdx, section := range sections {
		if strings.TrimSpace(section) == "" {
			continue
		}
		// Re-add the marker consumed by the split.
		if sectionIdx > 0 {
			section = "## " + section
		}

		info := extractRuleInfo(section, sectionIdx)
		categoryID := gameID + "_" + NormalizeCategory(info.Category)
		chunks := splitSectionByTokens(section)

		for chunkIdx, chunkContent := range chunks {
			title := info.Title
			if len(chunks) > 1 {
				title = info.Title + " (Part " + strconv.Itoa(chunkIdx+1) + ")"
			}
			rules = append(rules, database.Rule{
				GameID:      gameID,
				CategoryID:  categoryID,
				ContentType: "rule_text",
				Title:       title,
				Content:     chunkContent,
				Ancestors:   []string{gameID, gameID + "_rules", categoryID},
				Metadata: database.RuleMeta{
					Tokens:          EstimateTokens(chunkContent),
					ComplexityScore: info.ComplexityScore,
					Mandatory:       info.Mandatory,
					SourceFile:      doc.Filename,
					SectionIndex:    sectionIdx,
					ChunkIndex:      chunkIdx,
				},
			})
		}
	}
	return rules
}

// extractRuleInfo pulls the title and bold-label metadata out of a section.
// Section 0 has no header of its own and becomes "Introduction" unless the
// document opens directly with one.
func extractRuleInfo(section string, sectionIdx int) ruleInfo {
	info := ruleInfo{
		Title:           "Introduction",
		Category:        "general",
		ComplexityScore: 0.5,
		Mandatory:       true,
	}
	if sectionIdx > 0 {
		info.Title = "Unknown Rule"
	}

	lines := strings.Split(section, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "## ") {
		title := strings.TrimSpace(lines[0][3:])
		title = strings.TrimPrefix(title, "Rule: ")
		if title != "" {
			info.Title = title
		}
	}

	for _, line := range lines {
		switch {
		case strings.Contains(line, "**Category**:"):
			if v := labelValue(line, "**Category**:"); v != "" {
				info.Category = v
			}
		case strings.Contains(line, "**Complexity**:"):
			info.ComplexityScore = complexityScore(labelValue(line, "**Complexity**:"))
		case strings.Contains(line, "**Mandatory**:"):
			v := strings.ToLower(labelValue(line, "**Mandatory**:"))
			info.Mandatory = !(strings.HasPrefix(v, "no") || strings.HasPrefix(v, "false"))
		}
	}
	return info
}

func labelValue(line, label string) string {
	_, after, _ := strings.Cut(line, label)
	return strings.TrimSpace(after)
}

// complexityScore maps free-text complexity keywords to a 0..1 score.
func complexityScore(text string) float64 {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "beginner") || strings.Contains(text, "easy"):
		return 0.3
	case strings.Contains(text, "intermediate") || strings.Contains(text, "medium"):
		return 0.6
	case strings.Contains(text, "advanced") || strings.Contains(text, "hard"):
		return 0.9
	default:
		return 0.5
	}
}

// splitSectionByTokens splits a section that exceeds the token ceiling on
// ### boundaries, greedily packing consecutive sub-sections. A sub-section
// is never split itself, so a single oversized one stands alone.
func splitSectionByTokens(section string) []string {
	if EstimateTokens(section) <= maxChunkTokens {
		return []string{section}
	}

	subsections := strings.Split(section, "\n### ")
	var chunks []string
	current := ""

	for subIdx, sub := range subsections {
		if subIdx > 0 {
			sub = "### " + sub
		}

		if current != "" && EstimateTokens(current)+EstimateTokens(sub) > maxChunkTokens {
			chunks = append(chunks, strings.TrimSpace(current))
			current = sub
		} else if current == "" {
			current = sub
		} else {
			current += "\n" + sub
		}
	}

	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// NormalizeCategory lowercases a category name and collapses separators so
// it can form a stable category_id suffix.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	c = strings.ReplaceAll(c, " ", "_")
	c = strings.ReplaceAll(c, "→", "_")
	return c
}

// EstimateTokens approximates a cl100k-style token count. Slightly
// over-counts prose, which is the safe direction for a ceiling.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	byChars := len(text) / 4
	if words > byChars {
		return words
	}
	return byChars
}

