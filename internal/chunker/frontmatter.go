package chunker

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the optional YAML metadata block at the top of a rulebook.
// Values set here take precedence over anything inferred from the body.
type Frontmatter struct {
	GameID      string   `yaml:"game_id"`
	Name        string   `yaml:"name"`
	Publisher   string   `yaml:"publisher"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Complexity  string   `yaml:"complexity"`
	MinPlayers  int      `yaml:"min_players"`
	MaxPlayers  int      `yaml:"max_players"`
	AITags      []string `yaml:"ai_tags"`
}

// Document is a parsed Markdown rulebook: frontmatter (if any) plus body.
type Document struct {
	Filename string
	Meta     Frontmatter
	HasMeta  bool
	Content  string
}

// ParseDocument splits YAML frontmatter from the Markdown body. Unparseable
// frontmatter degrades to treating the whole input as unstructured content
// with empty metadata; it is never fatal.
func ParseDocument(content, filename string) *Document {
	doc := &Document{Filename: filename, Content: content}

	body, block, ok := splitFrontmatter(content)
	if !ok {
		return doc
	}

	var meta Frontmatter
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return doc
	}

	doc.Meta = meta
	doc.HasMeta = true
	doc.Content = body
	return doc
}

// splitFrontmatter returns (body, frontmatter block, found). The block must
// start at the first line and be closed by a bare "---" line.
func splitFrontmatter(content string) (string, string, bool) {
	trimmed := strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(trimmed, "---\n") && !strings.HasPrefix(trimmed, "---\r\n") {
		return "", "", false
	}

	rest := trimmed[strings.Index(trimmed, "\n")+1:]
	for _, closer := range []string{"\n---\n", "\n---\r\n"} {
		if idx := strings.Index(rest, closer); idx >= 0 {
			return rest[idx+len(closer):], rest[:idx], true
		}
	}
	if strings.HasSuffix(strings.TrimRight(rest, "\r\n"), "\n---") {
		trimmedRest := strings.TrimRight(rest, "\r\n")
		return "", trimmedRest[:len(trimmedRest)-len("\n---")], true
	}
	return "", "", false
}
