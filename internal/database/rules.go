package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

const ruleColumns = `id, game_id, category_id, content_type, title, content,
	ancestors, tokens, complexity_score, mandatory, source_file,
	section_index, chunk_index, created_at`

// InsertRules bulk-inserts rules inside a single transaction and returns
// the number inserted.
func (db *DB) InsertRules(rules []Rule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO rules (game_id, category_id, content_type, title, content,
		ancestors, tokens, complexity_score, mandatory, source_file,
		section_index, chunk_index, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	for _, r := range rules {
		ancestors, err := marshalStrings(r.Ancestors)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		var embedding *string
		if r.Embedding != nil {
			data, err := json.Marshal(r.Embedding)
			if err != nil {
				tx.Rollback()
				return 0, err
			}
			s := string(data)
			embedding = &s
		}
		if _, err := stmt.Exec(r.GameID, r.CategoryID, r.ContentType, r.Title, r.Content,
			ancestors, r.Metadata.Tokens, r.Metadata.ComplexityScore,
			boolInt(r.Metadata.Mandatory), r.Metadata.SourceFile,
			r.Metadata.SectionIndex, r.Metadata.ChunkIndex, embedding); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting rule %q: %w", r.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rules), nil
}

// RulesForGame returns all rules for a game in insertion order.
func (db *DB) RulesForGame(gameID string) ([]Rule, error) {
	rows, err := db.conn.Query(
		"SELECT "+ruleColumns+" FROM rules WHERE game_id = ? ORDER BY id", gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// SearchRules returns rules for a game whose title or content contains the
// query, case-insensitively. This is the keyword search path; relevance
// ranking is the scorer's job.
func (db *DB) SearchRules(gameID, query string, limit int) ([]Rule, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := db.conn.Query(
		"SELECT "+ruleColumns+` FROM rules
		WHERE game_id = ? AND (LOWER(title) LIKE ? OR LOWER(content) LIKE ?)
		ORDER BY id LIMIT ?`,
		gameID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// CountRules returns the actual number of stored rules for a game.
func (db *DB) CountRules(gameID string) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM rules WHERE game_id = ?", gameID).Scan(&n)
	return n, err
}

// DistinctCategories returns the distinct category ids present in a game's rules.
func (db *DB) DistinctCategories(gameID string) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT DISTINCT category_id FROM rules WHERE game_id = ? ORDER BY category_id", gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetRule returns a single rule by ID, or ErrNotFound.
func (db *DB) GetRule(id int64) (*Rule, error) {
	row := db.conn.QueryRow("SELECT "+ruleColumns+" FROM rules WHERE id = ?", id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRule updates an individual rule's title and content.
func (db *DB) UpdateRule(id int64, title, content string) error {
	result, err := db.conn.Exec(
		"UPDATE rules SET title = ?, content = ? WHERE id = ?", title, content, id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRule removes an individual rule and recounts its game's rule_count
// from the actual stored rows.
func (db *DB) DeleteRule(id int64) error {
	rule, err := db.GetRule(id)
	if err != nil {
		return err
	}
	if _, err := db.conn.Exec("DELETE FROM rules WHERE id = ?", id); err != nil {
		return err
	}
	remaining, err := db.CountRules(rule.GameID)
	if err != nil {
		return err
	}
	return db.SetRuleCount(rule.GameID, remaining)
}

func scanRules(rows *sql.Rows) ([]Rule, error) {
	var rules []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func scanRule(row scanner) (*Rule, error) {
	var r Rule
	var ancestors *string
	var mandatory int
	if err := row.Scan(&r.ID, &r.GameID, &r.CategoryID, &r.ContentType, &r.Title, &r.Content,
		&ancestors, &r.Metadata.Tokens, &r.Metadata.ComplexityScore, &mandatory,
		&r.Metadata.SourceFile, &r.Metadata.SectionIndex, &r.Metadata.ChunkIndex,
		&r.CreatedAt); err != nil {
		return nil, err
	}
	r.Metadata.Mandatory = mandatory != 0
	if err := unmarshalStrings(ancestors, &r.Ancestors); err != nil {
		return nil, fmt.Errorf("decoding ancestors for rule %d: %w", r.ID, err)
	}
	return &r, nil
}
