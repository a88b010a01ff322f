package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// UpsertGame inserts a game or updates its metadata. On update the
// accumulated rule_count and categories are preserved; everything else is
// overwritten by the incoming document.
func (db *DB) UpsertGame(g *Game) error {
	tags, err := marshalStrings(g.AITags)
	if err != nil {
		return err
	}

	var exists int
	err = db.conn.QueryRow("SELECT COUNT(*) FROM games WHERE game_id = ?", g.GameID).Scan(&exists)
	if err != nil {
		return err
	}

	if exists > 0 {
		_, err = db.conn.Exec(
			`UPDATE games SET name = ?, publisher = ?, version = ?, description = ?,
			complexity = ?, min_players = ?, max_players = ?, ai_tags = ?,
			updated_at = datetime('now')
			WHERE game_id = ?`,
			g.Name, g.Publisher, g.Version, g.Description,
			g.Complexity, g.MinPlayers, g.MaxPlayers, tags, g.GameID,
		)
		return err
	}

	cats, err := marshalStrings(g.Categories)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		`INSERT INTO games (game_id, name, publisher, version, description,
		complexity, min_players, max_players, rule_count, categories, ai_tags, auto_registered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		g.GameID, g.Name, g.Publisher, g.Version, g.Description,
		g.Complexity, g.MinPlayers, g.MaxPlayers, cats, tags, boolInt(g.AutoRegistered),
	)
	return err
}

// GetGame returns a game by ID, or ErrNotFound.
func (db *DB) GetGame(gameID string) (*Game, error) {
	row := db.conn.QueryRow(
		`SELECT game_id, name, publisher, version, description, complexity,
		min_players, max_players, rule_count, categories, ai_tags, auto_registered,
		created_at, updated_at
		FROM games WHERE game_id = ?`, gameID,
	)
	g, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListGames returns all registered games ordered by name.
func (db *DB) ListGames() ([]Game, error) {
	rows, err := db.conn.Query(
		`SELECT game_id, name, publisher, version, description, complexity,
		min_players, max_players, rule_count, categories, ai_tags, auto_registered,
		created_at, updated_at
		FROM games ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// DeleteGame removes a game and, via the rules table foreign key, cascades
// to all its rules. Returns ErrNotFound for an unknown game.
func (db *DB) DeleteGame(gameID string) error {
	result, err := db.conn.Exec("DELETE FROM games WHERE game_id = ?", gameID)
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

// AddRuleCount increments a game's denormalized rule count.
func (db *DB) AddRuleCount(gameID string, delta int) error {
	_, err := db.conn.Exec(
		"UPDATE games SET rule_count = rule_count + ?, updated_at = datetime('now') WHERE game_id = ?",
		delta, gameID,
	)
	return err
}

// SetRuleCount overwrites a game's denormalized rule count.
func (db *DB) SetRuleCount(gameID string, count int) error {
	_, err := db.conn.Exec(
		"UPDATE games SET rule_count = ?, updated_at = datetime('now') WHERE game_id = ?",
		count, gameID,
	)
	return err
}

// AddCategory adds a category to a game's category set if not present.
func (db *DB) AddCategory(gameID, category string) error {
	g, err := db.GetGame(gameID)
	if err != nil {
		return err
	}
	for _, c := range g.Categories {
		if c == category {
			return nil
		}
	}
	cats, err := marshalStrings(append(g.Categories, category))
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		"UPDATE games SET categories = ?, updated_at = datetime('now') WHERE game_id = ?",
		cats, gameID,
	)
	return err
}

// GetStats returns aggregate statistics across all games.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{GamesByComplexity: map[string]int{}}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM games").Scan(&s.TotalGames); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM rules").Scan(&s.TotalRules); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query("SELECT complexity, COUNT(*) FROM games GROUP BY complexity")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var complexity string
		var count int
		if err := rows.Scan(&complexity, &count); err != nil {
			return nil, err
		}
		s.GamesByComplexity[complexity] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.TotalGames > 0 {
		s.AverageRulesPerGame = float64(s.TotalRules) / float64(s.TotalGames)
	}

	err = db.conn.QueryRow(
		"SELECT COUNT(*) FROM upload_tasks WHERE status = ?", TaskProcessing,
	).Scan(&s.PendingUploads)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (*Game, error) {
	var g Game
	var cats, tags *string
	var auto int
	if err := row.Scan(&g.GameID, &g.Name, &g.Publisher, &g.Version, &g.Description,
		&g.Complexity, &g.MinPlayers, &g.MaxPlayers, &g.RuleCount,
		&cats, &tags, &auto, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.AutoRegistered = auto != 0
	if err := unmarshalStrings(cats, &g.Categories); err != nil {
		return nil, fmt.Errorf("decoding categories for %s: %w", g.GameID, err)
	}
	if err := unmarshalStrings(tags, &g.AITags); err != nil {
		return nil, fmt.Errorf("decoding ai_tags for %s: %w", g.GameID, err)
	}
	return &g, nil
}

func marshalStrings(values []string) (*string, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func unmarshalStrings(raw *string, out *[]string) error {
	if raw == nil || *raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(*raw), out)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
