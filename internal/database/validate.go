package database

import "fmt"

// ValidateGame checks a game's stored rules for integrity drift. Rule count
// mismatches are corrected in place; other issues are reported only.
// Running it twice with no intervening writes applies no further fixes.
func (db *DB) ValidateGame(gameID string) (*ValidationReport, error) {
	game, err := db.GetGame(gameID)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{GameID: gameID}

	actual, err := db.CountRules(gameID)
	if err != nil {
		return nil, err
	}
	report.RuleCount = actual

	if actual != game.RuleCount {
		report.Issues = append(report.Issues,
			fmt.Sprintf("rule count mismatch: stored=%d, actual=%d", game.RuleCount, actual))
		if err := db.SetRuleCount(gameID, actual); err != nil {
			return nil, err
		}
		report.AutoFixesApplied++
	}

	var missingTitles int
	err = db.conn.QueryRow(
		"SELECT COUNT(*) FROM rules WHERE game_id = ? AND title = ''", gameID,
	).Scan(&missingTitles)
	if err != nil {
		return nil, err
	}
	if missingTitles > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d rules without titles", missingTitles))
	}

	var missingContent int
	err = db.conn.QueryRow(
		"SELECT COUNT(*) FROM rules WHERE game_id = ? AND content = ''", gameID,
	).Scan(&missingContent)
	if err != nil {
		return nil, err
	}
	if missingContent > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d rules without content", missingContent))
	}

	// Foreign keys should make this impossible; checked anyway so that drift
	// introduced outside this layer still surfaces.
	var orphaned int
	err = db.conn.QueryRow(
		"SELECT COUNT(*) FROM rules WHERE game_id NOT IN (SELECT game_id FROM games)",
	).Scan(&orphaned)
	if err != nil {
		return nil, err
	}
	if orphaned > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d orphaned rules found", orphaned))
	}

	report.Valid = missingTitles == 0 && missingContent == 0 && orphaned == 0
	return report, nil
}
