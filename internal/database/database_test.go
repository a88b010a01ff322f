package database

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testGame() *Game {
	return &Game{
		GameID:     "chess",
		Name:       "Chess",
		Publisher:  "Unknown",
		Version:    "1.0",
		Complexity: "medium",
		MinPlayers: 2,
		MaxPlayers: 2,
		AITags:     []string{"strategy"},
	}
}

func testRule(title string) Rule {
	return Rule{
		GameID:      "chess",
		CategoryID:  "chess_movement",
		ContentType: "rule_text",
		Title:       title,
		Content:     "Some rule text.",
		Ancestors:   []string{"chess", "chess_rules", "chess_movement"},
		Metadata:    RuleMeta{Tokens: 4, ComplexityScore: 0.5, Mandatory: true, SourceFile: "chess.md"},
	}
}

func TestUpsertAndGetGame(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetGame("chess")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Chess" || got.MinPlayers != 2 {
		t.Errorf("unexpected game: %+v", got)
	}
	if len(got.AITags) != 1 || got.AITags[0] != "strategy" {
		t.Errorf("expected tags round-trip, got %v", got.AITags)
	}
}

func TestGetGameNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetGame("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertPreservesRuleCount(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertRules([]Rule{testRule("A"), testRule("B")}); err != nil {
		t.Fatal(err)
	}
	if err := db.AddRuleCount("chess", 2); err != nil {
		t.Fatal(err)
	}

	// Re-uploading the same game must not reset the count.
	updated := testGame()
	updated.Name = "Chess (2nd Edition)"
	if err := db.UpsertGame(updated); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetGame("chess")
	if err != nil {
		t.Fatal(err)
	}
	if got.RuleCount != 2 {
		t.Errorf("expected rule_count preserved at 2, got %d", got.RuleCount)
	}
	if got.Name != "Chess (2nd Edition)" {
		t.Errorf("expected name updated, got %q", got.Name)
	}
}

func TestInsertAndQueryRules(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatal(err)
	}

	n, err := db.InsertRules([]Rule{testRule("Pawn Movement"), testRule("Castling")})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}

	rules, err := db.RulesForGame("chess")
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Title != "Pawn Movement" {
		t.Errorf("expected insertion order, got %q first", rules[0].Title)
	}
	if len(rules[0].Ancestors) != 3 {
		t.Errorf("expected ancestors round-trip, got %v", rules[0].Ancestors)
	}
	if !rules[0].Metadata.Mandatory || rules[0].Metadata.Tokens != 4 {
		t.Errorf("expected metadata round-trip, got %+v", rules[0].Metadata)
	}
}

func TestSearchRules(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatal(err)
	}
	pawn := testRule("Pawn Movement")
	pawn.Content = "Pawns move forward one square."
	castle := testRule("Castling")
	castle.Content = "The king moves two squares."
	if _, err := db.InsertRules([]Rule{pawn, castle}); err != nil {
		t.Fatal(err)
	}

	found, err := db.SearchRules("chess", "pawn", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Title != "Pawn Movement" {
		t.Errorf("expected pawn rule only, got %v", found)
	}
}

func TestDeleteGameCascades(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertRules([]Rule{testRule("A")}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteGame("chess"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	count, err := db.CountRules("chess")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected cascade delete of rules, %d remain", count)
	}
	if err := db.DeleteGame("chess"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteRuleRecounts(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertRules([]Rule{testRule("A"), testRule("B")}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetRuleCount("chess", 2); err != nil {
		t.Fatal(err)
	}

	rules, _ := db.RulesForGame("chess")
	if err := db.DeleteRule(rules[0].ID); err != nil {
		t.Fatal(err)
	}

	game, _ := db.GetGame("chess")
	if game.RuleCount != 1 {
		t.Errorf("expected rule_count recounted to 1, got %d", game.RuleCount)
	}
}

func TestValidateGameFixesCount(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertRules([]Rule{testRule("A"), testRule("B")}); err != nil {
		t.Fatal(err)
	}
	// rule_count left at 0: deliberately stale.

	report, err := db.ValidateGame("chess")
	if err != nil {
		t.Fatal(err)
	}
	if report.AutoFixesApplied != 1 {
		t.Errorf("expected 1 auto-fix, got %d", report.AutoFixesApplied)
	}
	if report.RuleCount != 2 {
		t.Errorf("expected reconciled count 2, got %d", report.RuleCount)
	}

	// Second run finds nothing to fix.
	again, err := db.ValidateGame("chess")
	if err != nil {
		t.Fatal(err)
	}
	if again.AutoFixesApplied != 0 {
		t.Errorf("expected idempotent validation, got %d fixes", again.AutoFixesApplied)
	}
	if !again.Valid {
		t.Errorf("expected valid report, issues: %v", again.Issues)
	}
}

func TestValidateGameReportsMissingTitles(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatal(err)
	}
	bad := testRule("")
	if _, err := db.InsertRules([]Rule{bad}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetRuleCount("chess", 1); err != nil {
		t.Fatal(err)
	}

	report, err := db.ValidateGame("chess")
	if err != nil {
		t.Fatal(err)
	}
	if report.Valid {
		t.Error("expected invalid report for missing title")
	}
}

func TestUploadTaskLifecycle(t *testing.T) {
	db := openTestDB(t)
	name := "chess.md"
	if err := db.CreateUploadTask("task-1", &name, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	task, err := db.GetUploadTask("task-1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != TaskProcessing {
		t.Errorf("expected processing, got %q", task.Status)
	}

	if err := db.UpdateTaskProgress("task-1", 50, 10, 5, 0); err != nil {
		t.Fatal(err)
	}
	if err := db.SetTaskGames("task-1", []string{"chess"}); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendTaskError("task-1", TaskError{Context: "chunk 3", Message: "embed failed"}); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishTask("task-1", TaskCompleted); err != nil {
		t.Fatal(err)
	}

	task, err = db.GetUploadTask("task-1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != TaskCompleted {
		t.Errorf("expected completed, got %q", task.Status)
	}
	if task.Progress != 50 || task.ProcessedChunks != 5 {
		t.Errorf("unexpected progress: %+v", task)
	}
	if len(task.GamesRegistered) != 1 || task.GamesRegistered[0] != "chess" {
		t.Errorf("expected games recorded, got %v", task.GamesRegistered)
	}
	if len(task.Errors) != 1 || task.Errors[0].Context != "chunk 3" {
		t.Errorf("expected error recorded, got %v", task.Errors)
	}
	if task.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}
}

func TestGetUploadTaskNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetUploadTask("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddCategory(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatal(err)
	}

	for _, c := range []string{"movement", "endgame", "movement"} {
		if err := db.AddCategory("chess", c); err != nil {
			t.Fatal(err)
		}
	}

	game, err := db.GetGame("chess")
	if err != nil {
		t.Fatal(err)
	}
	if len(game.Categories) != 2 {
		t.Errorf("expected set semantics, got %v", game.Categories)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertGame(testGame()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertRules([]Rule{testRule("A"), testRule("B")}); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalGames != 1 || stats.TotalRules != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.GamesByComplexity["medium"] != 1 {
		t.Errorf("expected complexity bucket, got %v", stats.GamesByComplexity)
	}
}
