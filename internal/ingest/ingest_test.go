package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rulechat/internal/database"
)

const chessDoc = `---
game_id: chess
name: Chess
complexity: hard
min_players: 2
max_players: 2
---
# Game: Chess

## Rule: Pawn Movement
**Category**: Movement

Pawns move forward one square.

## Rule: Castling
**Category**: Special Moves

The king moves two squares toward a rook.
`

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIngestFile(t *testing.T) {
	db := openTestDB(t)
	ing := New(db, FullParser{}, nil)

	gameID, rules, err := ing.IngestFile(context.Background(), File{Name: "chess.md", Content: chessDoc})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if gameID != "chess" {
		t.Errorf("expected chess, got %q", gameID)
	}
	if rules != 2 {
		t.Errorf("expected 2 rules, got %d", rules)
	}

	game, err := db.GetGame("chess")
	if err != nil {
		t.Fatal(err)
	}
	if game.Name != "Chess" || game.Complexity != "hard" {
		t.Errorf("expected frontmatter precedence, got %+v", game)
	}
	if game.RuleCount != 2 {
		t.Errorf("expected rule_count 2, got %d", game.RuleCount)
	}
	if len(game.Categories) != 2 {
		t.Errorf("expected movement and special_moves categories, got %v", game.Categories)
	}
}

func TestIngestFileNoSections(t *testing.T) {
	db := openTestDB(t)
	ing := New(db, FullParser{}, nil)

	_, _, err := ing.IngestFile(context.Background(), File{Name: "empty.md", Content: "   \n"})
	if err == nil {
		t.Fatal("expected error for empty document")
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("embedding service down")
}

func TestEmbeddingFailureSkipsChunkNotUpload(t *testing.T) {
	db := openTestDB(t)
	ing := New(db, FullParser{}, failingEmbedder{})

	_, rules, err := ing.IngestFile(context.Background(), File{Name: "chess.md", Content: chessDoc})
	if err != nil {
		t.Fatalf("expected upload to survive embedding failure: %v", err)
	}
	if rules != 2 {
		t.Errorf("expected all chunks stored, got %d", rules)
	}
}

func TestUploadTask(t *testing.T) {
	db := openTestDB(t)
	ing := New(db, FullParser{}, nil)

	taskID, err := ing.Upload(File{Name: "chess.md", Content: chessDoc})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	task := waitForTask(t, db, taskID)
	if task.Status != database.TaskCompleted {
		t.Fatalf("expected completed, got %q (errors: %v)", task.Status, task.Errors)
	}
	if len(task.GamesRegistered) != 1 || task.GamesRegistered[0] != "chess" {
		t.Errorf("expected chess registered, got %v", task.GamesRegistered)
	}
	if task.Progress != 100 {
		t.Errorf("expected progress 100, got %v", task.Progress)
	}
}

func TestUploadBatchPartialFailure(t *testing.T) {
	db := openTestDB(t)
	ing := New(db, FullParser{}, nil)

	taskID, err := ing.UploadBatch([]File{
		{Name: "chess.md", Content: chessDoc},
		{Name: "broken.md", Content: "   "},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	task := waitForTask(t, db, taskID)
	if task.Status != database.TaskCompleted {
		t.Fatalf("expected completed despite one failure, got %q", task.Status)
	}
	if len(task.Errors) != 1 || task.Errors[0].Context != "broken.md" {
		t.Errorf("expected one per-file error, got %v", task.Errors)
	}
	if len(task.GamesRegistered) != 1 {
		t.Errorf("expected one game, got %v", task.GamesRegistered)
	}
	// The failing file comes last; the finished task must still read 100.
	if task.Progress != 100 {
		t.Errorf("expected progress 100 on completed task, got %v", task.Progress)
	}
}

func TestEmbeddingSkipsRecordedOnTask(t *testing.T) {
	db := openTestDB(t)
	ing := New(db, FullParser{}, failingEmbedder{})

	taskID, err := ing.Upload(File{Name: "chess.md", Content: chessDoc})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	task := waitForTask(t, db, taskID)
	if task.Status != database.TaskCompleted {
		t.Fatalf("expected completed despite embedding failures, got %q", task.Status)
	}
	if len(task.Errors) != 2 {
		t.Fatalf("expected one error per skipped chunk, got %v", task.Errors)
	}
	for _, e := range task.Errors {
		if e.Context != "chess.md" || !strings.Contains(e.Message, "embedding skipped") {
			t.Errorf("unexpected task error: %+v", e)
		}
	}
	if task.Progress != 100 {
		t.Errorf("expected progress 100, got %v", task.Progress)
	}
}

func TestUploadBatchAllFailed(t *testing.T) {
	db := openTestDB(t)
	ing := New(db, FullParser{}, nil)

	taskID, err := ing.UploadBatch([]File{{Name: "a.md", Content: " "}, {Name: "b.md", Content: " "}})
	if err != nil {
		t.Fatal(err)
	}

	task := waitForTask(t, db, taskID)
	if task.Status != database.TaskFailed {
		t.Errorf("expected failed when every file fails, got %q", task.Status)
	}
}

func waitForTask(t *testing.T, db *database.DB, taskID string) *database.UploadTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := db.GetUploadTask(taskID)
		if err != nil {
			t.Fatalf("task lookup: %v", err)
		}
		if task.Status != database.TaskProcessing {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task did not finish in time")
	return nil
}

func TestSimpleParser(t *testing.T) {
	parsed, err := SimpleParser{}.Parse("Intro text.\n\n## First\nBody.\n\n## Second\nMore.\n", "cards-rules.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Game.GameID != "cards" {
		t.Errorf("expected cards, got %q", parsed.Game.GameID)
	}
	if len(parsed.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(parsed.Rules))
	}
	for _, r := range parsed.Rules {
		if r.CategoryID != "cards_general" {
			t.Errorf("expected general category, got %q", r.CategoryID)
		}
	}
	if parsed.Rules[1].Title != "First" {
		t.Errorf("expected First, got %q", parsed.Rules[1].Title)
	}
}
