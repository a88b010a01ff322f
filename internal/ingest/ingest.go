// Package ingest turns uploaded Markdown rulebooks into stored games and
// rules, tracked by asynchronous upload tasks.
package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"rulechat/internal/database"
	"rulechat/internal/llm"
)

// insertBatchSize bounds one InsertRules transaction and sets the progress
// update granularity.
const insertBatchSize = 50

// keepFinishedTasks bounds the retained terminal upload tasks.
const keepFinishedTasks = 100

// File is one uploaded rulebook.
type File struct {
	Name    string
	Content string
}

// Ingestor runs uploads. A nil embedder disables embeddings entirely;
// per-chunk embedding failures skip the chunk's embedding, never the chunk.
type Ingestor struct {
	db       *database.DB
	parser   UploadParser
	embedder llm.Embedder
}

// New creates an ingestor.
func New(db *database.DB, parser UploadParser, embedder llm.Embedder) *Ingestor {
	return &Ingestor{db: db, parser: parser, embedder: embedder}
}

// Upload starts an asynchronous single-file ingestion and returns the task
// ID for status polling.
func (ing *Ingestor) Upload(file File) (string, error) {
	id := uuid.NewString()
	if err := ing.db.CreateUploadTask(id, &file.Name, nil); err != nil {
		return "", err
	}
	go ing.run(id, []File{file})
	return id, nil
}

// UploadBatch starts an asynchronous multi-file ingestion. Files fail
// independently; the task completes as long as at least one file succeeds.
func (ing *Ingestor) UploadBatch(files []File) (string, error) {
	id := uuid.NewString()
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	if err := ing.db.CreateUploadTask(id, nil, names); err != nil {
		return "", err
	}
	go ing.run(id, files)
	return id, nil
}

func (ing *Ingestor) run(taskID string, files []File) {
	ctx := context.Background()

	var games []string
	failed := 0
	processed := 0
	processedChunks := 0
	totalChunks := 0

	record := func(scope, msg string) {
		if aerr := ing.db.AppendTaskError(taskID, database.TaskError{Context: scope, Message: msg}); aerr != nil {
			log.Printf("task %s: recording error failed: %v", taskID, aerr)
		}
	}

	for i, f := range files {
		gameID, chunks, err := ing.ingestFile(ctx, f, func(done, total int) {
			fileTotal := totalChunks + total
			fileDone := processedChunks + done
			progress := 0.0
			if fileTotal > 0 {
				progress = 100 * float64(fileDone) / float64(fileTotal)
			}
			if uerr := ing.db.UpdateTaskProgress(taskID, progress, fileTotal, fileDone, processed); uerr != nil {
				log.Printf("task %s: progress update failed: %v", taskID, uerr)
			}
		}, record)
		if err != nil {
			failed++
			log.Printf("task %s: ingesting %s failed: %v", taskID, f.Name, err)
			record(f.Name, err.Error())
			continue
		}

		processed++
		totalChunks += chunks
		processedChunks += chunks
		if !containsString(games, gameID) {
			games = append(games, gameID)
			if serr := ing.db.SetTaskGames(taskID, games); serr != nil {
				log.Printf("task %s: recording game failed: %v", taskID, serr)
			}
		}
		if uerr := ing.db.UpdateTaskProgress(taskID, 100*float64(i+1)/float64(len(files)), totalChunks, processedChunks, processed); uerr != nil {
			log.Printf("task %s: progress update failed: %v", taskID, uerr)
		}
	}

	status := database.TaskCompleted
	if failed == len(files) {
		status = database.TaskFailed
	}
	if status == database.TaskCompleted {
		// A trailing file failure must not leave a finished task short of 100.
		if uerr := ing.db.UpdateTaskProgress(taskID, 100, totalChunks, processedChunks, processed); uerr != nil {
			log.Printf("task %s: progress update failed: %v", taskID, uerr)
		}
	}
	if err := ing.db.FinishTask(taskID, status); err != nil {
		log.Printf("task %s: finish failed: %v", taskID, err)
	}
	if err := ing.db.PruneUploadTasks(keepFinishedTasks); err != nil {
		log.Printf("pruning upload tasks: %v", err)
	}
}

// IngestFile runs one synchronous ingestion outside any task. Used by the
// CLI and by tests.
func (ing *Ingestor) IngestFile(ctx context.Context, file File) (string, int, error) {
	return ing.ingestFile(ctx, file, nil, nil)
}

// ingestFile is the sequential per-document pipeline: parse, register game,
// embed, store in batches, update category and rule counts. record, when
// set, receives non-fatal problems such as skipped embeddings.
func (ing *Ingestor) ingestFile(ctx context.Context, file File, report func(done, total int), record func(scope, msg string)) (string, int, error) {
	parsed, err := ing.parser.Parse(file.Content, file.Name)
	if err != nil {
		return "", 0, err
	}

	if err := ing.db.UpsertGame(parsed.Game); err != nil {
		return "", 0, err
	}
	gameID := parsed.Game.GameID

	rules := parsed.Rules
	if ing.embedder != nil {
		for i := range rules {
			emb, err := ing.embedder.Embed(ctx, rules[i].Content)
			if err != nil {
				log.Printf("embedding %s chunk %d skipped: %v", file.Name, i, err)
				if record != nil {
					record(file.Name, fmt.Sprintf("embedding skipped for chunk %d: %v", i, err))
				}
				continue
			}
			rules[i].Embedding = emb
		}
	}

	inserted := 0
	for start := 0; start < len(rules); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rules) {
			end = len(rules)
		}
		n, err := ing.db.InsertRules(rules[start:end])
		if err != nil {
			return gameID, inserted, err
		}
		inserted += n
		if report != nil {
			report(inserted, len(rules))
		}
	}

	for _, category := range distinctCategories(rules, gameID) {
		if err := ing.db.AddCategory(gameID, category); err != nil {
			return gameID, inserted, err
		}
	}
	if err := ing.db.AddRuleCount(gameID, inserted); err != nil {
		return gameID, inserted, err
	}
	return gameID, inserted, nil
}

// distinctCategories lists category names (without the game prefix) in
// first-seen order.
func distinctCategories(rules []database.Rule, gameID string) []string {
	seen := map[string]bool{}
	var categories []string
	for _, r := range rules {
		name := r.CategoryID
		if len(name) > len(gameID)+1 && name[:len(gameID)+1] == gameID+"_" {
			name = name[len(gameID)+1:]
		}
		if !seen[name] {
			seen[name] = true
			categories = append(categories, name)
		}
	}
	return categories
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
