package database

import (
	"database/sql"
	"encoding/json"
)

// CreateUploadTask records a new ingestion task in the processing state.
// For single-file uploads filename is set; for batches, files.
func (db *DB) CreateUploadTask(id string, filename *string, files []string) error {
	filesJSON, err := marshalStrings(files)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		`INSERT INTO upload_tasks (id, status, filename, files, total_files)
		VALUES (?, ?, ?, ?, ?)`,
		id, TaskProcessing, filename, filesJSON, len(files),
	)
	return err
}

// GetUploadTask returns an upload task by ID, or ErrNotFound.
func (db *DB) GetUploadTask(id string) (*UploadTask, error) {
	row := db.conn.QueryRow(
		`SELECT id, status, filename, files, progress, total_files, processed_files,
		total_chunks, processed_chunks, games_registered, errors, started_at, completed_at
		FROM upload_tasks WHERE id = ?`, id,
	)

	var t UploadTask
	var files, games, errs *string
	err := row.Scan(&t.ID, &t.Status, &t.Filename, &files, &t.Progress,
		&t.TotalFiles, &t.ProcessedFiles, &t.TotalChunks, &t.ProcessedChunks,
		&games, &errs, &t.StartedAt, &t.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := unmarshalStrings(files, &t.Files); err != nil {
		return nil, err
	}
	if err := unmarshalStrings(games, &t.GamesRegistered); err != nil {
		return nil, err
	}
	if errs != nil && *errs != "" {
		if err := json.Unmarshal([]byte(*errs), &t.Errors); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// UpdateTaskProgress updates the worker-side counters for a running task.
func (db *DB) UpdateTaskProgress(id string, progress float64, totalChunks, processedChunks, processedFiles int) error {
	_, err := db.conn.Exec(
		`UPDATE upload_tasks SET progress = ?, total_chunks = ?, processed_chunks = ?,
		processed_files = ? WHERE id = ?`,
		progress, totalChunks, processedChunks, processedFiles, id,
	)
	return err
}

// SetTaskGames records the set of games registered by a task.
func (db *DB) SetTaskGames(id string, games []string) error {
	gamesJSON, err := marshalStrings(games)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec("UPDATE upload_tasks SET games_registered = ? WHERE id = ?", gamesJSON, id)
	return err
}

// AppendTaskError appends a non-fatal error to a task's error list.
func (db *DB) AppendTaskError(id string, taskErr TaskError) error {
	task, err := db.GetUploadTask(id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(append(task.Errors, taskErr))
	if err != nil {
		return err
	}
	_, err = db.conn.Exec("UPDATE upload_tasks SET errors = ? WHERE id = ?", string(data), id)
	return err
}

// FinishTask moves a task to a terminal status.
func (db *DB) FinishTask(id, status string) error {
	_, err := db.conn.Exec(
		"UPDATE upload_tasks SET status = ?, completed_at = datetime('now') WHERE id = ?",
		status, id,
	)
	return err
}

// PruneUploadTasks keeps only the most recent terminal tasks, bounding the
// table the way the in-memory usage log is bounded.
func (db *DB) PruneUploadTasks(keep int) error {
	_, err := db.conn.Exec(
		`DELETE FROM upload_tasks WHERE status != ? AND id NOT IN (
			SELECT id FROM upload_tasks WHERE status != ?
			ORDER BY started_at DESC LIMIT ?
		)`,
		TaskProcessing, TaskProcessing, keep,
	)
	return err
}
