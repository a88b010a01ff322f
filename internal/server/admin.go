package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"rulechat/internal/database"
	"rulechat/internal/ingest"
)

const maxUploadBytes = 32 << 20

// handleUpload accepts one Markdown rulebook and starts an asynchronous
// ingestion task.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	upload, err := readUpload(file, header)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	taskID, err := s.ingestor.Upload(*upload)
	if err != nil {
		s.internalError(w, "starting upload", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": database.TaskProcessing})
}

// handleUploadBatch accepts multiple rulebooks under one task. Files fail
// independently; per-file errors land in the task record.
func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "missing files field")
		return
	}

	var uploads []ingest.File
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading "+header.Filename)
			return
		}
		upload, err := readUpload(file, header)
		file.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		uploads = append(uploads, *upload)
	}

	taskID, err := s.ingestor.UploadBatch(uploads)
	if err != nil {
		s.internalError(w, "starting batch upload", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id":     taskID,
		"status":      database.TaskProcessing,
		"total_files": len(uploads),
	})
}

func readUpload(file multipart.File, header *multipart.FileHeader) (*ingest.File, error) {
	name := header.Filename
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".md") && !strings.HasSuffix(lower, ".markdown") {
		return nil, errors.New("only .md and .markdown files are accepted: " + name)
	}

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, errors.New("reading " + name)
	}
	return &ingest.File{Name: name, Content: string(content)}, nil
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.db.GetUploadTask(r.PathValue("task"))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.internalError(w, "loading task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	report, err := s.db.ValidateGame(r.PathValue("id"))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		s.internalError(w, "validating game", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	err := s.db.DeleteGame(gameID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		s.internalError(w, "deleting game", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": gameID})
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Title) == "" || strings.TrimSpace(body.Content) == "" {
		writeError(w, http.StatusBadRequest, "title and content must not be empty")
		return
	}

	err = s.db.UpdateRule(id, body.Title, body.Content)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.internalError(w, "updating rule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": id})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	err = s.db.DeleteRule(id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.internalError(w, "deleting rule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.usage.Summary())
}
