package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"rulechat/internal/database"
	"rulechat/internal/ingest"
	"rulechat/internal/llm"
	"rulechat/internal/respond"
	"rulechat/internal/scorer"
)

var md = goldmark.New()

// Server is the HTTP JSON API for rulebook queries and administration.
type Server struct {
	db         *database.DB
	responder  *respond.Responder
	ingestor   *ingest.Ingestor
	usage      *llm.UsageLog
	adminToken string
	mux        *http.ServeMux
}

// New creates a new Server. A non-empty adminToken gates every /api/admin
// endpoint behind the X-Admin-Token header; empty leaves them open for
// local single-user setups.
func New(db *database.DB, responder *respond.Responder, ingestor *ingest.Ingestor, usage *llm.UsageLog, adminToken string) *Server {
	s := &Server{
		db:         db,
		responder:  responder,
		ingestor:   ingestor,
		usage:      usage,
		adminToken: adminToken,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/chat/query", s.handleQuery)
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	s.mux.HandleFunc("GET /api/games/{id}/rules", s.handleGameRules)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	s.mux.HandleFunc("POST /api/admin/upload", s.admin(s.handleUpload))
	s.mux.HandleFunc("POST /api/admin/upload/batch", s.admin(s.handleUploadBatch))
	s.mux.HandleFunc("GET /api/admin/upload/{task}", s.admin(s.handleTaskStatus))
	s.mux.HandleFunc("POST /api/admin/games/{id}/validate", s.admin(s.handleValidate))
	s.mux.HandleFunc("DELETE /api/admin/games/{id}", s.admin(s.handleDeleteGame))
	s.mux.HandleFunc("PUT /api/admin/rules/{id}", s.admin(s.handleUpdateRule))
	s.mux.HandleFunc("DELETE /api/admin/rules/{id}", s.admin(s.handleDeleteRule))
	s.mux.HandleFunc("GET /api/admin/usage", s.admin(s.handleUsage))
}

// admin wraps an admin handler with the shared-token check.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken != "" && r.Header.Get("X-Admin-Token") != s.adminToken {
			writeError(w, http.StatusUnauthorized, "missing or invalid admin token")
			return
		}
		next(w, r)
	}
}

type chatRequest struct {
	Query      string `json:"query"`
	GameSystem string `json:"game_system"`
}

type chatResponse struct {
	Query  string `json:"query"`
	GameID string `json:"game_id"`
	respond.Result
}

// handleQuery answers one natural-language rules question. AI failures are
// absorbed by the responder; only bad input, unknown games, and storage
// errors produce non-200 statuses.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	if req.GameSystem == "" {
		writeError(w, http.StatusBadRequest, "game_system must not be empty")
		return
	}

	game, err := s.db.GetGame(req.GameSystem)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown game: %s", req.GameSystem))
		return
	}
	if err != nil {
		s.internalError(w, "loading game", err)
		return
	}

	rules, err := s.db.RulesForGame(game.GameID)
	if err != nil {
		s.internalError(w, "loading rules", err)
		return
	}

	ranked := scorer.Rank(req.Query, rules)
	result := s.responder.Answer(r.Context(), req.Query, game, ranked)

	writeJSON(w, http.StatusOK, chatResponse{
		Query:  req.Query,
		GameID: game.GameID,
		Result: *result,
	})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.db.ListGames()
	if err != nil {
		s.internalError(w, "listing games", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games, "count": len(games)})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.db.GetGame(r.PathValue("id"))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		s.internalError(w, "loading game", err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// handleGameRules lists a game's rules, optionally rendering each rule's
// Markdown content to HTML with ?format=html.
func (s *Server) handleGameRules(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	if _, err := s.db.GetGame(gameID); errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	} else if err != nil {
		s.internalError(w, "loading game", err)
		return
	}

	rules, err := s.db.RulesForGame(gameID)
	if err != nil {
		s.internalError(w, "loading rules", err)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		for i := range rules {
			rules[i].Content = renderMarkdown(rules[i].Content)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": gameID, "rules": rules, "count": len(rules)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		s.internalError(w, "loading stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_games":            stats.TotalGames,
		"total_rules":            stats.TotalRules,
		"games_by_complexity":    stats.GamesByComplexity,
		"average_rules_per_game": stats.AverageRulesPerGame,
		"pending_uploads":        stats.PendingUploads,
	})
}

func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return text
	}
	return buf.String()
}

func (s *Server) internalError(w http.ResponseWriter, context string, err error) {
	log.Printf("%s: %v", context, err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	// Rule content can be rendered HTML; keep tags literal rather than
	// escaped to unicode sequences.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, responder *respond.Responder, ingestor *ingest.Ingestor, usage *llm.UsageLog, adminToken string, port int) error {
	srv := New(db, responder, ingestor, usage, adminToken)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
