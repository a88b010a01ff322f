package database

// Game is a registered ruleset. Games are upserted automatically on first
// ingestion of a rulebook referencing their game_id.
type Game struct {
	GameID         string   `json:"game_id"`
	Name           string   `json:"name"`
	Publisher      string   `json:"publisher"`
	Version        string   `json:"version"`
	Description    string   `json:"description"`
	Complexity     string   `json:"complexity"` // easy, medium, hard
	MinPlayers     int      `json:"min_players"`
	MaxPlayers     int      `json:"max_players"`
	RuleCount      int      `json:"rule_count"` // denormalized, reconciled by ValidateGame
	Categories     []string `json:"categories"`
	AITags         []string `json:"ai_tags"`
	AutoRegistered bool     `json:"auto_registered"`
	CreatedAt      *string  `json:"created_at,omitempty"`
	UpdatedAt      *string  `json:"updated_at,omitempty"`
}

// Rule is one retrievable unit of rules content.
type Rule struct {
	ID          int64     `json:"id"`
	GameID      string    `json:"game_id"`
	CategoryID  string    `json:"category_id"`
	ContentType string    `json:"content_type"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Ancestors   []string  `json:"ancestors"`
	Metadata    RuleMeta  `json:"metadata"`
	Embedding   []float64 `json:"-"` // stored at ingestion time, never queried
	CreatedAt   *string   `json:"created_at,omitempty"`
}

// RuleMeta carries per-chunk ingestion metadata.
type RuleMeta struct {
	Tokens          int     `json:"tokens"`
	ComplexityScore float64 `json:"complexity_score"`
	Mandatory       bool    `json:"mandatory"`
	SourceFile      string  `json:"source_file"`
	SectionIndex    int     `json:"section_index"`
	ChunkIndex      int     `json:"chunk_index"`
}

// Upload task statuses. A task is terminal once completed or failed.
const (
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// UploadTask tracks one asynchronous ingestion job. Mutated only by the
// ingestion worker that owns it.
type UploadTask struct {
	ID              string      `json:"task_id"`
	Status          string      `json:"status"`
	Filename        *string     `json:"filename,omitempty"`
	Files           []string    `json:"files,omitempty"`
	Progress        float64     `json:"progress"`
	TotalFiles      int         `json:"total_files,omitempty"`
	ProcessedFiles  int         `json:"processed_files,omitempty"`
	TotalChunks     int         `json:"total_chunks"`
	ProcessedChunks int         `json:"processed_chunks"`
	GamesRegistered []string    `json:"games_registered"`
	Errors          []TaskError `json:"errors"`
	StartedAt       *string     `json:"started_at,omitempty"`
	CompletedAt     *string     `json:"completed_at,omitempty"`
}

// TaskError records one non-fatal ingestion failure with its context.
type TaskError struct {
	Context string `json:"context"`
	Message string `json:"message"`
}

// ValidationReport is the result of a game integrity check. Auto-correctable
// drift (rule_count) is fixed in place; everything else is reported only.
type ValidationReport struct {
	GameID           string   `json:"game_id"`
	Valid            bool     `json:"valid"`
	Issues           []string `json:"issues"`
	RuleCount        int      `json:"rule_count"`
	AutoFixesApplied int      `json:"auto_fixes_applied"`
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalGames          int
	TotalRules          int
	GamesByComplexity   map[string]int
	AverageRulesPerGame float64
	PendingUploads      int
}
