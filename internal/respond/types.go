package respond

// Search method values reported to callers. AI unavailability is invisible
// beyond this field.
const (
	MethodAIPowered        = "ai_powered"
	MethodTemplateFallback = "template_fallback"
	MethodScoring          = "intelligent_scoring"
)

// Summary is the headline answer with a confidence estimate in [0,1].
type Summary struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Section is one collapsible block of the structured answer.
type Section struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Type        string `json:"type"`
	Level       int    `json:"level"`
	Collapsible bool   `json:"collapsible"`
	Expanded    bool   `json:"expanded"`
}

// Source cites one rulebook section backing the answer. Page is declared in
// the contract but never populated.
type Source struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
	Page      *int   `json:"page,omitempty"`
}

// StructuredResponse is the output contract returned to callers. Rebuilt per
// query, never persisted.
type StructuredResponse struct {
	Summary  Summary   `json:"summary"`
	Sections []Section `json:"sections"`
	Sources  []Source  `json:"sources"`
}

// Usage carries AI token accounting for one answered query.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result is the uniform shape returned regardless of which path produced
// the answer. Provider failures never surface here as errors.
type Result struct {
	Response       StructuredResponse `json:"response"`
	SearchMethod   string             `json:"search_method"`
	AIPowered      bool               `json:"ai_powered"`
	Model          string             `json:"model,omitempty"`
	Usage          *Usage             `json:"usage,omitempty"`
	FallbackReason string             `json:"-"`
}
