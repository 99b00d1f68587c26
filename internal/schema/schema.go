// Package schema defines the canonical data types shared by the normalizer,
// the column reconciler, the coercer and the report layer.
package schema

// QuestionType is the canonical type of a question. Aliases that the
// normalizer does not recognize are carried through unchanged, so values
// outside the constants below are legal.
type QuestionType string

const (
	TypeSingleChoice   QuestionType = "single_choice"
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeText           QuestionType = "text"
	TypeNumeric        QuestionType = "numeric"
	TypeDate           QuestionType = "date"
	TypeEmail          QuestionType = "email"
)

// IsChoice reports whether answers to t are bound to option codes.
func (t QuestionType) IsChoice() bool {
	return t == TypeSingleChoice || t == TypeMultipleChoice
}

// Format refines a question type for display and statistics.
type Format string

const (
	FormatNone      Format = ""
	FormatOpenText  Format = "open_text"
	FormatLocation  Format = "location"
	FormatTransport Format = "transport"
	FormatCurrency  Format = "currency"
	FormatCount     Format = "count"
)

// Terminal is the routing destination meaning "the respondent's path ends here".
const Terminal = "end"

// Operators used in routing triggers.
const (
	OpEquals = "=="
	OpAlways = "always"
)

// Questionnaire is the canonical, read-only representation of a survey.
type Questionnaire struct {
	Metadata    Metadata      `json:"metadata"`
	Questions   QuestionList  `json:"questions"`
	Routing     []RoutingEdge `json:"routing"`
	Conventions Conventions   `json:"conventions"`
}

// Metadata describes the questionnaire as a whole.
type Metadata struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Version           string `json:"version"`
	Language          string `json:"language"`
	CreatedAt         string `json:"created_at,omitempty"`
	EstimatedDuration *int   `json:"estimated_duration,omitempty"`
	TotalQuestions    int    `json:"total_questions"`
}

// Question is one canonical question record.
type Question struct {
	ID         string       `json:"id"`
	Label      string       `json:"label"`
	Type       QuestionType `json:"type"`
	Format     Format       `json:"format,omitempty"`
	Required   bool         `json:"required"`
	Options    Options      `json:"options"`
	Conditions []Condition  `json:"conditions,omitempty"`
	Validation *Rules       `json:"validation,omitempty"`
	Metadata   QuestionMeta `json:"metadata"`
}

// QuestionMeta carries ordering and grouping hints.
type QuestionMeta struct {
	Order   int      `json:"order"`
	Section string   `json:"section"`
	Tags    []string `json:"tags"`
}

// Option is one answer code and its label.
type Option struct {
	Code  string
	Label string
}

// Rules are the field-level validation constraints of a question.
type Rules struct {
	Required  bool     `json:"required,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// Condition is a display or routing rule attached to a question.
type Condition struct {
	Type     string `json:"type"`
	Question string `json:"question,omitempty"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
	Action   string `json:"action"`
	Target   string `json:"target,omitempty"`
}

// RoutingEdge is a directed transition between questions.
type RoutingEdge struct {
	Source      string  `json:"source"`
	Trigger     Trigger `json:"trigger"`
	Destination string  `json:"destination"`
}

// IsTerminal reports whether the edge ends the respondent's path.
func (e RoutingEdge) IsTerminal() bool {
	return e.Destination == Terminal
}

// Trigger is the answer that activates a routing edge.
type Trigger struct {
	Question string `json:"question"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
}

// Conventions are naming patterns derived from question ids. Diagnostic only.
type Conventions struct {
	Prefixes      []string            `json:"prefixes"`
	Suffixes      []string            `json:"suffixes"`
	Patterns      map[string]string   `json:"patterns"`
	SpecialFields map[string][]string `json:"special_fields"`
}

// ColumnMapping associates tabular headers with question ids.
type ColumnMapping struct {
	Direct            map[string]string  `json:"direct"`
	Fuzzy             map[string]string  `json:"fuzzy"`
	Scores            map[string]float64 `json:"scores,omitempty"`
	UnmappedColumns   []string           `json:"unmapped_columns"`
	UnmappedQuestions []string           `json:"unmapped_questions"`
}

// QuestionFor returns the question mapped to column, directly or fuzzily.
func (m ColumnMapping) QuestionFor(column string) (string, bool) {
	if id, ok := m.Direct[column]; ok {
		return id, true
	}
	id, ok := m.Fuzzy[column]
	return id, ok
}

// Row is one raw respondent record keyed by column header.
type Row map[string]any

// Table is an ordered set of raw rows sharing the same headers.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// ProcessedResponse is one coerced respondent record.
type ProcessedResponse struct {
	Index    int                   `json:"index"`
	Original Row                   `json:"original"`
	Values   map[string]TypedValue `json:"values"`
	Metadata ResponseMeta          `json:"metadata"`
}

// ResponseMeta holds per-response completion and validation data.
type ResponseMeta struct {
	CompletionRate float64          `json:"completion_rate"`
	HasErrors      bool             `json:"has_errors"`
	Validation     ValidationResult `json:"validation"`
}

// ValidationResult collects field-rule messages for one response.
type ValidationResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// RowError records a row that could not be coerced at all.
type RowError struct {
	Row     int    `json:"row"`
	Line    int    `json:"line"`
	Message string `json:"message"`
	Data    Row    `json:"data,omitempty"`
}
