package schema

// IssueKind classifies a non-fatal error or warning.
type IssueKind string

const (
	IssueParse            IssueKind = "PARSE"
	IssueMissingID        IssueKind = "MISSING_ID"
	IssueDuplicateID      IssueKind = "DUPLICATE_ID"
	IssueDanglingRoute    IssueKind = "DANGLING_ROUTE"
	IssueEmptyOptions     IssueKind = "EMPTY_OPTIONS"
	IssueFuzzyMatch       IssueKind = "FUZZY_MATCH"
	IssueUnmappedColumn   IssueKind = "UNMAPPED_COLUMN"
	IssueUnmappedQuestion IssueKind = "UNMAPPED_QUESTION"
	IssueUnknownOption    IssueKind = "UNKNOWN_OPTION"
	IssueInvalidNumeric   IssueKind = "INVALID_NUMERIC"
	IssueInvalidDate      IssueKind = "INVALID_DATE"
	IssueInvalidCell      IssueKind = "INVALID_CELL"
	IssueRule             IssueKind = "RULE"
)

// Issue is one collected error or warning.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Message  string    `json:"message"`
	Row      *int      `json:"row,omitempty"`
	Question string    `json:"question,omitempty"`
	Column   string    `json:"column,omitempty"`
	Value    string    `json:"value,omitempty"`
}

// AtRow returns a copy of the issue scoped to a row index.
func (i Issue) AtRow(row int) Issue {
	i.Row = &row
	return i
}

// Diagnostics is the error/warning report returned next to best-effort output.
type Diagnostics struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Merge appends other's issues after d's, preserving order.
func (d Diagnostics) Merge(other Diagnostics) Diagnostics {
	return Diagnostics{
		Errors:   append(append([]Issue{}, d.Errors...), other.Errors...),
		Warnings: append(append([]Issue{}, d.Warnings...), other.Warnings...),
	}
}
