// Package outcome classifies a processing run for the user: could not be
// processed at all, processed with problems, or processed cleanly.
package outcome

import (
	"fmt"

	"github.com/dshills/surveyrecon/internal/schema"
)

// Status is the overall result of a run.
type Status string

const (
	StatusProcessed             Status = "PROCESSED"
	StatusProcessedWithWarnings Status = "PROCESSED_WITH_WARNINGS"
	StatusFailed                Status = "FAILED"
)

// DefaultLimit is the number of messages of each kind kept in a Summary.
const DefaultLimit = 5

// Summary is the user-facing digest of a run.
type Summary struct {
	Status       Status   `json:"status"`
	Fatal        string   `json:"fatal,omitempty"`
	ErrorCount   int      `json:"error_count"`
	WarningCount int      `json:"warning_count"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}

// Ordinal ranks statuses by severity: PROCESSED=0,
// PROCESSED_WITH_WARNINGS=1, FAILED=2. Unknown statuses are -1.
func Ordinal(s Status) int {
	switch s {
	case StatusProcessed:
		return 0
	case StatusProcessedWithWarnings:
		return 1
	case StatusFailed:
		return 2
	default:
		return -1
	}
}

// ParseStatus accepts a status name or one of the short forms "warnings"
// and "failed".
func ParseStatus(s string) (Status, error) {
	switch s {
	case "warnings", string(StatusProcessedWithWarnings):
		return StatusProcessedWithWarnings, nil
	case "failed", string(StatusFailed):
		return StatusFailed, nil
	case "processed", string(StatusProcessed):
		return StatusProcessed, nil
	}
	return "", fmt.Errorf("outcome: unknown status %q", s)
}

// Summarize classifies a run.
//
// Rules (in order of precedence):
//  1. A fatal error → FAILED
//  2. Any error, warning or row error → PROCESSED_WITH_WARNINGS
//  3. Otherwise → PROCESSED
//
// Row errors count as errors. At most limit messages of each kind are kept;
// limit <= 0 selects DefaultLimit.
func Summarize(fatal error, diag schema.Diagnostics, rowErrors []schema.RowError, limit int) Summary {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := Summary{
		ErrorCount:   len(diag.Errors) + len(rowErrors),
		WarningCount: len(diag.Warnings),
		Errors:       []string{},
		Warnings:     []string{},
	}

	for _, e := range diag.Errors {
		s.Errors = appendLimited(s.Errors, message(e), limit)
	}
	for _, re := range rowErrors {
		s.Errors = appendLimited(s.Errors, fmt.Sprintf("line %d: %s", re.Line, re.Message), limit)
	}
	for _, w := range diag.Warnings {
		s.Warnings = appendLimited(s.Warnings, message(w), limit)
	}

	switch {
	case fatal != nil:
		s.Status = StatusFailed
		s.Fatal = fatal.Error()
	case s.ErrorCount > 0 || s.WarningCount > 0:
		s.Status = StatusProcessedWithWarnings
	default:
		s.Status = StatusProcessed
	}
	return s
}

func appendLimited(msgs []string, m string, limit int) []string {
	if len(msgs) >= limit {
		return msgs
	}
	return append(msgs, m)
}

func message(i schema.Issue) string {
	if i.Row != nil {
		return fmt.Sprintf("[%s] row %d: %s", i.Kind, *i.Row, i.Message)
	}
	return fmt.Sprintf("[%s] %s", i.Kind, i.Message)
}

// Headline is a one-line description of s, e.g. "processed with 3 warnings".
func Headline(s Summary) string {
	switch s.Status {
	case StatusFailed:
		return "could not process: " + s.Fatal
	case StatusProcessedWithWarnings:
		return fmt.Sprintf("processed with %s and %s", plural(s.ErrorCount, "error"), plural(s.WarningCount, "warning"))
	}
	return "processed"
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
