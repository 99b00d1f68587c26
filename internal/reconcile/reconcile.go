// Package reconcile maps the column headers of a response table onto the
// question ids of a canonical questionnaire.
package reconcile

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/dshills/surveyrecon/internal/schema"
	"github.com/dshills/surveyrecon/internal/textfold"
)

// DefaultThreshold is the similarity a fuzzy match must exceed.
const DefaultThreshold = 0.7

// Options configures Reconcile.
type Options struct {
	// Threshold is the minimum similarity (exclusive) for a fuzzy match.
	// Zero selects DefaultThreshold.
	Threshold float64
}

var separatorRe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// NormalizeHeader returns the comparison form of a header: accents folded,
// trimmed, every run of other characters replaced by one underscore, edge
// underscores removed, upper-cased.
func NormalizeHeader(h string) string {
	s := separatorRe.ReplaceAllString(textfold.Accents(strings.TrimSpace(h)), "_")
	return strings.ToUpper(strings.Trim(s, "_"))
}

// directKey folds only case, accents and surrounding whitespace.
func directKey(s string) string {
	return strings.ToUpper(textfold.Accents(strings.TrimSpace(s)))
}

// Similarity is 1 minus the edit distance over the longer length, in runes.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return float64(longest-levenshtein.ComputeDistance(a, b)) / float64(longest)
}

// Reconcile builds the column mapping for headers. Headers that equal a
// question id once case, accents and surrounding whitespace are folded map
// directly; the rest are compared by Similarity of their normalized form to
// the ids still unmatched, in header order. Each question receives at most
// one column.
func Reconcile(q schema.Questionnaire, headers []string, opts Options) (schema.ColumnMapping, []schema.Issue) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	m := schema.ColumnMapping{
		Direct:            map[string]string{},
		Fuzzy:             map[string]string{},
		Scores:            map[string]float64{},
		UnmappedColumns:   []string{},
		UnmappedQuestions: []string{},
	}
	ids := q.Questions.IDs()
	byKey := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, dup := byKey[directKey(id)]; !dup {
			byKey[directKey(id)] = id
		}
	}
	matched := map[string]bool{}

	var pending []string
	for _, h := range headers {
		if id, ok := byKey[directKey(h)]; ok && !matched[id] {
			m.Direct[h] = id
			matched[id] = true
			continue
		}
		pending = append(pending, h)
	}

	var warnings []schema.Issue
	for _, h := range pending {
		id, score := bestMatch(NormalizeHeader(h), ids, matched, threshold)
		if id == "" {
			m.UnmappedColumns = append(m.UnmappedColumns, h)
			continue
		}
		m.Fuzzy[h] = id
		m.Scores[h] = score
		matched[id] = true
		warnings = append(warnings, schema.Issue{
			Kind:     schema.IssueFuzzyMatch,
			Column:   h,
			Question: id,
			Message:  fmt.Sprintf("column %q matched question %s by similarity %.2f", h, id, score),
		})
	}

	for _, h := range m.UnmappedColumns {
		warnings = append(warnings, schema.Issue{
			Kind:    schema.IssueUnmappedColumn,
			Column:  h,
			Message: fmt.Sprintf("column %q matches no question", h),
		})
	}
	for _, id := range ids {
		if !matched[id] {
			m.UnmappedQuestions = append(m.UnmappedQuestions, id)
			warnings = append(warnings, schema.Issue{
				Kind:     schema.IssueUnmappedQuestion,
				Question: id,
				Message:  fmt.Sprintf("question %s has no column", id),
			})
		}
	}
	return m, warnings
}

// bestMatch returns the unmatched id most similar to key above threshold.
// Ties keep the earliest id.
func bestMatch(key string, ids []string, matched map[string]bool, threshold float64) (string, float64) {
	if key == "" {
		return "", 0
	}
	best, bestScore := "", 0.0
	for _, id := range ids {
		if matched[id] {
			continue
		}
		s := Similarity(key, NormalizeHeader(id))
		if s > threshold && s > bestScore {
			best, bestScore = id, s
		}
	}
	return best, bestScore
}
