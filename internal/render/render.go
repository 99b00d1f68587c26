// Package render produces output from a pipeline report or a normalized
// questionnaire.
package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dshills/surveyrecon/internal/normalize"
	"github.com/dshills/surveyrecon/internal/pipeline"
	"github.com/dshills/surveyrecon/internal/schema"
	"github.com/dshills/surveyrecon/internal/stats"
)

// RenderJSON produces a pretty-printed JSON representation of v, which is
// typically a *pipeline.Report or a normalize.Result.
func RenderJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("render: nil value")
	}
	if rep, ok := v.(*pipeline.Report); ok && rep == nil {
		return nil, fmt.Errorf("render: nil report")
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces a GitHub-flavoured Markdown summary of the report:
// the outcome, the column mapping, the question statistics and the first
// diagnostics.
func RenderMarkdown(rep *pipeline.Report) string {
	if rep == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("## Survey Reconciliation Report\n\n")
	fmt.Fprintf(&sb, "**Status:** %s  \n", rep.Summary.Status)
	fmt.Fprintf(&sb, "**Run:** `%s`  \n", rep.RunID)
	fmt.Fprintf(&sb, "**Errors:** %d | **Warnings:** %d\n\n", rep.Summary.ErrorCount, rep.Summary.WarningCount)
	if rep.Summary.Fatal != "" {
		fmt.Fprintf(&sb, "> could not process: %s\n\n", mdEscape(rep.Summary.Fatal))
	}

	if q := rep.Questionnaire; q != nil {
		fmt.Fprintf(&sb, "**Questionnaire:** %s (v%s, %d questions, %d routes)\n\n",
			mdEscape(q.Metadata.Title), q.Metadata.Version, len(q.Questions), len(q.Routing))
	}

	if st := rep.Statistics; st != nil {
		sb.WriteString("## Responses\n\n")
		fmt.Fprintf(&sb, "- Total: %d\n", st.TotalResponses)
		fmt.Fprintf(&sb, "- Average completion: %.1f%%\n", st.AvgCompletionRate)
		fmt.Fprintf(&sb, "- Complete: %d | Partial: %d | Empty: %d | With errors: %d\n\n",
			st.Quality.Complete, st.Quality.Partial, st.Quality.Empty, st.Quality.Errors)
	}

	if m := rep.Mapping; m != nil && (len(m.Direct)+len(m.Fuzzy)+len(m.UnmappedColumns)) > 0 {
		sb.WriteString("## Column Mapping\n\n")
		sb.WriteString("| Column | Question | Match |\n")
		sb.WriteString("|---|---|---|\n")
		for _, col := range mappedColumns(rep) {
			if id, ok := m.Direct[col]; ok {
				fmt.Fprintf(&sb, "| %s | %s | direct |\n", mdEscape(col), id)
			} else if id, ok := m.Fuzzy[col]; ok {
				fmt.Fprintf(&sb, "| %s | %s | fuzzy %.2f |\n", mdEscape(col), id, m.Scores[col])
			}
		}
		for _, col := range m.UnmappedColumns {
			fmt.Fprintf(&sb, "| %s | - | unmapped |\n", mdEscape(col))
		}
		sb.WriteString("\n")
	}

	if rep.Questionnaire != nil && rep.Statistics != nil {
		sb.WriteString("## Questions\n\n")
		sb.WriteString("| ID | Type | Answered | Rate | Summary |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, q := range rep.Questionnaire.Questions {
			qs := rep.Statistics.Questions[q.ID]
			fmt.Fprintf(&sb, "| %s | %s | %d | %.1f%% | %s |\n",
				q.ID, typeLabel(q), qs.ResponseCount, qs.ResponseRate, mdEscape(summaryCell(qs)))
		}
		sb.WriteString("\n")
	}

	writeMessages(&sb, "Errors", rep.Summary.Errors, rep.Summary.ErrorCount)
	writeMessages(&sb, "Warnings", rep.Summary.Warnings, rep.Summary.WarningCount)
	return sb.String()
}

// RenderQuestionnaireMarkdown describes a normalized questionnaire: its
// questions and its routing graph.
func RenderQuestionnaireMarkdown(res normalize.Result) string {
	var sb strings.Builder
	q := res.Questionnaire
	fmt.Fprintf(&sb, "## %s\n\n", mdEscape(q.Metadata.Title))
	fmt.Fprintf(&sb, "**Source:** %s | **Version:** %s | **Language:** %s | **Questions:** %d\n\n",
		res.Source, q.Metadata.Version, q.Metadata.Language, q.Metadata.TotalQuestions)

	if len(q.Questions) > 0 {
		sb.WriteString("| ID | Type | Section | Label | Options |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, qq := range q.Questions {
			var opts []string
			for _, o := range qq.Options {
				opts = append(opts, o.Code+"="+o.Label)
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				qq.ID, typeLabel(qq), qq.Metadata.Section, mdEscape(qq.Label), mdEscape(strings.Join(opts, ", ")))
		}
		sb.WriteString("\n")
	}

	if len(q.Routing) > 0 {
		sb.WriteString("## Routing\n\n")
		for _, e := range q.Routing {
			trigger := "always"
			if e.Trigger.Operator != schema.OpAlways {
				trigger = fmt.Sprintf("%s %s %s", e.Trigger.Question, e.Trigger.Operator, e.Trigger.Value)
			}
			fmt.Fprintf(&sb, "- %s → %s (%s)\n", e.Source, e.Destination, trigger)
		}
		sb.WriteString("\n")
	}

	writeIssues(&sb, "Errors", res.Diagnostics.Errors)
	writeIssues(&sb, "Warnings", res.Diagnostics.Warnings)
	return sb.String()
}

// RenderCSV writes one line per processed response: the row index, one
// column per question holding the display form of its value, then the
// completion rate and error flag.
func RenderCSV(rep *pipeline.Report) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("render: nil report")
	}
	if rep.Questionnaire == nil {
		return nil, fmt.Errorf("render: report has no questionnaire")
	}
	ids := rep.Questionnaire.Questions.IDs()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append([]string{"index"}, ids...)
	header = append(header, "completion_rate", "has_errors")
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("render: csv: %w", err)
	}
	for _, r := range rep.Responses {
		line := make([]string, 0, len(header))
		line = append(line, strconv.Itoa(r.Index))
		for _, id := range ids {
			line = append(line, Display(r.Values[id]))
		}
		line = append(line,
			strconv.FormatFloat(r.Metadata.CompletionRate, 'f', 1, 64),
			strconv.FormatBool(r.Metadata.HasErrors))
		if err := w.Write(line); err != nil {
			return nil, fmt.Errorf("render: csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("render: csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Display returns the human-readable form of a typed value. Nil is empty.
func Display(v schema.TypedValue) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case schema.ChoiceValue:
		return tv.Label
	case schema.NumericValue:
		return tv.Formatted
	case schema.TextValue:
		return tv.Text
	case schema.DateValue:
		return tv.ISODate
	case schema.EmailValue:
		return tv.Normalized
	}
	return fmt.Sprint(v.RawValue())
}

// mappedColumns lists mapped columns in question order when the
// questionnaire is known, else sorted.
func mappedColumns(rep *pipeline.Report) []string {
	var cols []string
	for c := range rep.Mapping.Direct {
		cols = append(cols, c)
	}
	for c := range rep.Mapping.Fuzzy {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	if rep.Questionnaire == nil {
		return cols
	}
	idx := rep.Questionnaire.Questions.Index()
	slices.SortStableFunc(cols, func(a, b string) int {
		qa, _ := rep.Mapping.QuestionFor(a)
		qb, _ := rep.Mapping.QuestionFor(b)
		return idx[qa] - idx[qb]
	})
	return cols
}

func typeLabel(q schema.Question) string {
	if q.Format != schema.FormatNone {
		return string(q.Type) + "/" + string(q.Format)
	}
	return string(q.Type)
}

func summaryCell(qs stats.QuestionStats) string {
	switch {
	case len(qs.Distribution) > 0:
		var parts []string
		for _, b := range qs.Distribution {
			if b.Count == 0 {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %d", b.Label, b.Count))
		}
		return strings.Join(parts, ", ")
	case qs.Numeric != nil:
		n := qs.Numeric
		return fmt.Sprintf("min %g, max %g, mean %.2f, median %g", n.Min, n.Max, n.Mean, n.Median)
	case qs.Text != nil:
		return fmt.Sprintf("%d unique, avg %.1f chars", qs.Text.Unique, qs.Text.AverageLength)
	}
	return ""
}

func writeMessages(sb *strings.Builder, title string, msgs []string, total int) {
	if len(msgs) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n", title)
	for _, m := range msgs {
		fmt.Fprintf(sb, "- %s\n", mdEscape(m))
	}
	if more := total - len(msgs); more > 0 {
		fmt.Fprintf(sb, "- … and %d more\n", more)
	}
	sb.WriteString("\n")
}

func writeIssues(sb *strings.Builder, title string, issues []schema.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n", title)
	for _, is := range issues {
		fmt.Fprintf(sb, "- [%s] %s\n", is.Kind, mdEscape(is.Message))
	}
	sb.WriteString("\n")
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
