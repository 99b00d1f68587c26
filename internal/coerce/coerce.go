// Package coerce turns raw respondent rows into typed, validated responses.
package coerce

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/surveyrecon/internal/schema"
	"github.com/dshills/surveyrecon/internal/validate"
)

// ErrNoRows is returned when rows are required and the table has none.
var ErrNoRows = errors.New("coerce: response table has no rows")

// Options configures Process.
type Options struct {
	// Workers bounds the number of rows coerced at once. Zero or less
	// selects GOMAXPROCS.
	Workers int
	// RequireRows makes an empty table fatal.
	RequireRows bool
}

// Result is the best-effort output of Process.
type Result struct {
	Responses   []schema.ProcessedResponse `json:"responses"`
	Diagnostics schema.Diagnostics         `json:"diagnostics"`
	RowErrors   []schema.RowError          `json:"row_errors"`
}

// rowResult is the output of one row, merged later in index order.
type rowResult struct {
	response *schema.ProcessedResponse
	rowErr   *schema.RowError
	diag     schema.Diagnostics
}

// Process coerces every row of table against q using mapping. Rows run in
// parallel; responses, row errors and issues come back in row order.
func Process(ctx context.Context, q schema.Questionnaire, mapping schema.ColumnMapping, table schema.Table, opts Options) (*Result, error) {
	if opts.RequireRows && len(table.Rows) == 0 {
		return nil, ErrNoRows
	}
	res := &Result{
		Responses:   []schema.ProcessedResponse{},
		Diagnostics: schema.Diagnostics{Errors: []schema.Issue{}, Warnings: []schema.Issue{}},
		RowErrors:   []schema.RowError{},
	}

	v, problems := validate.New(q)
	for _, p := range problems {
		res.Diagnostics.Warnings = append(res.Diagnostics.Warnings, schema.Issue{Kind: schema.IssueRule, Message: p})
	}

	p := &processor{
		questions: q.Questions,
		index:     q.Questions.Index(),
		mapping:   mapping,
		validator: v,
	}
	for _, col := range columnOrder(table.Headers, mapping) {
		id, _ := mapping.QuestionFor(col)
		if _, ok := p.index[id]; !ok {
			res.Diagnostics.Warnings = append(res.Diagnostics.Warnings, schema.Issue{
				Kind:     schema.IssueUnmappedColumn,
				Column:   col,
				Question: id,
				Message:  fmt.Sprintf("column %q is mapped to unknown question %s and was skipped", col, id),
			})
			continue
		}
		p.columns = append(p.columns, col)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]rowResult, len(table.Rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, row := range table.Rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.row(i, row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("coerce: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("coerce: %w", err)
	}

	for _, r := range results {
		if r.rowErr != nil {
			res.RowErrors = append(res.RowErrors, *r.rowErr)
		}
		if r.response != nil {
			res.Responses = append(res.Responses, *r.response)
		}
		res.Diagnostics.Errors = append(res.Diagnostics.Errors, r.diag.Errors...)
		res.Diagnostics.Warnings = append(res.Diagnostics.Warnings, r.diag.Warnings...)
	}
	return res, nil
}

// columnOrder lists the mapped columns in header order. Without headers the
// mapped columns are taken in sorted order.
func columnOrder(headers []string, m schema.ColumnMapping) []string {
	if len(headers) == 0 {
		headers = slices.Sorted(maps.Keys(m.Direct))
		headers = append(headers, slices.Sorted(maps.Keys(m.Fuzzy))...)
	}
	var cols []string
	for _, h := range headers {
		if _, ok := m.QuestionFor(h); ok {
			cols = append(cols, h)
		}
	}
	return cols
}

// processor holds the read-only state shared by row workers. Every column
// in columns maps to a question in index.
type processor struct {
	questions schema.QuestionList
	index     map[string]int
	columns   []string
	mapping   schema.ColumnMapping
	validator *validate.Validator
}

func (p *processor) row(i int, row schema.Row) rowResult {
	if row == nil {
		return rowResult{rowErr: &schema.RowError{
			Row:     i,
			Line:    i + 2,
			Message: fmt.Sprintf("row %d is empty or unreadable", i),
		}}
	}

	var diag schema.Diagnostics
	values := make(map[string]schema.TypedValue, len(p.questions))
	for _, q := range p.questions {
		values[q.ID] = nil
	}
	var cellErrs []string
	for _, col := range p.columns {
		id, _ := p.mapping.QuestionFor(col)
		q := p.questions[p.index[id]]
		raw := row[col]
		v, issue := cell(q, raw)
		if issue != nil {
			text, _ := cellText(raw)
			is := schema.Issue{Kind: issue.kind, Message: issue.msg, Question: q.ID, Column: col, Value: text}.AtRow(i)
			if issue.err {
				diag.Errors = append(diag.Errors, is)
				cellErrs = append(cellErrs, issue.msg)
			} else {
				diag.Warnings = append(diag.Warnings, is)
			}
		}
		if v != nil {
			values[q.ID] = v
		}
	}

	answered := 0
	for _, v := range values {
		if v != nil {
			answered++
		}
	}
	rate := 0.0
	if len(p.questions) > 0 {
		rate = float64(answered) / float64(len(p.questions)) * 100
	}

	vr := p.validator.Check(values)
	vr.Errors = append(cellErrs, vr.Errors...)
	if vr.Errors == nil {
		vr.Errors = []string{}
	}
	return rowResult{
		response: &schema.ProcessedResponse{
			Index:    i,
			Original: maps.Clone(row),
			Values:   values,
			Metadata: schema.ResponseMeta{
				CompletionRate: rate,
				HasErrors:      len(vr.Errors) > 0,
				Validation:     vr,
			},
		},
		diag: diag,
	}
}
