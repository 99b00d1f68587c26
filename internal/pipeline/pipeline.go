// Package pipeline runs the full survey reconciliation: normalize the schema,
// map the columns, coerce the rows, then aggregate and classify the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/surveyrecon/internal/coerce"
	"github.com/dshills/surveyrecon/internal/config"
	"github.com/dshills/surveyrecon/internal/normalize"
	"github.com/dshills/surveyrecon/internal/outcome"
	"github.com/dshills/surveyrecon/internal/reconcile"
	"github.com/dshills/surveyrecon/internal/schema"
	"github.com/dshills/surveyrecon/internal/stats"
)

// Tool and Version identify the producer of a Report.
const (
	Tool    = "surveyrecon"
	Version = "0.1.0"
)

// Stage names reported to an Observer.
const (
	StageNormalize = "normalize"
	StageReconcile = "reconcile"
	StageCoerce    = "coerce"
	StageStats     = "stats"
)

// Observer receives stage timings and the final status of each run.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObserveRun(status outcome.Status, responses int)
}

// Input describes what a run was given.
type Input struct {
	SchemaSource string `json:"schema_source,omitempty"`
	Responses    string `json:"responses,omitempty"`
	Columns      int    `json:"columns"`
	Rows         int    `json:"rows"`
}

// Report is everything a run produced. Fields after Summary are best-effort
// and may be empty when the run failed.
type Report struct {
	Tool              string                     `json:"tool"`
	Version           string                     `json:"version"`
	RunID             string                     `json:"run_id"`
	GeneratedAt       time.Time                  `json:"generated_at"`
	Input             Input                      `json:"input"`
	Summary           outcome.Summary            `json:"summary"`
	Questionnaire     *schema.Questionnaire      `json:"questionnaire,omitempty"`
	SchemaDiagnostics schema.Diagnostics         `json:"schema_diagnostics"`
	Mapping           *schema.ColumnMapping      `json:"mapping,omitempty"`
	Responses         []schema.ProcessedResponse `json:"responses"`
	RowErrors         []schema.RowError          `json:"row_errors"`
	Diagnostics       schema.Diagnostics         `json:"diagnostics"`
	Statistics        *stats.Statistics          `json:"statistics,omitempty"`
}

// Runner holds the dependencies shared by runs. A Runner is safe for
// concurrent use.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver reports stage timings to o.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithClock replaces time.Now, for reproducible reports.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New returns a Runner. A nil cfg selects config.Default and a nil logger
// discards logs.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{cfg: cfg, logger: logger, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run processes schemaText and table into a Report. A fatal error is
// returned alongside a FAILED report that holds whatever was produced
// before the failure.
func Run(ctx context.Context, schemaText string, table schema.Table, cfg *config.Config, logger *zap.Logger) (*Report, error) {
	return New(cfg, logger).Run(ctx, schemaText, table)
}

// Normalize runs only the schema stages.
func Normalize(schemaText string, cfg *config.Config) (normalize.Result, error) {
	return New(cfg, nil).Normalize(schemaText)
}

// Normalize turns schema text into a canonical questionnaire.
func (r *Runner) Normalize(schemaText string) (normalize.Result, error) {
	opts, err := r.cfg.NormalizeOptions()
	if err != nil {
		return normalize.Result{}, fmt.Errorf("pipeline: %w", err)
	}
	start := r.now()
	res, err := normalize.FromText(schemaText, opts)
	r.stage(StageNormalize, start)
	if res.Diagnostics.Errors == nil {
		res.Diagnostics.Errors = []schema.Issue{}
	}
	if res.Diagnostics.Warnings == nil {
		res.Diagnostics.Warnings = []schema.Issue{}
	}
	return res, err
}

// Run processes schemaText and table into a Report.
func (r *Runner) Run(ctx context.Context, schemaText string, table schema.Table) (*Report, error) {
	rep := &Report{
		Tool:        Tool,
		Version:     Version,
		RunID:       uuid.NewString(),
		GeneratedAt: r.now().UTC(),
		Input:       Input{Columns: len(table.Headers), Rows: len(table.Rows)},
		SchemaDiagnostics: schema.Diagnostics{
			Errors: []schema.Issue{}, Warnings: []schema.Issue{},
		},
		Diagnostics: schema.Diagnostics{Errors: []schema.Issue{}, Warnings: []schema.Issue{}},
		Responses:   []schema.ProcessedResponse{},
		RowErrors:   []schema.RowError{},
	}
	log := r.logger.With(zap.String("run_id", rep.RunID))
	log.Info("run started", zap.Int("columns", rep.Input.Columns), zap.Int("rows", rep.Input.Rows))

	err := r.run(ctx, rep, log, schemaText, table)
	rep.Summary = outcome.Summarize(err, rep.Diagnostics, rep.RowErrors, r.cfg.Report.MaxMessages)
	if r.observer != nil {
		r.observer.ObserveRun(rep.Summary.Status, len(rep.Responses))
	}
	fields := []zap.Field{
		zap.String("status", string(rep.Summary.Status)),
		zap.Int("errors", rep.Summary.ErrorCount),
		zap.Int("warnings", rep.Summary.WarningCount),
	}
	if err != nil {
		log.Error("run failed", append(fields, zap.Error(err))...)
		return rep, err
	}
	log.Info("run finished", fields...)
	return rep, nil
}

func (r *Runner) run(ctx context.Context, rep *Report, log *zap.Logger, schemaText string, table schema.Table) error {
	norm, err := r.Normalize(schemaText)
	rep.Input.SchemaSource = string(norm.Source)
	rep.SchemaDiagnostics = norm.Diagnostics
	rep.Diagnostics = rep.Diagnostics.Merge(norm.Diagnostics)
	if err != nil {
		return err
	}
	q := norm.Questionnaire
	rep.Questionnaire = &q
	log.Debug("schema normalized",
		zap.String("source", string(norm.Source)),
		zap.Int("questions", len(q.Questions)),
		zap.Int("edges", len(q.Routing)),
		zap.Int("warnings", len(norm.Diagnostics.Warnings)))

	start := r.now()
	mapping, warnings := reconcile.Reconcile(q, table.Headers, r.cfg.ReconcileOptions())
	r.stage(StageReconcile, start)
	rep.Mapping = &mapping
	rep.Diagnostics = rep.Diagnostics.Merge(schema.Diagnostics{Warnings: warnings})
	log.Debug("columns reconciled",
		zap.Int("direct", len(mapping.Direct)),
		zap.Int("fuzzy", len(mapping.Fuzzy)),
		zap.Int("unmapped_columns", len(mapping.UnmappedColumns)),
		zap.Int("unmapped_questions", len(mapping.UnmappedQuestions)))

	start = r.now()
	res, err := coerce.Process(ctx, q, mapping, table, r.cfg.CoerceOptions())
	r.stage(StageCoerce, start)
	if err != nil {
		return err
	}
	rep.Responses = res.Responses
	rep.RowErrors = res.RowErrors
	rep.Diagnostics = rep.Diagnostics.Merge(res.Diagnostics)
	log.Debug("rows coerced",
		zap.Int("responses", len(res.Responses)),
		zap.Int("row_errors", len(res.RowErrors)),
		zap.Int("cell_errors", len(res.Diagnostics.Errors)))

	start = r.now()
	st := stats.Compute(q, res.Responses)
	r.stage(StageStats, start)
	rep.Statistics = &st
	return nil
}

func (r *Runner) stage(name string, start time.Time) {
	d := r.now().Sub(start)
	if r.observer != nil {
		r.observer.ObserveStage(name, d)
	}
	r.logger.Debug("stage done", zap.String("stage", name), zap.Duration("took", d))
}
