// Package normalize turns a survey definition into a canonical
// schema.Questionnaire. Input is either a pre-structured questionnaire object,
// a bare array of question records, or script text from which the record
// array is recovered with package literal.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/surveyrecon/internal/convention"
	"github.com/dshills/surveyrecon/internal/literal"
	"github.com/dshills/surveyrecon/internal/schema"
)

// ErrNoQuestions is returned when normalization yields zero questions.
var ErrNoQuestions = errors.New("normalize: questionnaire has no questions")

// Source names the input path a questionnaire was built from.
type Source string

const (
	SourceStructured Source = "structured"
	SourceArray      Source = "array"
	SourceScript     Source = "script"
)

// Defaults are the metadata values used when a structured input omits them.
type Defaults struct {
	Title    string `yaml:"title"`
	Version  string `yaml:"version"`
	Language string `yaml:"language"`
}

// Options configures a normalization run.
type Options struct {
	Defaults Defaults
	// Terminal is the destination marking the end of a path in the input.
	// Edges to it are stored with schema.Terminal.
	Terminal string
	// Overrides is the id-token override table. Nil selects
	// convention.Overrides; use an empty non-nil slice to disable overrides.
	Overrides []convention.Override
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Defaults: Defaults{Title: "Questionnaire sans titre", Version: "1.0", Language: "fr"},
		Terminal: schema.Terminal,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Defaults.Title == "" {
		o.Defaults.Title = d.Defaults.Title
	}
	if o.Defaults.Version == "" {
		o.Defaults.Version = d.Defaults.Version
	}
	if o.Defaults.Language == "" {
		o.Defaults.Language = d.Defaults.Language
	}
	if o.Terminal == "" {
		o.Terminal = d.Terminal
	}
	if o.Overrides == nil {
		o.Overrides = convention.Overrides
	}
	return o
}

// Metadata used for questionnaires recovered from a bare record array.
const (
	recoveredTitle       = "Questionnaire importé"
	recoveredDescription = "Questionnaire importé depuis un fichier JavaScript"
)

// Result is a normalized questionnaire and the issues found building it.
type Result struct {
	Questionnaire schema.Questionnaire `json:"questionnaire"`
	Diagnostics   schema.Diagnostics   `json:"diagnostics"`
	Source        Source               `json:"source"`
	// Fragment describes the recovered array for script input.
	Fragment string `json:"fragment,omitempty"`
}

// FromText normalizes a survey definition given as text. Text that is one
// literal object takes the structured path, a literal array takes the record
// array path, and anything else is searched for an embedded record array.
func FromText(text string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if v, err := literal.Parse(text); err == nil {
		switch v.Kind {
		case literal.Object:
			return fromObject(v, opts)
		case literal.Array:
			return fromRecords(v.Elems, nil, SourceArray, opts)
		}
	}

	frag, err := literal.Extract(text)
	if err != nil {
		return Result{}, fmt.Errorf("normalize: %w", err)
	}
	rec, err := literal.ParseRecords(frag.Text)
	if err != nil {
		return Result{Source: SourceScript, Fragment: frag.String()}, fmt.Errorf("normalize: %w", err)
	}
	res, err := fromRecords(rec.Records, rec.Failures, SourceScript, opts)
	res.Fragment = frag.String()
	return res, err
}

// FromValue normalizes an already parsed definition: an object takes the
// structured path and an array the record array path.
func FromValue(v literal.Value, opts Options) (Result, error) {
	opts = opts.withDefaults()
	switch v.Kind {
	case literal.Object:
		return fromObject(v, opts)
	case literal.Array:
		return fromRecords(v.Elems, nil, SourceArray, opts)
	}
	return Result{}, fmt.Errorf("normalize: unsupported top-level %s", v.Kind)
}

// collector accumulates one run's questions, edges and issues.
type collector struct {
	opts      Options
	questions schema.QuestionList
	seen      map[string]bool
	routing   []schema.RoutingEdge
	edgeSet   map[schema.RoutingEdge]bool
	diag      schema.Diagnostics
}

func newCollector(opts Options) *collector {
	return &collector{
		opts:    opts,
		seen:    map[string]bool{},
		edgeSet: map[schema.RoutingEdge]bool{},
		diag:    schema.Diagnostics{Errors: []schema.Issue{}, Warnings: []schema.Issue{}},
	}
}

func (c *collector) warn(kind schema.IssueKind, question, format string, args ...any) {
	c.diag.Warnings = append(c.diag.Warnings, schema.Issue{Kind: kind, Question: question, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) addQuestion(q schema.Question) bool {
	if c.seen[q.ID] {
		c.warn(schema.IssueDuplicateID, q.ID, "duplicate question id %q ignored", q.ID)
		return false
	}
	c.seen[q.ID] = true
	c.questions = append(c.questions, q)
	return true
}

// addEdge appends e unless an identical edge is already present.
func (c *collector) addEdge(e schema.RoutingEdge) {
	if e.Source == "" || e.Destination == "" {
		return
	}
	if e.Destination == c.opts.Terminal {
		e.Destination = schema.Terminal
	}
	if c.edgeSet[e] {
		return
	}
	c.edgeSet[e] = true
	c.routing = append(c.routing, e)
}

func (c *collector) finish(meta schema.Metadata, source Source) (Result, error) {
	if c.questions == nil {
		c.questions = schema.QuestionList{}
	}
	if c.routing == nil {
		c.routing = []schema.RoutingEdge{}
	}
	meta.TotalQuestions = len(c.questions)
	q := schema.Questionnaire{
		Metadata:    meta,
		Questions:   c.questions,
		Routing:     c.routing,
		Conventions: convention.Derive(c.questions.IDs()),
	}
	c.validate(q)
	res := Result{Questionnaire: q, Diagnostics: c.diag, Source: source}
	if len(q.Questions) == 0 {
		return res, ErrNoQuestions
	}
	return res, nil
}

func fromObject(v literal.Value, opts Options) (Result, error) {
	c := newCollector(opts)
	meta := structuredMetadata(v, opts.Defaults)

	// Explicit routing first so that re-normalizing canonical output keeps
	// the edge order.
	if r, ok := v.First("routing", "logic"); ok {
		c.parseRouting(r)
	}

	if qs, ok := v.First("questions", "items"); ok {
		switch qs.Kind {
		case literal.Object:
			for i, f := range qs.Fields {
				if f.Value.Kind != literal.Object {
					c.warn(schema.IssueParse, f.Key, "question %q is a %s, not an object", f.Key, f.Value.Kind)
					continue
				}
				c.record(f.Key, f.Value, i)
			}
		case literal.Array:
			c.records(qs.Elems)
		default:
			c.warn(schema.IssueParse, "", "questions is a %s, not an object or array", qs.Kind)
		}
	}
	return c.finish(meta, SourceStructured)
}

func fromRecords(elems []literal.Value, failures []literal.Failure, source Source, opts Options) (Result, error) {
	c := newCollector(opts)
	for _, f := range failures {
		c.warn(schema.IssueParse, "", "skipped unparseable record: %v", f)
	}
	c.records(elems)
	meta := schema.Metadata{
		Title:       recoveredTitle,
		Description: recoveredDescription,
		Version:     opts.Defaults.Version,
		Language:    opts.Defaults.Language,
	}
	return c.finish(meta, source)
}

// records converts an array of records whose ids are carried in the records.
func (c *collector) records(elems []literal.Value) {
	for i, e := range elems {
		if e.Kind != literal.Object {
			c.warn(schema.IssueParse, "", "record %d is a %s, not an object", i+1, e.Kind)
			continue
		}
		id, ok := e.Get("id")
		if !ok || !id.Truthy() {
			c.warn(schema.IssueMissingID, "", "record %d has no id and was skipped", i+1)
			continue
		}
		c.record(strings.TrimSpace(id.String()), e, i)
	}
}

func structuredMetadata(v literal.Value, d Defaults) schema.Metadata {
	src := v
	if m, ok := v.Get("metadata"); ok && m.Kind == literal.Object {
		src = m
	}
	meta := schema.Metadata{
		Title:       stringOr(src, d.Title, "title"),
		Description: stringOr(src, "", "description"),
		Version:     stringOr(src, d.Version, "version"),
		Language:    stringOr(src, d.Language, "language"),
		CreatedAt:   stringOr(src, "", "created_at", "createdAt"),
	}
	if dur, ok := src.First("estimated_duration", "estimatedDuration"); ok {
		if f, ok := dur.Float(); ok {
			n := int(f)
			meta.EstimatedDuration = &n
		}
	}
	return meta
}

// stringOr returns the first truthy scalar among keys, or def.
func stringOr(v literal.Value, def string, keys ...string) string {
	for _, k := range keys {
		if got, ok := v.Get(k); ok && got.Truthy() {
			if s := got.String(); s != "" {
				return s
			}
		}
	}
	return def
}
