package normalize

import (
	"fmt"
	"strings"

	"github.com/dshills/surveyrecon/internal/convention"
	"github.com/dshills/surveyrecon/internal/literal"
	"github.com/dshills/surveyrecon/internal/schema"
)

// record converts one raw question record and adds it with the edges it
// declares. pos is the record's 0-based position in its container.
func (c *collector) record(id string, v literal.Value, pos int) {
	if id == "" {
		c.warn(schema.IssueMissingID, "", "record %d has an empty id and was skipped", pos+1)
		return
	}
	meta, _ := v.Get("metadata")

	q := schema.Question{
		ID:       id,
		Label:    stringOr(v, "Question "+id, "label", "text", "question"),
		Required: truthy(v, "required"),
		Options:  schema.Options{},
		Metadata: schema.QuestionMeta{
			Order:   orderOf(pos, v, meta),
			Section: stringOr(v, stringOr(meta, convention.Section(id), "section"), "section"),
			Tags:    tags(v, meta),
		},
	}

	q.Type, q.Format = recordType(v)
	if f, ok := v.Get("format"); ok && f.Kind == literal.String && f.Text != "" {
		q.Format = schema.Format(f.Text)
	}
	if o, ok := convention.MatchOverride(c.opts.Overrides, id); ok {
		q.Type, q.Format = o.Type, o.Format
	}

	var edges []schema.RoutingEdge
	if raw, ok := v.First("options", "choices", "answers"); ok {
		// Option routing survives an override; the options themselves only
		// belong to choice questions.
		var opts schema.Options
		opts, edges = c.options(id, raw)
		if q.Type.IsChoice() {
			q.Options = opts
		}
	}
	if next, ok := v.Get("next"); ok && next.Truthy() {
		edges = append(edges, schema.RoutingEdge{
			Source:      id,
			Trigger:     schema.Trigger{Question: id, Operator: schema.OpAlways},
			Destination: next.String(),
		})
	}
	if raw, ok := v.First("conditions", "logic", "routing"); ok {
		q.Conditions = parseConditions(raw)
		for _, cond := range q.Conditions {
			if cond.Action != "goto" && cond.Action != "skip" {
				continue
			}
			trigger := cond.Question
			if trigger == "" {
				trigger = id
			}
			edges = append(edges, schema.RoutingEdge{
				Source:      id,
				Trigger:     schema.Trigger{Question: trigger, Operator: cond.Operator, Value: cond.Value},
				Destination: cond.Target,
			})
		}
	}
	if raw, ok := v.First("validation", "rules"); ok && raw.Kind == literal.Object {
		q.Validation = parseRules(raw)
	}

	if !c.addQuestion(q) {
		return
	}
	for _, e := range edges {
		c.addEdge(e)
	}
}

// recordType resolves the declared type through the alias table, or infers
// one from the record's fields when none is declared.
func recordType(v literal.Value) (schema.QuestionType, schema.Format) {
	if t, ok := v.Get("type"); ok && t.Kind == literal.String && t.Text != "" {
		a, _ := convention.ResolveType(t.Text)
		return a.Type, a.Format
	}
	if _, ok := v.First("options", "choices", "answers"); ok {
		if truthy(v, "multiple") || truthy(v, "multiselect") {
			return schema.TypeMultipleChoice, schema.FormatNone
		}
		return schema.TypeSingleChoice, schema.FormatNone
	}
	if _, ok := v.First("min", "max", "step"); ok {
		return schema.TypeNumeric, schema.FormatNone
	}
	return schema.TypeText, schema.FormatNone
}

// options reads options given as an array of strings, an array of objects,
// or an object keyed by code. Each option's next destination becomes an edge
// unless it is the terminal marker.
func (c *collector) options(id string, raw literal.Value) (schema.Options, []schema.RoutingEdge) {
	opts := schema.Options{}
	var edges []schema.RoutingEdge
	add := func(code, label string, opt literal.Value) {
		code = strings.TrimSpace(code)
		if code == "" {
			return
		}
		for i := range opts {
			if opts[i].Code == code {
				opts[i].Label = label
				return
			}
		}
		opts = append(opts, schema.Option{Code: code, Label: label})
		if next, ok := opt.Get("next"); ok && next.Truthy() && next.String() != c.opts.Terminal {
			edges = append(edges, schema.RoutingEdge{
				Source:      id,
				Trigger:     schema.Trigger{Question: id, Operator: schema.OpEquals, Value: code},
				Destination: next.String(),
			})
		}
	}

	switch raw.Kind {
	case literal.Array:
		for i, o := range raw.Elems {
			switch o.Kind {
			case literal.String, literal.Number:
				add(fmt.Sprint(i+1), o.String(), literal.Value{})
			case literal.Object:
				code := fmt.Sprint(i + 1)
				if cv, ok := firstTruthy(o, "value", "id"); ok {
					code = cv.String()
				}
				label, _ := firstTruthy(o, "label", "text", "title", "value")
				add(code, label.String(), o)
			}
		}
	case literal.Object:
		for _, f := range raw.Fields {
			if f.Value.Kind == literal.Object {
				label, _ := firstTruthy(f.Value, "label", "text")
				add(f.Key, label.String(), f.Value)
				continue
			}
			add(f.Key, f.Value.String(), literal.Value{})
		}
	default:
		c.warn(schema.IssueParse, id, "options of %q are a %s, not a list", id, raw.Kind)
	}
	return opts, edges
}

// parseConditions reads conditions given as an array of condition objects or
// as an object whose entries are single-key conditions.
func parseConditions(raw literal.Value) []schema.Condition {
	var out []schema.Condition
	switch raw.Kind {
	case literal.Array:
		for _, e := range raw.Elems {
			if e.Kind == literal.Object {
				out = append(out, parseCondition(e))
			}
		}
	case literal.Object:
		for _, f := range raw.Fields {
			out = append(out, parseCondition(literal.Value{Kind: literal.Object, Fields: []literal.Field{f}}))
		}
	}
	return out
}

func parseCondition(v literal.Value) schema.Condition {
	return schema.Condition{
		Type:     stringOr(v, "show_if", "type"),
		Question: stringOr(v, "", "question", "if", "when"),
		Operator: stringOr(v, schema.OpEquals, "operator", "op"),
		Value:    stringOr(v, "", "value", "equals", "is"),
		Action:   stringOr(v, "show", "action", "then"),
		Target:   stringOr(v, "", "target", "goto", "next"),
	}
}

func parseRules(v literal.Value) *schema.Rules {
	r := &schema.Rules{
		Required: truthy(v, "required"),
		Pattern:  stringOr(v, "", "pattern", "regex"),
	}
	if f, ok := number(v, "min", "minValue", "minimum"); ok {
		r.Min = &f
	}
	if f, ok := number(v, "max", "maxValue", "maximum"); ok {
		r.Max = &f
	}
	if f, ok := number(v, "min_length", "minLength"); ok {
		n := int(f)
		r.MinLength = &n
	}
	if f, ok := number(v, "max_length", "maxLength"); ok {
		n := int(f)
		r.MaxLength = &n
	}
	return r
}

func tags(v, meta literal.Value) []string {
	out := []string{}
	t, ok := v.Get("tags")
	if !ok {
		t, ok = meta.Get("tags")
	}
	if ok && t.Kind == literal.Array {
		for _, e := range t.Elems {
			if s := e.String(); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func truthy(v literal.Value, key string) bool {
	got, ok := v.Get(key)
	return ok && got.Truthy()
}

func firstTruthy(v literal.Value, keys ...string) (literal.Value, bool) {
	for _, k := range keys {
		if got, ok := v.Get(k); ok && got.Truthy() {
			return got, true
		}
	}
	return literal.Value{}, false
}

func number(v literal.Value, keys ...string) (float64, bool) {
	for _, k := range keys {
		if got, ok := v.Get(k); ok {
			if f, ok := got.Float(); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// orderOf returns the record's explicit order, else its position.
func orderOf(pos int, v, meta literal.Value) int {
	if f, ok := number(v, "order"); ok {
		return int(f)
	}
	if f, ok := number(meta, "order"); ok {
		return int(f)
	}
	return pos
}
