package normalize

import (
	"github.com/dshills/surveyrecon/internal/literal"
	"github.com/dshills/surveyrecon/internal/schema"
)

// parseRouting reads top-level routing: either an array of canonical edges or
// an object whose branching entry maps a source id to its conditions.
func (c *collector) parseRouting(r literal.Value) {
	switch r.Kind {
	case literal.Array:
		for _, e := range r.Elems {
			if e.Kind != literal.Object {
				continue
			}
			trig, _ := e.Get("trigger")
			edge := schema.RoutingEdge{
				Source: stringOr(e, "", "source", "from"),
				Trigger: schema.Trigger{
					Question: stringOr(trig, "", "question"),
					Operator: stringOr(trig, schema.OpEquals, "operator", "op"),
					Value:    stringOr(trig, "", "value"),
				},
				Destination: stringOr(e, "", "destination", "target", "to"),
			}
			if edge.Trigger.Question == "" {
				edge.Trigger.Question = edge.Source
			}
			c.addEdge(edge)
		}
	case literal.Object:
		branching, ok := r.Get("branching")
		if !ok || branching.Kind != literal.Object {
			return
		}
		for _, f := range branching.Fields {
			for _, cond := range parseConditions(f.Value) {
				trigger := cond.Question
				if trigger == "" {
					trigger = f.Key
				}
				c.addEdge(schema.RoutingEdge{
					Source:      f.Key,
					Trigger:     schema.Trigger{Question: trigger, Operator: cond.Operator, Value: cond.Value},
					Destination: cond.Target,
				})
			}
		}
	}
}

// validate warns about routing that points at unknown questions and choice
// questions without options. None of these are fatal.
func (c *collector) validate(q schema.Questionnaire) {
	known := q.Questions.Index()
	for _, e := range q.Routing {
		if _, ok := known[e.Source]; !ok {
			c.warn(schema.IssueDanglingRoute, e.Source, "routing source %q is not a question", e.Source)
		}
		if _, ok := known[e.Trigger.Question]; !ok && e.Trigger.Question != e.Source {
			c.warn(schema.IssueDanglingRoute, e.Source, "routing trigger %q in %s is not a question", e.Trigger.Question, e.Source)
		}
		if _, ok := known[e.Destination]; !ok && !e.IsTerminal() {
			c.warn(schema.IssueDanglingRoute, e.Source, "routing target %q in %s is not a question", e.Destination, e.Source)
		}
	}
	for _, qq := range q.Questions {
		for _, cond := range qq.Conditions {
			if cond.Action == "goto" || cond.Action == "skip" {
				continue // already checked as an edge
			}
			if _, ok := known[cond.Question]; cond.Question != "" && !ok {
				c.warn(schema.IssueDanglingRoute, qq.ID, "condition question %q in %s is not a question", cond.Question, qq.ID)
			}
			if _, ok := known[cond.Target]; cond.Target != "" && !ok && cond.Target != schema.Terminal && cond.Target != c.opts.Terminal {
				c.warn(schema.IssueDanglingRoute, qq.ID, "condition target %q in %s is not a question", cond.Target, qq.ID)
			}
		}
		if qq.Type.IsChoice() && len(qq.Options) == 0 {
			c.warn(schema.IssueEmptyOptions, qq.ID, "choice question %s has no options", qq.ID)
		}
	}
}
