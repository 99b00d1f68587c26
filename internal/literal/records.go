package literal

import (
	"errors"
	"fmt"
)

// ErrNoObjects is returned when not a single object literal can be parsed.
var ErrNoObjects = errors.New("literal: no object literal could be parsed")

// Recovery strategies reported by ParseRecords.
const (
	RecoveredWhole      = "whole"
	RecoveredPerObject  = "per-object"
	syntheticIDTemplate = "Q%d"
)

// Failure records one object that could not be recovered.
type Failure struct {
	Index int // 1-based position of the object in the fragment
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("object %d: %v", f.Index, f.Err)
}

// Recovery is the outcome of ParseRecords.
type Recovery struct {
	Records  []Value
	Failures []Failure
	Strategy string
}

// ParseRecords reads a fragment as a list of records. The whole fragment is
// parsed first; when that fails, each top-level object literal is split out
// and parsed on its own, objects without an id get a positional "Q{n}" id,
// and per-object failures are collected. Only zero recovered objects is fatal.
func ParseRecords(fragment string) (Recovery, error) {
	if v, err := Parse(fragment); err == nil {
		rec := Recovery{Strategy: RecoveredWhole}
		switch v.Kind {
		case Array:
			for i, e := range v.Elems {
				if e.Kind != Object {
					rec.Failures = append(rec.Failures, Failure{Index: i + 1, Err: fmt.Errorf("element is a %s, not an object", e.Kind)})
					continue
				}
				rec.Records = append(rec.Records, e)
			}
		case Object:
			rec.Records = []Value{v}
		}
		if len(rec.Records) == 0 {
			return rec, ErrNoObjects
		}
		return rec, nil
	}

	rec := Recovery{Strategy: RecoveredPerObject}
	for i, span := range SplitObjects(fragment) {
		n := i + 1
		if !span.Closed {
			rec.Failures = append(rec.Failures, Failure{Index: n, Err: errors.New("unterminated object")})
			continue
		}
		v, err := Parse(span.Text)
		if err != nil {
			rec.Failures = append(rec.Failures, Failure{Index: n, Err: err})
			continue
		}
		if id, ok := v.Get("id"); !ok || !id.Truthy() {
			v = v.With("id", StringValue(fmt.Sprintf(syntheticIDTemplate, n)))
		}
		rec.Records = append(rec.Records, v)
	}
	if len(rec.Records) == 0 {
		return rec, ErrNoObjects
	}
	return rec, nil
}

// Span is one top-level object literal located by SplitObjects.
type Span struct {
	Text   string
	Offset int
	Closed bool
}

// SplitObjects returns the outermost brace-balanced object literals of s,
// ignoring braces inside quoted strings. A trailing object that never closes
// is returned with Closed false.
func SplitObjects(s string) []Span {
	var spans []Span
	for i := 0; i < len(s); {
		switch s[i] {
		case '"', '\'', '`':
			i = skipString(s, i)
			continue
		case '{':
			end := matchPair(s, i, '{', '}')
			if end < 0 {
				spans = append(spans, Span{Text: s[i:], Offset: i})
				return spans
			}
			spans = append(spans, Span{Text: s[i : end+1], Offset: i, Closed: true})
			i = end + 1
			continue
		}
		i++
	}
	return spans
}
