package coerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cast"

	"github.com/dshills/surveyrecon/internal/schema"
	"github.com/dshills/surveyrecon/internal/textfold"
)

// cellText renders a raw cell as trimmed text. ok is false for blank cells.
func cellText(raw any) (string, bool) {
	if raw == nil {
		return "", false
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		s = fmt.Sprint(raw)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// cellIssue is a per-cell problem. err cells are left unset.
type cellIssue struct {
	kind schema.IssueKind
	msg  string
	err  bool
}

// Cell coerces one non-blank raw cell for question q.
func Cell(q schema.Question, raw any) (schema.TypedValue, error) {
	v, issue := cell(q, raw)
	if issue != nil && issue.err {
		return nil, errors.New(issue.msg)
	}
	return v, nil
}

func cell(q schema.Question, raw any) (schema.TypedValue, *cellIssue) {
	text, ok := cellText(raw)
	if !ok {
		return nil, nil
	}
	switch {
	case q.Type.IsChoice():
		return choice(q, raw, text)
	case q.Type == schema.TypeNumeric:
		return numeric(q, raw, text)
	case q.Type == schema.TypeDate:
		return date(q, raw, text)
	case q.Type == schema.TypeEmail:
		return email(q, raw, text), nil
	}
	return schema.TextValue{
		Kind:      q.Type,
		Text:      text,
		Length:    utf8.RuneCountInString(text),
		WordCount: len(strings.Fields(text)),
		Raw:       raw,
	}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func choice(q schema.Question, raw any, text string) (schema.TypedValue, *cellIssue) {
	bind := func(o schema.Option) schema.ChoiceValue {
		v := schema.ChoiceValue{Kind: q.Type, Key: o.Code, Label: o.Label, Raw: raw}
		if n, err := strconv.Atoi(o.Code); err == nil {
			v.Code = &n
		}
		return v
	}
	if isDigits(text) {
		n, _ := strconv.Atoi(text)
		for _, o := range q.Options {
			if c, err := strconv.Atoi(o.Code); err == nil && c == n {
				return bind(o), nil
			}
		}
	}
	for _, o := range q.Options {
		if textfold.Equal(o.Label, text) || o.Code == text {
			return bind(o), nil
		}
	}
	for _, o := range q.Options {
		if textfold.EqualNoAccents(o.Label, text) {
			return bind(o), nil
		}
	}
	return schema.ChoiceValue{Kind: q.Type, Label: text, Raw: raw, Unknown: true}, &cellIssue{
		kind: schema.IssueUnknownOption,
		msg:  fmt.Sprintf("%s: unrecognized option %q", q.ID, text),
	}
}

var (
	numericKeepRe   = regexp.MustCompile(`[^-+0-9.,]`)
	numericPrefixRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)
)

// ParseNumber reads a loosely formatted number: characters other than digits,
// signs, dots and commas are dropped, the first comma becomes a decimal
// point, and the longest numeric prefix is parsed.
func ParseNumber(s string) (float64, bool) {
	kept := strings.Replace(numericKeepRe.ReplaceAllString(s, ""), ",", ".", 1)
	m := numericPrefixRe.FindString(kept)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}

func numeric(q schema.Question, raw any, text string) (schema.TypedValue, *cellIssue) {
	var (
		f  float64
		ok bool
	)
	switch n := raw.(type) {
	case float64, float32, int, int32, int64, json.Number:
		var err error
		f, err = cast.ToFloat64E(n)
		ok = err == nil
	default:
		f, ok = ParseNumber(text)
	}
	if !ok {
		return nil, &cellIssue{
			kind: schema.IssueInvalidNumeric,
			msg:  fmt.Sprintf("%s: invalid number %q", q.ID, text),
			err:  true,
		}
	}
	formatted := strconv.FormatFloat(f, 'f', -1, 64)
	if q.Format == schema.FormatCurrency {
		formatted = fmt.Sprintf("%.2f €", f)
	}
	return schema.NumericValue{Kind: q.Type, Value: f, Formatted: formatted, Raw: raw}, nil
}

var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006/1/2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2/1/2006 15:04",
}

// spreadsheetEpoch is day zero of spreadsheet serial dates.
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31 as a spreadsheet serial.
const maxSerial = 2958465

// ParseDate reads a calendar date in one of the accepted layouts. Only
// native numbers are spreadsheet serial day numbers; numeric-looking text
// such as "15.03" or "2024" is not a date.
func ParseDate(raw any, text string) (time.Time, bool) {
	serial, isNum := 0.0, false
	switch n := raw.(type) {
	case float64, float32, int, int32, int64, json.Number:
		if f, err := cast.ToFloat64E(n); err == nil {
			serial, isNum = f, true
		}
	}
	if isNum {
		if serial < 1 || serial > maxSerial {
			return time.Time{}, false
		}
		return spreadsheetEpoch.AddDate(0, 0, int(serial)), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func date(q schema.Question, raw any, text string) (schema.TypedValue, *cellIssue) {
	t, ok := ParseDate(raw, text)
	if !ok {
		return nil, &cellIssue{
			kind: schema.IssueInvalidDate,
			msg:  fmt.Sprintf("%s: invalid date %q", q.ID, text),
			err:  true,
		}
	}
	return schema.DateValue{
		Kind:      q.Type,
		ISODate:   t.Format("2006-01-02"),
		Formatted: t.Format("02/01/2006"),
		Raw:       raw,
	}, nil
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func email(q schema.Question, raw any, text string) schema.TypedValue {
	addr := strings.ToLower(text)
	v := schema.EmailValue{Kind: q.Type, Normalized: addr, IsValid: emailRe.MatchString(addr), Raw: raw}
	if parts := strings.Split(addr, "@"); len(parts) > 1 {
		v.Domain = parts[1]
	}
	return v
}
