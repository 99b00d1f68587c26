package validate

import (
	"strings"
	"testing"

	"github.com/dshills/surveyrecon/internal/schema"
)

func ptr[T any](v T) *T { return &v }

func fixture() schema.Questionnaire {
	return schema.Questionnaire{Questions: schema.QuestionList{
		{ID: "Q1", Type: schema.TypeSingleChoice, Required: true},
		{ID: "AGE", Type: schema.TypeNumeric, Validation: &schema.Rules{Min: ptr(16.0), Max: ptr(99.0)}},
		{ID: "CP", Type: schema.TypeText, Validation: &schema.Rules{Pattern: `^\d{5}$`, MaxLength: ptr(5)}},
		{ID: "MAIL", Type: schema.TypeEmail, Validation: &schema.Rules{Required: true}},
	}}
}

func TestCheck_Valid(t *testing.T) {
	v, problems := New(fixture())
	if len(problems) != 0 {
		t.Fatalf("problems: %v", problems)
	}
	code := 1
	res := v.Check(map[string]schema.TypedValue{
		"Q1":   schema.ChoiceValue{Kind: schema.TypeSingleChoice, Code: &code, Key: "1", Label: "Oui"},
		"AGE":  schema.NumericValue{Kind: schema.TypeNumeric, Value: 42, Formatted: "42"},
		"CP":   schema.TextValue{Kind: schema.TypeText, Text: "22400", Length: 5, WordCount: 1},
		"MAIL": schema.EmailValue{Kind: schema.TypeEmail, Normalized: "a@b.fr", IsValid: true, Domain: "b.fr"},
	})
	if len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Errorf("Check = %+v, want no messages", res)
	}
}

func TestCheck_Violations(t *testing.T) {
	v, _ := New(fixture())
	res := v.Check(map[string]schema.TypedValue{
		"AGE":  schema.NumericValue{Kind: schema.TypeNumeric, Value: 12, Formatted: "12"},
		"CP":   schema.TextValue{Kind: schema.TypeText, Text: "22 400", Length: 6, WordCount: 2},
		"MAIL": schema.EmailValue{Kind: schema.TypeEmail, Normalized: "pas-un-email", Domain: ""},
	})
	wantErrs := []string{
		"Q1: answer is required",
		"AGE: value 12 is below the minimum 16",
		"CP: text is 6 characters, maximum is 5",
		`CP: "22 400" does not match pattern`,
	}
	if len(res.Errors) != len(wantErrs) {
		t.Fatalf("errors = %v, want %d", res.Errors, len(wantErrs))
	}
	for i, want := range wantErrs {
		if !strings.HasPrefix(res.Errors[i], want) {
			t.Errorf("error %d = %q, want prefix %q", i, res.Errors[i], want)
		}
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "not a valid email") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestCheck_RequiredByRule(t *testing.T) {
	v, _ := New(fixture())
	res := v.Check(map[string]schema.TypedValue{})
	found := false
	for _, e := range res.Errors {
		if strings.HasPrefix(e, "MAIL:") {
			found = true
		}
	}
	if !found {
		t.Errorf("validation.required should make MAIL mandatory: %v", res.Errors)
	}
}

func TestNew_BadPattern(t *testing.T) {
	q := schema.Questionnaire{Questions: schema.QuestionList{
		{ID: "X", Type: schema.TypeText, Validation: &schema.Rules{Pattern: "(unclosed"}},
	}}
	v, problems := New(q)
	if len(problems) != 1 || !strings.HasPrefix(problems[0], "X: pattern") {
		t.Errorf("problems = %v", problems)
	}
	res := v.Check(map[string]schema.TypedValue{"X": schema.TextValue{Kind: schema.TypeText, Text: "abc", Length: 3}})
	if len(res.Errors) != 0 {
		t.Errorf("a bad pattern must not fail answers: %v", res.Errors)
	}
}

func TestCount(t *testing.T) {
	errs, warns := Count([]schema.ValidationResult{
		{Errors: []string{"a", "b"}, Warnings: []string{"c"}},
		{},
		{Errors: []string{"d"}},
	})
	if errs != 3 || warns != 1 {
		t.Errorf("Count = %d, %d; want 3, 1", errs, warns)
	}
}
