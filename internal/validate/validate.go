// Package validate checks coerced answers against the field rules of their
// questions.
package validate

import (
	"fmt"
	"regexp"

	"github.com/dshills/surveyrecon/internal/schema"
)

// Validator checks responses against one questionnaire's rules. Patterns are
// compiled once by New.
type Validator struct {
	questions schema.QuestionList
	patterns  map[string]*regexp.Regexp
}

// New prepares a Validator for q. The returned messages describe rules that
// cannot be applied, such as patterns that do not compile.
func New(q schema.Questionnaire) (*Validator, []string) {
	v := &Validator{questions: q.Questions, patterns: map[string]*regexp.Regexp{}}
	var problems []string
	for _, qq := range q.Questions {
		if qq.Validation == nil || qq.Validation.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(qq.Validation.Pattern)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: pattern %q is not valid: %v", qq.ID, qq.Validation.Pattern, err))
			continue
		}
		v.patterns[qq.ID] = re
	}
	return v, problems
}

// Check returns field-level error and warning messages for one response's
// values. Values are keyed by question id; nil means unanswered.
func (v *Validator) Check(values map[string]schema.TypedValue) schema.ValidationResult {
	res := schema.ValidationResult{Errors: []string{}, Warnings: []string{}}
	for _, q := range v.questions {
		val := values[q.ID]
		errs, warns := v.checkQuestion(q, val)
		res.Errors = append(res.Errors, errs...)
		res.Warnings = append(res.Warnings, warns...)
	}
	return res
}

func (v *Validator) checkQuestion(q schema.Question, val schema.TypedValue) (errs, warns []string) {
	rules := q.Validation
	if val == nil {
		if q.Required || (rules != nil && rules.Required) {
			errs = append(errs, fmt.Sprintf("%s: answer is required", q.ID))
		}
		return errs, nil
	}

	switch tv := val.(type) {
	case schema.NumericValue:
		if rules == nil {
			break
		}
		if rules.Min != nil && tv.Value < *rules.Min {
			errs = append(errs, fmt.Sprintf("%s: value %s is below the minimum %g", q.ID, tv.Formatted, *rules.Min))
		}
		if rules.Max != nil && tv.Value > *rules.Max {
			errs = append(errs, fmt.Sprintf("%s: value %s is above the maximum %g", q.ID, tv.Formatted, *rules.Max))
		}
	case schema.TextValue:
		if rules == nil {
			break
		}
		if rules.MinLength != nil && tv.Length < *rules.MinLength {
			errs = append(errs, fmt.Sprintf("%s: text is %d characters, minimum is %d", q.ID, tv.Length, *rules.MinLength))
		}
		if rules.MaxLength != nil && tv.Length > *rules.MaxLength {
			errs = append(errs, fmt.Sprintf("%s: text is %d characters, maximum is %d", q.ID, tv.Length, *rules.MaxLength))
		}
		if re, ok := v.patterns[q.ID]; ok && !re.MatchString(tv.Text) {
			errs = append(errs, fmt.Sprintf("%s: %q does not match pattern %q", q.ID, tv.Text, rules.Pattern))
		}
	case schema.EmailValue:
		if !tv.IsValid {
			warns = append(warns, fmt.Sprintf("%s: %q is not a valid email address", q.ID, tv.Normalized))
		}
		if re, ok := v.patterns[q.ID]; ok && !re.MatchString(tv.Normalized) {
			errs = append(errs, fmt.Sprintf("%s: %q does not match pattern %q", q.ID, tv.Normalized, rules.Pattern))
		}
	}
	return errs, warns
}

// Count sums the error and warning messages of results.
func Count(results []schema.ValidationResult) (errs, warns int) {
	for _, r := range results {
		errs += len(r.Errors)
		warns += len(r.Warnings)
	}
	return errs, warns
}
