// Package convention holds the naming tables that turn raw question records
// into canonical ones: type aliases, the id-token override table, section
// rules, and the diagnostic conventions derived from a set of ids.
package convention

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/dshills/surveyrecon/internal/schema"
)

// Alias is the canonical type and format an authoring alias resolves to.
type Alias struct {
	Type   schema.QuestionType
	Format schema.Format
}

// aliases is keyed by lower-cased alias.
var aliases = map[string]Alias{
	"single_choice":   {Type: schema.TypeSingleChoice},
	"singlechoice":    {Type: schema.TypeSingleChoice},
	"radio":           {Type: schema.TypeSingleChoice},
	"select":          {Type: schema.TypeSingleChoice},
	"multiple_choice": {Type: schema.TypeMultipleChoice},
	"multiplechoice":  {Type: schema.TypeMultipleChoice},
	"checkbox":        {Type: schema.TypeMultipleChoice},
	"multiselect":     {Type: schema.TypeMultipleChoice},
	"text":            {Type: schema.TypeText},
	"textarea":        {Type: schema.TypeText},
	"open":            {Type: schema.TypeText},
	"freetext":        {Type: schema.TypeText, Format: schema.FormatOpenText},
	"commune":         {Type: schema.TypeText, Format: schema.FormatLocation},
	"street":          {Type: schema.TypeText, Format: schema.FormatLocation},
	"gare":            {Type: schema.TypeText, Format: schema.FormatTransport},
	"numeric":         {Type: schema.TypeNumeric},
	"number":          {Type: schema.TypeNumeric},
	"integer":         {Type: schema.TypeNumeric},
	"float":           {Type: schema.TypeNumeric},
	"decimal":         {Type: schema.TypeNumeric},
	"date":            {Type: schema.TypeDate},
	"email":           {Type: schema.TypeEmail},
}

// ResolveType maps an authoring alias to its canonical type and format.
// Matching ignores case. Unknown aliases are returned unchanged with no
// format and ok false.
func ResolveType(alias string) (Alias, bool) {
	a, ok := aliases[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return Alias{Type: schema.QuestionType(alias)}, false
	}
	return a, true
}

// Override forces a type and format on question ids containing any token.
type Override struct {
	Name   string              `yaml:"name" json:"name"`
	Tokens []string            `yaml:"tokens" json:"tokens"`
	Type   schema.QuestionType `yaml:"type" json:"type"`
	Format schema.Format       `yaml:"format" json:"format"`
}

// Overrides is the default override table. Entries are checked in order and
// the first entry with a token contained in the id wins, ahead of any type
// the record declares.
var Overrides = []Override{
	{Name: "companions", Tokens: []string{"_ACCOMPAGNATEURS", "_ACCOMPAGNATEUR"}, Type: schema.TypeNumeric, Format: schema.FormatCount},
	{Name: "other", Tokens: []string{"_AUTRE", "_OTHER"}, Type: schema.TypeText, Format: schema.FormatOpenText},
	{Name: "municipality", Tokens: []string{"_COMMUNE", "_VILLE"}, Type: schema.TypeText, Format: schema.FormatLocation},
	{Name: "station", Tokens: []string{"_GARE", "_STATION"}, Type: schema.TypeText, Format: schema.FormatTransport},
}

var amounts = Override{Name: "amounts", Tokens: []string{"_MONTANTS", "_MONTANT"}, Type: schema.TypeNumeric, Format: schema.FormatCurrency}

// tables is the registry of built-in override tables keyed by name.
var tables = map[string][]Override{
	"default":  Overrides,
	"extended": append([]Override{amounts}, Overrides...),
	"none":     nil,
}

// TableNames lists the built-in override tables.
func TableNames() []string {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadTable returns a copy of the named built-in override table with extra
// entries placed ahead of it. An empty name selects "default".
func LoadTable(name string, extra ...Override) ([]Override, error) {
	if name == "" {
		name = "default"
	}
	base, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("convention: unknown override table %q (available: %s)", name, strings.Join(TableNames(), ", "))
	}
	for _, o := range extra {
		if len(o.Tokens) == 0 {
			return nil, fmt.Errorf("convention: override %q has no tokens", o.Name)
		}
		if o.Type == "" {
			return nil, fmt.Errorf("convention: override %q has no type", o.Name)
		}
	}
	out := make([]Override, 0, len(extra)+len(base))
	out = append(out, extra...)
	return append(out, base...), nil
}

// MatchOverride returns the first entry of table with a token contained in id.
func MatchOverride(table []Override, id string) (Override, bool) {
	for _, o := range table {
		for _, tok := range o.Tokens {
			if strings.Contains(id, tok) {
				return o, true
			}
		}
	}
	return Override{}, false
}

// Section names the group a question belongs to when the record gives none.
func Section(id string) string {
	switch {
	case strings.Contains(id, "MONTANTS"):
		return "montants"
	case strings.Contains(id, "ACCOMPAGNATEURS"):
		return "accompagnateurs"
	case strings.HasPrefix(id, "Q1"):
		return "initial"
	}
	return "default"
}

// SpecialSuffixes are the trailing id segments reported by Derive.
var SpecialSuffixes = []string{"MONTANTS", "ACCOMPAGNATEURS", "AUTRE", "COMMUNE", "GARE"}

var (
	numberingRe   = regexp.MustCompile(`^Q\d+`)
	subQuestionRe = regexp.MustCompile(`\d+[A-Z]$`)
)

// Derive reports the naming patterns found in ids: prefixes before the first
// underscore, special trailing suffixes with the ids carrying them, and the
// numbering patterns in use. Slices keep first-seen order.
func Derive(ids []string) schema.Conventions {
	c := schema.Conventions{
		Prefixes:      []string{},
		Suffixes:      []string{},
		Patterns:      map[string]string{},
		SpecialFields: map[string][]string{},
	}
	for _, id := range ids {
		if parts := strings.Split(id, "_"); len(parts) > 1 {
			if !slices.Contains(c.Prefixes, parts[0]) {
				c.Prefixes = append(c.Prefixes, parts[0])
			}
			suffix := parts[len(parts)-1]
			if slices.Contains(SpecialSuffixes, suffix) {
				if !slices.Contains(c.Suffixes, suffix) {
					c.Suffixes = append(c.Suffixes, suffix)
				}
				c.SpecialFields[suffix] = append(c.SpecialFields[suffix], id)
			}
		}
		if numberingRe.MatchString(id) {
			c.Patterns["question_numbering"] = "Q{number}"
		}
		if subQuestionRe.MatchString(id) {
			c.Patterns["sub_questions"] = "{base}{letter}"
		}
	}
	return c
}
