package literal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoCandidateArray is returned when no array literal can be located.
var ErrNoCandidateArray = errors.New("literal: no candidate array")

// Strategy names the search rule that located a fragment.
type Strategy int

const (
	StrategyNamedSurvey  Strategy = iota + 1 // const surveyQuestions = [...]
	StrategyNamedArray                       // any const x = [...]
	StrategyLargestArray                     // largest balanced [...]
	StrategyObjectArray                      // first [{..., possibly unterminated
)

func (s Strategy) String() string {
	switch s {
	case StrategyNamedSurvey:
		return "named-survey"
	case StrategyNamedArray:
		return "named-array"
	case StrategyLargestArray:
		return "largest-array"
	case StrategyObjectArray:
		return "object-array"
	}
	return "none"
}

// Fragment is the array literal isolated from a script.
type Fragment struct {
	Text     string
	Name     string // assigned identifier, empty for anonymous arrays
	Strategy Strategy
	Offset   int // byte offset in the cleaned source
	Closed   bool
}

var (
	assignRe       = regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*\[`)
	surveyNameRe   = regexp.MustCompile(`(?i)survey|questions|template`)
	importLineRe   = regexp.MustCompile(`(?m)^[ \t]*import\s+.*$`)
	exportListRe   = regexp.MustCompile(`(?m)^[ \t]*export\s*\{[^}]*\}\s*;?[ \t]*$`)
	exportDefRe    = regexp.MustCompile(`(?m)^([ \t]*)export\s+default\s+`)
	exportKwRe     = regexp.MustCompile(`(?m)^([ \t]*)export\s+`)
	moduleExportRe = regexp.MustCompile(`\bmodule\.exports\s*=\s*`)
)

// Extract locates the question array in free-form script text. Rules are
// tried in order: a named assignment whose identifier mentions survey,
// questions or template; any named array assignment; the largest balanced
// array; the first array opening on an object, even when it never closes.
func Extract(src string) (Fragment, error) {
	clean := StripNoise(src)

	var anyNamed []Fragment
	for _, m := range assignRe.FindAllStringSubmatchIndex(clean, -1) {
		name := clean[m[2]:m[3]]
		open := m[1] - 1
		end := matchPair(clean, open, '[', ']')
		if end < 0 {
			continue
		}
		f := Fragment{Text: clean[open : end+1], Name: name, Offset: open, Closed: true}
		if surveyNameRe.MatchString(name) {
			f.Strategy = StrategyNamedSurvey
			return f, nil
		}
		f.Strategy = StrategyNamedArray
		anyNamed = append(anyNamed, f)
	}
	if len(anyNamed) > 0 {
		return anyNamed[0], nil
	}

	if f, ok := largestArray(clean); ok {
		return f, nil
	}
	if f, ok := firstObjectArray(clean); ok {
		return f, nil
	}
	return Fragment{}, ErrNoCandidateArray
}

// StripNoise removes comments and module declarations that are not part of
// any literal. Comment detection is string-aware; line breaks are kept so
// offsets stay on the right line.
func StripNoise(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			end := skipString(src, i)
			sb.WriteString(src[i:end])
			i = end
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			nl := strings.IndexByte(src[i:], '\n')
			if nl < 0 {
				i = len(src)
			} else {
				i += nl
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			var body string
			if end < 0 {
				body = src[i:]
				i = len(src)
			} else {
				body = src[i : i+end+4]
				i += end + 4
			}
			sb.WriteString(strings.Repeat("\n", strings.Count(body, "\n")))
		default:
			sb.WriteByte(c)
			i++
		}
	}
	out := sb.String()
	out = importLineRe.ReplaceAllString(out, "")
	out = exportListRe.ReplaceAllString(out, "")
	out = exportDefRe.ReplaceAllString(out, "$1")
	out = exportKwRe.ReplaceAllString(out, "$1")
	out = moduleExportRe.ReplaceAllString(out, "")
	return out
}

func largestArray(s string) (Fragment, bool) {
	best := Fragment{}
	found := false
	for i := 0; i < len(s); {
		switch s[i] {
		case '"', '\'', '`':
			i = skipString(s, i)
			continue
		case '[':
			end := matchPair(s, i, '[', ']')
			if end < 0 {
				i++
				continue
			}
			if !found || end+1-i > len(best.Text) {
				best = Fragment{Text: s[i : end+1], Strategy: StrategyLargestArray, Offset: i, Closed: true}
				found = true
			}
			i = end + 1
			continue
		}
		i++
	}
	return best, found
}

func firstObjectArray(s string) (Fragment, bool) {
	for i := 0; i < len(s); {
		switch s[i] {
		case '"', '\'', '`':
			i = skipString(s, i)
			continue
		case '[':
			if !holdsObject(s, i) {
				break
			}
			f := Fragment{Strategy: StrategyObjectArray, Offset: i}
			if end := matchPair(s, i, '[', ']'); end >= 0 {
				f.Text, f.Closed = s[i:end+1], true
			} else {
				f.Text = s[i:]
			}
			return f, true
		}
		i++
	}
	return Fragment{}, false
}

// holdsObject reports whether the array opened at s[open] has an object
// literal among its own elements. An array that never closes is scanned to
// the end of s.
func holdsObject(s string, open int) bool {
	depth := 0
	for i := open + 1; i < len(s); {
		switch s[i] {
		case '"', '\'', '`':
			i = skipString(s, i)
			continue
		case '{':
			if depth == 0 {
				return true
			}
			depth++
		case '[', '(':
			depth++
		case '}', ')':
			depth--
		case ']':
			if depth == 0 {
				return false
			}
			depth--
		}
		i++
	}
	return false
}

// matchPair returns the index of the closer matching the opener at s[open],
// or -1 if it never balances. Quoted strings are skipped with their escapes.
func matchPair(s string, open int, opener, closer byte) int {
	depth := 0
	for i := open; i < len(s); {
		switch c := s[i]; c {
		case '"', '\'', '`':
			i = skipString(s, i)
			continue
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}

// skipString returns the index just past the string opening at s[i]. A
// single- or double-quoted string that reaches a newline is treated as
// ending there, so a stray apostrophe cannot swallow the rest of the file.
func skipString(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		case '\n':
			if quote != '`' {
				return j
			}
		}
	}
	return len(s)
}

func (f Fragment) String() string {
	name := f.Name
	if name == "" {
		name = "anonymous"
	}
	return fmt.Sprintf("%s (%s, %d bytes)", name, f.Strategy, len(f.Text))
}
