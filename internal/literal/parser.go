package literal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxDepth bounds container nesting so hostile input cannot exhaust the stack.
const maxDepth = 512

// SyntaxError reports where a literal stopped matching the value grammar.
type SyntaxError struct {
	Offset int
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("literal: line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// Parse reads src as exactly one literal value. Surrounding whitespace,
// comments and one trailing semicolon are allowed. Identifiers other than
// true, false, null and undefined are rejected: nothing is ever evaluated.
func Parse(src string) (Value, error) {
	p := &parser{src: src}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.peek() == ';' {
		p.pos++
		p.skipSpace()
	}
	if p.pos < len(p.src) {
		return Value{}, p.errorf("unexpected %q after value", p.rest(12))
	}
	return v, nil
}

type parser struct {
	src   string
	pos   int
	depth int
}

func (p *parser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *parser) rest(n int) string {
	r := p.src[p.pos:]
	if len(r) > n {
		r = r[:n]
	}
	return r
}

func (p *parser) errorf(format string, args ...any) error {
	line, col := 1, 1
	for _, r := range p.src[:min(p.pos, len(p.src))] {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return &SyntaxError{Offset: p.pos, Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

// skipSpace consumes whitespace (including NBSP and BOM) and comments.
func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			p.pos++
		case c == '/' && strings.HasPrefix(p.src[p.pos:], "//"):
			end := strings.IndexByte(p.src[p.pos:], '\n')
			if end < 0 {
				p.pos = len(p.src)
			} else {
				p.pos += end + 1
			}
		case c == '/' && strings.HasPrefix(p.src[p.pos:], "/*"):
			end := strings.Index(p.src[p.pos+2:], "*/")
			if end < 0 {
				p.pos = len(p.src)
			} else {
				p.pos += end + 4
			}
		case c >= utf8.RuneSelf:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			if r != '\uFEFF' && !unicode.IsSpace(r) {
				return
			}
			p.pos += size
		default:
			return
		}
	}
}

func (p *parser) value() (Value, error) {
	if p.pos >= len(p.src) {
		return Value{}, p.errorf("unexpected end of input")
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"' || c == '\'' || c == '`':
		s, err := p.str()
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case isIdentStart(c):
		start := p.pos
		word := p.ident()
		switch word {
		case "true":
			return Value{Kind: Bool, Bool: true}, nil
		case "false":
			return Value{Kind: Bool}, nil
		case "null", "undefined":
			return Value{Kind: Null}, nil
		}
		p.pos = start
		return Value{}, p.errorf("unexpected identifier %q: only literal values are allowed", word)
	default:
		return Value{}, p.errorf("unexpected character %q", p.rest(1))
	}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf("nesting deeper than %d", maxDepth)
	}
	return nil
}

func (p *parser) object() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()
	p.pos++ // {
	v := Value{Kind: Object, Fields: []Field{}}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return v, nil
		}
		key, err := p.key()
		if err != nil {
			return Value{}, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return Value{}, p.errorf("expected ':' after key %q", key)
		}
		p.pos++
		p.skipSpace()
		val, err := p.value()
		if err != nil {
			return Value{}, err
		}
		v = v.With(key, val)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return v, nil
		default:
			return Value{}, p.errorf("expected ',' or '}' in object")
		}
	}
}

func (p *parser) key() (string, error) {
	c := p.peek()
	switch {
	case c == '"' || c == '\'':
		return p.str()
	case c >= '0' && c <= '9':
		n, err := p.number()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case isIdentStart(c):
		return p.ident(), nil
	case c == 0:
		return "", p.errorf("unexpected end of input in object")
	}
	return "", p.errorf("invalid object key starting with %q", p.rest(1))
}

func (p *parser) array() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()
	p.pos++ // [
	v := Value{Kind: Array, Elems: []Value{}}
	for {
		p.skipSpace()
		if p.peek() == ']' {
			p.pos++
			return v, nil
		}
		if p.peek() == ',' {
			return Value{}, p.errorf("empty array element")
		}
		elem, err := p.value()
		if err != nil {
			return Value{}, err
		}
		v.Elems = append(v.Elems, elem)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return v, nil
		default:
			return Value{}, p.errorf("expected ',' or ']' in array")
		}
	}
}

func (p *parser) str() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\\':
			if err := p.escape(&sb); err != nil {
				return "", err
			}
		case c == '\n' && quote != '`':
			return "", p.errorf("unterminated string")
		case c == '$' && quote == '`' && strings.HasPrefix(p.src[p.pos:], "${"):
			return "", p.errorf("template interpolation is not a literal")
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) escape(sb *strings.Builder) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return p.errorf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0':
		sb.WriteByte(0)
	case '\n':
		// line continuation
	case '\r':
		if p.peek() == '\n' {
			p.pos++
		}
	case 'x':
		return p.hexEscape(sb, 2)
	case 'u':
		if p.peek() == '{' {
			end := strings.IndexByte(p.src[p.pos:], '}')
			if end < 0 {
				return p.errorf("unterminated unicode escape")
			}
			n, err := strconv.ParseUint(p.src[p.pos+1:p.pos+end], 16, 32)
			if err != nil {
				return p.errorf("invalid unicode escape")
			}
			sb.WriteRune(rune(n))
			p.pos += end + 1
			return nil
		}
		return p.hexEscape(sb, 4)
	default:
		sb.WriteByte(c)
	}
	return nil
}

func (p *parser) hexEscape(sb *strings.Builder, width int) error {
	if p.pos+width > len(p.src) {
		return p.errorf("truncated escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+width], 16, 32)
	if err != nil {
		return p.errorf("invalid hex escape %q", p.src[p.pos:p.pos+width])
	}
	p.pos += width
	r := rune(n)
	// Combine UTF-16 surrogate pairs written as two \u escapes.
	if width == 4 && r >= 0xD800 && r < 0xDC00 && strings.HasPrefix(p.src[p.pos:], `\u`) && p.pos+6 <= len(p.src) {
		if lo, err := strconv.ParseUint(p.src[p.pos+2:p.pos+6], 16, 32); err == nil && lo >= 0xDC00 && lo < 0xE000 {
			r = (r-0xD800)<<10 + (rune(lo) - 0xDC00) + 0x10000
			p.pos += 6
		}
	}
	sb.WriteRune(r)
	return nil
}

func (p *parser) number() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	if strings.HasPrefix(p.src[p.pos:], "0x") || strings.HasPrefix(p.src[p.pos:], "0X") {
		p.pos += 2
		digits := p.pos
		for p.pos < len(p.src) && isHex(p.src[p.pos]) {
			p.pos++
		}
		n, err := strconv.ParseInt(p.src[digits:p.pos], 16, 64)
		if err != nil {
			return Value{}, p.errorf("invalid hex number %q", p.src[start:p.pos])
		}
		f := float64(n)
		if p.src[start] == '-' {
			f = -f
		}
		return Value{Kind: Number, Num: f, Text: p.src[start:p.pos]}, nil
	}
	digits := 0
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
		digits++
	}
	if p.peek() == '.' {
		p.pos++
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
			digits++
		}
	}
	if digits == 0 {
		return Value{}, p.errorf("invalid number %q", p.src[start:p.pos])
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		p.pos++
		if c := p.peek(); c == '-' || c == '+' {
			p.pos++
		}
		exp := p.pos
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
		}
		if exp == p.pos {
			return Value{}, p.errorf("invalid exponent in %q", p.src[start:p.pos])
		}
	}
	lexeme := p.src[start:p.pos]
	f, err := strconv.ParseFloat(strings.TrimPrefix(lexeme, "+"), 64)
	if err != nil {
		return Value{}, p.errorf("invalid number %q", lexeme)
	}
	if isIdentStart(p.peek()) {
		return Value{}, p.errorf("unexpected %q after number", p.rest(1))
	}
	return Value{Kind: Number, Num: f, Text: lexeme}, nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if r == '_' || r == '$' || unicode.IsLetter(r) || (p.pos > start && unicode.IsDigit(r)) {
			p.pos += size
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
