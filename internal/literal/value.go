// Package literal recovers question-record literals from free-form script
// text without executing it. Extract isolates the array fragment, Parse reads
// the value grammar (objects, arrays, strings, numbers, booleans, null) into a
// Value tree, and ParseRecords salvages individual objects when the whole
// fragment does not parse.
package literal

import (
	"strconv"
)

// Kind is the type of a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// Value is one node of a parsed literal. Object fields keep source order.
type Value struct {
	Kind   Kind
	Bool   bool
	Num    float64
	Text   string // string content, or the source lexeme of a number
	Elems  []Value
	Fields []Field
}

// Field is one key/value pair of an object.
type Field struct {
	Key   string
	Value Value
}

// StringValue returns a String value.
func StringValue(s string) Value { return Value{Kind: String, Text: s} }

// NumberValue returns a Number value.
func NumberValue(f float64) Value {
	return Value{Kind: Number, Num: f, Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Get returns the value of key when v is an object.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != Object {
		return Value{}, false
	}
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// First returns the first present, non-null value among keys.
func (v Value) First(keys ...string) (Value, bool) {
	for _, k := range keys {
		if got, ok := v.Get(k); ok && got.Kind != Null {
			return got, true
		}
	}
	return Value{}, false
}

// With returns a copy of the object v with key set to val. Existing keys are
// replaced in place; new keys are appended.
func (v Value) With(key string, val Value) Value {
	fields := make([]Field, 0, len(v.Fields)+1)
	replaced := false
	for _, f := range v.Fields {
		if f.Key == key {
			f.Value = val
			replaced = true
		}
		fields = append(fields, f)
	}
	if !replaced {
		fields = append(fields, Field{Key: key, Value: val})
	}
	return Value{Kind: Object, Fields: fields}
}

// String renders a scalar as text. Numbers use their shortest decimal form,
// so 1 and 1.0 both read as "1". Containers and null render as "".
func (v Value) String() string {
	switch v.Kind {
	case String:
		return v.Text
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}

// Float returns v as a number. Numeric strings are accepted.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case Number:
		return v.Num, true
	case String:
		f, err := strconv.ParseFloat(v.Text, 64)
		return f, err == nil
	}
	return 0, false
}

// Truthy applies script truthiness: false, 0, "", null are false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Null:
		return false
	case Bool:
		return v.Bool
	case Number:
		return v.Num != 0
	case String:
		return v.Text != ""
	}
	return true
}
