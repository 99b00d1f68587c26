package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Options is an ordered code → label mapping. It serializes as a JSON object
// whose key order is the declaration order.
type Options []Option

// Label returns the label bound to code.
func (o Options) Label(code string) (string, bool) {
	for _, opt := range o {
		if opt.Code == code {
			return opt.Label, true
		}
	}
	return "", false
}

// MarshalJSON writes the options as an ordered JSON object.
func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKeyValue(&buf, opt.Code, opt.Label); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an ordered JSON object of string labels.
func (o *Options) UnmarshalJSON(data []byte) error {
	out := Options{}
	err := decodeObject(data, func(key string, dec *json.Decoder) error {
		var label string
		if err := dec.Decode(&label); err != nil {
			return fmt.Errorf("option %q: %w", key, err)
		}
		out = append(out, Option{Code: key, Label: label})
		return nil
	})
	if err != nil {
		return fmt.Errorf("schema: options: %w", err)
	}
	*o = out
	return nil
}

// QuestionList holds questions in insertion order and serializes as a JSON
// object keyed by question id.
type QuestionList []Question

// Lookup returns the question with the given id.
func (l QuestionList) Lookup(id string) (Question, bool) {
	for _, q := range l {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Index returns a fresh id → position map.
func (l QuestionList) Index() map[string]int {
	idx := make(map[string]int, len(l))
	for i, q := range l {
		idx[q.ID] = i
	}
	return idx
}

// IDs returns the question ids in insertion order.
func (l QuestionList) IDs() []string {
	ids := make([]string, len(l))
	for i, q := range l {
		ids[i] = q.ID
	}
	return ids
}

// MarshalJSON writes the questions as an ordered JSON object.
func (l QuestionList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, q := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKeyValue(&buf, q.ID, q); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an ordered JSON object of questions.
func (l *QuestionList) UnmarshalJSON(data []byte) error {
	out := QuestionList{}
	err := decodeObject(data, func(key string, dec *json.Decoder) error {
		var q Question
		if err := dec.Decode(&q); err != nil {
			return fmt.Errorf("question %q: %w", key, err)
		}
		if q.ID == "" {
			q.ID = key
		}
		out = append(out, q)
		return nil
	})
	if err != nil {
		return fmt.Errorf("schema: questions: %w", err)
	}
	*l = out
	return nil
}

func writeKeyValue(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// decodeObject walks a JSON object in key order, handing the decoder to fn
// positioned at each value. A JSON null decodes to an empty object.
func decodeObject(data []byte, fn func(key string, dec *json.Decoder) error) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		if err := fn(key, dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
