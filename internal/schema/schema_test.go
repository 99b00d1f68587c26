package schema_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dshills/surveyrecon/internal/schema"
)

func TestQuestionList_PreservesInsertionOrder(t *testing.T) {
	l := schema.QuestionList{
		{ID: "Q9", Label: "last first", Type: schema.TypeText, Options: schema.Options{}},
		{ID: "Q1", Label: "first", Type: schema.TypeSingleChoice,
			Options: schema.Options{{Code: "2", Label: "Non"}, {Code: "1", Label: "Oui"}}},
	}
	b, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if strings.Index(s, `"Q9"`) > strings.Index(s, `"Q1"`) {
		t.Errorf("Q9 should be serialized before Q1: %s", s)
	}
	if strings.Index(s, `"2":"Non"`) < 0 || strings.Index(s, `"2":"Non"`) > strings.Index(s, `"1":"Oui"`) {
		t.Errorf("option order not preserved: %s", s)
	}

	var got schema.QuestionList
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ids := got.IDs(); len(ids) != 2 || ids[0] != "Q9" || ids[1] != "Q1" {
		t.Errorf("IDs() = %v, want [Q9 Q1]", ids)
	}
	if label, ok := got[1].Options.Label("1"); !ok || label != "Oui" {
		t.Errorf("Options.Label(1) = %q, %v", label, ok)
	}
}

func TestQuestionList_UnmarshalFillsMissingID(t *testing.T) {
	var l schema.QuestionList
	if err := json.Unmarshal([]byte(`{"Q3":{"label":"x","type":"text","options":{}}}`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(l) != 1 || l[0].ID != "Q3" {
		t.Errorf("got %+v, want one question with id Q3", l)
	}
}

func TestOptions_UnmarshalRejectsArray(t *testing.T) {
	var o schema.Options
	if err := json.Unmarshal([]byte(`["a","b"]`), &o); err == nil {
		t.Error("expected error for array options")
	}
}

func TestQuestionList_LookupAndIndex(t *testing.T) {
	l := schema.QuestionList{{ID: "A"}, {ID: "B"}}
	if _, ok := l.Lookup("B"); !ok {
		t.Error("Lookup(B) not found")
	}
	if _, ok := l.Lookup("C"); ok {
		t.Error("Lookup(C) should not be found")
	}
	if idx := l.Index(); idx["B"] != 1 {
		t.Errorf("Index()[B] = %d, want 1", idx["B"])
	}
}

func TestColumnMapping_QuestionFor(t *testing.T) {
	m := schema.ColumnMapping{
		Direct: map[string]string{"Q1": "Q1"},
		Fuzzy:  map[string]string{"Q3 MONTANT": "Q3_MONTANTS"},
	}
	if id, ok := m.QuestionFor("Q3 MONTANT"); !ok || id != "Q3_MONTANTS" {
		t.Errorf("QuestionFor fuzzy = %q, %v", id, ok)
	}
	if _, ok := m.QuestionFor("nope"); ok {
		t.Error("QuestionFor(nope) should be unmapped")
	}
}

func TestRoutingEdge_IsTerminal(t *testing.T) {
	if !(schema.RoutingEdge{Destination: schema.Terminal}).IsTerminal() {
		t.Error("edge to end should be terminal")
	}
	if (schema.RoutingEdge{Destination: "Q2"}).IsTerminal() {
		t.Error("edge to Q2 should not be terminal")
	}
}

func TestTypedValue_NilMarshalsAsNull(t *testing.T) {
	code := 2
	values := map[string]schema.TypedValue{
		"Q1": schema.ChoiceValue{Kind: schema.TypeSingleChoice, Code: &code, Key: "2", Label: "Non", Raw: "2"},
		"Q2": nil,
	}
	b, err := json.Marshal(values)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"Q2":null`) {
		t.Errorf("unanswered value should be null: %s", b)
	}
	if !strings.Contains(string(b), `"code":2`) {
		t.Errorf("choice code missing: %s", b)
	}
}
