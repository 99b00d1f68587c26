package reconcile

import (
	"math"
	"reflect"
	"testing"

	"github.com/dshills/surveyrecon/internal/schema"
)

func questionnaire(ids ...string) schema.Questionnaire {
	var qs schema.QuestionList
	for _, id := range ids {
		qs = append(qs, schema.Question{ID: id, Type: schema.TypeText})
	}
	return schema.Questionnaire{Questions: qs}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"Q3_MONTANTS", "Q3 MONTANTS", 10.0 / 11},
		{"", "", 1},
		{"abc", "", 0},
		{"kitten", "sitting", 4.0 / 7},
		{"été", "ete", 1.0 / 3},
	}
	for _, c := range cases {
		if got := Similarity(c.a, c.b); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
	if Similarity("Q3_MONTANTS", "Q3 MONTANTS") <= DefaultThreshold {
		t.Error("separator variant should clear the default threshold")
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"Q3 MONTANTS":       "Q3_MONTANTS",
		"  q2 - montants  ": "Q2_MONTANTS",
		"__Q1__":            "Q1",
		"Gare d'arrivée":    "GARE_D_ARRIVEE",
		"Q4 (€)":            "Q4",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReconcile(t *testing.T) {
	q := questionnaire("Q1", "Q2_MONTANTS", "Q2_AUTRE_MONTANTS", "Q3_MONTANTS", "Q4_MONTANTS", "Q2_ACCOMPAGNATEURS")
	headers := []string{"Q1", " q2_montants ", "Q3 MONTANTS", "Q2_AUTRE_MONTANT", "Commentaire"}
	m, warnings := Reconcile(q, headers, Options{})

	wantDirect := map[string]string{"Q1": "Q1", " q2_montants ": "Q2_MONTANTS"}
	if !reflect.DeepEqual(m.Direct, wantDirect) {
		t.Errorf("Direct = %v, want %v", m.Direct, wantDirect)
	}
	wantFuzzy := map[string]string{"Q3 MONTANTS": "Q3_MONTANTS", "Q2_AUTRE_MONTANT": "Q2_AUTRE_MONTANTS"}
	if !reflect.DeepEqual(m.Fuzzy, wantFuzzy) {
		t.Errorf("Fuzzy = %v, want %v", m.Fuzzy, wantFuzzy)
	}
	if _, ok := m.Direct["Q3 MONTANTS"]; ok {
		t.Error("Q3 MONTANTS must not be a direct match")
	}
	if m.Scores["Q3 MONTANTS"] != 1 {
		t.Errorf("score = %v, want 1", m.Scores["Q3 MONTANTS"])
	}
	if want := []string{"Commentaire"}; !reflect.DeepEqual(m.UnmappedColumns, want) {
		t.Errorf("UnmappedColumns = %v, want %v", m.UnmappedColumns, want)
	}
	if want := []string{"Q4_MONTANTS", "Q2_ACCOMPAGNATEURS"}; !reflect.DeepEqual(m.UnmappedQuestions, want) {
		t.Errorf("UnmappedQuestions = %v, want %v", m.UnmappedQuestions, want)
	}

	var kinds []schema.IssueKind
	for _, w := range warnings {
		kinds = append(kinds, w.Kind)
	}
	wantKinds := []schema.IssueKind{
		schema.IssueFuzzyMatch, schema.IssueFuzzyMatch,
		schema.IssueUnmappedColumn,
		schema.IssueUnmappedQuestion, schema.IssueUnmappedQuestion,
	}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Errorf("warning kinds = %v, want %v", kinds, wantKinds)
	}
	if warnings[0].Column != "Q3 MONTANTS" || warnings[0].Question != "Q3_MONTANTS" {
		t.Errorf("fuzzy warning must name both: %+v", warnings[0])
	}

	if id, ok := m.QuestionFor("Q3 MONTANTS"); !ok || id != "Q3_MONTANTS" {
		t.Errorf("QuestionFor = %q, %v", id, ok)
	}
}

func TestReconcile_DirectFoldsAccents(t *testing.T) {
	m, _ := Reconcile(questionnaire("EVENEMENT"), []string{"Événement"}, Options{})
	if m.Direct["Événement"] != "EVENEMENT" {
		t.Errorf("Direct = %v", m.Direct)
	}
}

func TestReconcile_TieGoesToEarliestQuestion(t *testing.T) {
	m, _ := Reconcile(questionnaire("AB1", "AB2"), []string{"AB"}, Options{Threshold: 0.5})
	if m.Fuzzy["AB"] != "AB1" {
		t.Errorf("Fuzzy = %v, want AB -> AB1", m.Fuzzy)
	}
}

func TestReconcile_Threshold(t *testing.T) {
	q := questionnaire("Q4_MONTANTS")
	if m, _ := Reconcile(q, []string{"Q4_MONTANT"}, Options{}); m.Fuzzy["Q4_MONTANT"] != "Q4_MONTANTS" {
		t.Errorf("default threshold: Fuzzy = %v", m.Fuzzy)
	}
	if m, _ := Reconcile(q, []string{"Q4_MONTANT"}, Options{Threshold: 0.95}); len(m.Fuzzy) != 0 {
		t.Errorf("strict threshold: Fuzzy = %v, want none", m.Fuzzy)
	}
}

func TestReconcile_OneColumnPerQuestion(t *testing.T) {
	m, _ := Reconcile(questionnaire("Q1", "Q2"), []string{"Q1", "q1"}, Options{})
	if len(m.Direct) != 1 || m.Direct["Q1"] != "Q1" {
		t.Errorf("Direct = %v", m.Direct)
	}
	if len(m.Fuzzy) != 0 {
		t.Errorf("second Q1 column must not steal another question: %v", m.Fuzzy)
	}
}

func TestReconcile_Deterministic(t *testing.T) {
	q := questionnaire("Q1", "Q2_A", "Q2_B", "Q3")
	headers := []string{"Q2 A", "Q2-B", "q3", "X"}
	first, w1 := Reconcile(q, headers, Options{})
	for i := 0; i < 20; i++ {
		again, w2 := Reconcile(q, headers, Options{})
		if !reflect.DeepEqual(first, again) || !reflect.DeepEqual(w1, w2) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}
