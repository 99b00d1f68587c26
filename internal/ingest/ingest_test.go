package ingest

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dshills/surveyrecon/internal/schema"
)

func TestReadFixtureCSV(t *testing.T) {
	tbl, err := Read("../../testdata/responses.csv")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	wantHeaders := []string{"Q1", "Q2_MONTANTS", "Q2_AUTRE_MONTANTS", "Q2A_MONTANTS", "Q3 MONTANTS", "Q4_MONTANTS", "Q2_ACCOMPAGNATEURS", "Commentaire"}
	if !reflect.DeepEqual(tbl.Headers, wantHeaders) {
		t.Errorf("Headers = %q", tbl.Headers)
	}
	if len(tbl.Rows) != 5 {
		t.Fatalf("rows = %d, want 5 (blank line dropped)", len(tbl.Rows))
	}
	if got := tbl.Rows[0]["Q4_MONTANTS"]; got != "12,50 €" {
		t.Errorf("Q4_MONTANTS = %q", got)
	}
	if got := tbl.Rows[2]["Commentaire"]; got != "accompagne sa fille" {
		t.Errorf("Commentaire = %q", got)
	}
}

func TestReadFixtureJSON(t *testing.T) {
	tbl, err := Read("../../testdata/responses.json")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	want := []string{"Q1", "Q2_MONTANTS", "Q2_AUTRE_MONTANTS", "Q3 MONTANTS", "Q4_MONTANTS", "Q2_ACCOMPAGNATEURS"}
	if !reflect.DeepEqual(tbl.Headers, want) {
		t.Errorf("Headers = %q, want first-seen key order", tbl.Headers)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("rows = %d", len(tbl.Rows))
	}
	if tbl.Rows[0]["Q1"] != float64(1) || tbl.Rows[1]["Q4_MONTANTS"] != nil {
		t.Errorf("rows = %v", tbl.Rows)
	}
}

func TestReadCSV(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		headers []string
		rows    []schema.Row
	}{
		{
			name:    "comma",
			in:      "A,B\n1,2\n",
			headers: []string{"A", "B"},
			rows:    []schema.Row{{"A": "1", "B": "2"}},
		},
		{
			name:    "semicolons inside quotes do not count",
			in:      "\"A;x;y\",B\n1,2\n",
			headers: []string{"A;x;y", "B"},
			rows:    []schema.Row{{"A;x;y": "1", "B": "2"}},
		},
		{
			name:    "byte order mark",
			in:      "\xef\xbb\xbfA;B\n1;2\n",
			headers: []string{"A", "B"},
			rows:    []schema.Row{{"A": "1", "B": "2"}},
		},
		{
			name:    "trimmed and blank headers",
			in:      " A ;;B\n1;x;2\n",
			headers: []string{"A", "B"},
			rows:    []schema.Row{{"A": "1", "B": "2"}},
		},
		{
			name:    "duplicate headers",
			in:      "A;A;A\n1;2;3\n",
			headers: []string{"A", "A (2)", "A (3)"},
			rows:    []schema.Row{{"A": "1", "A (2)": "2", "A (3)": "3"}},
		},
		{
			name:    "short and blank rows",
			in:      "A;B\n1\n ; \n\n",
			headers: []string{"A", "B"},
			rows:    []schema.Row{{"A": "1", "B": nil}},
		},
		{
			name:    "empty input",
			in:      "",
			headers: []string{},
			rows:    []schema.Row{},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tbl, err := ReadCSV(strings.NewReader(c.in))
			if err != nil {
				t.Fatalf("ReadCSV error: %v", err)
			}
			if !reflect.DeepEqual(tbl.Headers, c.headers) {
				t.Errorf("Headers = %q, want %q", tbl.Headers, c.headers)
			}
			if !reflect.DeepEqual(tbl.Rows, c.rows) {
				t.Errorf("Rows = %v, want %v", tbl.Rows, c.rows)
			}
		})
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	lines := [][]any{
		{"Q1", " Q4_MONTANTS ", "DATE"},
		{1, 12.5, 45356},
		{nil, nil, nil},
		{"3", "", ""},
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	tbl, err := ReadXLSX(&buf)
	if err != nil {
		t.Fatalf("ReadXLSX error: %v", err)
	}
	if want := []string{"Q1", "Q4_MONTANTS", "DATE"}; !reflect.DeepEqual(tbl.Headers, want) {
		t.Errorf("Headers = %q", tbl.Headers)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %v, want 2", tbl.Rows)
	}
	// Numeric cells come back as numbers, text cells as text even when
	// the text looks numeric.
	if tbl.Rows[0]["Q1"] != 1.0 || tbl.Rows[0]["Q4_MONTANTS"] != 12.5 || tbl.Rows[0]["DATE"] != 45356.0 {
		t.Errorf("first row = %v", tbl.Rows[0])
	}
	if tbl.Rows[1]["Q1"] != "3" {
		t.Errorf("second row = %v", tbl.Rows[1])
	}
}

func TestReadJSON_NotAnArray(t *testing.T) {
	for _, in := range []string{`{"Q1": 1}`, `[1, 2]`, `[{"Q1": 1}`} {
		if _, err := ReadJSON(strings.NewReader(in)); err == nil {
			t.Errorf("ReadJSON(%s) should fail", in)
		}
	}
}

func TestFormatOf(t *testing.T) {
	cases := map[string]Format{
		"r.csv":           FormatCSV,
		"R.XLSX":          FormatXLSX,
		"dir/export.json": FormatJSON,
	}
	for path, want := range cases {
		got, err := FormatOf(path)
		if err != nil || got != want {
			t.Errorf("FormatOf(%q) = %q, %v", path, got, err)
		}
	}
	if _, err := FormatOf("r.ods"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFromRows(t *testing.T) {
	rows := []map[string]any{{"B": "x", "A": 1.0}, {"C": "y"}, {"A": " "}}
	tbl := FromRows(nil, rows)
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(tbl.Headers, want) {
		t.Errorf("Headers = %q", tbl.Headers)
	}
	if len(tbl.Rows) != 2 {
		t.Errorf("blank row not dropped: %v", tbl.Rows)
	}

	tbl = FromRows([]string{"C", "A"}, rows)
	if want := []string{"C", "A"}; !reflect.DeepEqual(tbl.Headers, want) {
		t.Errorf("explicit headers not kept: %q", tbl.Headers)
	}
	if _, ok := tbl.Rows[0]["B"]; ok {
		t.Error("columns outside the headers must be dropped")
	}
}
