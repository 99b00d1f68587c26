// Package ingest decodes response files (CSV, XLSX, JSON) into raw tables.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dshills/surveyrecon/internal/schema"
)

// Format names a supported response file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat is returned for file extensions Read does not know.
var ErrUnsupportedFormat = errors.New("ingest: unsupported response format")

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Read decodes the response file at path.
func Read(path string) (schema.Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return schema.Table{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return schema.Table{}, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()
	return Decode(f, format)
}

// Decode reads a table of the given format from r.
func Decode(r io.Reader, format Format) (schema.Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r)
	case FormatJSON:
		return ReadJSON(r)
	}
	return schema.Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ReadCSV reads a delimited table. The delimiter, comma or semicolon, is
// sniffed from the header line.
func ReadCSV(r io.Reader) (schema.Table, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte("\xef\xbb\xbf")) {
		_, _ = br.Discard(3)
	}
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return schema.Table{}, fmt.Errorf("ingest: csv: %w", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return schema.Table{}, fmt.Errorf("ingest: csv: %w", err)
	}
	return fromGrid(records, nil), nil
}

// sniffDelimiter counts commas and semicolons outside quotes on the first
// line. Ties go to the comma.
func sniffDelimiter(head []byte) rune {
	commas, semis := 0, 0
	quoted := false
	for _, c := range head {
		if c == '\n' && !quoted {
			break
		}
		switch {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == ',':
			commas++
		case c == ';':
			semis++
		}
	}
	if semis > commas {
		return ';'
	}
	return ','
}

// ReadXLSX reads the first sheet of a workbook. Cells are read unformatted:
// numeric cells, dates included, arrive as float64 (dates as serial day
// numbers) and every other cell as its text.
func ReadXLSX(r io.Reader) (schema.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return schema.Table{}, fmt.Errorf("ingest: xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return schema.Table{Headers: []string{}, Rows: []schema.Row{}}, nil
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return schema.Table{}, fmt.Errorf("ingest: xlsx: sheet %q: %w", sheet, err)
	}
	return fromGrid(rows, func(line, col int, text string) any {
		if text == "" {
			return text
		}
		name, err := excelize.CoordinatesToCellName(col+1, line+1)
		if err != nil {
			return text
		}
		typ, err := f.GetCellType(sheet, name)
		if err != nil || (typ != excelize.CellTypeUnset && typ != excelize.CellTypeNumber) {
			return text
		}
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return n
		}
		return text
	}), nil
}

// fromGrid builds a table from a header line followed by data lines. cellAt,
// when set, converts the text of the cell at a grid position.
func fromGrid(grid [][]string, cellAt func(line, col int, text string) any) schema.Table {
	t := schema.Table{Headers: []string{}, Rows: []schema.Row{}}
	if len(grid) == 0 {
		return t
	}
	cols := columns(grid[0])
	for _, c := range cols {
		t.Headers = append(t.Headers, c.name)
	}
	for i, line := range grid[1:] {
		row := schema.Row{}
		for _, c := range cols {
			switch {
			case c.index >= len(line):
				row[c.name] = nil
			case cellAt != nil:
				row[c.name] = cellAt(i+1, c.index, line[c.index])
			default:
				row[c.name] = line[c.index]
			}
		}
		if !blankRow(row) {
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

type column struct {
	name  string
	index int
}

// columns trims header names, drops blank ones and disambiguates repeats
// as "NAME (2)", "NAME (3)".
func columns(header []string) []column {
	var cols []column
	seen := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = name + " (" + strconv.Itoa(n) + ")"
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func blankRow(row schema.Row) bool {
	for _, v := range row {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}

// ReadJSON reads an array of objects. Headers are every key in first-seen
// order.
func ReadJSON(r io.Reader) (schema.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return schema.Table{}, fmt.Errorf("ingest: json: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return schema.Table{}, fmt.Errorf("ingest: json: expected an array of objects: %w", err)
	}
	var objects []orderedObject
	for i, msg := range raw {
		obj, err := decodeOrdered(msg)
		if err != nil {
			return schema.Table{}, fmt.Errorf("ingest: json: element %d: %w", i, err)
		}
		objects = append(objects, obj)
	}
	return fromObjects(objects), nil
}

// orderedObject is one decoded JSON object with its keys in source order.
type orderedObject struct {
	keys   []string
	values map[string]any
}

func decodeOrdered(msg json.RawMessage) (orderedObject, error) {
	obj := orderedObject{values: map[string]any{}}
	dec := json.NewDecoder(bytes.NewReader(msg))
	tok, err := dec.Token()
	if err != nil {
		return obj, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return obj, fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return obj, err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return obj, fmt.Errorf("key %q: %w", key, err)
		}
		if _, dup := obj.values[key]; !dup {
			obj.keys = append(obj.keys, key)
		}
		obj.values[key] = v
	}
	return obj, nil
}

// fromObjects builds a table from decoded objects, headers in first-seen key
// order.
func fromObjects(objects []orderedObject) schema.Table {
	var keys []string
	seen := map[string]bool{}
	for _, o := range objects {
		for _, k := range o.keys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	values := make([]map[string]any, len(objects))
	for i, o := range objects {
		values[i] = o.values
	}
	return buildTable(keys, values)
}

// FromRows builds a table from already-decoded rows. Without headers the
// keys of each row are appended in sorted order as they first appear.
func FromRows(headers []string, rows []map[string]any) schema.Table {
	if len(headers) == 0 {
		seen := map[string]bool{}
		for _, r := range rows {
			for _, k := range slices.Sorted(maps.Keys(r)) {
				if !seen[k] {
					seen[k] = true
					headers = append(headers, k)
				}
			}
		}
	}
	return buildTable(headers, rows)
}

func buildTable(keys []string, rows []map[string]any) schema.Table {
	t := schema.Table{Headers: []string{}, Rows: []schema.Row{}}
	cols := columns(keys)
	for _, c := range cols {
		t.Headers = append(t.Headers, c.name)
	}
	for _, values := range rows {
		row := schema.Row{}
		for _, c := range cols {
			row[c.name] = values[keys[c.index]]
		}
		if !blankRow(row) {
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}
