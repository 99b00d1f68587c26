package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/dshills/surveyrecon/internal/config"
)

const (
	schemaFixture    = "../../testdata/survey.js"
	responsesFixture = "../../testdata/responses.csv"
)

func testApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return &app{cfg: config.Default(), logger: zap.NewNop(), stdout: &buf}, &buf
}

// baseFlags returns processFlags for the fixture survey writing JSON to a
// temp file.
func baseFlags(t *testing.T) processFlags {
	t.Helper()
	return processFlags{
		schemaFile:    schemaFixture,
		responsesFile: responsesFixture,
		format:        "json",
		out:           tempOut(t),
	}
}

func tempOut(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "report.out")
}

func readOutput(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return bytes.TrimRight(b, "\n")
}

func summaryOf(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var rep struct {
		Summary map[string]any `json:"summary"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("parse output JSON: %v", err)
	}
	return rep.Summary
}

func TestProcess_JSON(t *testing.T) {
	a, _ := testApp(t)
	f := baseFlags(t)

	if err := runProcess(context.Background(), a, f); err != nil {
		t.Fatalf("expected exit 0, got %d: %v", exitCode(err), err)
	}
	out := readOutput(t, f.out)
	if s := summaryOf(t, out); s["status"] != "PROCESSED_WITH_WARNINGS" {
		t.Errorf("status: got %v", s["status"])
	}
	if !bytes.Contains(out, []byte(`"responses": "../../testdata/responses.csv"`)) {
		t.Error("input should name the responses file")
	}
}

func TestProcess_FailOn(t *testing.T) {
	cases := []struct {
		failOn string
		want   int
	}{
		{"", 0},
		{"warnings", exitCodeFailOn},
		{"PROCESSED_WITH_WARNINGS", exitCodeFailOn},
		{"failed", 0},
	}
	for _, c := range cases {
		a, _ := testApp(t)
		f := baseFlags(t)
		f.failOn = c.failOn
		err := runProcess(context.Background(), a, f)
		if code := exitCode(err); code != c.want {
			t.Errorf("fail-on %q: expected exit %d, got %d: %v", c.failOn, c.want, code, err)
		}
		// The report is written before the threshold is applied.
		if _, statErr := os.Stat(f.out); statErr != nil {
			t.Errorf("fail-on %q: no report written: %v", c.failOn, statErr)
		}
	}
}

func TestProcess_BadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*processFlags)
	}{
		{"format", func(f *processFlags) { f.format = "yaml" }},
		{"fail-on", func(f *processFlags) { f.failOn = "sometimes" }},
		{"schema", func(f *processFlags) { f.schemaFile = "../../testdata/absent.js" }},
		{"responses", func(f *processFlags) { f.responsesFile = "../../testdata/absent.csv" }},
		{"extension", func(f *processFlags) { f.responsesFile = schemaFixture }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, _ := testApp(t)
			f := baseFlags(t)
			c.mutate(&f)
			err := runProcess(context.Background(), a, f)
			if code := exitCode(err); code != exitCodeBadInput {
				t.Errorf("expected exit %d (bad input), got %d: %v", exitCodeBadInput, code, err)
			}
		})
	}
}

func TestProcess_Fatal(t *testing.T) {
	dir := t.TempDir()
	schemaFile := filepath.Join(dir, "broken.js")
	if err := os.WriteFile(schemaFile, []byte("export default function survey() { return 42 }"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, _ := testApp(t)
	f := baseFlags(t)
	f.schemaFile = schemaFile

	err := runProcess(context.Background(), a, f)
	if code := exitCode(err); code != exitCodeFatal {
		t.Fatalf("expected exit %d (fatal), got %d: %v", exitCodeFatal, code, err)
	}
	s := summaryOf(t, readOutput(t, f.out))
	if s["status"] != "FAILED" || s["fatal"] == "" {
		t.Errorf("summary: got %v", s)
	}
}

func TestProcess_CSVToStdout(t *testing.T) {
	a, buf := testApp(t)
	f := baseFlags(t)
	f.format, f.out = "csv", ""

	if err := runProcess(context.Background(), a, f); err != nil {
		t.Fatalf("runProcess: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header and 5 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "index,Q1,") || !strings.HasSuffix(lines[0], ",completion_rate,has_errors") {
		t.Errorf("header: got %q", lines[0])
	}
}

func TestNormalize(t *testing.T) {
	a, buf := testApp(t)
	if err := runNormalize(a, normalizeFlags{schemaFile: schemaFixture, format: "markdown"}); err != nil {
		t.Fatalf("runNormalize: %v", err)
	}
	if !strings.Contains(buf.String(), "## Questionnaire importé") || !strings.Contains(buf.String(), "## Routing") {
		t.Errorf("markdown output:\n%s", buf.String())
	}

	a, _ = testApp(t)
	err := runNormalize(a, normalizeFlags{schemaFile: schemaFixture, format: "html"})
	if code := exitCode(err); code != exitCodeBadInput {
		t.Errorf("expected exit %d for unknown format, got %d", exitCodeBadInput, code)
	}
}

func TestNormalize_Out(t *testing.T) {
	out := tempOut(t)
	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetArgs([]string{"normalize", schemaFixture, "--out", out})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout should stay empty with --out, got %q", stdout.String())
	}
	var res struct {
		Questionnaire struct {
			Questions map[string]any `json:"questions"`
		} `json:"questionnaire"`
	}
	if err := json.Unmarshal(readOutput(t, out), &res); err != nil {
		t.Fatalf("parse output JSON: %v", err)
	}
	if _, ok := res.Questionnaire.Questions["Q1"]; !ok {
		t.Errorf("questions: got %v", res.Questionnaire.Questions)
	}
}

func TestRootCmd(t *testing.T) {
	out := tempOut(t)
	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetArgs([]string{
		"process", schemaFixture, responsesFixture,
		"--config", "../../testdata/config.yaml",
		"--format", "markdown",
		"--out", out,
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	md := string(readOutput(t, out))
	if !strings.Contains(md, "## Survey Reconciliation Report") || !strings.Contains(md, "**Status:** PROCESSED_WITH_WARNINGS") {
		t.Errorf("markdown report:\n%s", md)
	}
}

func TestRootCmd_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("reconcile:\n  fuzzy_threshold: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := newRootCmd()
	root.SetArgs([]string{"normalize", schemaFixture, "--config", path})
	if code := exitCode(root.Execute()); code != exitCodeBadInput {
		t.Errorf("expected exit %d, got %d", exitCodeBadInput, code)
	}
}
