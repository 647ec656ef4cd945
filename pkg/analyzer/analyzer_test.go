package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/caueb/chimas/pkg/config"
	"github.com/caueb/chimas/pkg/errloc"
	"github.com/caueb/chimas/pkg/types"
)

const scanText = `[File] {Red}<RuleA|10B>(\\fs01\a\creds.txt) password=x
[File] {Green}<RuleB>(\\fs01\a\creds.txt) password=x again
[Share] {Black}<\\fs01\it>(\\fs01\it$) IT share
`

func TestAnalyze_ScanText(t *testing.T) {
	a := New()
	result, err := a.Analyze(context.Background(), "scan.txt", scanText)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Scan == nil || result.Report != nil {
		t.Fatal("expected scan result only")
	}
	if len(result.Scan.Files) != 1 {
		t.Fatalf("expected merged single file finding, got %d", len(result.Scan.Files))
	}
	if result.Scan.Files[0].Severity != types.SeverityRed {
		t.Errorf("Severity = %v, expected Red after merge", result.Scan.Files[0].Severity)
	}
	if len(result.Scan.Shares) != 1 {
		t.Errorf("expected 1 share, got %d", len(result.Scan.Shares))
	}
	if result.Scan.Stats.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved = %d", result.Scan.Stats.DuplicatesRemoved)
	}
}

func TestAnalyze_PolicyReport(t *testing.T) {
	input := `[GPO]
| GPO | Default Domain Policy |
|-----|------|
`

	a := New()
	result, err := a.Analyze(context.Background(), "audit.log", input)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Report == nil || result.Scan != nil {
		t.Fatal("expected policy report result only")
	}
	if len(result.Report.Policies) != 1 {
		t.Errorf("expected 1 policy, got %d", len(result.Report.Policies))
	}
}

func TestAnalyze_EmptyScanInput(t *testing.T) {
	a := New()
	_, err := a.Analyze(context.Background(), "scan.txt", "no markers here at all")

	var emptyErr *errloc.EmptyOrInvalidInputError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyOrInvalidInputError, got %v", err)
	}
	if emptyErr.Category != "text" {
		t.Errorf("Category = %q, expected text", emptyErr.Category)
	}
}

func TestAnalyze_EmptyPolicyReport(t *testing.T) {
	// A [GPO] signature that yields no sections and no info log is a
	// rejection, not an empty success.
	input := "[GPO]\n| unrelated header | x |\n"

	a := New()
	_, err := a.Analyze(context.Background(), "audit.txt", input)

	var emptyErr *errloc.EmptyOrInvalidInputError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyOrInvalidInputError, got %v", err)
	}
}

func TestAnalyze_MalformedJSON(t *testing.T) {
	a := New()
	_, err := a.Analyze(context.Background(), "scan.json", `{"entries": [`)

	var malformed *errloc.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
	if malformed.Diag == nil || malformed.Diag.Snippet == "" {
		t.Error("expected a localized diagnostic with snippet")
	}
}

func TestAnalyze_OverridesBeforeMerge(t *testing.T) {
	// RuleB is overridden to Black before merging, so it must win the
	// severity conflict it would otherwise lose.
	input := `[File] {Red}<RuleA>(\\fs01\a.txt) ctx
[File] {Green}<RuleB>(\\fs01\a.txt) ctx
`

	overrides := &config.OverrideConfig{Rules: map[string]string{"RuleB": "Black"}}
	a := New().WithOverrides(overrides)

	result, err := a.Analyze(context.Background(), "scan.txt", input)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(result.Scan.Files) != 1 {
		t.Fatalf("expected 1 merged finding, got %d", len(result.Scan.Files))
	}
	f := result.Scan.Files[0]
	if f.Severity != types.SeverityBlack {
		t.Errorf("Severity = %v, expected overridden Black to win merge", f.Severity)
	}
	if f.RuleName != "RuleB" {
		t.Errorf("RuleName = %q, expected RuleB", f.RuleName)
	}
}

func TestAnalyze_MinSeverityFilter(t *testing.T) {
	input := `[File] {Red}<RuleA>(\\fs01\a.txt) ctx
[File] {Green}<RuleB>(\\fs01\b.txt) ctx
`

	a := New().WithMinSeverity(types.SeverityYellow)
	result, err := a.Analyze(context.Background(), "scan.txt", input)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(result.Scan.Files) != 1 {
		t.Fatalf("expected 1 finding above Yellow, got %d", len(result.Scan.Files))
	}
	if result.Scan.Files[0].RuleName != "RuleA" {
		t.Errorf("wrong finding kept: %+v", result.Scan.Files[0])
	}
}

func TestAnalyzeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.txt")
	if err := os.WriteFile(path, []byte(scanText), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	a := New()
	result, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("AnalyzeFile() error = %v", err)
	}
	if len(result.Scan.Files) != 1 {
		t.Errorf("expected 1 finding, got %d", len(result.Scan.Files))
	}
}

func TestAnalyzeFile_Missing(t *testing.T) {
	a := New()
	if _, err := a.AnalyzeFile(context.Background(), "/does/not/exist.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}
