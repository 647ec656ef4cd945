package snaffler

import (
	"testing"

	"github.com/caueb/chimas/pkg/types"
)

func TestExtractText_FileLine(t *testing.T) {
	input := `[DESKTOP-1\alice] [File] {Red}<KeepConfigRegexRed|R|50B|2023-04-01 09:15:01Z>(\\fs01\share\web.config) connectionString=Server=db;Password=hunter2`

	e := New()
	files, shares := e.ExtractText(input)

	if len(shares) != 0 {
		t.Fatalf("expected 0 shares, got %d", len(shares))
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file finding, got %d", len(files))
	}

	f := files[0]
	if f.Severity != types.SeverityRed {
		t.Errorf("Severity = %v, expected Red", f.Severity)
	}
	if f.FullPath != `\\fs01\share\web.config` {
		t.Errorf("FullPath = %q", f.FullPath)
	}
	if f.FileName != "web.config" {
		t.Errorf("FileName = %q, expected web.config", f.FileName)
	}
	if f.RuleName != "KeepConfigRegexRed" {
		t.Errorf("RuleName = %q, expected KeepConfigRegexRed", f.RuleName)
	}
	if f.Size != "50B" {
		t.Errorf("Size = %q, expected 50B", f.Size)
	}
	if f.LastModified != "2023-04-01 09:15:01Z" {
		t.Errorf("LastModified = %q", f.LastModified)
	}
	if f.UserContext != `DESKTOP-1\alice` {
		t.Errorf("UserContext = %q", f.UserContext)
	}
	if f.MatchContext != "connectionString=Server=db;Password=hunter2" {
		t.Errorf("MatchContext = %q", f.MatchContext)
	}
}

func TestExtractText_ShareLine(t *testing.T) {
	input := `[DESKTOP-1\alice] [Share] {Green}<\\fs01\backups>(\\fs01\backups) Nightly backup share`

	e := New()
	files, shares := e.ExtractText(input)

	if len(files) != 0 {
		t.Fatalf("expected 0 files, got %d", len(files))
	}
	if len(shares) != 1 {
		t.Fatalf("expected 1 share, got %d", len(shares))
	}

	s := shares[0]
	if s.SystemID != "fs01" {
		t.Errorf("SystemID = %q, expected fs01", s.SystemID)
	}
	if s.ShareName != "backups" {
		t.Errorf("ShareName = %q, expected backups", s.ShareName)
	}
	if s.Severity != types.SeverityGreen {
		t.Errorf("Severity = %v, expected Green", s.Severity)
	}
	if s.Comment != "Nightly backup share" {
		t.Errorf("Comment = %q", s.Comment)
	}
}

func TestExtractText_SkipsLinesMissingTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "no marker at all",
			input: `{Red}<Rule>(\\fs01\share\a.txt) context`,
		},
		{
			name:  "marker without severity",
			input: `[File] <Rule>(\\fs01\share\a.txt) context`,
		},
		{
			name:  "marker without path group",
			input: `[File] {Red} no path here`,
		},
		{
			name:  "unknown severity label",
			input: `[File] {Purple}<Rule>(\\fs01\share\a.txt) context`,
		},
		{
			name:  "empty path",
			input: `[File] {Red}<Rule>() context`,
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, shares := e.ExtractText(tt.input)
			if len(files) != 0 || len(shares) != 0 {
				t.Errorf("expected line to be skipped, got %d files %d shares", len(files), len(shares))
			}
		})
	}
}

func TestExtractText_TrailingMetadata(t *testing.T) {
	// Some emitters append the rule metadata after the context instead of
	// before the path.
	input := `[File] {Yellow}>(\\fs01\dev\secrets.txt) apikey=abc123 <KeepSecretsTxt|12B>`

	e := New()
	files, _ := e.ExtractText(input)
	if len(files) != 1 {
		t.Fatalf("expected 1 file finding, got %d", len(files))
	}

	f := files[0]
	if f.RuleName != "KeepSecretsTxt" {
		t.Errorf("RuleName = %q, expected KeepSecretsTxt", f.RuleName)
	}
	if f.Size != "12B" {
		t.Errorf("Size = %q, expected 12B", f.Size)
	}
	if f.MatchContext != "apikey=abc123" {
		t.Errorf("MatchContext = %q, expected metadata stripped", f.MatchContext)
	}
}

func TestExtractText_SizeDefaultsToZero(t *testing.T) {
	input := `[File] {Red}<KeepPassInCode>(\\fs01\src\db.py) pwd = "x"`

	e := New()
	files, _ := e.ExtractText(input)
	if len(files) != 1 {
		t.Fatalf("expected 1 file finding, got %d", len(files))
	}
	if files[0].Size != "0" {
		t.Errorf("Size = %q, expected 0 for missing size token", files[0].Size)
	}
}

func TestExtractText_MultipleLines(t *testing.T) {
	input := `[Info] scanner starting
[File] {Red}<RuleA|10B>(\\fs01\a\one.txt) first
garbage line with no markers
[File] {broken line
[Share] {Black}<\\fs01\it>(\\fs01\it$) IT share
[File] {Green}<RuleB>(\\fs01\b\two.txt) second`

	e := New()
	files, shares := e.ExtractText(input)
	if len(files) != 2 {
		t.Fatalf("expected 2 file findings, got %d", len(files))
	}
	if len(shares) != 1 {
		t.Fatalf("expected 1 share, got %d", len(shares))
	}
	if shares[0].ShareName != "it$" {
		t.Errorf("ShareName = %q, expected it$", shares[0].ShareName)
	}
}
