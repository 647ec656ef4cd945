package errloc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// snippetBudget caps how much raw text a diagnostic may carry when no
// line anchor is available.
const snippetBudget = 300

// windowLines is the number of context lines shown on each side of the
// offending line.
const windowLines = 2

var (
	lineColRe  = regexp.MustCompile(`(?i)line\s+(\d+)[,:]?\s*column\s+(\d+)`)
	positionRe = regexp.MustCompile(`(?i)(?:position|offset|character)\s+(\d+)`)
)

// eofHints classify failures caused by truncated input; for those the
// tail of the source is the useful part to show.
var eofHints = []string{"unexpected end", "unterminated", "eof", "missing", "incomplete"}

// Diagnostic is the displayable payload for a parse failure. Snippet and
// the line anchors are best-effort and may be absent.
type Diagnostic struct {
	Message          string `json:"message"`
	Snippet          string `json:"snippet,omitempty"`
	ErrorPosition    int    `json:"error_position,omitempty"`
	ActualLineNumber int    `json:"actual_line_number,omitempty"`
	SnippetStartLine int    `json:"snippet_start_line,omitempty"`
}

// Localize turns a parse failure message and the offending source into a
// displayable diagnostic. It tries, in order: a "line N column M" pair in
// the message, a bare character position, an end-of-input class of error
// (trailing snippet), and finally the leading snippet. It never fails.
func Localize(message, source string) *Diagnostic {
	diag := &Diagnostic{Message: message}

	if m := lineColRe.FindStringSubmatch(message); m != nil {
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		diag.ErrorPosition = col
		windowAround(diag, source, line)
		return diag
	}

	if m := positionRe.FindStringSubmatch(message); m != nil {
		pos, _ := strconv.Atoi(m[1])
		diag.ErrorPosition = pos
		windowAround(diag, source, lineOfPosition(source, pos))
		return diag
	}

	lower := strings.ToLower(message)
	for _, hint := range eofHints {
		if strings.Contains(lower, hint) {
			diag.Snippet = tail(source, snippetBudget)
			return diag
		}
	}

	diag.Snippet = head(source, snippetBudget)
	return diag
}

// windowAround fills the diagnostic with a windowed snippet of ±2 lines
// around the 1-based line number, plus the file line number of the first
// snippet line so callers can render an exact gutter.
func windowAround(diag *Diagnostic, source string, line int) {
	lines := strings.Split(source, "\n")
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}

	start := line - windowLines
	if start < 1 {
		start = 1
	}
	end := line + windowLines
	if end > len(lines) {
		end = len(lines)
	}

	diag.ActualLineNumber = line
	diag.SnippetStartLine = start
	diag.Snippet = strings.Join(lines[start-1:end], "\n")
}

// lineOfPosition converts a 0-based character offset into a 1-based line
// number.
func lineOfPosition(source string, pos int) int {
	if pos > len(source) {
		pos = len(source)
	}
	if pos < 0 {
		pos = 0
	}
	return strings.Count(source[:pos], "\n") + 1
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// MalformedInputError reports a top-level parse failure together with its
// localized diagnostic.
type MalformedInputError struct {
	Diag *Diagnostic
}

func (e *MalformedInputError) Error() string {
	return e.Diag.Message
}

// EmptyOrInvalidInputError reports that routing succeeded but the chosen
// extractor produced zero records; callers must treat this as file
// rejection, not as an empty success.
type EmptyOrInvalidInputError struct {
	Category string
}

func (e *EmptyOrInvalidInputError) Error() string {
	return fmt.Sprintf("no records could be extracted from %s input; the file is empty or not a recognized scan output", e.Category)
}
