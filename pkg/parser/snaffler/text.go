package snaffler

import (
	"errors"
	"regexp"
	"strings"

	"github.com/caueb/chimas/pkg/parser"
	"github.com/caueb/chimas/pkg/types"
)

// errSkipLine marks a line that is missing a required token. Skipped
// lines are dropped silently; extraction is best-effort per line.
var errSkipLine = errors.New("line missing required tokens")

var (
	sizeTokenRe = regexp.MustCompile(`^\d+(?:\.\d+)?(?:B|kB|MB|GB)$`)
	// ISO-8601-like date anchored after a pipe character.
	timestampRe = regexp.MustCompile(`\|\s*(\d{4}-\d{2}-\d{2}[ T]?[0-9:.]*Z?)`)
)

// lineTokens holds the pieces recovered from one flat-format line by the
// tokenizer. Which pieces are required depends on the record kind.
type lineTokens struct {
	userContext string
	severity    types.Severity
	path        string
	ruleName    string
	size        string
	timestamp   string
	context     string
	isShare     bool
}

// tokenizeLine runs the named extraction steps of the flat-format grammar
// over a single admissible line. A missing severity or path token returns
// errSkipLine; everything else is optional.
func tokenizeLine(line string) (*lineTokens, error) {
	tok := &lineTokens{isShare: strings.Contains(line, parser.MarkerShare)}
	rest := strings.TrimSpace(line)

	rest = tok.readUserContext(rest)
	var ok bool
	if rest, ok = tok.readSeverity(rest); !ok {
		return nil, errSkipLine
	}
	pathStart := strings.Index(rest, ">(")
	if pathStart < 0 {
		return nil, errSkipLine
	}
	head, tail := rest[:pathStart], rest[pathStart:]
	if tail, ok = tok.readPath(tail); !ok {
		return nil, errSkipLine
	}

	// Rule metadata sits between the severity and the path in modern
	// output; some emitters append it after the trailing context instead.
	if !tok.readMetadata(head) {
		tail = tok.stripTrailingMetadata(tail)
	}
	tok.timestamp = findTimestamp(line)
	tok.context = DecodeEscapes(strings.TrimSpace(tail))
	return tok, nil
}

// readUserContext consumes a leading [host\user] group. The [File] and
// [Share] markers use the same brackets and are not user context.
func (t *lineTokens) readUserContext(s string) string {
	for strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return s
		}
		inner := s[1:end]
		rest := strings.TrimSpace(s[end+1:])
		if inner == "File" || inner == "Share" {
			// Marker, not user context; keep scanning past it.
			s = rest
			continue
		}
		if t.userContext == "" && strings.Contains(inner, `\`) {
			t.userContext = inner
			s = rest
			continue
		}
		return s
	}
	return s
}

// readSeverity consumes the first {...} group as the severity label.
func (t *lineTokens) readSeverity(s string) (string, bool) {
	open := strings.Index(s, "{")
	if open < 0 {
		return s, false
	}
	end := strings.Index(s[open:], "}")
	if end < 0 {
		return s, false
	}
	sev, known := types.ParseSeverity(strings.TrimSpace(s[open+1 : open+end]))
	if !known {
		return s, false
	}
	t.severity = sev
	return s[open+end+1:], true
}

// readPath consumes the >(...) group; the remainder begins the trailing
// free-text segment.
func (t *lineTokens) readPath(s string) (string, bool) {
	if !strings.HasPrefix(s, ">(") {
		return s, false
	}
	end := strings.Index(s, ")")
	if end < 0 {
		return s, false
	}
	t.path = s[2:end]
	if t.path == "" {
		return s, false
	}
	return s[end+1:], true
}

// readMetadata parses the <...> group in s: pipe-delimited, first
// segment is the rule or share name, later segments may carry a
// human-readable size token. The group's closing ">" may double as the
// ">(" path opener, in which case s ends where the group does.
func (t *lineTokens) readMetadata(s string) bool {
	open := strings.Index(s, "<")
	if open < 0 {
		return false
	}
	meta := s[open+1:]
	if end := strings.Index(meta, ">"); end >= 0 {
		meta = meta[:end]
	}
	t.parseMetadata(meta)
	return true
}

// stripTrailingMetadata handles emitters that put the <...> group after
// the trailing context; the group is parsed and removed from the context.
func (t *lineTokens) stripTrailingMetadata(s string) string {
	open := strings.Index(s, "<")
	if open < 0 {
		return s
	}
	end := strings.Index(s[open:], ">")
	if end < 0 {
		return s
	}
	t.parseMetadata(s[open+1 : open+end])
	return s[:open] + s[open+end+1:]
}

func (t *lineTokens) parseMetadata(meta string) {
	segments := strings.Split(meta, "|")
	t.ruleName = strings.TrimSpace(segments[0])
	for _, seg := range segments[1:] {
		if sizeTokenRe.MatchString(strings.TrimSpace(seg)) {
			t.size = strings.TrimSpace(seg)
			break
		}
	}
}

func findTimestamp(line string) string {
	m := timestampRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// fileFromTokens builds a FileFinding from a tokenized [File] line. The
// flat format does not distinguish creation from modification time.
func fileFromTokens(tok *lineTokens) types.FileFinding {
	size := tok.size
	if size == "" {
		size = "0"
	}
	return types.FileFinding{
		Severity:     tok.severity,
		FullPath:     tok.path,
		FileName:     baseName(tok.path),
		CreationTime: tok.timestamp,
		LastModified: tok.timestamp,
		Size:         size,
		MatchContext: tok.context,
		RuleName:     tok.ruleName,
		UserContext:  tok.userContext,
	}
}

// shareFromTokens builds a ShareFinding from a tokenized [Share] line.
// Root-access flags are unknown in the flat format and stay false.
func shareFromTokens(tok *lineTokens) types.ShareFinding {
	system, share := splitSharePath(tok.path)
	if share == "" && tok.ruleName != "" {
		share = tok.ruleName
	}
	return types.ShareFinding{
		SystemID:    system,
		ShareName:   share,
		Comment:     tok.context,
		Severity:    tok.severity,
		UserContext: tok.userContext,
	}
}

// baseName returns the last path element for either separator style.
func baseName(path string) string {
	idx := strings.LastIndexAny(path, `\/`)
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// splitSharePath splits a \\host\share UNC path into its host and share
// name. A path without both parts comes back with share empty.
func splitSharePath(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, `\\`)
	parts := strings.SplitN(trimmed, `\`, 2)
	if len(parts) == 2 {
		return parts[0], strings.Trim(parts[1], `\`)
	}
	return trimmed, ""
}
