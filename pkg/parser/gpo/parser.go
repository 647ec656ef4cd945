package gpo

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/caueb/chimas/pkg/logger"
	"github.com/caueb/chimas/pkg/parser"
	"github.com/caueb/chimas/pkg/types"
)

var (
	settingScopeRe = regexp.MustCompile(`^Setting\s*-\s*(.+)$`)
	// Composite header value: "name {GUID} status".
	gpoHeaderRe = regexp.MustCompile(`^(.*?)\s*\{([0-9A-Fa-f][0-9A-Fa-f-]*)\}\s*(.*)$`)
	finishTimeRe     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(?::\d{2})?Z?`)
	finishDurationRe = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:hours?|minutes?|seconds?|ms|[hms])(?:\s*\d+(?:\.\d+)?\s*(?:minutes?|seconds?|[ms]))*`)
)

// finishLookahead is how many lines after a [Finish] marker are probed
// for a completion timestamp and duration.
const finishLookahead = 5

// Parser is a line-oriented, two-level structural parser for the
// plaintext policy-audit report dialect.
type Parser struct {
	log *logger.Logger
}

// New creates a new policy-report parser
func New() *Parser {
	return &Parser{log: logger.Default()}
}

// WithLogger sets a custom logger for the parser
func (p *Parser) WithLogger(log *logger.Logger) *Parser {
	p.log = log
	return p
}

// Parse builds a policy report from the raw text. It has no failure mode
// by design: a document with no recognized sections yields a valid empty
// report, and routing mistakes are the sniffer's problem.
func (p *Parser) Parse(input string) *types.PolicyReport {
	report := &types.PolicyReport{Raw: input}
	lines := splitLines(input)

	p.collectInfoLog(report, lines)

	for i := 0; i < len(lines); {
		if !isSectionStart(lines, i) {
			i++
			continue
		}
		policy, next := p.parseSection(lines, i)
		report.Policies = append(report.Policies, *policy)
		i = next
	}

	return report
}

// collectInfoLog gathers [Info] and [Finish] marker lines anywhere in the
// document. A [Finish] line triggers a short lookahead for a completion
// timestamp and duration; absence of either is not an error.
func (p *Parser) collectInfoLog(report *types.PolicyReport, lines []string) {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		isInfo := strings.Contains(trimmed, parser.MarkerInfo)
		isFinish := strings.Contains(trimmed, parser.MarkerFinish)
		if !isInfo && !isFinish {
			continue
		}
		report.InfoLog = append(report.InfoLog, trimmed)
		if !isFinish {
			continue
		}

		end := i + 1 + finishLookahead
		if end > len(lines) {
			end = len(lines)
		}
		window := strings.Join(lines[i:end], "\n")
		if report.CompletedAt == "" {
			report.CompletedAt = finishTimeRe.FindString(window)
		}
		if report.Duration == "" {
			report.Duration = strings.TrimSpace(finishDurationRe.FindString(window))
		}
	}
}

// isSectionStart reports whether lines[i] opens a policy section: a [GPO]
// marker line immediately followed by a table row whose first cell
// contains the word GPO. The marker alone is not enough; it also shows up
// in free text.
func isSectionStart(lines []string, i int) bool {
	if !strings.Contains(strings.TrimSpace(lines[i]), parser.MarkerGPO) {
		return false
	}
	if i+1 >= len(lines) || !isTableRow(lines[i+1]) {
		return false
	}
	cells := rowCells(lines[i+1])
	return len(cells) > 0 && strings.Contains(cells[0], "GPO")
}

// parseSection consumes one [GPO] section: the contiguous header table,
// then setting blocks until the next section start. It returns the policy
// and the first unconsumed line index.
func (p *Parser) parseSection(lines []string, start int) (*types.Policy, int) {
	policy := &types.Policy{Extra: map[string]string{}}

	pos := start + 1
	for pos < len(lines) && isTableRow(lines[pos]) {
		if !isSeparatorRow(lines[pos]) {
			cells := rowCells(lines[pos])
			p.applyHeaderField(policy, cells[0], joinCells(cells[1:]))
		}
		pos++
	}

	for pos < len(lines) {
		if isSectionStart(lines, pos) {
			break
		}
		trimmed := strings.TrimSpace(lines[pos])
		if strings.HasPrefix(trimmed, parser.FenceToken) || isSettingRow(lines[pos]) {
			block, next := p.parseBlock(lines, pos)
			if next == pos {
				pos++
				continue
			}
			pos = next
			if block != nil {
				policy.Blocks = append(policy.Blocks, *block)
				policy.Findings = append(policy.Findings, block.Findings...)
			}
			continue
		}
		pos++
	}

	if len(policy.Extra) == 0 {
		policy.Extra = nil
	}
	p.log.Debug("parsed section %q: %d blocks, %d findings", policy.Name, len(policy.Blocks), len(policy.Findings))
	return policy, pos
}

// applyHeaderField routes one header row into the policy. Recognized keys
// match case-insensitively by prefix; link keys accumulate instead of
// overwriting; everything else lands in Extra verbatim.
func (p *Parser) applyHeaderField(policy *types.Policy, key, value string) {
	lower := strings.ToLower(key)
	switch {
	case strings.HasPrefix(lower, "gpo"):
		if m := gpoHeaderRe.FindStringSubmatch(value); m != nil {
			policy.Name = strings.TrimSpace(m[1])
			policy.GUID = m[2]
			policy.Status = strings.TrimSpace(m[3])
		} else {
			policy.Name = value
		}
	case strings.HasPrefix(lower, "link"):
		policy.Links = append(policy.Links, value)
	case strings.HasPrefix(lower, "date created"), strings.HasPrefix(lower, "created"):
		policy.Created = value
	case strings.HasPrefix(lower, "date modified"), strings.HasPrefix(lower, "modified"):
		policy.Modified = value
	case strings.HasPrefix(lower, "path"):
		policy.Path = value
	case strings.HasPrefix(lower, "computer policy"):
		policy.ComputerPolicy = value
	case strings.HasPrefix(lower, "user policy"):
		policy.UserPolicy = value
	default:
		policy.Extra[key] = value
	}
}

// parseBlock consumes one setting block starting at a fence line or a
// "Setting - <scope>" table row. The body runs up to (exclusive) the next
// fence, the next section start, or the first blank line once at least
// one row has been consumed. Nested sub-tables follow the body rows.
func (p *Parser) parseBlock(lines []string, start int) (*types.SettingBlock, int) {
	block := &types.SettingBlock{Settings: map[string]string{}}
	baseIndent := indentWidth(lines[start])

	pos := start
	if strings.HasPrefix(strings.TrimSpace(lines[pos]), parser.FenceToken) {
		block.Raw = append(block.Raw, lines[pos])
		pos++
	}

	var rows [][]string
	for pos < len(lines) {
		line := lines[pos]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(rows) > 0 {
				break
			}
			pos++
			continue
		}
		if strings.HasPrefix(trimmed, parser.FenceToken) || isSectionStart(lines, pos) || !isTableRow(line) {
			break
		}
		block.Raw = append(block.Raw, line)
		if !isSeparatorRow(line) {
			rows = append(rows, rowCells(line))
		}
		pos++
	}

	if len(rows) > 0 {
		if m := settingScopeRe.FindStringSubmatch(rows[0][0]); m != nil {
			block.Scope = strings.TrimSpace(m[1])
			if len(rows[0]) > 1 {
				block.Category = rows[0][1]
			}
			rows = rows[1:]
		}
	}
	coalesceRows(block.Settings, rows)

	for pos < len(lines) {
		trimmed := strings.TrimSpace(lines[pos])
		if !strings.HasPrefix(trimmed, parser.FenceToken) || indentWidth(lines[pos]) <= baseIndent {
			break
		}
		subRows, raw, next, ok := collectSubTable(lines, pos)
		if !ok {
			break
		}
		block.Raw = append(block.Raw, raw...)
		pos = next
		if len(subRows) > 0 && strings.EqualFold(strings.TrimSpace(subRows[0][0]), "Finding") {
			block.Findings = append(block.Findings, buildFinding(subRows))
		} else {
			coalesceRows(block.Settings, subRows)
		}
	}

	if block.Scope == "" && block.Category == "" && len(block.Settings) == 0 && len(block.Findings) == 0 {
		// Dangling fence with no table behind it.
		return nil, pos
	}
	if len(block.Settings) == 0 {
		block.Settings = nil
	}
	return block, pos
}

// collectSubTable consumes a nested fence plus its deeper-indented table
// rows. ok is false when the fence is not followed by the expected table,
// which terminates sub-block recursion.
func collectSubTable(lines []string, fencePos int) ([][]string, []string, int, bool) {
	fenceIndent := indentWidth(lines[fencePos])
	pos := fencePos + 1
	if pos >= len(lines) || !isTableRow(lines[pos]) || indentWidth(lines[pos]) < fenceIndent {
		return nil, nil, fencePos, false
	}

	raw := []string{lines[fencePos]}
	var rows [][]string
	for pos < len(lines) {
		line := lines[pos]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, parser.FenceToken) || !isTableRow(line) {
			break
		}
		if indentWidth(line) < fenceIndent {
			break
		}
		raw = append(raw, line)
		if !isSeparatorRow(line) {
			rows = append(rows, rowCells(line))
		}
		pos++
	}
	return rows, raw, pos, true
}

// coalesceRows folds table rows into the settings map. Rows with an empty
// first cell continue the previous key's value; repeated keys merge with
// the same heuristic, except Member which always stacks as a list.
func coalesceRows(settings map[string]string, rows [][]string) {
	var lastKey string
	for _, cells := range rows {
		key := cells[0]
		value := joinCells(cells[1:])
		if key == "" {
			if lastKey == "" {
				continue
			}
			settings[lastKey] = joinContinuation(settings[lastKey], value)
			continue
		}
		if existing, ok := settings[key]; ok {
			if key == "Member" {
				settings[key] = existing + "\n" + value
			} else {
				settings[key] = joinContinuation(existing, value)
			}
		} else {
			settings[key] = value
		}
		lastKey = key
	}
}

// joinContinuation repairs word-wrapped values: a fragment beginning with
// a word or path constituent continues the previous line, anything else
// starts a new logical line.
func joinContinuation(prev, next string) string {
	if next == "" {
		return prev
	}
	if prev == "" {
		return next
	}
	r, _ := utf8.DecodeRuneInString(next)
	if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(`(\/_.`, r) {
		return prev + " " + next
	}
	return prev + "\n" + next
}

// buildFinding turns a Finding sub-table into a record. The header row's
// second cell carries the severity, falling back to a Finding/Type key in
// the body when absent.
func buildFinding(rows [][]string) types.Finding {
	f := types.Finding{Fields: map[string]string{}}

	header := rows[0]
	if len(header) > 1 {
		if sev, ok := types.ParseSeverity(strings.TrimSpace(header[1])); ok {
			f.Severity = sev
		}
	}

	for _, cells := range rows[1:] {
		key := cells[0]
		value := joinCells(cells[1:])
		switch strings.ToLower(key) {
		case "":
			f.Reason = joinContinuation(f.Reason, value)
		case "reason":
			f.Reason = joinContinuation(f.Reason, value)
		case "detail":
			f.Detail = joinContinuation(f.Detail, value)
		case "finding", "type":
			if f.Severity == "" {
				if sev, ok := types.ParseSeverity(value); ok {
					f.Severity = sev
					continue
				}
			}
			f.Fields[key] = value
		default:
			f.Fields[key] = value
		}
	}

	if len(f.Fields) == 0 {
		f.Fields = nil
	}
	return f
}

// Table row helpers. A row is a table row iff, after trimming, it starts
// and ends with a pipe; separator rows of only dashes are dropped.

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) >= 2 && strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|")
}

func isSeparatorRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.Trim(trimmed, "|")
	trimmed = strings.ReplaceAll(trimmed, "-", "")
	trimmed = strings.ReplaceAll(trimmed, " ", "")
	return trimmed == ""
}

func isSettingRow(line string) bool {
	if !isTableRow(line) {
		return false
	}
	cells := rowCells(line)
	return len(cells) > 0 && settingScopeRe.MatchString(cells[0])
}

func rowCells(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, part := range parts {
		cells[i] = strings.TrimSpace(part)
	}
	return cells
}

func joinCells(cells []string) string {
	return strings.Join(cells, " | ")
}

func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}

func splitLines(input string) []string {
	lines := strings.Split(input, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
