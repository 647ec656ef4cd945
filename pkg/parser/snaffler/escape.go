package snaffler

import "strings"

// Regex metacharacters that the scanner emits backslash-escaped inside
// match context. Only these are selectively unescaped.
const escapableMeta = `[](){}.*+?^$|#<>`

// DecodeEscapes reverses the scanner's escaping of match-context text.
//
// The input is walked left to right in a single pass so each backslash is
// resolved exactly once: literal \r\n, \n and \r become newlines, \t a
// tab, backslash-space a space, \" a quote, and \\ a backslash that is
// never re-unescaped. A backslash before one of the allow-listed regex
// metacharacters drops the backslash. Any other backslash is kept as-is.
// Blank lines left behind are collapsed and the result trimmed.
func DecodeEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return collapseBlankLines(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			i++
			continue
		}
		rest := s[i+1:]
		switch {
		case strings.HasPrefix(rest, `r\n`):
			b.WriteByte('\n')
			i += 4
		case strings.HasPrefix(rest, "n"):
			b.WriteByte('\n')
			i += 2
		case strings.HasPrefix(rest, "r"):
			b.WriteByte('\n')
			i += 2
		case strings.HasPrefix(rest, "t"):
			b.WriteByte('\t')
			i += 2
		case strings.HasPrefix(rest, " "):
			b.WriteByte(' ')
			i += 2
		case strings.HasPrefix(rest, `"`):
			b.WriteByte('"')
			i += 2
		case strings.HasPrefix(rest, `\`):
			b.WriteByte('\\')
			i += 2
		case rest != "" && strings.IndexByte(escapableMeta, rest[0]) >= 0:
			b.WriteByte(rest[0])
			i += 2
		default:
			// Dangling backslash, pass through.
			b.WriteByte('\\')
			i++
		}
	}

	return collapseBlankLines(b.String())
}

// collapseBlankLines drops empty lines produced by decoding and trims the
// surrounding whitespace.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
