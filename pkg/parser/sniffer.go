package parser

import "strings"

// Kind identifies which parser pipeline handles an input.
type Kind int

const (
	// KindScanJSON routes to the scanner extractor's JSON event-log path.
	KindScanJSON Kind = iota
	// KindScanText routes to the scanner extractor's flat text/log path.
	KindScanText
	// KindPolicyReport routes to the policy-report parser.
	KindPolicyReport
)

// Detect decides which pipeline applies to the input. JSON inputs always
// take the scanner path; policy reports are never JSON-encoded. For text
// and log inputs the raw text is probed for a policy-report signature.
func Detect(category Category, input string) Kind {
	if category == CategoryJSON {
		return KindScanJSON
	}
	if hasPolicySignature(input) {
		return KindPolicyReport
	}
	return KindScanText
}

// hasPolicySignature reports whether the text carries a [GPO] marker and
// at least one table row or block fence.
func hasPolicySignature(input string) bool {
	if !strings.Contains(input, MarkerGPO) {
		return false
	}
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") || strings.HasPrefix(trimmed, FenceToken) {
			return true
		}
	}
	return false
}
