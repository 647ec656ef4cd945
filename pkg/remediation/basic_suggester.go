package remediation

import (
	"context"
	"strings"

	"github.com/caueb/chimas/pkg/types"
)

// BasicSuggester maps scanner rule-name families to canned remediation
// advice. Matching is substring based because scanner rule names encode
// their family ("KeepPassOrKeyInCode", "KeepConfigRegexRed", ...).
type BasicSuggester struct {
	templates []suggestionTemplate
}

type suggestionTemplate struct {
	match       []string
	description string
	steps       []string
	references  []string
}

// NewBasicSuggester creates a new basic suggester
func NewBasicSuggester() *BasicSuggester {
	return &BasicSuggester{templates: defaultTemplates()}
}

// Suggest generates a remediation suggestion for a single finding
func (s *BasicSuggester) Suggest(ctx context.Context, finding types.FileFinding) (*Suggestion, error) {
	for _, tpl := range s.templates {
		for _, needle := range tpl.match {
			if strings.Contains(strings.ToLower(finding.RuleName), needle) {
				return &Suggestion{
					RuleName:    finding.RuleName,
					Description: tpl.description,
					Steps:       tpl.steps,
					References:  tpl.references,
				}, nil
			}
		}
	}
	return s.genericSuggestion(finding), nil
}

// SuggestBatch generates suggestions for multiple findings
func (s *BasicSuggester) SuggestBatch(ctx context.Context, findings []types.FileFinding) ([]*Suggestion, error) {
	suggestions := make([]*Suggestion, 0, len(findings))
	for _, f := range findings {
		suggestion, err := s.Suggest(ctx, f)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, nil
}

func (s *BasicSuggester) genericSuggestion(finding types.FileFinding) *Suggestion {
	return &Suggestion{
		RuleName:    finding.RuleName,
		Description: "Review the flagged content and remove or restrict it if it is sensitive",
		Steps: []string{
			"Confirm whether the matched content is a real secret or a false positive",
			"If real, remove the file from the share or tighten its ACL",
			"Rotate any credential that may have been exposed",
		},
	}
}

func defaultTemplates() []suggestionTemplate {
	return []suggestionTemplate{
		{
			match:       []string{"pass", "credential", "cred"},
			description: "A password or credential appears to be stored in a readable file",
			steps: []string{
				"Rotate the exposed credential immediately",
				"Move the secret into a vault or managed identity",
				"Remove the plaintext copy and purge file history where applicable",
			},
			references: []string{"https://attack.mitre.org/techniques/T1552/001/"},
		},
		{
			match:       []string{"key", "pem", "ppk"},
			description: "A private key material file is readable from the share",
			steps: []string{
				"Treat the key as compromised and reissue it",
				"Restrict the containing directory to the owning service account",
			},
			references: []string{"https://attack.mitre.org/techniques/T1552/004/"},
		},
		{
			match:       []string{"config"},
			description: "A configuration file with embedded secrets is exposed",
			steps: []string{
				"Split secrets out of the configuration into environment-specific stores",
				"Tighten the share ACL so only the deploying principal can read it",
			},
		},
		{
			match:       []string{"kdbx", "keepass", "vault"},
			description: "A password database file is reachable from the share",
			steps: []string{
				"Move the database off the general-purpose share",
				"Verify the master passphrase has not been stored alongside it",
			},
		},
	}
}
