package remediation

import (
	"context"

	"github.com/caueb/chimas/pkg/types"
)

// Suggestion describes how to deal with a class of scanner finding.
type Suggestion struct {
	RuleName    string   `json:"rule_name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps,omitempty"`
	References  []string `json:"references,omitempty"`
}

// Suggester generates remediation suggestions for findings
type Suggester interface {
	// Suggest generates a remediation suggestion for a single finding
	Suggest(ctx context.Context, finding types.FileFinding) (*Suggestion, error)

	// SuggestBatch generates suggestions for multiple findings
	SuggestBatch(ctx context.Context, findings []types.FileFinding) ([]*Suggestion, error)
}
