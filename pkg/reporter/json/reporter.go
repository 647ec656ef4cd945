package json

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/caueb/chimas/pkg/types"
)

// Reporter implements the reporter.Reporter interface for JSON output
type Reporter struct {
	pretty bool
}

// report is the JSON envelope wrapped around a parsed result.
type report struct {
	ID        string              `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
	Summary   summary             `json:"summary"`
	Scan      *types.ScanResult   `json:"scan,omitempty"`
	Report    *types.PolicyReport `json:"report,omitempty"`
}

type summary struct {
	TotalFiles          int            `json:"total_files"`
	TotalShares         int            `json:"total_shares"`
	TotalPolicies       int            `json:"total_policies"`
	TotalPolicyFindings int            `json:"total_policy_findings"`
	FilesBySeverity     map[string]int `json:"files_by_severity,omitempty"`
	DuplicatesRemoved   int            `json:"duplicates_removed"`
}

// New creates a new JSON reporter
func New() *Reporter {
	return &Reporter{pretty: true}
}

// NewCompact creates a new JSON reporter with compact output
func NewCompact() *Reporter {
	return &Reporter{pretty: false}
}

// Write writes the result to the given writer in JSON format
func (r *Reporter) Write(ctx context.Context, result *types.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if r.pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(r.envelope(result))
}

// Format returns the format this reporter outputs
func (r *Reporter) Format() string {
	return "json"
}

func (r *Reporter) envelope(result *types.Result) *report {
	rep := &report{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Scan:      result.Scan,
		Report:    result.Report,
	}

	if result.Scan != nil {
		bySeverity := make(map[string]int)
		for _, f := range result.Scan.Files {
			bySeverity[string(f.Severity)]++
		}
		rep.Summary.TotalFiles = len(result.Scan.Files)
		rep.Summary.TotalShares = len(result.Scan.Shares)
		rep.Summary.FilesBySeverity = bySeverity
		rep.Summary.DuplicatesRemoved = result.Scan.Stats.DuplicatesRemoved
	}
	if result.Report != nil {
		rep.Summary.TotalPolicies = len(result.Report.Policies)
		rep.Summary.TotalPolicyFindings = len(result.Report.Findings())
	}
	return rep
}
