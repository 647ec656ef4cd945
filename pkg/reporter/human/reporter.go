package human

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caueb/chimas/pkg/remediation"
	"github.com/caueb/chimas/pkg/types"
)

// Reporter implements the reporter.Reporter interface for terminal output
type Reporter struct {
	suggester remediation.Suggester
}

// New creates a new human-readable reporter
func New() *Reporter {
	return &Reporter{}
}

// WithSuggester attaches a remediation suggester. When set, file findings
// gain a "Fix:" line.
func (r *Reporter) WithSuggester(s remediation.Suggester) *Reporter {
	r.suggester = s
	return r
}

// Write writes the result to the given writer in human-readable format
func (r *Reporter) Write(ctx context.Context, result *types.Result, writer io.Writer) error {
	fmt.Fprintf(writer, "\n%s\n", strings.Repeat("=", 80))
	fmt.Fprintf(writer, "Chimas Scan Report\n")
	fmt.Fprintf(writer, "Generated: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(writer, "%s\n\n", strings.Repeat("=", 80))

	if result.Scan != nil {
		if err := r.writeScan(ctx, result.Scan, writer); err != nil {
			return err
		}
	}
	if result.Report != nil {
		r.writeReport(result.Report, writer)
	}

	fmt.Fprintf(writer, "%s\n", strings.Repeat("=", 80))
	return nil
}

// Format returns the format this reporter outputs
func (r *Reporter) Format() string {
	return "human"
}

func (r *Reporter) writeScan(ctx context.Context, scan *types.ScanResult, writer io.Writer) error {
	fmt.Fprintf(writer, "SUMMARY\n")
	fmt.Fprintf(writer, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(writer, "Files Flagged:      %d\n", len(scan.Files))
	fmt.Fprintf(writer, "Shares Found:       %d\n", len(scan.Shares))
	fmt.Fprintf(writer, "Duplicates Removed: %d (%.1f%%)\n\n",
		scan.Stats.DuplicatesRemoved, scan.Stats.DuplicatePercentage)

	bySeverity := make(map[types.Severity][]types.FileFinding)
	for _, f := range scan.Files {
		bySeverity[f.Severity] = append(bySeverity[f.Severity], f)
	}

	if len(scan.Files) > 0 {
		fmt.Fprintf(writer, "Files by Severity:\n")
		for _, sev := range types.Severities {
			if n := len(bySeverity[sev]); n > 0 {
				fmt.Fprintf(writer, "  %-8s %d\n", strings.ToUpper(string(sev))+":", n)
			}
		}
		fmt.Fprintln(writer)
	}

	for _, sev := range types.Severities {
		findings := bySeverity[sev]
		if len(findings) == 0 {
			continue
		}
		fmt.Fprintf(writer, "[%s]\n", strings.ToUpper(string(sev)))
		for i, f := range findings {
			if err := r.writeFileFinding(ctx, writer, f, i+1); err != nil {
				return err
			}
		}
		fmt.Fprintln(writer)
	}

	if len(scan.Shares) > 0 {
		fmt.Fprintf(writer, "SHARES\n")
		fmt.Fprintf(writer, "%s\n", strings.Repeat("-", 40))
		for _, s := range scan.Shares {
			r.writeShareFinding(writer, s)
		}
		fmt.Fprintln(writer)
	}
	return nil
}

// writeFileFinding writes a single file finding in human-readable format
func (r *Reporter) writeFileFinding(ctx context.Context, writer io.Writer, f types.FileFinding, index int) error {
	fmt.Fprintf(writer, "\n%d. %s\n", index, f.FullPath)
	fmt.Fprintf(writer, "   Rule:     %s\n", f.RuleName)
	if f.Size != "" {
		fmt.Fprintf(writer, "   Size:     %s\n", f.Size)
	}
	if f.LastModified != "" {
		fmt.Fprintf(writer, "   Modified: %s\n", f.LastModified)
	}
	if f.Triage != "" {
		fmt.Fprintf(writer, "   Triage:   %s\n", f.Triage)
	}
	if f.MatchContext != "" {
		fmt.Fprintf(writer, "   Context:  %s\n", firstLine(f.MatchContext))
	}

	if r.suggester != nil {
		suggestion, err := r.suggester.Suggest(ctx, f)
		if err != nil {
			return err
		}
		if suggestion != nil && suggestion.Description != "" {
			fmt.Fprintf(writer, "   Fix:      %s\n", suggestion.Description)
		}
	}
	return nil
}

func (r *Reporter) writeShareFinding(writer io.Writer, s types.ShareFinding) {
	access := make([]string, 0, 4)
	if s.RootReadable {
		access = append(access, "read")
	}
	if s.RootWritable {
		access = append(access, "write")
	}
	if s.RootModifyable {
		access = append(access, "modify")
	}
	if s.RootExecutable {
		access = append(access, "execute")
	}
	fmt.Fprintf(writer, "\n  \\\\%s\\%s\n", s.SystemID, s.ShareName)
	if s.Comment != "" {
		fmt.Fprintf(writer, "    Comment: %s\n", s.Comment)
	}
	if len(access) > 0 {
		fmt.Fprintf(writer, "    Access:  %s\n", strings.Join(access, ", "))
	}
}

func (r *Reporter) writeReport(report *types.PolicyReport, writer io.Writer) {
	fmt.Fprintf(writer, "POLICY REPORT\n")
	fmt.Fprintf(writer, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(writer, "Policies: %d\n", len(report.Policies))
	fmt.Fprintf(writer, "Findings: %d\n", len(report.Findings()))
	if report.CompletedAt != "" {
		fmt.Fprintf(writer, "Completed: %s\n", report.CompletedAt)
	}
	if report.Duration != "" {
		fmt.Fprintf(writer, "Duration:  %s\n", report.Duration)
	}
	fmt.Fprintln(writer)

	for _, p := range report.Policies {
		fmt.Fprintf(writer, "%s", p.Name)
		if p.GUID != "" {
			fmt.Fprintf(writer, " {%s}", p.GUID)
		}
		if p.Status != "" {
			fmt.Fprintf(writer, " (%s)", p.Status)
		}
		fmt.Fprintln(writer)

		for _, link := range p.Links {
			fmt.Fprintf(writer, "  Link: %s\n", link)
		}
		for _, b := range p.Blocks {
			label := b.Category
			if b.Scope != "" {
				label = b.Scope + " / " + label
			}
			fmt.Fprintf(writer, "  %s\n", label)
			for _, f := range b.Findings {
				fmt.Fprintf(writer, "    [%s] %s\n", strings.ToUpper(string(f.Severity)), f.Reason)
				if f.Detail != "" {
					fmt.Fprintf(writer, "          %s\n", f.Detail)
				}
			}
		}
		fmt.Fprintln(writer)
	}
}

// firstLine truncates multi-line match context for the one-line view.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
