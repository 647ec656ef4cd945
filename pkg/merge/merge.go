package merge

import (
	"github.com/caueb/chimas/pkg/types"
)

// findingKey is the pre-merge identity of a file finding.
type findingKey struct {
	path     string
	severity types.Severity
	rule     string
}

// Merge collapses duplicate and conflicting file findings into one
// canonical record per path. Pass 1 drops exact duplicates on
// (path, severity, rule), first occurrence winning. Pass 2 collapses by
// path: a higher-ranked severity replaces the kept record outright, an
// equal-ranked record with a different rule appends its rule name, and
// anything else is dropped. Running Merge on its own output is a no-op.
//
// Shares are never merged; only file findings pass through here.
func Merge(findings []types.FileFinding) ([]types.FileFinding, types.DuplicateStats) {
	seen := make(map[findingKey]struct{}, len(findings))
	deduped := make([]types.FileFinding, 0, len(findings))
	for _, f := range findings {
		key := findingKey{path: f.FullPath, severity: f.Severity, rule: f.RuleName}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, f)
	}

	byPath := make(map[string]int, len(deduped))
	merged := make([]types.FileFinding, 0, len(deduped))
	for _, f := range deduped {
		idx, exists := byPath[f.FullPath]
		if !exists {
			byPath[f.FullPath] = len(merged)
			merged = append(merged, f)
			continue
		}
		kept := &merged[idx]
		switch {
		case f.Severity.Rank() > kept.Severity.Rank():
			*kept = f
		case f.Severity.Rank() == kept.Severity.Rank() && f.RuleName != kept.RuleName:
			kept.RuleName = kept.RuleName + ", " + f.RuleName
		}
	}

	stats := types.DuplicateStats{
		OriginalCount:     len(findings),
		FinalCount:        len(merged),
		DuplicatesRemoved: len(findings) - len(merged),
	}
	if stats.OriginalCount > 0 {
		stats.DuplicatePercentage = float64(stats.DuplicatesRemoved) / float64(stats.OriginalCount) * 100
	}
	return merged, stats
}
