package analyzer

import (
	"context"
	"os"

	"github.com/caueb/chimas/pkg/config"
	"github.com/caueb/chimas/pkg/errloc"
	"github.com/caueb/chimas/pkg/logger"
	"github.com/caueb/chimas/pkg/merge"
	"github.com/caueb/chimas/pkg/parser"
	"github.com/caueb/chimas/pkg/parser/gpo"
	"github.com/caueb/chimas/pkg/parser/snaffler"
	"github.com/caueb/chimas/pkg/triage"
	"github.com/caueb/chimas/pkg/types"
)

// Analyzer coordinates the parse workflow: sniff the input, extract raw
// records through the matching pipeline, apply severity overrides, merge
// duplicates, then triage.
type Analyzer struct {
	extractor *snaffler.Extractor
	gpoParser *gpo.Parser
	triager   triage.Triager
	overrides *config.OverrideConfig
	minSev    types.Severity
	log       *logger.Logger
}

// New creates a new analyzer instance
func New() *Analyzer {
	log := logger.Default()
	return &Analyzer{
		extractor: snaffler.New().WithLogger(log),
		gpoParser: gpo.New().WithLogger(log),
		log:       log,
	}
}

// WithLogger sets a custom logger for the analyzer and its parsers.
func (a *Analyzer) WithLogger(log *logger.Logger) *Analyzer {
	a.log = log
	a.extractor = a.extractor.WithLogger(log)
	a.gpoParser = a.gpoParser.WithLogger(log)
	return a
}

// WithTriager attaches a triage engine, run after the merge pass.
func (a *Analyzer) WithTriager(t triage.Triager) *Analyzer {
	a.triager = t
	return a
}

// WithOverrides attaches a severity override table, applied before the
// merge pass so merging sees the corrected ranks.
func (a *Analyzer) WithOverrides(o *config.OverrideConfig) *Analyzer {
	a.overrides = o
	return a
}

// WithMinSeverity drops file findings ranked below the given severity.
func (a *Analyzer) WithMinSeverity(sev types.Severity) *Analyzer {
	a.minSev = sev
	return a
}

// AnalyzeFile reads and parses a single scan output file.
func (a *Analyzer) AnalyzeFile(ctx context.Context, filePath string) (*types.Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, filePath, string(data))
}

// Analyze parses scan output that is already in memory. The path only
// decides the input category; it is never reopened.
func (a *Analyzer) Analyze(ctx context.Context, path, input string) (*types.Result, error) {
	category := parser.CategoryFromPath(path)

	switch parser.Detect(category, input) {
	case parser.KindScanJSON:
		return a.analyzeScanJSON(ctx, category, input)
	case parser.KindPolicyReport:
		return a.analyzePolicyReport(category, input)
	default:
		return a.analyzeScanText(ctx, category, input)
	}
}

func (a *Analyzer) analyzeScanJSON(ctx context.Context, category parser.Category, input string) (*types.Result, error) {
	files, shares, err := a.extractor.ExtractJSON(input)
	if err != nil {
		return nil, &errloc.MalformedInputError{Diag: errloc.Localize(err.Error(), input)}
	}
	return a.finishScan(ctx, category, files, shares)
}

func (a *Analyzer) analyzeScanText(ctx context.Context, category parser.Category, input string) (*types.Result, error) {
	files, shares := a.extractor.ExtractText(input)
	return a.finishScan(ctx, category, files, shares)
}

func (a *Analyzer) analyzePolicyReport(category parser.Category, input string) (*types.Result, error) {
	report := a.gpoParser.Parse(input)
	if len(report.Policies) == 0 && len(report.InfoLog) == 0 {
		return nil, &errloc.EmptyOrInvalidInputError{Category: string(category)}
	}
	return &types.Result{Report: report}, nil
}

// finishScan runs the post-extraction passes shared by both scanner paths.
func (a *Analyzer) finishScan(ctx context.Context, category parser.Category, files []types.FileFinding, shares []types.ShareFinding) (*types.Result, error) {
	if len(files) == 0 && len(shares) == 0 {
		return nil, &errloc.EmptyOrInvalidInputError{Category: string(category)}
	}

	if a.overrides != nil {
		files = a.overrides.Apply(files)
	}

	merged, stats := merge.Merge(files)
	a.log.Debug("merge removed %d of %d findings", stats.DuplicatesRemoved, stats.OriginalCount)

	if a.triager != nil {
		triaged, err := a.triager.Apply(ctx, merged)
		if err != nil {
			return nil, err
		}
		merged = triaged
	}

	if a.minSev != "" {
		merged = filterBySeverity(merged, a.minSev)
	}

	return &types.Result{
		Scan: &types.ScanResult{
			Files:  merged,
			Shares: shares,
			Stats:  stats,
		},
	}, nil
}

func filterBySeverity(findings []types.FileFinding, min types.Severity) []types.FileFinding {
	out := make([]types.FileFinding, 0, len(findings))
	for _, f := range findings {
		if f.Severity.Rank() >= min.Rank() {
			out = append(out, f)
		}
	}
	return out
}
