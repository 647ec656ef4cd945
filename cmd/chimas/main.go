package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caueb/chimas"
	"github.com/caueb/chimas/pkg/analyzer"
	"github.com/caueb/chimas/pkg/config"
	"github.com/caueb/chimas/pkg/errloc"
	"github.com/caueb/chimas/pkg/logger"
	"github.com/caueb/chimas/pkg/remediation"
	"github.com/caueb/chimas/pkg/reporter"
	"github.com/caueb/chimas/pkg/reporter/human"
	jsonreporter "github.com/caueb/chimas/pkg/reporter/json"
	sarifreporter "github.com/caueb/chimas/pkg/reporter/sarif"
	"github.com/caueb/chimas/pkg/triage"
	"github.com/caueb/chimas/pkg/types"
)

var (
	version = "1.0.0"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chimas",
		Short: "Scan output parser and log viewer",
		Long: `Chimas parses the output of file-share secret scans and Group Policy
audits into one normalized view. It reads JSON event logs, flat text/log
captures, and ASCII-table policy reports, deduplicates findings, and
renders them as human-readable, JSON, or SARIF reports.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.AddCommand(
		newParseCmd(),
		newRulesCmd(),
	)

	return rootCmd
}

func newParseCmd() *cobra.Command {
	var (
		configFile         string
		format             string
		output             string
		rulesDir           string
		severityConfigPath string
		minSeverity        string
		noDefaultRules     bool
		failOnFindings     bool
		verbose            bool
	)

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a scan output file",
		Long: `Parse a scan output file and render the normalized findings.
The input format is detected automatically: .json files take the JSON
event-log path, and text/log files are probed for a policy-report
signature before falling back to flat scanner lines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			targetPath := args[0]

			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("format") && cfg.Format != "" {
				format = cfg.Format
			}
			if rulesDir == "" {
				rulesDir = cfg.RulesDir
			}
			if severityConfigPath == "" {
				severityConfigPath = cfg.SeverityOverrides
			}
			if minSeverity == "" {
				minSeverity = cfg.MinSeverity
			}

			log := logger.Default()
			if verbose {
				log.SetLevel(logger.DebugLevel)
			} else if level, err := logger.ParseLevel(cfg.LogLevel); err == nil {
				log.SetLevel(level)
			}

			a := analyzer.New().WithLogger(log)

			engine, err := buildTriageEngine(ctx, rulesDir, noDefaultRules)
			if err != nil {
				return err
			}
			if engine != nil {
				a = a.WithTriager(engine)
			}

			overrides, err := config.LoadOverrides(severityConfigPath)
			if err != nil {
				return err
			}
			a = a.WithOverrides(overrides)

			if minSeverity != "" {
				sev, ok := types.ParseSeverity(minSeverity)
				if !ok {
					return fmt.Errorf("unknown severity: %s", minSeverity)
				}
				a = a.WithMinSeverity(sev)
			}

			result, err := a.AnalyzeFile(ctx, targetPath)
			if err != nil {
				var malformed *errloc.MalformedInputError
				if errors.As(err, &malformed) {
					printDiagnostic(os.Stderr, malformed.Diag)
				}
				return err
			}

			rep, err := buildRegistry(format == "human").Get(format)
			if err != nil {
				return err
			}

			var writer io.Writer = os.Stdout
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				writer = file
			}

			if err := rep.Write(ctx, result, writer); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			if failOnFindings && hasFindings(result) {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to HCL run configuration")
	cmd.Flags().StringVarP(&format, "format", "f", "human", "output format (human, json, sarif)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&rulesDir, "rules", "r", "", "directory of extra triage rules")
	cmd.Flags().StringVar(&severityConfigPath, "severity-config", "", "path to rule severity overrides (JSON or YAML)")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "", "drop file findings below this severity")
	cmd.Flags().BoolVar(&noDefaultRules, "no-default-rules", false, "skip the built-in triage rules")
	cmd.Flags().BoolVar(&failOnFindings, "fail-on-findings", false, "exit with non-zero code when findings remain")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	return cmd
}

// buildTriageEngine loads the embedded rules plus any extra directory.
// Returns nil when every rule source is disabled or absent.
func buildTriageEngine(ctx context.Context, rulesDir string, noDefaults bool) (*triage.Engine, error) {
	engine := triage.New()
	loaded := false

	if !noDefaults {
		sources, err := chimas.GetEmbeddedRules()
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in rules: %w", err)
		}
		for id, src := range sources {
			if err := engine.LoadRuleSource(ctx, id, src); err != nil {
				return nil, fmt.Errorf("failed to load built-in rule %s: %w", id, err)
			}
			loaded = true
		}
	}

	if rulesDir != "" {
		if err := engine.LoadRulesFromDirectory(ctx, rulesDir); err != nil {
			return nil, err
		}
		loaded = true
	}

	if !loaded {
		return nil, nil
	}
	return engine, nil
}

func buildRegistry(withRemediation bool) *reporter.Registry {
	registry := reporter.NewRegistry()
	h := human.New()
	if withRemediation {
		h = h.WithSuggester(remediation.NewBasicSuggester())
	}
	registry.Register(h)
	registry.Register(jsonreporter.New())
	registry.Register(sarifreporter.New())
	return registry
}

// printDiagnostic renders a localized parse error with a line gutter.
func printDiagnostic(w io.Writer, diag *errloc.Diagnostic) {
	if diag == nil || diag.Snippet == "" {
		return
	}
	fmt.Fprintf(w, "\n%s\n\n", diag.Message)
	lineNo := diag.SnippetStartLine
	for _, line := range strings.Split(diag.Snippet, "\n") {
		marker := "  "
		if lineNo == diag.ActualLineNumber {
			marker = "> "
		}
		if lineNo > 0 {
			fmt.Fprintf(w, "%s%4d | %s\n", marker, lineNo, line)
			lineNo++
		} else {
			fmt.Fprintf(w, "%s     | %s\n", marker, line)
		}
	}
	fmt.Fprintln(w)
}

func hasFindings(result *types.Result) bool {
	if result.Scan != nil && len(result.Scan.Files) > 0 {
		return true
	}
	if result.Report != nil && len(result.Report.Findings()) > 0 {
		return true
	}
	return false
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage triage rules",
		Long:  `Manage the rego triage rules applied to merged scan findings.`,
	}

	cmd.AddCommand(
		newRulesValidateCmd(),
		newRulesListCmd(),
	)

	return cmd
}

func newRulesValidateCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate triage rule files",
		Long:  `Validate that triage rule files parse and compile as rego.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rulePath := args[0]

			log := logger.Default()
			if verbose {
				log.SetLevel(logger.DebugLevel)
			}

			info, err := os.Stat(rulePath)
			if err != nil {
				return fmt.Errorf("failed to access rule path: %w", err)
			}

			var ruleFiles []string
			if info.IsDir() {
				err = filepath.Walk(rulePath, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					if !info.IsDir() && strings.HasSuffix(path, ".rego") {
						ruleFiles = append(ruleFiles, path)
					}
					return nil
				})
				if err != nil {
					return fmt.Errorf("failed to walk directory: %w", err)
				}
			} else {
				ruleFiles = []string{rulePath}
			}

			if len(ruleFiles) == 0 {
				return fmt.Errorf("no rule files found in %s", rulePath)
			}

			fmt.Printf("Validating %d rule file(s)...\n\n", len(ruleFiles))

			hasErrors := false
			for _, file := range ruleFiles {
				relPath, _ := filepath.Rel(rulePath, file)
				if relPath == "" || relPath == "." {
					relPath = filepath.Base(file)
				}

				log.Debug("Validating %s", file)

				// Fresh engine per file so one bad rule does not poison
				// the rest of the batch.
				if err := triage.New().LoadRule(ctx, file); err != nil {
					fmt.Printf("❌ %s\n", relPath)
					fmt.Printf("   Error: %v\n\n", err)
					hasErrors = true
				} else {
					fmt.Printf("✅ %s\n", relPath)
				}
			}

			if hasErrors {
				return fmt.Errorf("validation failed: some rules have errors")
			}

			fmt.Printf("\n✅ All rules are valid!\n")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	return cmd
}

func newRulesListCmd() *cobra.Command {
	var rulesDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available triage rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			engine, err := buildTriageEngine(ctx, rulesDir, false)
			if err != nil {
				return err
			}
			if engine == nil {
				fmt.Println("No rules loaded.")
				return nil
			}

			ids := engine.GetLoadedRules()
			sort.Strings(ids)

			fmt.Printf("Available rules (%d):\n\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  • %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rulesDir, "rules", "r", "", "directory of extra triage rules")
	return cmd
}
