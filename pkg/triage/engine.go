package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"

	"github.com/caueb/chimas/pkg/types"
)

// Triager applies triage rules to merged file findings.
type Triager interface {
	// Apply evaluates each finding against the loaded rules and returns
	// the adjusted set. With no rules loaded the findings pass through
	// unchanged.
	Apply(ctx context.Context, findings []types.FileFinding) ([]types.FileFinding, error)

	// LoadRule loads a rule file from the given path
	LoadRule(ctx context.Context, path string) error

	// LoadRulesFromDirectory loads all rule files from a directory
	LoadRulesFromDirectory(ctx context.Context, dirPath string) error

	// GetLoadedRules returns the IDs of all loaded rules
	GetLoadedRules() []string
}

// Engine evaluates findings against rego triage rules. Rules declare
// `package chimas.triage` and contribute to a partial set named
// `triage`, so decisions are read from data.chimas.triage.triage.
// A decision object may relabel a finding's triage, override its
// severity, or suppress it entirely.
type Engine struct {
	compiler *ast.Compiler
	store    storage.Store
	rules    map[string]*ast.Module
}

// decision mirrors the objects produced by triage rules.
type decision struct {
	Suppress bool
	Triage   string
	Severity string
	Reason   string
}

// New creates a new triage engine
func New() *Engine {
	return &Engine{
		store: inmem.New(),
		rules: make(map[string]*ast.Module),
	}
}

// Apply evaluates each finding against the loaded rules. Findings a rule
// suppresses are dropped; triage/severity overrides are applied in rule
// result order.
func (e *Engine) Apply(ctx context.Context, findings []types.FileFinding) ([]types.FileFinding, error) {
	if e.compiler == nil {
		return findings, nil
	}

	out := make([]types.FileFinding, 0, len(findings))
	for _, f := range findings {
		decisions, err := e.evaluate(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to triage finding %s: %w", f.FullPath, err)
		}

		suppressed := false
		for _, d := range decisions {
			if d.Suppress {
				suppressed = true
				break
			}
			if d.Triage != "" {
				f.Triage = d.Triage
			}
			if d.Severity != "" {
				if sev, ok := types.ParseSeverity(d.Severity); ok {
					f.Severity = sev
				}
			}
		}
		if !suppressed {
			out = append(out, f)
		}
	}
	return out, nil
}

// evaluate runs the triage query for one finding.
func (e *Engine) evaluate(ctx context.Context, finding types.FileFinding) ([]decision, error) {
	input, err := findingInput(finding)
	if err != nil {
		return nil, err
	}

	r := rego.New(
		rego.Query("data.chimas.triage.triage[x]"),
		rego.Compiler(e.compiler),
		rego.Input(input),
		rego.Store(e.store),
	)

	rs, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate rego: %w", err)
	}

	var decisions []decision
	for _, result := range rs {
		for _, expr := range result.Expressions {
			m, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			var d decision
			if v, ok := m["suppress"].(bool); ok {
				d.Suppress = v
			}
			if v, ok := m["triage"].(string); ok {
				d.Triage = v
			}
			if v, ok := m["severity"].(string); ok {
				d.Severity = v
			}
			if v, ok := m["reason"].(string); ok {
				d.Reason = v
			}
			decisions = append(decisions, d)
		}
	}
	return decisions, nil
}

// findingInput shapes a finding for rego evaluation via a JSON
// round-trip, so rules see the same field names as the JSON export.
func findingInput(finding types.FileFinding) (map[string]interface{}, error) {
	raw, err := json.Marshal(finding)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return map[string]interface{}{"finding": m}, nil
}

// LoadRule loads a rule file from the given path
func (e *Engine) LoadRule(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rule file: %w", err)
	}
	ruleID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return e.LoadRuleSource(ctx, ruleID, string(content))
}

// LoadRuleSource loads a rule from in-memory rego source, used for the
// embedded default rules.
func (e *Engine) LoadRuleSource(ctx context.Context, ruleID, source string) error {
	module, err := ast.ParseModule(ruleID, source)
	if err != nil {
		return fmt.Errorf("failed to parse rule: %w", err)
	}
	e.rules[ruleID] = module
	return e.compile()
}

// LoadRulesFromDirectory loads all .rego files from a directory
func (e *Engine) LoadRulesFromDirectory(ctx context.Context, dirPath string) error {
	files, err := filepath.Glob(filepath.Join(dirPath, "*.rego"))
	if err != nil {
		return fmt.Errorf("failed to list rule files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no rule files found in %s", dirPath)
	}
	for _, file := range files {
		if err := e.LoadRule(ctx, file); err != nil {
			return fmt.Errorf("failed to load rule %s: %w", file, err)
		}
	}
	return nil
}

// GetLoadedRules returns the IDs of all loaded rules
func (e *Engine) GetLoadedRules() []string {
	rules := make([]string, 0, len(e.rules))
	for id := range e.rules {
		rules = append(rules, id)
	}
	return rules
}

// compile compiles all loaded rules
func (e *Engine) compile() error {
	if len(e.rules) == 0 {
		return fmt.Errorf("no rules to compile")
	}

	compiler := ast.NewCompiler()
	compiler.Compile(e.rules)
	if compiler.Failed() {
		return fmt.Errorf("failed to compile rules: %v", compiler.Errors)
	}

	e.compiler = compiler
	return nil
}
