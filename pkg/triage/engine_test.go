package triage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/caueb/chimas/pkg/types"
)

const suppressRule = `
package chimas.triage

triage[decision] {
	contains(lower(input.finding.full_path), "\\temp\\")
	decision := {
		"suppress": true,
		"reason": "temp directory noise",
	}
}
`

const escalateRule = `
package chimas.triage

triage[decision] {
	input.finding.rule_name == "KeepPassInCode"
	decision := {
		"severity": "Black",
		"triage": "Confirmed",
		"reason": "credential in source",
	}
}
`

func TestEngine_LoadRule(t *testing.T) {
	engine := New()
	ctx := context.Background()

	tmpDir := t.TempDir()
	ruleFile := filepath.Join(tmpDir, "suppress_temp.rego")
	if err := os.WriteFile(ruleFile, []byte(suppressRule), 0644); err != nil {
		t.Fatalf("Failed to create test rule file: %v", err)
	}

	if err := engine.LoadRule(ctx, ruleFile); err != nil {
		t.Errorf("LoadRule() error = %v", err)
	}

	rules := engine.GetLoadedRules()
	if len(rules) != 1 || rules[0] != "suppress_temp" {
		t.Errorf("GetLoadedRules() = %v, expected [suppress_temp]", rules)
	}
}

func TestEngine_LoadRule_Invalid(t *testing.T) {
	engine := New()
	ctx := context.Background()

	if err := engine.LoadRuleSource(ctx, "broken", "this is not rego {"); err == nil {
		t.Error("expected error for invalid rego source")
	}
}

func TestEngine_LoadRulesFromDirectory(t *testing.T) {
	engine := New()
	ctx := context.Background()

	tmpDir := t.TempDir()
	rules := map[string]string{
		"suppress.rego": suppressRule,
		"escalate.rego": escalateRule,
	}
	for name, content := range rules {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write rule: %v", err)
		}
	}

	if err := engine.LoadRulesFromDirectory(ctx, tmpDir); err != nil {
		t.Errorf("LoadRulesFromDirectory() error = %v", err)
	}
	if got := engine.GetLoadedRules(); len(got) != 2 {
		t.Errorf("expected 2 loaded rules, got %v", got)
	}
}

func TestEngine_LoadRulesFromDirectory_Empty(t *testing.T) {
	engine := New()
	if err := engine.LoadRulesFromDirectory(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error for directory with no rules")
	}
}

func TestEngine_Apply_PassThroughWithoutRules(t *testing.T) {
	engine := New()
	in := []types.FileFinding{
		{FullPath: `\\fs01\a.txt`, Severity: types.SeverityRed, RuleName: "RuleA"},
	}

	out, err := engine.Apply(context.Background(), in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(out) != 1 {
		t.Errorf("expected pass-through, got %d findings", len(out))
	}
}

func TestEngine_Apply_Suppress(t *testing.T) {
	engine := New()
	ctx := context.Background()
	if err := engine.LoadRuleSource(ctx, "suppress", suppressRule); err != nil {
		t.Fatalf("LoadRuleSource() error = %v", err)
	}

	in := []types.FileFinding{
		{FullPath: `\\fs01\Temp\scratch.txt`, Severity: types.SeverityYellow, RuleName: "RuleA"},
		{FullPath: `\\fs01\live\web.config`, Severity: types.SeverityRed, RuleName: "RuleB"},
	}

	out, err := engine.Apply(ctx, in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 finding after suppression, got %d", len(out))
	}
	if out[0].RuleName != "RuleB" {
		t.Errorf("wrong finding suppressed: %+v", out[0])
	}
}

// A finding matched by several rules gets every decision, and a
// suppress decision among them wins.
func TestEngine_Apply_MultipleRulesOneFinding(t *testing.T) {
	engine := New()
	ctx := context.Background()
	if err := engine.LoadRuleSource(ctx, "suppress", suppressRule); err != nil {
		t.Fatalf("LoadRuleSource() error = %v", err)
	}
	if err := engine.LoadRuleSource(ctx, "escalate", escalateRule); err != nil {
		t.Fatalf("LoadRuleSource() error = %v", err)
	}

	in := []types.FileFinding{
		{FullPath: `\\fs01\Temp\db.py`, Severity: types.SeverityYellow, RuleName: "KeepPassInCode"},
	}

	out, err := engine.Apply(ctx, in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected suppression to drop the finding, got %d survivors: %+v", len(out), out)
	}
}

func TestEngine_Apply_Overrides(t *testing.T) {
	engine := New()
	ctx := context.Background()
	if err := engine.LoadRuleSource(ctx, "escalate", escalateRule); err != nil {
		t.Fatalf("LoadRuleSource() error = %v", err)
	}

	in := []types.FileFinding{
		{FullPath: `\\fs01\src\db.py`, Severity: types.SeverityYellow, RuleName: "KeepPassInCode"},
	}

	out, err := engine.Apply(ctx, in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(out))
	}
	if out[0].Severity != types.SeverityBlack {
		t.Errorf("Severity = %v, expected escalation to Black", out[0].Severity)
	}
	if out[0].Triage != "Confirmed" {
		t.Errorf("Triage = %q, expected Confirmed", out[0].Triage)
	}
}
