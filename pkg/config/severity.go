package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caueb/chimas/pkg/types"
)

// OverrideConfig maps scanner rule names to replacement severities. It is
// applied before the merge pass so merging sees the corrected ranks.
type OverrideConfig struct {
	Description string            `json:"description" yaml:"description"`
	Rules       map[string]string `json:"rules" yaml:"rules"`
}

// LoadOverrides loads a severity override configuration from a JSON or
// YAML file, chosen by extension. An empty path yields an empty config.
func LoadOverrides(path string) (*OverrideConfig, error) {
	if path == "" {
		return &OverrideConfig{Rules: make(map[string]string)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read severity configuration: %w", err)
	}

	cfg := &OverrideConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse severity configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid severity configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every override names a known severity.
func (c *OverrideConfig) Validate() error {
	for rule, label := range c.Rules {
		if _, ok := types.ParseSeverity(label); !ok {
			return fmt.Errorf("invalid severity '%s' for rule '%s'", label, rule)
		}
	}
	return nil
}

// Apply rewrites the severity of findings whose rule name has an
// override. Findings without an override pass through untouched.
func (c *OverrideConfig) Apply(findings []types.FileFinding) []types.FileFinding {
	if len(c.Rules) == 0 {
		return findings
	}
	out := make([]types.FileFinding, len(findings))
	copy(out, findings)
	for i := range out {
		if label, ok := c.Rules[out[i].RuleName]; ok {
			if sev, known := types.ParseSeverity(label); known {
				out[i].Severity = sev
			}
		}
	}
	return out
}
