package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/caueb/chimas/pkg/types"
)

// Config is the optional HCL run configuration. Everything in it can also
// be supplied as a command-line flag; flags win.
type Config struct {
	LogLevel          string `hcl:"log_level,optional"`
	Format            string `hcl:"format,optional"`
	RulesDir          string `hcl:"rules_dir,optional"`
	SeverityOverrides string `hcl:"severity_overrides,optional"`
	MinSeverity       string `hcl:"min_severity,optional"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Format:   "human",
	}
}

// Load reads and decodes an HCL configuration file. The evaluation
// context exposes the severity labels as variables so config files can
// write min_severity = severity.yellow instead of a bare string.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file: %s", diags.Error())
	}

	cfg := Default()
	diags = gohcl.DecodeBody(file.Body, evalContext(), cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file: %s", diags.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values that have closed domains.
func (c *Config) Validate() error {
	if c.MinSeverity != "" {
		if _, ok := types.ParseSeverity(c.MinSeverity); !ok {
			return fmt.Errorf("unknown min_severity: %s", c.MinSeverity)
		}
	}
	switch c.Format {
	case "", "human", "json", "sarif":
	default:
		return fmt.Errorf("unknown format: %s", c.Format)
	}
	return nil
}

// evalContext builds the variables available to config expressions.
func evalContext() *hcl.EvalContext {
	sevVals := make(map[string]cty.Value, len(types.Severities))
	for _, sev := range types.Severities {
		sevVals[string(sev)] = cty.StringVal(string(sev))
		sevVals[strings.ToLower(string(sev))] = cty.StringVal(string(sev))
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"severity": cty.ObjectVal(sevVals),
		},
	}
}
