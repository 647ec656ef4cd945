package chimas

import (
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed all:rules
var rulesFS embed.FS

// GetEmbeddedRules returns a map of rule ID to rego source from the
// built-in triage rules compiled into the binary.
func GetEmbeddedRules() (map[string]string, error) {
	rules := make(map[string]string)

	err := fs.WalkDir(rulesFS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".rego") {
			return nil
		}

		content, err := rulesFS.ReadFile(p)
		if err != nil {
			return err
		}

		ruleID := strings.TrimSuffix(path.Base(p), ".rego")
		rules[ruleID] = string(content)

		return nil
	})

	if err != nil {
		return nil, err
	}

	return rules, nil
}

// HasEmbeddedRules checks if embedded rules are available
func HasEmbeddedRules() bool {
	_, err := rulesFS.ReadDir("rules")
	return err == nil
}
