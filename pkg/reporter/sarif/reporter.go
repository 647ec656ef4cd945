package sarif

import (
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/caueb/chimas/pkg/types"
)

// Reporter implements the SARIF format reporter
type Reporter struct{}

// New creates a new SARIF reporter
func New() *Reporter {
	return &Reporter{}
}

// Write writes the result to the given writer in SARIF format
func (r *Reporter) Write(ctx context.Context, result *types.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r.toSARIF(result))
}

// Format returns the format this reporter outputs
func (r *Reporter) Format() string {
	return "sarif"
}

// SARIF structures
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version"`
	SemanticVersion string      `json:"semanticVersion"`
	Rules           []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifText              `json:"shortDescription"`
	DefaultConfig    sarifRuleConfig        `json:"defaultConfiguration"`
	Properties       map[string]interface{} `json:"properties"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifRuleConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

func (r *Reporter) toSARIF(result *types.Result) *sarifReport {
	rulesMap := make(map[string]*sarifRule)
	results := make([]sarifResult, 0)

	if result.Scan != nil {
		for _, f := range result.Scan.Files {
			ruleID := f.RuleName
			if ruleID == "" {
				ruleID = "unclassified"
			}
			if _, exists := rulesMap[ruleID]; !exists {
				rulesMap[ruleID] = &sarifRule{
					ID:               ruleID,
					Name:             ruleID,
					ShortDescription: sarifText{Text: "Scanner rule " + ruleID},
					DefaultConfig:    sarifRuleConfig{Level: severityToSARIFLevel(f.Severity)},
					Properties: map[string]interface{}{
						"severity": string(f.Severity),
						"tags":     []string{"security", "secrets", "file-share"},
					},
				}
			}

			message := f.MatchContext
			if message == "" {
				message = "Sensitive file matched rule " + ruleID
			}
			results = append(results, sarifResult{
				RuleID:  ruleID,
				Level:   severityToSARIFLevel(f.Severity),
				Message: sarifMessage{Text: message},
				Locations: []sarifLocation{
					{
						PhysicalLocation: sarifPhysicalLocation{
							ArtifactLocation: sarifArtifactLocation{URI: f.FullPath},
						},
					},
				},
			})
		}
	}

	if result.Report != nil {
		for _, p := range result.Report.Policies {
			for _, f := range p.Findings {
				const ruleID = "gpo-finding"
				if _, exists := rulesMap[ruleID]; !exists {
					rulesMap[ruleID] = &sarifRule{
						ID:               ruleID,
						Name:             ruleID,
						ShortDescription: sarifText{Text: "Group Policy audit finding"},
						DefaultConfig:    sarifRuleConfig{Level: "warning"},
						Properties: map[string]interface{}{
							"tags": []string{"security", "group-policy"},
						},
					}
				}

				message := f.Reason
				if f.Detail != "" {
					message += ": " + f.Detail
				}
				results = append(results, sarifResult{
					RuleID:  ruleID,
					Level:   severityToSARIFLevel(f.Severity),
					Message: sarifMessage{Text: message},
					Locations: []sarifLocation{
						{
							PhysicalLocation: sarifPhysicalLocation{
								ArtifactLocation: sarifArtifactLocation{URI: policyURI(p)},
							},
						},
					},
				})
			}
		}
	}

	rules := make([]sarifRule, 0, len(rulesMap))
	for _, rule := range rulesMap {
		rules = append(rules, *rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	return &sarifReport{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:            "chimas",
						Version:         "1.0.0",
						SemanticVersion: "1.0.0",
						Rules:           rules,
					},
				},
				Results: results,
			},
		},
	}
}

func policyURI(p types.Policy) string {
	if p.Path != "" {
		return p.Path
	}
	return p.Name
}

func severityToSARIFLevel(severity types.Severity) string {
	switch severity {
	case types.SeverityBlack, types.SeverityRed:
		return "error"
	case types.SeverityYellow:
		return "warning"
	case types.SeverityGreen:
		return "note"
	default:
		return "warning"
	}
}
