package types

import "strings"

// Severity is the closed set of risk labels shared by the scanner and
// policy pipelines. Black outranks Red outranks Yellow outranks Green.
type Severity string

const (
	SeverityBlack  Severity = "Black"
	SeverityRed    Severity = "Red"
	SeverityYellow Severity = "Yellow"
	SeverityGreen  Severity = "Green"
)

// Severities lists every known severity from highest to lowest rank.
var Severities = []Severity{SeverityBlack, SeverityRed, SeverityYellow, SeverityGreen}

// Rank returns the priority of a severity. Unknown labels rank below
// every known one.
func (s Severity) Rank() int {
	switch s {
	case SeverityBlack:
		return 4
	case SeverityRed:
		return 3
	case SeverityYellow:
		return 2
	case SeverityGreen:
		return 1
	default:
		return 0
	}
}

// ParseSeverity maps a severity label to its canonical form,
// case-insensitively. The second return value reports whether the label
// is one of the known severities.
func ParseSeverity(label string) (Severity, bool) {
	for _, s := range Severities {
		if strings.EqualFold(string(s), label) {
			return s, true
		}
	}
	return "", false
}

// Permissions holds the effective access flags the scanner observed on a
// file. All flags are optional in the source data.
type Permissions struct {
	CanRead    bool `json:"can_read"`
	CanWrite   bool `json:"can_write"`
	CanExecute bool `json:"can_execute"`
	CanDelete  bool `json:"can_delete"`
}

// FileFinding is one scanner hit on a filesystem object.
//
// Before merging, (FullPath, Severity, RuleName) identifies a finding;
// after merging, FullPath alone is unique and Severity is the highest
// observed for that path.
type FileFinding struct {
	Severity       Severity     `json:"severity"`
	FullPath       string       `json:"full_path"`
	FileName       string       `json:"file_name"`
	CreationTime   string       `json:"creation_time"`
	LastModified   string       `json:"last_modified"`
	Size           string       `json:"size"`
	MatchContext   string       `json:"match_context"`
	MatchedStrings []string     `json:"matched_strings,omitempty"`
	RuleName       string       `json:"rule_name"`
	Triage         string       `json:"triage,omitempty"`
	UserContext    string       `json:"user_context,omitempty"`
	Permissions    *Permissions `json:"permissions,omitempty"`
}

// ShareFinding describes a network share's root properties. Shares are
// never deduplicated; every extracted record is kept.
type ShareFinding struct {
	SystemID       string   `json:"system_id"`
	ShareName      string   `json:"share_name"`
	Comment        string   `json:"comment,omitempty"`
	RootReadable   bool     `json:"root_readable"`
	RootWritable   bool     `json:"root_writable"`
	RootModifyable bool     `json:"root_modifyable"`
	RootExecutable bool     `json:"root_executable"`
	Listable       bool     `json:"listable"`
	Snaffleable    bool     `json:"snaffleable"`
	Severity       Severity `json:"severity"`
	UserContext    string   `json:"user_context,omitempty"`
}

// DuplicateStats reports what the merge pass removed. Informational only;
// it never affects record content.
type DuplicateStats struct {
	OriginalCount       int     `json:"original_count"`
	FinalCount          int     `json:"final_count"`
	DuplicatesRemoved   int     `json:"duplicates_removed"`
	DuplicatePercentage float64 `json:"duplicate_percentage"`
}

// ScanResult is the normalized output of the scanner pipeline.
type ScanResult struct {
	Files  []FileFinding  `json:"results"`
	Shares []ShareFinding `json:"shares,omitempty"`
	Stats  DuplicateStats `json:"duplicate_stats"`
}

// PolicyReport is the root aggregate produced by the policy-report parser.
// Raw retains the source text for diagnostics only.
type PolicyReport struct {
	InfoLog     []string `json:"info_log,omitempty"`
	Policies    []Policy `json:"policies"`
	CompletedAt string   `json:"completed_at,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Raw         string   `json:"-"`
}

// Findings returns every finding in the report in section/block order.
func (r *PolicyReport) Findings() []Finding {
	var out []Finding
	for _, p := range r.Policies {
		out = append(out, p.Findings...)
	}
	return out
}

// Policy is one Group-Policy-Object section: recognized header fields, any
// unrecognized header keys, the setting blocks, and a flattened view of all
// findings across those blocks.
type Policy struct {
	Name           string            `json:"name"`
	GUID           string            `json:"guid,omitempty"`
	Status         string            `json:"status,omitempty"`
	Created        string            `json:"created,omitempty"`
	Modified       string            `json:"modified,omitempty"`
	Path           string            `json:"path,omitempty"`
	ComputerPolicy string            `json:"computer_policy,omitempty"`
	UserPolicy     string            `json:"user_policy,omitempty"`
	Links          []string          `json:"links,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
	Blocks         []SettingBlock    `json:"blocks"`
	Findings       []Finding         `json:"findings,omitempty"`
}

// SettingBlock is one configuration table within a policy. Raw holds the
// lines consumed while parsing the block, for diagnostics only.
type SettingBlock struct {
	Scope    string            `json:"scope,omitempty"`
	Category string            `json:"category,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
	Findings []Finding         `json:"findings,omitempty"`
	Raw      []string          `json:"-"`
}

// Finding is a single flagged condition inside a setting block.
type Finding struct {
	Severity Severity          `json:"severity"`
	Reason   string            `json:"reason,omitempty"`
	Detail   string            `json:"detail,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Result is the normalized output of one parse. Exactly one of Scan or
// Report is set, depending on which pipeline the input was routed to.
type Result struct {
	Scan   *ScanResult   `json:"scan,omitempty"`
	Report *PolicyReport `json:"report,omitempty"`
}
