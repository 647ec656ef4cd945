package snaffler

import (
	"encoding/json"
	"strings"

	"github.com/caueb/chimas/pkg/parser"
	"github.com/caueb/chimas/pkg/types"
)

// JSON event-log shapes. Payloads are keyed by severity name inside
// eventProperties; only the nested structures we extract are modelled.
type eventLog struct {
	Entries []eventEntry `json:"entries"`
}

type eventEntry struct {
	Time            string                     `json:"time"`
	Level           string                     `json:"level"`
	Message         string                     `json:"message"`
	EventProperties map[string]json.RawMessage `json:"eventProperties"`
}

type severityPayload struct {
	FileResult  *fileResult  `json:"FileResult"`
	ShareResult *shareResult `json:"ShareResult"`
}

type fileResult struct {
	FileInfo    *fileInfo    `json:"FileInfo"`
	TextResult  *textResult  `json:"TextResult"`
	MatchedRule *matchedRule `json:"MatchedRule"`
	RwStatus    *rwStatus    `json:"RwStatus"`
}

type fileInfo struct {
	FullName      string      `json:"FullName"`
	Name          string      `json:"Name"`
	CreationTime  string      `json:"CreationTime"`
	LastWriteTime string      `json:"LastWriteTime"`
	Length        json.Number `json:"Length"`
}

type textResult struct {
	MatchContext   string   `json:"MatchContext"`
	MatchedStrings []string `json:"MatchedStrings"`
}

type matchedRule struct {
	RuleName string `json:"RuleName"`
	Triage   string `json:"Triage"`
}

type rwStatus struct {
	CanRead   bool `json:"CanRead"`
	CanWrite  bool `json:"CanWrite"`
	CanExec   bool `json:"CanExec"`
	CanDelete bool `json:"CanDelete"`
}

type shareResult struct {
	SharePath      string `json:"SharePath"`
	ShareComment   string `json:"ShareComment"`
	Listable       bool   `json:"Listable"`
	RootReadable   bool   `json:"RootReadable"`
	RootWritable   bool   `json:"RootWritable"`
	RootModifyable bool   `json:"RootModifyable"`
	RootExecutable bool   `json:"RootExecutable"`
	Snaffleable    bool   `json:"Snaffleable"`
}

// ExtractJSON processes a JSON event log. Only Warn entries whose message
// carries a [File] or [Share] marker are considered; entries missing
// required nested fields are skipped silently. An entry with an empty
// structured payload whose message still matches the [File] marker is
// re-run through the flat-line grammar (legacy truncated exports).
// Only a top-level decode failure is returned as an error.
func (e *Extractor) ExtractJSON(input string) ([]types.FileFinding, []types.ShareFinding, error) {
	var doc eventLog
	if err := json.Unmarshal([]byte(input), &doc); err != nil {
		return nil, nil, err
	}

	var files []types.FileFinding
	var shares []types.ShareFinding

	for _, entry := range doc.Entries {
		if entry.Level != "Warn" {
			continue
		}
		isFile := strings.Contains(entry.Message, parser.MarkerFile)
		isShare := strings.Contains(entry.Message, parser.MarkerShare)
		if !isFile && !isShare {
			continue
		}

		extracted := false
		for _, sev := range types.Severities {
			raw, ok := entry.EventProperties[string(sev)]
			if !ok {
				continue
			}
			var payload severityPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				e.log.Debug("skipping entry payload: %v", err)
				continue
			}
			switch {
			case payload.FileResult != nil:
				f, ok := fileFromResult(payload.FileResult, sev)
				if !ok {
					e.log.Debug("skipping file entry missing nested fields")
					continue
				}
				files = append(files, f)
				extracted = true
			case payload.ShareResult != nil:
				s, ok := shareFromResult(payload.ShareResult, sev)
				if !ok {
					e.log.Debug("skipping share entry missing share path")
					continue
				}
				shares = append(shares, s)
				extracted = true
			}
		}

		// Legacy fallback: structured payload empty but the message still
		// looks like a flat [File] line.
		if !extracted && isFile {
			if tok, err := tokenizeLine(entry.Message); err == nil && !tok.isShare {
				files = append(files, fileFromTokens(tok))
			}
		}
	}

	return files, shares, nil
}

// fileFromResult maps a structured file result to a finding. FileInfo,
// TextResult and MatchedRule are all required.
func fileFromResult(r *fileResult, sev types.Severity) (types.FileFinding, bool) {
	if r.FileInfo == nil || r.TextResult == nil || r.MatchedRule == nil {
		return types.FileFinding{}, false
	}
	if r.FileInfo.FullName == "" {
		return types.FileFinding{}, false
	}

	size := r.FileInfo.Length.String()
	if size == "" {
		size = "0"
	}
	name := r.FileInfo.Name
	if name == "" {
		name = baseName(r.FileInfo.FullName)
	}

	f := types.FileFinding{
		Severity:       sev,
		FullPath:       r.FileInfo.FullName,
		FileName:       name,
		CreationTime:   r.FileInfo.CreationTime,
		LastModified:   r.FileInfo.LastWriteTime,
		Size:           size,
		MatchContext:   DecodeEscapes(r.TextResult.MatchContext),
		MatchedStrings: r.TextResult.MatchedStrings,
		RuleName:       r.MatchedRule.RuleName,
		Triage:         r.MatchedRule.Triage,
	}
	if r.RwStatus != nil {
		f.Permissions = &types.Permissions{
			CanRead:    r.RwStatus.CanRead,
			CanWrite:   r.RwStatus.CanWrite,
			CanExecute: r.RwStatus.CanExec,
			CanDelete:  r.RwStatus.CanDelete,
		}
	}
	return f, true
}

func shareFromResult(r *shareResult, sev types.Severity) (types.ShareFinding, bool) {
	if r.SharePath == "" {
		return types.ShareFinding{}, false
	}
	system, share := splitSharePath(r.SharePath)
	return types.ShareFinding{
		SystemID:       system,
		ShareName:      share,
		Comment:        r.ShareComment,
		RootReadable:   r.RootReadable,
		RootWritable:   r.RootWritable,
		RootModifyable: r.RootModifyable,
		RootExecutable: r.RootExecutable,
		Listable:       r.Listable,
		Snaffleable:    r.Snaffleable,
		Severity:       sev,
	}, true
}
