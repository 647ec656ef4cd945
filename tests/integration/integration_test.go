//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caueb/chimas/pkg/analyzer"
	"github.com/caueb/chimas/pkg/config"
	"github.com/caueb/chimas/pkg/reporter/human"
	jsonreporter "github.com/caueb/chimas/pkg/reporter/json"
	sarifreporter "github.com/caueb/chimas/pkg/reporter/sarif"
	"github.com/caueb/chimas/pkg/triage"
	"github.com/caueb/chimas/pkg/types"
)

const scanFixture = `[DESKTOP-1\alice] [File] {Red}<KeepConfigRegexRed|R|50B|2023-04-01 09:15:01Z>(\\fs01\share\web.config) connectionString=Password=hunter2
[DESKTOP-1\alice] [File] {Green}<KeepConfigGreen>(\\fs01\share\web.config) server=db01
[DESKTOP-1\alice] [File] {Black}<KeepPrivateKey|1.2kB>(\\fs01\keys\id_rsa) BEGIN RSA PRIVATE KEY
[DESKTOP-1\alice] [Share] {Yellow}<\\fs01\dev>(\\fs01\dev) Developer share
`

const reportFixture = `[Info] audit starting
[GPO]
| GPO | Default Domain Policy {31B2F340-016D-11D2-945F-00C04FB984F9} (Enabled) |
|-----|------|
| Path | \\corp.local\sysvol\policies |

    \___
    | Setting - Computer | Security Options |
    |--------------------|------------------|
    | Policy | Network access |
        \___
        | Finding | Red |
        | Reason | Anonymous access permitted |

[Finish] audit complete
Total runtime 2 seconds
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEndToEnd_ScanTextToAllFormats(t *testing.T) {
	ctx := context.Background()
	path := writeFixture(t, "scan.txt", scanFixture)

	result, err := analyzer.New().AnalyzeFile(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, result.Scan)

	// Two findings on web.config merge into one; id_rsa stays.
	assert.Len(t, result.Scan.Files, 2)
	assert.Len(t, result.Scan.Shares, 1)
	assert.Equal(t, 1, result.Scan.Stats.DuplicatesRemoved)

	humanBuf := &bytes.Buffer{}
	require.NoError(t, human.New().Write(ctx, result, humanBuf))
	assert.Contains(t, humanBuf.String(), "KeepConfigRegexRed")
	assert.Contains(t, humanBuf.String(), "[BLACK]")

	jsonBuf := &bytes.Buffer{}
	require.NoError(t, jsonreporter.New().Write(ctx, result, jsonBuf))
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &envelope))
	assert.NotEmpty(t, envelope["id"])

	sarifBuf := &bytes.Buffer{}
	require.NoError(t, sarifreporter.New().Write(ctx, result, sarifBuf))
	assert.Contains(t, sarifBuf.String(), "2.1.0")
}

func TestEndToEnd_PolicyReport(t *testing.T) {
	ctx := context.Background()
	path := writeFixture(t, "audit.log", reportFixture)

	result, err := analyzer.New().AnalyzeFile(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, result.Report)

	require.Len(t, result.Report.Policies, 1)
	policy := result.Report.Policies[0]
	assert.Equal(t, "Default Domain Policy", policy.Name)
	assert.Len(t, policy.Findings, 1)
	assert.Equal(t, types.SeverityRed, policy.Findings[0].Severity)
	assert.Equal(t, "2 seconds", result.Report.Duration)

	humanBuf := &bytes.Buffer{}
	require.NoError(t, human.New().Write(ctx, result, humanBuf))
	assert.Contains(t, humanBuf.String(), "POLICY REPORT")
}

func TestEndToEnd_WithOverridesAndTriage(t *testing.T) {
	ctx := context.Background()
	path := writeFixture(t, "scan.txt", scanFixture)

	overrides := &config.OverrideConfig{Rules: map[string]string{
		"KeepConfigRegexRed": "Green",
	}}

	engine := triage.New()
	require.NoError(t, engine.LoadRuleSource(ctx, "suppress_dev", `
package chimas.triage

triage[decision] {
	contains(input.finding.full_path, "\\keys\\")
	decision := {"suppress": true, "reason": "handled elsewhere"}
}
`))

	result, err := analyzer.New().
		WithOverrides(overrides).
		WithTriager(engine).
		AnalyzeFile(ctx, path)
	require.NoError(t, err)

	// id_rsa suppressed by triage, web.config downgraded by override.
	require.Len(t, result.Scan.Files, 1)
	assert.Equal(t, types.SeverityGreen, result.Scan.Files[0].Severity)
}

func TestEndToEnd_MalformedJSONInput(t *testing.T) {
	path := writeFixture(t, "scan.json", `{"entries": [`)

	_, err := analyzer.New().AnalyzeFile(context.Background(), path)
	require.Error(t, err)
}
