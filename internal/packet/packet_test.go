package packet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complynav/compliance-navigator/pkg/types"
)

func sampleResult(repoRoot string) types.ScanResult {
	return types.ScanResult{
		RunID:      "run-1",
		Framework:  types.FrameworkSOC2,
		RepoPath:   repoRoot,
		StartedAt:  time.Unix(0, 0).UTC(),
		FinishedAt: time.Unix(1, 0).UTC(),
		Findings: []types.Finding{
			{ID: "f1", Scanner: types.ScannerGitleaks, Severity: types.SeverityCritical, Title: "secret in config.env", File: "config.env", Line: 4},
		},
		CountsBySeverity:    types.SeverityCounts{types.SeverityCritical: 1},
		CountsBySeverityAll: types.SeverityCounts{types.SeverityCritical: 1},
		CountsByScanner:     map[types.ScannerKind]int{types.ScannerGitleaks: 1},
		ControlCoverage: types.CoverageResult{
			CoveragePct: 10, CoveragePctPotential: 20, CoveragePctFull: 100,
			ControlDetails: []types.ControlDetail{{ID: "CC6.1", Name: "Logical access", Status: "covered", FindingCount: 1}},
		},
		ROIEstimate: types.ROIEstimate{HoursSaved: 0.42, HoursSavedConservative: 0.42, HoursSavedLikely: 0.76, Basis: "unvalidated defaults"},
		ScannerStatuses: []types.ScannerStatus{
			{Scanner: types.ScannerGitleaks, Status: types.RunStatusOK, FindingCount: 1, Version: "v8.0.0"},
		},
		Manifest: types.Manifest{
			GeneratedAt: time.Unix(2, 0).UTC(),
			RunID:       "run-1",
			RepoPath:    repoRoot,
			Policy: types.PolicyManifest{
				ExecutionModel:               "child process, allowlisted commands only",
				CommandAllowlistDescriptions: []string{"gitleaks detect"},
			},
		},
	}
}

func TestWrite_ProducesAllFiles(t *testing.T) {
	repoRoot := t.TempDir()
	runDir := filepath.Join(repoRoot, ".compliance", "runs", "run-1")
	require.NoError(t, os.MkdirAll(runDir, 0o755))

	evidenceDir := filepath.Join(runDir, "evidence")
	require.NoError(t, os.MkdirAll(evidenceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(evidenceDir, "gitleaks.json"), []byte(`[]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(evidenceDir, "gitleaks-stderr.txt"), []byte(``), 0o644))

	result := sampleResult(repoRoot)
	remediation := &types.RemediationPlan{Items: []types.RemediationItem{
		{ID: "REM-1", Severity: types.SeverityCritical, Title: "rotate secret", EstimatedMinutes: 120},
	}}

	out, err := Write(repoRoot, runDir, result, remediation, evidenceDir)
	require.NoError(t, err)

	assert.FileExists(t, out.IndexPath)
	assert.FileExists(t, out.FindingsJSONPath)
	assert.FileExists(t, filepath.Join(out.AuditPacketPath, "coverage.json"))
	assert.FileExists(t, filepath.Join(out.AuditPacketPath, "roi.json"))
	assert.FileExists(t, filepath.Join(out.AuditPacketPath, "manifest.json"))
	assert.FileExists(t, filepath.Join(out.AuditPacketPath, "index.pdf"))
	assert.FileExists(t, filepath.Join(out.EvidencePath, "gitleaks.json"))

	indexContent, err := os.ReadFile(out.IndexPath)
	require.NoError(t, err)
	assert.Contains(t, string(indexContent), "CC6.1")
	assert.Contains(t, string(indexContent), "REM-1")
}

func TestWrite_RejectsEscapingRunDir(t *testing.T) {
	repoRoot := t.TempDir()
	result := sampleResult(repoRoot)
	_, err := Write(repoRoot, "../../etc", result, nil, t.TempDir())
	assert.Error(t, err)
}
