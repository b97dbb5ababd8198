package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/complynav/compliance-navigator/internal/controls"
	"github.com/complynav/compliance-navigator/internal/policy"
	"github.com/complynav/compliance-navigator/internal/roi"
	"github.com/complynav/compliance-navigator/internal/scanners"
	apperrors "github.com/complynav/compliance-navigator/pkg/errors"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// manifestVersion is stamped into every run's manifest; it identifies the
// schema generation, not a marketing release number.
const manifestVersion = "1"

// ScanRepoInput is scan_repo's request record.
type ScanRepoInput struct {
	RepoPath   string
	Framework  types.Framework
	MaxMinutes int
}

func (in ScanRepoInput) validate() error {
	if err := policy.PreflightRepoPath(in.RepoPath); err != nil {
		return err
	}
	if in.Framework != types.FrameworkSOC2 && in.Framework != types.FrameworkHIPAA {
		return apperrors.NewValidationError(fmt.Sprintf("framework %q is not one of soc2, hipaa", in.Framework))
	}
	return nil
}

// ScanRepo runs all three scanners against repoPath, normalises and maps
// their findings, computes coverage and ROI, and persists the resulting
// ScanResult under .compliance/runs/<runId>/scan_result.json. The registry
// mirror (h.Registry) is always best-effort and may be nil.
func (h *Handlers) ScanRepo(ctx context.Context, in ScanRepoInput) (types.ScanResult, error) {
	const tool = "scan_repo"
	if err := in.validate(); err != nil {
		h.toolError(tool, err)
		return types.ScanResult{}, err
	}
	if err := h.toolStart(tool, in); err != nil {
		return types.ScanResult{}, fmt.Errorf("appending tool_start: %w", err)
	}

	result, err := h.runScan(ctx, in)
	if err != nil {
		h.toolError(tool, err)
		return types.ScanResult{}, err
	}

	summary := map[string]interface{}{
		"runId":       result.RunID,
		"findings":    len(result.Findings),
		"coveragePct": result.ControlCoverage.CoveragePct,
	}
	if err := h.toolEnd(tool, summary); err != nil {
		h.Logger.WithComponent("handlers").WithError(err).Warn("failed to append tool_end audit entry")
	}
	return result, nil
}

func (h *Handlers) runScan(ctx context.Context, in ScanRepoInput) (scanResult types.ScanResult, err error) {
	runID := newRunID()
	startedAt := time.Now().UTC()

	ctx, span := h.Tracer.StartScanSpan(ctx, "run", runID, in.RepoPath)
	defer func() {
		if err != nil {
			h.Tracer.RecordError(span, err)
		}
		span.End()
	}()

	complianceRoot := policy.ComplianceRoot(in.RepoPath)
	runDirPath, err := policy.AssertUnder(complianceRoot, runDir(in.RepoPath, runID))
	if err != nil {
		return types.ScanResult{}, err
	}
	evidenceDir, err := policy.AssertUnder(complianceRoot, filepath.Join(runDirPath, "evidence"))
	if err != nil {
		return types.ScanResult{}, err
	}
	if err := os.MkdirAll(evidenceDir, 0o755); err != nil {
		return types.ScanResult{}, fmt.Errorf("creating run evidence dir: %w", err)
	}

	timeout := clampTimeout(in.MaxMinutes, h.Config.Scanner.DefaultTimeout, h.Config.Scanner.MaxTimeout)

	runner := scanners.NewRunner(h.Logger, h.Tracer)
	outcomes := runner.RunAll(ctx, in.RepoPath, evidenceDir, timeout)

	var (
		findings        []types.Finding
		statuses        []types.ScannerStatus
		transcripts     []types.ScannerRun
		countsByScanner = make(map[types.ScannerKind]int)
		scannerVersions = make(map[string]string)
	)
	for _, outcome := range outcomes {
		findings = append(findings, outcome.Findings...)
		statuses = append(statuses, outcome.Status)
		transcripts = append(transcripts, outcome.Run)
		countsByScanner[outcome.Status.Scanner] = outcome.Status.FindingCount
		if outcome.Status.Version != "" {
			scannerVersions[string(outcome.Status.Scanner)] = outcome.Status.Version
		}
	}

	findings = controls.AnnotateFindings(findings, in.Framework)
	coverage := controls.ComputeCoverage(findings, in.Framework, statuses)
	estimate := roi.Estimate(findings)

	finishedAt := time.Now().UTC()

	result := types.ScanResult{
		RunID:               runID,
		Framework:           in.Framework,
		RepoPath:            in.RepoPath,
		StartedAt:           startedAt,
		FinishedAt:          finishedAt,
		Findings:            findings,
		CountsBySeverity:    countBySeverity(findings, true),
		CountsBySeverityAll: countBySeverity(findings, false),
		CountsByScanner:     countsByScanner,
		ControlCoverage:     coverage,
		ROIEstimate:         estimate,
		ScannerStatuses:     statuses,
		Transcripts:         transcripts,
		EvidenceDir:         evidenceDir,
		Manifest: types.Manifest{
			GeneratedAt:     finishedAt,
			RunID:           runID,
			RepoPath:        in.RepoPath,
			OS:              runtime.GOOS,
			ScannerVersions: scannerVersions,
			Framework:       in.Framework,
			Version:         manifestVersion,
			Policy: types.PolicyManifest{
				CommandAllowlistDescriptions: policy.Descriptions(),
				ExecutionModel:               "one OS child process per scanner kind, run concurrently, each bounded by its own timeout",
				PathPolicy:                   "every write target is canonicalised and asserted to lie strictly under <repoPath>/.compliance/",
			},
		},
	}

	resultPath, err := policy.AssertUnder(complianceRoot, scanResultPath(in.RepoPath, runID))
	if err != nil {
		return types.ScanResult{}, err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return types.ScanResult{}, fmt.Errorf("marshalling scan result: %w", err)
	}
	if err := os.WriteFile(resultPath, data, 0o644); err != nil {
		return types.ScanResult{}, fmt.Errorf("writing scan result: %w", err)
	}

	mirrorCtx, mirrorSpan := h.Tracer.StartRegistrySpan(ctx, "insert", "runs_registry")
	h.Registry.Mirror(mirrorCtx, result)
	mirrorSpan.End()

	return result, nil
}

// countBySeverity tallies findings by severity. excludeMeta drops
// scanner-missing meta-findings from the count, matching every other
// component's exclusion rule; the "All" variant keeps them so a caller can
// see how many scanners were unavailable.
func countBySeverity(findings []types.Finding, excludeMeta bool) types.SeverityCounts {
	counts := make(types.SeverityCounts)
	for _, f := range findings {
		if excludeMeta && f.IsMetaFinding() {
			continue
		}
		counts[f.Severity]++
	}
	return counts
}

// clampTimeout converts maxMinutes to a duration capped at maxTimeout; a
// non-positive maxMinutes falls back to defaultTimeout. A positive value
// below defaultTimeout is used as given.
func clampTimeout(maxMinutes int, defaultTimeout, maxTimeout time.Duration) time.Duration {
	if maxMinutes <= 0 {
		return defaultTimeout
	}
	requested := time.Duration(maxMinutes) * time.Minute
	if requested > maxTimeout {
		return maxTimeout
	}
	return requested
}
