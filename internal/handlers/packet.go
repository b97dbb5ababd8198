package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/complynav/compliance-navigator/internal/notifications"
	"github.com/complynav/compliance-navigator/internal/packet"
	"github.com/complynav/compliance-navigator/internal/policy"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// notifyGracePeriod bounds how long generate_audit_packet's detached
// notification dispatch may run; the handler returns without waiting on it.
const notifyGracePeriod = 2 * time.Second

// GenerateAuditPacketInput is generate_audit_packet's request record.
type GenerateAuditPacketInput struct {
	RepoPath  string
	RunID     string
	OutputDir string // optional directory to write audit_packet/ into; defaults to the run directory
}

// GenerateAuditPacketOutput mirrors section 4.11's output row verbatim.
type GenerateAuditPacketOutput struct {
	AuditPacketPath  string   `json:"auditPacketPath"`
	IndexPath        string   `json:"indexPath"`
	FindingsJSONPath string   `json:"findingsJsonPath"`
	EvidencePath     string   `json:"evidencePath"`
	Files            []string `json:"files"`
}

// GenerateAuditPacket loads a run's persisted ScanResult (and, if present,
// its remediation plan) and composes the audit_packet/ directory.
func (h *Handlers) GenerateAuditPacket(ctx context.Context, in GenerateAuditPacketInput) (GenerateAuditPacketOutput, error) {
	const tool = "generate_audit_packet"
	if err := policy.PreflightRepoPath(in.RepoPath); err != nil {
		h.toolError(tool, err)
		return GenerateAuditPacketOutput{}, err
	}
	runID, err := resolveRunID(in.RepoPath, in.RunID)
	if err != nil {
		h.toolError(tool, err)
		return GenerateAuditPacketOutput{}, err
	}
	if err := h.toolStart(tool, map[string]string{"repoPath": in.RepoPath, "runId": runID}); err != nil {
		return GenerateAuditPacketOutput{}, fmt.Errorf("appending tool_start: %w", err)
	}

	out, err := h.buildPacket(in.RepoPath, runID, in.OutputDir)
	if err != nil {
		h.toolError(tool, err)
		return GenerateAuditPacketOutput{}, err
	}

	if err := h.toolEnd(tool, map[string]interface{}{"runId": runID, "files": len(out.Files)}); err != nil {
		h.Logger.WithComponent("handlers").WithError(err).Warn("failed to append tool_end audit entry")
	}

	h.dispatchPacketReadyNotification(in.RepoPath, runID, out)
	return out, nil
}

// dispatchPacketReadyNotification fires the best-effort packet-ready
// notification on a detached goroutine bounded by notifyGracePeriod, so a
// slow or unreachable webhook never adds latency to generate_audit_packet.
func (h *Handlers) dispatchPacketReadyNotification(repoPath, runID string, out GenerateAuditPacketOutput) {
	if h.Notifications == nil {
		return
	}
	result, err := loadScanResult(repoPath, runID)
	if err != nil {
		return
	}

	event := notifications.PacketReadyEvent{
		RunID:                runID,
		RepoPath:             repoPath,
		Framework:            string(result.Framework),
		CoveragePct:          result.ControlCoverage.CoveragePct,
		CoveragePctPotential: result.ControlCoverage.CoveragePctPotential,
		CoveragePctFull:      result.ControlCoverage.CoveragePctFull,
		TopFindings:          topFindings(result.Findings, result.Framework, 3),
		AuditPacketPath:      out.AuditPacketPath,
		IndexPath:            out.IndexPath,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyGracePeriod)
		defer cancel()
		h.Notifications.NotifyPacketReady(ctx, event)
	}()
}

// topFindings returns the n highest-severity findings, excluding
// scanner-missing meta-findings, for the notification summary.
func topFindings(findings []types.Finding, framework types.Framework, n int) []notifications.FindingSummary {
	ranked := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		if !f.IsMetaFinding() {
			ranked = append(ranked, f)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return severityRank(ranked[i].Severity) > severityRank(ranked[j].Severity)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]notifications.FindingSummary, 0, len(ranked))
	for _, f := range ranked {
		control := ""
		if ann, ok := f.Controls[framework]; ok && len(ann.IDs) > 0 {
			control = ann.IDs[0]
		}
		out = append(out, notifications.FindingSummary{
			Title:    f.Title,
			Severity: string(f.Severity),
			Control:  control,
			File:     f.File,
		})
	}
	return out
}

func severityRank(s types.Severity) int {
	for i, candidate := range types.SeverityOrder {
		if candidate == s {
			return len(types.SeverityOrder) - i
		}
	}
	return 0
}

func (h *Handlers) buildPacket(repoPath, runID, outputDir string) (GenerateAuditPacketOutput, error) {
	result, err := loadScanResult(repoPath, runID)
	if err != nil {
		return GenerateAuditPacketOutput{}, err
	}

	var plan *types.RemediationPlan
	if p, err := loadRemediationPlan(repoPath, runID); err == nil {
		plan = &p
	}

	targetRunDir := runDir(repoPath, runID)
	if outputDir != "" {
		if _, err := policy.AssertUnder(policy.ComplianceRoot(repoPath), outputDir); err != nil {
			return GenerateAuditPacketOutput{}, err
		}
		targetRunDir = outputDir
	}

	res, err := packet.Write(repoPath, targetRunDir, result, plan, result.EvidenceDir)
	if err != nil {
		return GenerateAuditPacketOutput{}, err
	}

	return GenerateAuditPacketOutput{
		AuditPacketPath:  res.AuditPacketPath,
		IndexPath:        res.IndexPath,
		FindingsJSONPath: res.FindingsJSONPath,
		EvidencePath:     res.EvidencePath,
		Files:            res.Files,
	}, nil
}

func loadScanResult(repoPath, runID string) (types.ScanResult, error) {
	path := scanResultPath(repoPath, runID)
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ScanResult{}, fmt.Errorf("reading scan result for run %q: %w", runID, err)
	}
	var result types.ScanResult
	if err := json.Unmarshal(data, &result); err != nil {
		return types.ScanResult{}, fmt.Errorf("parsing scan result for run %q: %w", runID, err)
	}
	return result, nil
}

func remediationPlanJSONPath(repoPath, runID string) string {
	return filepath.Join(runDir(repoPath, runID), "remediation_plan.json")
}

func remediationPlanMDPath(repoPath, runID string) string {
	return filepath.Join(runDir(repoPath, runID), "remediation_plan.md")
}

func loadRemediationPlan(repoPath, runID string) (types.RemediationPlan, error) {
	data, err := os.ReadFile(remediationPlanJSONPath(repoPath, runID))
	if err != nil {
		return types.RemediationPlan{}, err
	}
	var plan types.RemediationPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return types.RemediationPlan{}, err
	}
	return plan, nil
}
