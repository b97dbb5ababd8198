package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/complynav/compliance-navigator/internal/export"
	"github.com/complynav/compliance-navigator/internal/policy"
	"github.com/complynav/compliance-navigator/pkg/resilience"
)

// archiveGracePeriod bounds how long the detached best-effort Supabase
// Storage upload may run; export_audit_packet returns without waiting on
// it. The zip itself is already written to disk and returned regardless.
const archiveGracePeriod = 15 * time.Second

// ExportAuditPacketInput is export_audit_packet's request record.
type ExportAuditPacketInput struct {
	RepoPath        string
	RunID           string
	IncludeEvidence bool
}

// ExportAuditPacketOutput mirrors section 4.11's output row.
type ExportAuditPacketOutput struct {
	ZipPath          string `json:"zipPath"`
	Bytes            int64  `json:"bytes"`
	SHA256           string `json:"sha256"`
	RunID            string `json:"runId"`
	IncludesEvidence bool   `json:"includesEvidence"`
}

// ExportAuditPacket archives a run's audit_packet/ (and optionally
// evidence/) into a deterministic zip under exports/<runId>/.
func (h *Handlers) ExportAuditPacket(ctx context.Context, in ExportAuditPacketInput) (ExportAuditPacketOutput, error) {
	const tool = "export_audit_packet"
	if err := policy.PreflightRepoPath(in.RepoPath); err != nil {
		h.toolError(tool, err)
		return ExportAuditPacketOutput{}, err
	}
	runID, err := resolveRunID(in.RepoPath, in.RunID)
	if err != nil {
		h.toolError(tool, err)
		return ExportAuditPacketOutput{}, err
	}
	if err := h.toolStart(tool, map[string]interface{}{"repoPath": in.RepoPath, "runId": runID, "includeEvidence": in.IncludeEvidence}); err != nil {
		return ExportAuditPacketOutput{}, fmt.Errorf("appending tool_start: %w", err)
	}

	out, err := h.buildExport(in.RepoPath, runID, in.IncludeEvidence)
	if err != nil {
		h.toolError(tool, err)
		return ExportAuditPacketOutput{}, err
	}

	if err := h.toolEnd(tool, out); err != nil {
		h.Logger.WithComponent("handlers").WithError(err).Warn("failed to append tool_end audit entry")
	}

	h.dispatchArchival(runID, out)
	return out, nil
}

// dispatchArchival fires the best-effort Supabase Storage upload of the
// export zip on a detached goroutine bounded by archiveGracePeriod. A
// missing Supabase config or a failed upload never invalidates the export
// the caller already received.
func (h *Handlers) dispatchArchival(runID string, out ExportAuditPacketOutput) {
	if !h.Config.Supabase.Enabled() {
		return
	}
	archiver, err := export.NewArchiver(h.Config.Supabase.URL, h.Config.Supabase.ServiceRoleKey, h.Config.Supabase.ExportBucket)
	if err != nil {
		h.Logger.WithComponent("handlers").WithError(err).Warn("failed to build supabase archiver")
		return
	}

	objectPath := fmt.Sprintf("%s/audit_packet.zip", runID)
	op := resilience.NewRetryableOperation("supabase-archive", resilience.CircuitBreakerConfig{}, resilience.DefaultRetryConfig())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveGracePeriod)
		defer cancel()
		if err := op.ExecuteVoid(ctx, func(ctx context.Context) error {
			return archiver.Upload(ctx, out.ZipPath, objectPath)
		}); err != nil {
			h.Logger.WithComponent("handlers").WithError(err).Warn("failed to archive export to supabase storage")
		}
	}()
}

func (h *Handlers) buildExport(repoPath, runID string, includeEvidence bool) (ExportAuditPacketOutput, error) {
	result, err := loadScanResult(repoPath, runID)
	if err != nil {
		return ExportAuditPacketOutput{}, err
	}

	auditPacketDir := filepath.Join(runDir(repoPath, runID), "audit_packet")
	zipPath := filepath.Join(repoPath, ".compliance", "exports", runID, "audit_packet.zip")

	res, err := export.Write(repoPath, zipPath, auditPacketDir, result.EvidenceDir, includeEvidence)
	if err != nil {
		return ExportAuditPacketOutput{}, err
	}

	return ExportAuditPacketOutput{
		ZipPath:          res.ZipPath,
		Bytes:            res.Bytes,
		SHA256:           res.SHA256,
		RunID:            runID,
		IncludesEvidence: res.IncludesEvidence,
	}, nil
}
