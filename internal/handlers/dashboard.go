package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/complynav/compliance-navigator/internal/policy"
)

// OpenDashboardInput is open_dashboard's request record.
type OpenDashboardInput struct {
	RepoPath string
	RunID    string
}

// OpenDashboardOutput points at the generated report for a run; the
// dashboard UI itself is out of scope, so this handler only resolves the
// location a caller would open.
type OpenDashboardOutput struct {
	RunID     string `json:"runId"`
	IndexPath string `json:"indexPath"`
	Generated bool   `json:"generated"`
}

// OpenDashboard resolves the latest (or named) run's audit_packet/index.md
// if one has already been generated, without generating one itself — that
// is generate_audit_packet's job.
func (h *Handlers) OpenDashboard(ctx context.Context, in OpenDashboardInput) (OpenDashboardOutput, error) {
	const tool = "open_dashboard"
	if err := policy.PreflightRepoPath(in.RepoPath); err != nil {
		h.toolError(tool, err)
		return OpenDashboardOutput{}, err
	}
	runID, err := resolveRunID(in.RepoPath, in.RunID)
	if err != nil {
		h.toolError(tool, err)
		return OpenDashboardOutput{}, err
	}
	if err := h.toolStart(tool, map[string]string{"repoPath": in.RepoPath, "runId": runID}); err != nil {
		return OpenDashboardOutput{}, fmt.Errorf("appending tool_start: %w", err)
	}

	indexPath := indexMDPath(in.RepoPath, runID)
	_, statErr := os.Stat(indexPath)
	out := OpenDashboardOutput{RunID: runID, IndexPath: indexPath, Generated: statErr == nil}

	if err := h.toolEnd(tool, out); err != nil {
		h.Logger.WithComponent("handlers").WithError(err).Warn("failed to append tool_end audit entry")
	}
	return out, nil
}
