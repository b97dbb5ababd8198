package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/complynav/compliance-navigator/internal/policy"
	"github.com/complynav/compliance-navigator/internal/remediation"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// PlanRemediationInput is plan_remediation's request record.
type PlanRemediationInput struct {
	RepoPath  string
	RunID     string
	MaxItems  int
}

// PlanRemediationOutput mirrors section 4.11's output row.
type PlanRemediationOutput struct {
	PlanJSONPath        string                   `json:"planJsonPath"`
	PlanMDPath          string                   `json:"planMdPath"`
	Steps               []types.RemediationItem `json:"steps"`
	TotalEstimatedHours float64                  `json:"totalEstimatedHours"`
}

// PlanRemediation builds a severity-ranked remediation plan from a run's
// findings and persists both its JSON and markdown renderings.
func (h *Handlers) PlanRemediation(ctx context.Context, in PlanRemediationInput) (PlanRemediationOutput, error) {
	const tool = "plan_remediation"
	if err := policy.PreflightRepoPath(in.RepoPath); err != nil {
		h.toolError(tool, err)
		return PlanRemediationOutput{}, err
	}
	runID, err := resolveRunID(in.RepoPath, in.RunID)
	if err != nil {
		h.toolError(tool, err)
		return PlanRemediationOutput{}, err
	}
	if err := h.toolStart(tool, map[string]interface{}{"repoPath": in.RepoPath, "runId": runID, "maxItems": in.MaxItems}); err != nil {
		return PlanRemediationOutput{}, fmt.Errorf("appending tool_start: %w", err)
	}

	out, err := h.buildRemediationPlan(in.RepoPath, runID, in.MaxItems)
	if err != nil {
		h.toolError(tool, err)
		return PlanRemediationOutput{}, err
	}

	if err := h.toolEnd(tool, map[string]interface{}{"runId": runID, "steps": len(out.Steps), "totalEstimatedHours": out.TotalEstimatedHours}); err != nil {
		h.Logger.WithComponent("handlers").WithError(err).Warn("failed to append tool_end audit entry")
	}
	return out, nil
}

func (h *Handlers) buildRemediationPlan(repoPath, runID string, maxItems int) (PlanRemediationOutput, error) {
	result, err := loadScanResult(repoPath, runID)
	if err != nil {
		return PlanRemediationOutput{}, err
	}

	plan := remediation.Build(runID, result.Findings, maxItems)

	complianceRoot := policy.ComplianceRoot(repoPath)
	jsonPath, err := policy.AssertUnder(complianceRoot, remediationPlanJSONPath(repoPath, runID))
	if err != nil {
		return PlanRemediationOutput{}, err
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return PlanRemediationOutput{}, fmt.Errorf("marshalling remediation plan: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return PlanRemediationOutput{}, fmt.Errorf("writing remediation plan json: %w", err)
	}

	mdPath, err := policy.AssertUnder(complianceRoot, remediationPlanMDPath(repoPath, runID))
	if err != nil {
		return PlanRemediationOutput{}, err
	}
	if err := os.WriteFile(mdPath, []byte(remediation.RenderMarkdown(plan)), 0o644); err != nil {
		return PlanRemediationOutput{}, fmt.Errorf("writing remediation plan markdown: %w", err)
	}

	return PlanRemediationOutput{
		PlanJSONPath:        jsonPath,
		PlanMDPath:          mdPath,
		Steps:               plan.Items,
		TotalEstimatedHours: plan.TotalEstimatedHours,
	}, nil
}
