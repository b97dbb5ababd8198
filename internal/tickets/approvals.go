package tickets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/complynav/compliance-navigator/internal/policy"
	apperrors "github.com/complynav/compliance-navigator/pkg/errors"
	"github.com/complynav/compliance-navigator/pkg/types"
)

type ticketKind string

const (
	ticketKindGitHub ticketKind = "github"
	ticketKindJira   ticketKind = "jira"
)

// planHash implements planHash = SHA-256({repoFullName, runId, wouldCreate})
// over the finding IDs that would be created, sorted for determinism.
func planHash(repoFullName, runID string, wouldCreate []types.PlanItem) string {
	ids := make([]string, 0, len(wouldCreate))
	for _, item := range wouldCreate {
		ids = append(ids, item.FindingID)
	}
	sort.Strings(ids)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", repoFullName, runID)
	for _, id := range ids {
		fmt.Fprintf(h, "%s\x00", id)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func pendingPlanPath(repoRoot, planID string) (string, error) {
	return policy.AssertUnder(policy.ComplianceRoot(repoRoot), filepath.Join(policy.ComplianceRoot(repoRoot), "approvals", "pending", planID+".json"))
}

func approvedPlanPath(repoRoot, planID string) (string, error) {
	return policy.AssertUnder(policy.ComplianceRoot(repoRoot), filepath.Join(policy.ComplianceRoot(repoRoot), "approvals", "approved", planID+".json"))
}

// WritePendingPlan persists a dry-run's proposed plan under
// approvals/pending/<planId>.json.
func WritePendingPlan(repoRoot string, plan types.PendingPlan) (string, error) {
	path, err := pendingPlanPath(repoRoot, plan.PlanID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating pending plan dir: %w", err)
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling pending plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing pending plan: %w", err)
	}
	return path, nil
}

func loadPendingPlan(repoRoot, planID string) (types.PendingPlan, error) {
	path, err := pendingPlanPath(repoRoot, planID)
	if err != nil {
		return types.PendingPlan{}, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return types.PendingPlan{}, apperrors.NewApprovalMissingError(planID)
	}
	if err != nil {
		return types.PendingPlan{}, fmt.Errorf("reading pending plan: %w", err)
	}
	var plan types.PendingPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return types.PendingPlan{}, fmt.Errorf("parsing pending plan: %w", err)
	}
	return plan, nil
}

func loadApproval(repoRoot, planID string) (types.Approval, error) {
	path, err := approvedPlanPath(repoRoot, planID)
	if err != nil {
		return types.Approval{}, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return types.Approval{}, apperrors.NewApprovalMissingError(planID)
	}
	if err != nil {
		return types.Approval{}, fmt.Errorf("reading approval: %w", err)
	}
	var approval types.Approval
	if err := json.Unmarshal(data, &approval); err != nil {
		return types.Approval{}, fmt.Errorf("parsing approval: %w", err)
	}
	return approval, nil
}

// Approve implements approve(planId, approvedBy, reason?): it loads the
// pending plan and writes an approval record that copies the pending plan's
// hash and repo identity rather than recomputing them — the approval's
// integrity is bound to the pending plan that already existed, not to
// whatever the caller claims now.
func Approve(repoRoot, planID, approvedBy, reason string, approvedAt time.Time) (types.Approval, string, error) {
	pending, err := loadPendingPlan(repoRoot, planID)
	if err != nil {
		return types.Approval{}, "", err
	}

	approval := types.Approval{
		PlanID:       planID,
		ApprovedAt:   approvedAt,
		ApprovedBy:   approvedBy,
		Reason:       reason,
		PlanHash:     pending.PlanHash,
		RepoFullName: pending.RepoFullName,
	}

	path, err := approvedPlanPath(repoRoot, planID)
	if err != nil {
		return types.Approval{}, "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return types.Approval{}, "", fmt.Errorf("creating approval dir: %w", err)
	}
	data, err := json.MarshalIndent(approval, "", "  ")
	if err != nil {
		return types.Approval{}, "", fmt.Errorf("marshalling approval: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.Approval{}, "", fmt.Errorf("writing approval: %w", err)
	}
	return approval, path, nil
}

// ResolveApprovedPlan loads the pending plan for planID and its approval,
// verifying both the hash binding (tamper detection) and the repo identity
// binding (cross-target replay prevention) before returning the plan for
// execution.
func ResolveApprovedPlan(repoRoot, planID, repoFullName string) (types.PendingPlan, error) {
	pending, err := loadPendingPlan(repoRoot, planID)
	if err != nil {
		return types.PendingPlan{}, err
	}
	approval, err := loadApproval(repoRoot, planID)
	if err != nil {
		return types.PendingPlan{}, err
	}
	recomputed := planHash(pending.RepoFullName, pending.RunID, pending.Items)
	if approval.PlanHash != recomputed || pending.PlanHash != recomputed {
		return types.PendingPlan{}, apperrors.NewPlanHashMismatchError(planID)
	}
	if approval.RepoFullName != pending.RepoFullName || pending.RepoFullName != repoFullName {
		return types.PendingPlan{}, apperrors.NewTargetMismatchError(planID, approval.RepoFullName, pending.RepoFullName)
	}
	return pending, nil
}
