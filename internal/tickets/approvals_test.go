package tickets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complynav/compliance-navigator/pkg/types"
)

func TestPlanHash_DeterministicRegardlessOfItemOrder(t *testing.T) {
	a := []types.PlanItem{{FindingID: "f1"}, {FindingID: "f2"}}
	b := []types.PlanItem{{FindingID: "f2"}, {FindingID: "f1"}}
	assert.Equal(t, planHash("o/r", "run-1", a), planHash("o/r", "run-1", b))
}

func TestPlanHash_DiffersByRepoOrRun(t *testing.T) {
	items := []types.PlanItem{{FindingID: "f1"}}
	h1 := planHash("o/r", "run-1", items)
	h2 := planHash("o/other", "run-1", items)
	h3 := planHash("o/r", "run-2", items)
	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestApproveAndResolve_RoundTrip(t *testing.T) {
	repoRoot := t.TempDir()
	items := []types.PlanItem{{FindingID: "f1"}}
	hash := planHash("acme/repo", "run-1", items)

	pending := types.PendingPlan{
		PlanID: "plan-1", CreatedAt: time.Now().UTC(), Target: "github",
		RepoFullName: "acme/repo", RunID: "run-1", PlanHash: hash, Items: items,
	}
	_, err := WritePendingPlan(repoRoot, pending)
	require.NoError(t, err)

	_, _, err = Approve(repoRoot, "plan-1", "alice", "looks good", time.Now().UTC())
	require.NoError(t, err)

	resolved, err := ResolveApprovedPlan(repoRoot, "plan-1", "acme/repo")
	require.NoError(t, err)
	assert.Equal(t, hash, resolved.PlanHash)
}

func TestResolveApprovedPlan_RejectsCrossTargetReplay(t *testing.T) {
	repoRoot := t.TempDir()
	items := []types.PlanItem{{FindingID: "f1"}}
	hash := planHash("acme/repo", "run-1", items)

	pending := types.PendingPlan{
		PlanID: "plan-2", CreatedAt: time.Now().UTC(), RepoFullName: "acme/repo",
		RunID: "run-1", PlanHash: hash, Items: items,
	}
	_, err := WritePendingPlan(repoRoot, pending)
	require.NoError(t, err)
	_, _, err = Approve(repoRoot, "plan-2", "alice", "", time.Now().UTC())
	require.NoError(t, err)

	_, err = ResolveApprovedPlan(repoRoot, "plan-2", "acme/other-repo")
	assert.Error(t, err)
}

func TestResolveApprovedPlan_MissingApprovalErrors(t *testing.T) {
	repoRoot := t.TempDir()
	_, err := ResolveApprovedPlan(repoRoot, "does-not-exist", "acme/repo")
	assert.Error(t, err)
}
