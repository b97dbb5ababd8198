package tickets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complynav/compliance-navigator/pkg/types"
)

type fakeTarget struct {
	fullName string
	issues   map[string]*IssueRef // marker -> issue
	created  []string
}

func (f *fakeTarget) Kind() string     { return "fake" }
func (f *fakeTarget) FullName() string { return f.fullName }
func (f *fakeTarget) SearchByMarker(ctx context.Context, marker string) (*IssueRef, error) {
	return f.issues[marker], nil
}
func (f *fakeTarget) Reopen(ctx context.Context, issue IssueRef) error { return nil }
func (f *fakeTarget) EnsureLabels(ctx context.Context, labels []string, policy LabelPolicy) error {
	return nil
}
func (f *fakeTarget) CreateIssue(ctx context.Context, title, body string, labels []string) (IssueRef, error) {
	id := "issue-" + string(rune('0'+len(f.created)))
	f.created = append(f.created, title)
	return IssueRef{ID: id, Open: true}, nil
}

func TestCreateTickets_DryRunClassifiesDuplicates(t *testing.T) {
	repoRoot := t.TempDir()
	target := &fakeTarget{
		fullName: "acme/repo",
		issues: map[string]*IssueRef{
			"CN-FINDING-ID: open-dup":   {ID: "1", Open: true},
			"CN-FINDING-ID: closed-dup": {ID: "2", Open: false},
		},
	}
	findings := []types.Finding{
		{ID: "new-finding", Scanner: types.ScannerGitleaks, Severity: types.SeverityHigh, Title: "new"},
		{ID: "open-dup", Scanner: types.ScannerGitleaks, Severity: types.SeverityHigh, Title: "dup open"},
		{ID: "closed-dup", Scanner: types.ScannerGitleaks, Severity: types.SeverityHigh, Title: "dup closed"},
	}

	resp, err := CreateTickets(context.Background(), CreateTicketsInput{
		RepoRoot: repoRoot, Findings: findings, Framework: types.FrameworkSOC2, RunID: "run-1",
		Target: target, DryRun: true, ReopenClosed: true,
	})
	require.NoError(t, err)
	assert.True(t, resp.DryRun)
	assert.Len(t, resp.WouldCreate, 1)
	assert.Equal(t, "new-finding", resp.WouldCreate[0].FindingID)
	assert.Contains(t, resp.Reopened, "closed-dup")
	assert.Contains(t, resp.SkippedAsDuplicate, "open-dup")
	assert.NotEmpty(t, resp.PlanID)
	assert.NotEmpty(t, resp.PlanHash)
}

func TestCreateTickets_ExecuteRequiresApproval(t *testing.T) {
	repoRoot := t.TempDir()
	target := &fakeTarget{fullName: "acme/repo", issues: map[string]*IssueRef{}}
	findings := []types.Finding{{ID: "f1", Scanner: types.ScannerGitleaks, Severity: types.SeverityHigh, Title: "x"}}

	dryRun, err := CreateTickets(context.Background(), CreateTicketsInput{
		RepoRoot: repoRoot, Findings: findings, Framework: types.FrameworkSOC2, RunID: "run-1",
		Target: target, DryRun: true,
	})
	require.NoError(t, err)

	_, _, err = Approve(repoRoot, dryRun.PlanID, "alice", "", time.Now().UTC())
	require.NoError(t, err)

	resp, err := CreateTickets(context.Background(), CreateTicketsInput{
		RepoRoot: repoRoot, Findings: findings, Framework: types.FrameworkSOC2, RunID: "run-1",
		Target: target, DryRun: false, ApprovedPlanID: dryRun.PlanID,
	})
	require.NoError(t, err)
	assert.False(t, resp.DryRun)
	assert.Len(t, resp.Created, 1)
	assert.Len(t, target.created, 1)
}

func TestCreateTickets_ExecuteWithoutApprovalFails(t *testing.T) {
	repoRoot := t.TempDir()
	target := &fakeTarget{fullName: "acme/repo", issues: map[string]*IssueRef{}}
	_, err := CreateTickets(context.Background(), CreateTicketsInput{
		RepoRoot: repoRoot, Framework: types.FrameworkSOC2, RunID: "run-1",
		Target: target, DryRun: false, ApprovedPlanID: "nonexistent",
	})
	assert.Error(t, err)
}
