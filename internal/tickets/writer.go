package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/complynav/compliance-navigator/pkg/logging"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// CreateTicketsInput is create_tickets's validated request shape.
type CreateTicketsInput struct {
	RepoRoot       string
	Findings       []types.Finding
	Framework      types.Framework
	RunID          string
	Target         Target
	DryRun         bool
	ApprovedPlanID string
	ReopenClosed   bool
	LabelPolicy    LabelPolicy
	MaxItems       int
	Cache          *DedupeCache
	Logger         *logging.Logger
}

// CreateTickets implements C10's full dry-run/execute flow.
func CreateTickets(ctx context.Context, in CreateTicketsInput) (types.CreateTicketsResponse, error) {
	items := BuildPlanItems(in.Findings, in.Framework, in.RunID, in.MaxItems)

	if !in.DryRun && in.ApprovedPlanID != "" {
		pending, err := ResolveApprovedPlan(in.RepoRoot, in.ApprovedPlanID, in.Target.FullName())
		if err != nil {
			return types.CreateTicketsResponse{}, err
		}
		return execute(ctx, in, pending)
	}

	return planPreview(ctx, in, items)
}

// planPreview classifies every candidate item (not-found / open-duplicate /
// closed-duplicate) against the target, persists the resulting pending plan,
// and returns a preview without any external write.
func planPreview(ctx context.Context, in CreateTicketsInput, items []types.PlanItem) (types.CreateTicketsResponse, error) {
	var wouldCreate []types.PlanItem
	var reopenItems []types.ReopenItem
	var skipped, reopenedPreview []string

	for _, item := range items {
		existing, err := findExisting(ctx, in.Target, in.Cache, item)
		if err != nil {
			return types.CreateTicketsResponse{}, err
		}
		switch {
		case existing == nil:
			wouldCreate = append(wouldCreate, item)
		case existing.Open:
			skipped = append(skipped, item.FindingID)
		case in.ReopenClosed:
			reopenedPreview = append(reopenedPreview, item.FindingID)
			reopenItems = append(reopenItems, types.ReopenItem{FindingID: item.FindingID, IssueID: existing.ID})
		default:
			skipped = append(skipped, item.FindingID)
		}
		time.Sleep(ReadDelay)
	}

	planID := uuid.NewString()
	hash := planHash(in.Target.FullName(), in.RunID, wouldCreate)

	pending := types.PendingPlan{
		PlanID:       planID,
		CreatedAt:    time.Now().UTC(),
		Target:       in.Target.Kind(),
		Repo:         in.Target.FullName(),
		RepoFullName: in.Target.FullName(),
		RunID:        in.RunID,
		PlanHash:     hash,
		Items:        wouldCreate,
		ReopenItems:  reopenItems,
	}
	if _, err := WritePendingPlan(in.RepoRoot, pending); err != nil {
		return types.CreateTicketsResponse{}, err
	}

	return types.CreateTicketsResponse{
		DryRun:             true,
		PlanID:             planID,
		PlanHash:           hash,
		WouldCreate:        wouldCreate,
		Reopened:           reopenedPreview,
		SkippedAsDuplicate: skipped,
	}, nil
}

// execute performs the actual external writes for a plan that has already
// been approved and hash/identity-verified by ResolveApprovedPlan.
func execute(ctx context.Context, in CreateTicketsInput, pending types.PendingPlan) (types.CreateTicketsResponse, error) {
	if err := in.Target.EnsureLabels(ctx, allLabels(pending.Items), in.LabelPolicy); err != nil && in.Logger != nil {
		in.Logger.WithComponent("tickets").WithError(err).Warn("label policy enforcement failed")
	}

	n := len(pending.Items)
	created := make([]string, n)

	errs := runBatched(ctx, n, func(ctx context.Context, i int) error {
		item := pending.Items[i]
		issue, err := in.Target.CreateIssue(ctx, item.Title, item.Body, item.Labels)
		if err != nil {
			return err
		}
		created[i] = issue.ID
		if in.Cache != nil {
			in.Cache.Set(ctx, in.Target.FullName(), item.DedupeQuery, issue.ID)
		}
		return nil
	})

	var createdIDs, failedIDs []string
	for i, err := range errs {
		if err != nil {
			failedIDs = append(failedIDs, pending.Items[i].FindingID)
			if in.Logger != nil {
				in.Logger.WithComponent("tickets").WithError(err).Warn("ticket creation failed, skipping")
			}
			continue
		}
		createdIDs = append(createdIDs, created[i])
	}

	reopenedIDs := reopenClosedDuplicates(ctx, in, pending.ReopenItems)

	return types.CreateTicketsResponse{
		DryRun:   false,
		PlanID:   pending.PlanID,
		PlanHash: pending.PlanHash,
		Created:  createdIDs,
		Reopened: reopenedIDs,
		Failed:   failedIDs,
	}, nil
}

// reopenClosedDuplicates reopens every closed-duplicate issue the preview
// identified (spec §4.10 outcome 3). A failed reopen is logged and skipped
// rather than failing the whole batch — the new tickets it was batched
// alongside may still have succeeded.
func reopenClosedDuplicates(ctx context.Context, in CreateTicketsInput, items []types.ReopenItem) []string {
	var reopened []string
	for _, item := range items {
		if err := in.Target.Reopen(ctx, IssueRef{ID: item.IssueID}); err != nil {
			if in.Logger != nil {
				in.Logger.WithComponent("tickets").WithError(err).Warn("reopening closed duplicate failed, skipping")
			}
			continue
		}
		reopened = append(reopened, item.IssueID)
	}
	return reopened
}

func findExisting(ctx context.Context, target Target, cache *DedupeCache, item types.PlanItem) (*IssueRef, error) {
	if cache != nil {
		if cached := cache.Get(ctx, target.FullName(), item.DedupeQuery); cached != "" {
			return &IssueRef{ID: cached, Open: true}, nil
		}
	}
	issue, err := target.SearchByMarker(ctx, item.DedupeQuery)
	if err != nil {
		return nil, fmt.Errorf("searching for existing ticket for %s: %w", item.FindingID, err)
	}
	if issue != nil && cache != nil {
		cache.Set(ctx, target.FullName(), item.DedupeQuery, issue.ID)
	}
	return issue, nil
}

func allLabels(items []types.PlanItem) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, item := range items {
		for _, l := range item.Labels {
			if !seen[l] {
				seen[l] = true
				labels = append(labels, l)
			}
		}
	}
	return labels
}

// PlanHash exposes planHash for handlers and tests that need to compute or
// verify the same hash this package binds approvals to.
func PlanHash(repoFullName, runID string, items []types.PlanItem) string {
	return planHash(repoFullName, runID, items)
}
