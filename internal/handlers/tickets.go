package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/complynav/compliance-navigator/internal/policy"
	"github.com/complynav/compliance-navigator/internal/tickets"
	apperrors "github.com/complynav/compliance-navigator/pkg/errors"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// CreateTicketsInput is create_tickets's request record.
type CreateTicketsInput struct {
	RepoPath       string
	RunID          string
	Target         types.TicketTargetKind
	TargetRepo     string // "owner/repo" (github) or project key override (jira); optional
	DryRun         bool
	ApprovedPlanID string
	ReopenClosed   bool
	LabelPolicy    tickets.LabelPolicy
	MaxItems       int
	Cache          *tickets.DedupeCache
}

func (in CreateTicketsInput) validate() error {
	if err := policy.PreflightRepoPath(in.RepoPath); err != nil {
		return err
	}
	if in.Target != types.TicketTargetGitHub && in.Target != types.TicketTargetJira {
		return apperrors.NewValidationError(fmt.Sprintf("target %q is not one of github, jira", in.Target))
	}
	if in.ApprovedPlanID != "" {
		if err := ValidateIdentifier("planId", in.ApprovedPlanID); err != nil {
			return err
		}
	}
	if in.LabelPolicy == "" {
		in.LabelPolicy = tickets.LabelPolicyRequireExisting
	}
	return nil
}

// CreateTickets resolves the requested tracker target, loads the run's
// findings, and delegates to the ticket writer's dry-run/execute flow.
func (h *Handlers) CreateTickets(ctx context.Context, in CreateTicketsInput) (types.CreateTicketsResponse, error) {
	const tool = "create_tickets"
	if err := in.validate(); err != nil {
		h.toolError(tool, err)
		return types.CreateTicketsResponse{}, err
	}
	runID, err := resolveRunID(in.RepoPath, in.RunID)
	if err != nil {
		h.toolError(tool, err)
		return types.CreateTicketsResponse{}, err
	}
	if err := h.toolStart(tool, map[string]interface{}{
		"repoPath": in.RepoPath, "runId": runID, "target": in.Target, "dryRun": in.DryRun,
	}); err != nil {
		return types.CreateTicketsResponse{}, fmt.Errorf("appending tool_start: %w", err)
	}

	resp, err := h.executeCreateTickets(ctx, in, runID)
	if err != nil {
		h.toolError(tool, err)
		return types.CreateTicketsResponse{}, err
	}

	if err := h.toolEnd(tool, map[string]interface{}{
		"runId": runID, "planId": resp.PlanID, "dryRun": resp.DryRun,
		"created": len(resp.Created), "wouldCreate": len(resp.WouldCreate),
	}); err != nil {
		h.Logger.WithComponent("handlers").WithError(err).Warn("failed to append tool_end audit entry")
	}
	return resp, nil
}

func (h *Handlers) executeCreateTickets(ctx context.Context, in CreateTicketsInput, runID string) (types.CreateTicketsResponse, error) {
	result, err := loadScanResult(in.RepoPath, runID)
	if err != nil {
		return types.CreateTicketsResponse{}, err
	}

	target, err := h.resolveTarget(ctx, in.Target, in.RepoPath, in.TargetRepo)
	if err != nil {
		return types.CreateTicketsResponse{}, err
	}

	labelPolicy := in.LabelPolicy
	if labelPolicy == "" {
		labelPolicy = tickets.LabelPolicyRequireExisting
	}

	return tickets.CreateTickets(ctx, tickets.CreateTicketsInput{
		RepoRoot:       in.RepoPath,
		Findings:       result.Findings,
		Framework:      result.Framework,
		RunID:          runID,
		Target:         target,
		DryRun:         in.DryRun,
		ApprovedPlanID: in.ApprovedPlanID,
		ReopenClosed:   in.ReopenClosed,
		LabelPolicy:    labelPolicy,
		MaxItems:       in.MaxItems,
		Cache:          in.Cache,
		Logger:         h.Logger,
	})
}

func (h *Handlers) resolveTarget(ctx context.Context, kind types.TicketTargetKind, repoPath, targetRepo string) (tickets.Target, error) {
	switch kind {
	case types.TicketTargetGitHub:
		owner, repo, err := tickets.ResolveGitHubOwnerRepo(repoPath, targetRepo)
		if err != nil {
			return nil, fmt.Errorf("resolving github target: %w", err)
		}
		return tickets.NewGitHubTarget(ctx, owner, repo, h.Config.GitHub, h.Tracer, h.Logger)
	case types.TicketTargetJira:
		cfg := h.Config.Jira
		if targetRepo != "" {
			cfg.ProjectKey = targetRepo
		}
		return tickets.NewJiraTarget(cfg, h.Tracer, h.Logger), nil
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported ticket target %q", kind))
	}
}

// ApproveTicketPlanInput is approve_ticket_plan's request record.
type ApproveTicketPlanInput struct {
	RepoPath   string
	PlanID     string
	ApprovedBy string
	Reason     string
}

// ApproveTicketPlanOutput mirrors section 4.11's output row.
type ApproveTicketPlanOutput struct {
	PlanID       string    `json:"planId"`
	ApprovedAt   time.Time `json:"approvedAt"`
	ApprovalPath string    `json:"approvalPath"`
}

// ApproveTicketPlan approves a previously dry-run plan, copying (never
// recomputing) its hash and repo identity per the tamper/replay-binding
// design.
func (h *Handlers) ApproveTicketPlan(ctx context.Context, in ApproveTicketPlanInput) (ApproveTicketPlanOutput, error) {
	const tool = "approve_ticket_plan"
	if err := policy.PreflightRepoPath(in.RepoPath); err != nil {
		h.toolError(tool, err)
		return ApproveTicketPlanOutput{}, err
	}
	if err := ValidateIdentifier("planId", in.PlanID); err != nil {
		h.toolError(tool, err)
		return ApproveTicketPlanOutput{}, err
	}
	if in.ApprovedBy == "" {
		err := apperrors.NewValidationError("approvedBy is required")
		h.toolError(tool, err)
		return ApproveTicketPlanOutput{}, err
	}
	if err := h.toolStart(tool, map[string]string{"repoPath": in.RepoPath, "planId": in.PlanID}); err != nil {
		return ApproveTicketPlanOutput{}, fmt.Errorf("appending tool_start: %w", err)
	}

	approval, approvalPath, err := tickets.Approve(in.RepoPath, in.PlanID, in.ApprovedBy, in.Reason, time.Now().UTC())
	if err != nil {
		h.toolError(tool, err)
		return ApproveTicketPlanOutput{}, err
	}

	out := ApproveTicketPlanOutput{PlanID: in.PlanID, ApprovedAt: approval.ApprovedAt, ApprovalPath: approvalPath}
	if err := h.toolEnd(tool, out); err != nil {
		h.Logger.WithComponent("handlers").WithError(err).Warn("failed to append tool_end audit entry")
	}
	return out, nil
}
