// Package remediation implements the Remediation Planner (C9): it sorts
// findings into a severity-ordered, capped plan of actionable items.
package remediation

import (
	"fmt"
	"sort"

	"github.com/complynav/compliance-navigator/pkg/types"
)

const defaultMaxItems = 20

// estimatedMinutes is the fixed severity-indexed time table per spec.md 4.9.
var estimatedMinutes = map[types.Severity]int{
	types.SeverityCritical: 120,
	types.SeverityHigh:     60,
	types.SeverityMedium:   30,
	types.SeverityLow:      15,
	types.SeverityInfo:     5,
}

// Build sorts findings ascending by the five-value severity order, takes
// maxItems (0 means the default of 20), and emits one RemediationItem per
// finding. Meta-findings never produce an item — there is nothing to remediate
// about a scanner that didn't run.
func Build(runID string, findings []types.Finding, maxItems int) types.RemediationPlan {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	rank := make(map[types.Severity]int, len(types.SeverityOrder))
	for i, s := range types.SeverityOrder {
		rank[s] = i
	}

	candidates := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		if !f.IsMetaFinding() {
			candidates = append(candidates, f)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return rank[candidates[i].Severity] < rank[candidates[j].Severity]
	})

	if len(candidates) > maxItems {
		candidates = candidates[:maxItems]
	}

	var totalMinutes int
	items := make([]types.RemediationItem, 0, len(candidates))
	for i, f := range candidates {
		minutes := estimatedMinutes[f.Severity]
		description := f.Remediation
		if description == "" {
			description = f.Description
		}
		if description == "" {
			description = f.Title
		}

		var controlIDs []string
		for _, ann := range f.Controls {
			controlIDs = append(controlIDs, ann.IDs...)
		}

		items = append(items, types.RemediationItem{
			ID:               fmt.Sprintf("REM-%d", i+1),
			Priority:         i + 1,
			Title:            f.Title,
			Description:      description,
			Severity:         f.Severity,
			Files:            fileList(f),
			Controls:         controlIDs,
			EstimatedMinutes: minutes,
		})
		totalMinutes += minutes
	}

	return types.RemediationPlan{
		RunID:               runID,
		Items:               items,
		TotalEstimatedHours: round2(float64(totalMinutes) / 60.0),
	}
}

func fileList(f types.Finding) []string {
	if f.File == "" {
		return nil
	}
	return []string{f.File}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// RenderMarkdown produces the human-readable companion to the plan's JSON
// serialisation.
func RenderMarkdown(plan types.RemediationPlan) string {
	out := fmt.Sprintf("# Remediation plan\n\nRun: `%s`  \nTotal estimated effort: **%.2fh**\n\n", plan.RunID, plan.TotalEstimatedHours)
	for _, item := range plan.Items {
		out += fmt.Sprintf("## %s — %s\n\nSeverity: `%s`  \nEstimated time: %dm\n\n%s\n\n",
			item.ID, item.Title, item.Severity, item.EstimatedMinutes, item.Description)
		if len(item.Files) > 0 {
			out += "Files:\n"
			for _, f := range item.Files {
				out += fmt.Sprintf("- %s\n", f)
			}
			out += "\n"
		}
		if len(item.Controls) > 0 {
			out += "Controls: "
			for i, c := range item.Controls {
				if i > 0 {
					out += ", "
				}
				out += c
			}
			out += "\n\n"
		}
	}
	return out
}
