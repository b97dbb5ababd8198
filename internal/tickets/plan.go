package tickets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/complynav/compliance-navigator/pkg/types"
)

// BuildPlanItems implements buildPlanItems(findings, runId, maxItems):
// filters out scanner-missing meta-findings, sorts by severity, and builds
// one PlanItem per finding. maxItems <= 0 means unlimited.
func BuildPlanItems(findings []types.Finding, framework types.Framework, runID string, maxItems int) []types.PlanItem {
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

	if maxItems > 0 && len(candidates) > maxItems {
		candidates = candidates[:maxItems]
	}

	items := make([]types.PlanItem, 0, len(candidates))
	for _, f := range candidates {
		items = append(items, types.PlanItem{
			FindingID:   f.ID,
			Title:       planTitle(f, framework),
			Body:        planBody(f, runID),
			Labels:      planLabels(f),
			DedupeQuery: marker(f.ID),
		})
	}
	return items
}

func planTitle(f types.Finding, framework types.Framework) string {
	return fmt.Sprintf("[%s][%s][%s] %s", strings.ToUpper(string(framework)), strings.ToUpper(string(f.Severity)), f.Scanner, f.Title)
}

func planBody(f types.Finding, runID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Scanner:** %s\n**Severity:** %s\n", f.Scanner, f.Severity)
	if f.File != "" {
		fmt.Fprintf(&b, "**Location:** %s:%d\n", f.File, f.Line)
	}
	if f.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", f.Description)
	}
	if f.Remediation != "" {
		fmt.Fprintf(&b, "\n**Suggested remediation:** %s\n", f.Remediation)
	}
	fmt.Fprintf(&b, "\n---\nCN-FINDING-ID: %s\nCN-RUN-ID: %s\n", f.ID, runID)
	return b.String()
}

func planLabels(f types.Finding) []string {
	return []string{"compliance-navigator", "severity:" + string(f.Severity), "scanner:" + string(f.Scanner)}
}

func marker(findingID string) string {
	return "CN-FINDING-ID: " + findingID
}
