package packet

import (
	"fmt"
	"sort"
	"strings"

	"github.com/complynav/compliance-navigator/internal/roi"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// renderIndexMarkdown builds the executive report: summary table, top-3 risk
// themes, scanner statuses, control coverage, coverage gaps, top 10 findings
// by severity, recommended actions, ROI, scope limitations, policy block,
// and evidence pointers.
func renderIndexMarkdown(result types.ScanResult, remediation *types.RemediationPlan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Compliance Audit Report\n\n")
	fmt.Fprintf(&b, "Run: `%s`  \nFramework: `%s`  \nRepo: `%s`  \nGenerated: %s\n\n",
		result.RunID, result.Framework, result.RepoPath, result.Manifest.GeneratedAt)

	b.WriteString("## Summary\n\n")
	b.WriteString("| Severity | Count |\n|---|---|\n")
	for _, sev := range types.SeverityOrder {
		fmt.Fprintf(&b, "| %s | %d |\n", sev, result.CountsBySeverity[sev])
	}
	b.WriteString("\n")

	b.WriteString("## Top risk themes\n\n")
	for i, theme := range topRiskThemes(result.Findings, 3) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, theme)
	}
	b.WriteString("\n")

	b.WriteString("## Scanner statuses\n\n")
	b.WriteString("| Scanner | Status | Findings | Version |\n|---|---|---|---|\n")
	for _, s := range result.ScannerStatuses {
		fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", s.Scanner, s.Status, s.FindingCount, s.Version)
	}
	b.WriteString("\n")

	b.WriteString("## Control coverage\n\n")
	fmt.Fprintf(&b, "Covered: **%.2f%%**  Potential: **%.2f%%**  Full: **%.2f%%**\n\n",
		result.ControlCoverage.CoveragePct, result.ControlCoverage.CoveragePctPotential, result.ControlCoverage.CoveragePctFull)
	for _, d := range result.ControlCoverage.ControlDetails {
		if d.Status == "covered" {
			fmt.Fprintf(&b, "- %s — %s (%d finding(s))\n", d.ID, d.Name, d.FindingCount)
		}
	}
	b.WriteString("\n")

	b.WriteString("### Coverage gaps\n\n")
	for _, d := range result.ControlCoverage.ControlDetails {
		if d.Status == "gap" {
			fmt.Fprintf(&b, "- %s — %s\n", d.ID, d.Name)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Top findings\n\n")
	for i, f := range topFindingsBySeverity(result.Findings, 10) {
		fmt.Fprintf(&b, "%d. **%s** [%s/%s] %s — %s:%d\n", i+1, f.Severity, f.Scanner, f.ID, f.Title, f.File, f.Line)
	}
	b.WriteString("\n")

	if remediation != nil {
		b.WriteString("## Recommended actions\n\n")
		for _, item := range remediation.Items {
			fmt.Fprintf(&b, "- `%s` (%s, ~%dm): %s\n", item.ID, item.Severity, item.EstimatedMinutes, item.Title)
		}
		b.WriteString("\n")
	}

	b.WriteString("## ROI\n\n")
	for _, row := range result.ROIEstimate.Breakdown {
		fmt.Fprintf(&b, "- %s\n", roi.Summary(row))
	}
	fmt.Fprintf(&b, "\nConservative: **%.2fh**  Likely: **%.2fh**\n\n", result.ROIEstimate.HoursSavedConservative, result.ROIEstimate.HoursSavedLikely)
	fmt.Fprintf(&b, "> %s\n\n", result.ROIEstimate.Basis)

	b.WriteString("## Scope limitations\n\n")
	b.WriteString("This report reflects only what the configured scanners could observe in a single pass. " +
		"Controls marked `requiresHumanEvidence` can never be satisfied by this system alone. " +
		"Absence of a finding is not proof of absence of risk.\n\n")

	b.WriteString("## Policy\n\n")
	fmt.Fprintf(&b, "Execution model: %s\n\n", result.Manifest.Policy.ExecutionModel)
	b.WriteString("Allowed commands:\n\n")
	for _, d := range result.Manifest.Policy.CommandAllowlistDescriptions {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	b.WriteString("\n")

	b.WriteString("## Evidence\n\n")
	fmt.Fprintf(&b, "See `evidence/` in this directory for raw scanner stdout/stderr.\n")

	return b.String()
}

func topRiskThemes(findings []types.Finding, n int) []string {
	counts := make(map[types.ScannerKind]int)
	for _, f := range findings {
		if f.IsMetaFinding() {
			continue
		}
		counts[f.Scanner]++
	}
	type row struct {
		scanner types.ScannerKind
		count   int
	}
	var rows []row
	for k, c := range counts {
		rows = append(rows, row{k, c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].scanner < rows[j].scanner
	})
	var themes []string
	for i, r := range rows {
		if i >= n {
			break
		}
		themes = append(themes, fmt.Sprintf("%s produced %d finding(s)", r.scanner, r.count))
	}
	if len(themes) == 0 {
		themes = append(themes, "No findings surfaced in this run.")
	}
	return themes
}

func topFindingsBySeverity(findings []types.Finding, n int) []types.Finding {
	ordered := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		if !f.IsMetaFinding() {
			ordered = append(ordered, f)
		}
	}
	rank := make(map[types.Severity]int, len(types.SeverityOrder))
	for i, s := range types.SeverityOrder {
		rank[s] = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank[ordered[i].Severity] < rank[ordered[j].Severity]
	})
	if len(ordered) > n {
		ordered = ordered[:n]
	}
	return ordered
}
