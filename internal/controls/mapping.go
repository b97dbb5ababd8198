package controls

import "github.com/complynav/compliance-navigator/pkg/types"

// controlMapping is the per-control intermediate result before it is turned
// into a ControlDetail or dropped for having zero findings.
type controlMapping struct {
	control       Control
	findingIDs    []string // deduplicated, first-seen order
	peakConfidence float64
}

// MapFindingsToControls implements C6's mapFindingsToControls: for each
// control (iterated in declared order), collect findings from any scanner
// listed in its mappings, drop controls with zero findings, and carry each
// control's peak mapping confidence. Findings inside a mapping are
// deduplicated by ID, preserving first-seen order.
func MapFindingsToControls(findings []types.Finding, framework types.Framework) map[string]controlMapping {
	byScanner := make(map[types.ScannerKind][]types.Finding)
	for _, f := range findings {
		if f.IsMetaFinding() {
			continue
		}
		byScanner[f.Scanner] = append(byScanner[f.Scanner], f)
	}

	result := make(map[string]controlMapping)
	for _, c := range Load(framework) {
		if len(c.ScannerMappings) == 0 {
			continue
		}

		seen := make(map[string]bool)
		var ids []string
		var peak float64
		for _, m := range c.ScannerMappings {
			for _, f := range byScanner[m.Scanner] {
				if !seen[f.ID] {
					seen[f.ID] = true
					ids = append(ids, f.ID)
				}
			}
			if m.Confidence > peak {
				peak = m.Confidence
			}
		}

		if len(ids) == 0 {
			continue
		}
		result[c.ID] = controlMapping{control: c, findingIDs: ids, peakConfidence: peak}
	}
	return result
}

// ComputeCoverage implements C6's computeCoverage: three percentages plus a
// ControlDetails row for every control in the sealed set (covered or gap).
// It is defensive — it only honours mapping control IDs that are actually
// present in the control set for framework.
func ComputeCoverage(findings []types.Finding, framework types.Framework, scannerStatuses []types.ScannerStatus) types.CoverageResult {
	allControls := Load(framework)
	mappings := MapFindingsToControls(findings, framework)

	statusByScanner := make(map[types.ScannerKind]types.RunStatus)
	for _, s := range scannerStatuses {
		statusByScanner[s.Scanner] = s.Status
	}

	var covered, potential, full []string
	var details []types.ControlDetail

	denominatorEligible := func(c Control) bool {
		return !c.RequiresHumanEvidence && len(c.ScannerMappings) > 0
	}

	for _, c := range allControls {
		status := "gap"
		findingCount := 0
		if mc, ok := mappings[c.ID]; ok {
			status = "covered"
			findingCount = len(mc.findingIDs)
		}
		details = append(details, types.ControlDetail{
			ID:           c.ID,
			Name:         c.Name,
			Status:       status,
			FindingCount: findingCount,
		})

		if !denominatorEligible(c) {
			continue
		}

		_, isCovered := mappings[c.ID]
		if isCovered {
			covered = append(covered, c.ID)
		}

		reachablePotential := false
		for _, m := range c.ScannerMappings {
			st, ok := statusByScanner[m.Scanner]
			if ok && (st == types.RunStatusOK || st == types.RunStatusSkipped) {
				reachablePotential = true
				break
			}
		}
		if reachablePotential {
			potential = append(potential, c.ID)
		}

		full = append(full, c.ID)
	}

	pct := func(numerator []string) float64 {
		if len(full) == 0 {
			return 0
		}
		return round2(100 * float64(len(numerator)) / float64(len(full)))
	}

	return types.CoverageResult{
		CoveragePct:          pct(covered),
		CoveragePctPotential: pct(potential),
		CoveragePctFull:      pct(full),
		CoveredControlIDs:    covered,
		PotentialControlIDs:  potential,
		FullControlIDs:       full,
		ControlDetails:       details,
	}
}

// AnnotateFindings implements C6's annotateFindings: back-annotate each
// finding with the controls it was mapped to, the peak confidence across
// those controls, and a per-scanner rationale string.
func AnnotateFindings(findings []types.Finding, framework types.Framework) []types.Finding {
	mappings := MapFindingsToControls(findings, framework)

	controlsByFinding := make(map[string][]string)
	peakByFinding := make(map[string]float64)
	for _, c := range Load(framework) {
		mc, ok := mappings[c.ID]
		if !ok {
			continue
		}
		for _, fid := range mc.findingIDs {
			controlsByFinding[fid] = append(controlsByFinding[fid], c.ID)
			if mc.peakConfidence > peakByFinding[fid] {
				peakByFinding[fid] = mc.peakConfidence
			}
		}
	}

	out := make([]types.Finding, len(findings))
	for i, f := range findings {
		out[i] = f
		ids, ok := controlsByFinding[f.ID]
		if !ok {
			continue
		}
		if out[i].Controls == nil {
			out[i].Controls = make(map[types.Framework]types.ControlAnnotation)
		}
		out[i].Controls[framework] = types.ControlAnnotation{
			IDs:        ids,
			Rationale:  "mapped via " + string(f.Scanner) + " scanner heuristic",
			Confidence: peakByFinding[f.ID],
		}
	}
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
