// Package roi implements the ROI Estimator (C7): a table-driven minutes-per-
// finding model that turns a finding set into an hours-saved estimate under
// two bounding multipliers. The constants here are unvalidated defaults, not
// a calibrated industry benchmark — Basis says so on every estimate.
package roi

import (
	"fmt"
	"sort"

	"github.com/complynav/compliance-navigator/pkg/types"
)

// conservativeMultiplier and likelyMultiplier are fixed per spec.md 4.7.
const (
	conservativeMultiplier = 1.0
	likelyMultiplier       = 1.8
)

// minutesPerFinding is the table-driven estimate of manual triage-and-fix
// time per finding, by scanner. These are placeholders pending calibration
// against real remediation telemetry.
var minutesPerFinding = map[types.ScannerKind]int{
	types.ScannerGitleaks: 25,
	types.ScannerNpmAudit: 20,
	types.ScannerCheckov:  30,
}

const defaultMinutesPerFinding = 20

const basisDisclaimer = "Minutes-per-finding are unvalidated defaults, not a calibrated industry benchmark. " +
	"hoursSaved uses a 1.0x conservative multiplier; hoursSavedLikely uses a 1.8x multiplier reflecting " +
	"typical context-switching and verification overhead. Treat both as directional, not contractual."

// Estimate implements roi(findings): aggregates per-scanner counts times
// configurable per-finding minutes and emits conservative/likely bounds.
// Meta-findings (scanner-missing) are excluded — a missing scanner produced
// no work to be saved.
func Estimate(findings []types.Finding) types.ROIEstimate {
	countByScanner := make(map[types.ScannerKind]int)
	for _, f := range findings {
		if f.IsMetaFinding() {
			continue
		}
		countByScanner[f.Scanner]++
	}

	scanners := make([]types.ScannerKind, 0, len(countByScanner))
	for k := range countByScanner {
		scanners = append(scanners, k)
	}
	sort.Slice(scanners, func(i, j int) bool { return scanners[i] < scanners[j] })

	var totalHours float64
	breakdown := make([]types.ROIBreakdownRow, 0, len(scanners))
	for _, scanner := range scanners {
		count := countByScanner[scanner]
		minutes, ok := minutesPerFinding[scanner]
		if !ok {
			minutes = defaultMinutesPerFinding
		}
		hours := round2(float64(count*minutes) / 60.0)
		totalHours += hours
		breakdown = append(breakdown, types.ROIBreakdownRow{
			Scanner:      scanner,
			FindingCount: count,
			MinutesEach:  minutes,
			HoursSaved:   hours,
		})
	}
	totalHours = round2(totalHours)

	return types.ROIEstimate{
		HoursSaved:             round2(totalHours * conservativeMultiplier),
		HoursSavedConservative: round2(totalHours * conservativeMultiplier),
		HoursSavedLikely:       round2(totalHours * likelyMultiplier),
		Basis:                  basisDisclaimer,
		Breakdown:              breakdown,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// Summary renders a one-line human string for index.md, e.g.
// "gitleaks: 3 findings x 25min = 1.25h".
func Summary(row types.ROIBreakdownRow) string {
	return fmt.Sprintf("%s: %d findings x %dmin = %.2fh", row.Scanner, row.FindingCount, row.MinutesEach, row.HoursSaved)
}
