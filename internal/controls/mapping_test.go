package controls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complynav/compliance-navigator/pkg/types"
)

func sampleFindings() []types.Finding {
	return []types.Finding{
		{ID: "f1", Scanner: types.ScannerGitleaks, Severity: types.SeverityCritical},
		{ID: "f2", Scanner: types.ScannerGitleaks, Severity: types.SeverityHigh},
		{ID: "f3", Scanner: types.ScannerNpmAudit, Severity: types.SeverityHigh},
		{ID: "meta1", Scanner: types.ScannerCheckov, Tags: []string{types.MetaFindingTag}},
	}
}

func TestMapFindingsToControls_Deterministic(t *testing.T) {
	findings := sampleFindings()
	first := MapFindingsToControls(findings, types.FrameworkSOC2)
	second := MapFindingsToControls(findings, types.FrameworkSOC2)
	assert.Equal(t, first, second)

	cc61, ok := first["CC6.1"]
	require.True(t, ok)
	assert.Equal(t, []string{"f1", "f2"}, cc61.findingIDs)
}

func TestMapFindingsToControls_DropsZeroFindingControls(t *testing.T) {
	findings := []types.Finding{{ID: "f1", Scanner: types.ScannerGitleaks}}
	mappings := MapFindingsToControls(findings, types.FrameworkSOC2)
	_, ok := mappings["CC6.6"] // checkov-only control, no checkov findings present
	assert.False(t, ok)
}

func TestMapFindingsToControls_ExcludesMetaFindings(t *testing.T) {
	findings := []types.Finding{
		{ID: "meta1", Scanner: types.ScannerCheckov, Tags: []string{types.MetaFindingTag}},
	}
	mappings := MapFindingsToControls(findings, types.FrameworkSOC2)
	_, ok := mappings["CC6.6"]
	assert.False(t, ok, "meta-findings must never satisfy a control")
}

func TestMapFindingsToControls_DedupesByID(t *testing.T) {
	findings := []types.Finding{
		{ID: "dup", Scanner: types.ScannerGitleaks},
		{ID: "dup", Scanner: types.ScannerGitleaks},
	}
	mappings := MapFindingsToControls(findings, types.FrameworkSOC2)
	assert.Equal(t, []string{"dup"}, mappings["CC6.1"].findingIDs)
}

func TestComputeCoverage_OrderingInvariant(t *testing.T) {
	findings := sampleFindings()
	statuses := []types.ScannerStatus{
		{Scanner: types.ScannerGitleaks, Status: types.RunStatusOK},
		{Scanner: types.ScannerNpmAudit, Status: types.RunStatusOK},
		{Scanner: types.ScannerCheckov, Status: types.RunStatusMissing},
	}

	result := ComputeCoverage(findings, types.FrameworkSOC2, statuses)

	assert.LessOrEqual(t, result.CoveragePct, result.CoveragePctPotential)
	assert.LessOrEqual(t, result.CoveragePctPotential, result.CoveragePctFull)
	assert.NotEmpty(t, result.ControlDetails)

	for _, d := range result.ControlDetails {
		assert.Contains(t, []string{"covered", "gap"}, d.Status)
	}
}

func TestComputeCoverage_ExcludesHumanEvidenceControlsFromDenominator(t *testing.T) {
	result := ComputeCoverage(nil, types.FrameworkSOC2, nil)
	for _, id := range result.FullControlIDs {
		assert.NotEqual(t, "CC1.1", id, "human-evidence-only controls must be excluded from the coverage denominator")
	}
}

func TestComputeCoverage_HIPAAAdministrativeExcluded(t *testing.T) {
	result := ComputeCoverage(nil, types.FrameworkHIPAA, nil)
	for _, id := range result.FullControlIDs {
		assert.NotContains(t, id, "164.308")
	}
}

func TestAnnotateFindings_BackAnnotates(t *testing.T) {
	findings := sampleFindings()
	annotated := AnnotateFindings(findings, types.FrameworkSOC2)

	var f1 *types.Finding
	for i := range annotated {
		if annotated[i].ID == "f1" {
			f1 = &annotated[i]
		}
	}
	require.NotNil(t, f1)
	ann, ok := f1.Controls[types.FrameworkSOC2]
	require.True(t, ok)
	assert.Contains(t, ann.IDs, "CC6.1")
	assert.Greater(t, ann.Confidence, 0.0)
}

func TestAnnotateFindings_LeavesUnmappedFindingsAlone(t *testing.T) {
	findings := []types.Finding{{ID: "lonely", Scanner: types.ScannerNpmAudit, Tags: []string{types.MetaFindingTag}}}
	annotated := AnnotateFindings(findings, types.FrameworkSOC2)
	require.Len(t, annotated, 1)
	assert.Nil(t, annotated[0].Controls)
}
