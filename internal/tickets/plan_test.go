package tickets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complynav/compliance-navigator/pkg/types"
)

func TestBuildPlanItems_ExcludesMetaFindings(t *testing.T) {
	findings := []types.Finding{
		{ID: "meta", Scanner: types.ScannerCheckov, Tags: []string{types.MetaFindingTag}},
	}
	items := BuildPlanItems(findings, types.FrameworkSOC2, "run-1", 0)
	assert.Empty(t, items)
}

func TestBuildPlanItems_TitleFormat(t *testing.T) {
	findings := []types.Finding{
		{ID: "f1", Scanner: types.ScannerGitleaks, Severity: types.SeverityCritical, Title: "hardcoded secret"},
	}
	items := BuildPlanItems(findings, types.FrameworkHIPAA, "run-1", 0)
	require.Len(t, items, 1)
	assert.Equal(t, "[HIPAA][CRITICAL][gitleaks] hardcoded secret", items[0].Title)
}

func TestBuildPlanItems_BodyContainsMarkers(t *testing.T) {
	findings := []types.Finding{{ID: "f1", Scanner: types.ScannerGitleaks, Severity: types.SeverityHigh, Title: "t"}}
	items := BuildPlanItems(findings, types.FrameworkSOC2, "run-42", 0)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Body, "CN-FINDING-ID: f1")
	assert.Contains(t, items[0].Body, "CN-RUN-ID: run-42")
	assert.Equal(t, "CN-FINDING-ID: f1", items[0].DedupeQuery)
}

func TestBuildPlanItems_SortsBySeverity(t *testing.T) {
	findings := []types.Finding{
		{ID: "low", Severity: types.SeverityLow},
		{ID: "crit", Severity: types.SeverityCritical},
	}
	items := BuildPlanItems(findings, types.FrameworkSOC2, "run-1", 0)
	require.Len(t, items, 2)
	assert.Equal(t, "crit", items[0].FindingID)
}
