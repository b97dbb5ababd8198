package remediation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complynav/compliance-navigator/pkg/types"
)

func TestBuild_SortsBySeverityAscending(t *testing.T) {
	findings := []types.Finding{
		{ID: "f1", Severity: types.SeverityLow, Title: "low thing"},
		{ID: "f2", Severity: types.SeverityCritical, Title: "critical thing"},
		{ID: "f3", Severity: types.SeverityMedium, Title: "medium thing"},
	}
	plan := Build("run-1", findings, 0)
	require.Len(t, plan.Items, 3)
	assert.Equal(t, types.SeverityCritical, plan.Items[0].Severity)
	assert.Equal(t, types.SeverityMedium, plan.Items[1].Severity)
	assert.Equal(t, types.SeverityLow, plan.Items[2].Severity)
	assert.Equal(t, "REM-1", plan.Items[0].ID)
}

func TestBuild_CapsAtMaxItems(t *testing.T) {
	var findings []types.Finding
	for i := 0; i < 30; i++ {
		findings = append(findings, types.Finding{ID: string(rune('a' + i)), Severity: types.SeverityLow})
	}
	plan := Build("run-1", findings, 0)
	assert.Len(t, plan.Items, 20)
}

func TestBuild_ExcludesMetaFindings(t *testing.T) {
	findings := []types.Finding{
		{ID: "meta", Severity: types.SeverityCritical, Tags: []string{types.MetaFindingTag}},
	}
	plan := Build("run-1", findings, 0)
	assert.Empty(t, plan.Items)
}

func TestBuild_DescriptionFallbackChain(t *testing.T) {
	findings := []types.Finding{
		{ID: "f1", Severity: types.SeverityHigh, Title: "title only"},
		{ID: "f2", Severity: types.SeverityHigh, Title: "t", Description: "desc"},
		{ID: "f3", Severity: types.SeverityHigh, Title: "t", Description: "d", Remediation: "fix it"},
	}
	plan := Build("run-1", findings, 0)
	assert.Equal(t, "title only", plan.Items[0].Description)
	assert.Equal(t, "desc", plan.Items[1].Description)
	assert.Equal(t, "fix it", plan.Items[2].Description)
}

func TestBuild_TotalEstimatedHours(t *testing.T) {
	findings := []types.Finding{
		{ID: "f1", Severity: types.SeverityCritical}, // 120m
		{ID: "f2", Severity: types.SeverityHigh},      // 60m
	}
	plan := Build("run-1", findings, 0)
	assert.InDelta(t, 3.0, plan.TotalEstimatedHours, 0.01)
}

func TestRenderMarkdown_ContainsItems(t *testing.T) {
	plan := Build("run-1", []types.Finding{{ID: "f1", Severity: types.SeverityHigh, Title: "fix me", File: "a.go"}}, 0)
	md := RenderMarkdown(plan)
	assert.Contains(t, md, "REM-1")
	assert.Contains(t, md, "fix me")
	assert.Contains(t, md, "a.go")
}
