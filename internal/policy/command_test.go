package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertAllowed(t *testing.T) {
	ok := CommandLine("gitleaks", "detect", "--source", "/repo", "--report-format", "json", "--report-path", "/repo/.compliance/runs/r1/evidence/gitleaks.json", "--no-git", "-v")
	require.NoError(t, AssertAllowed(ok))

	bad := CommandLine("rm", "-rf", "/")
	require.Error(t, AssertAllowed(bad))
}

func TestAssertArgsSafe(t *testing.T) {
	require.NoError(t, AssertArgsSafe([]string{"detect", "--source", "/repo"}))
	require.Error(t, AssertArgsSafe([]string{"detect", "--source", "/repo & rm -rf /"}))
}

func TestDescriptionsNonEmpty(t *testing.T) {
	descs := Descriptions()
	assert.NotEmpty(t, descs)
	for _, d := range descs {
		assert.NotEmpty(t, d)
	}
}
