package policy

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/complynav/compliance-navigator/pkg/errors"
)

func TestAssertUnder_AllowsRootAndNested(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".compliance")

	canon, err := AssertUnder(root, root)
	require.NoError(t, err)
	assert.NotEmpty(t, canon)

	nested := filepath.Join(root, "runs", "r1", "scan_result.json")
	_, err = AssertUnder(root, nested)
	require.NoError(t, err)
}

func TestAssertUnder_RejectsEscape(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".compliance")
	escape := filepath.Join(dir, "..", "evil")

	_, err := AssertUnder(root, escape)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypePathEscape, appErr.Type)
}

func TestAssertUnder_RejectsSiblingWithSamePrefix(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".compliance")
	sibling := filepath.Join(dir, ".compliance-evil")

	_, err := AssertUnder(root, sibling)
	require.Error(t, err)
}

func TestPreflightRepoPath(t *testing.T) {
	require.NoError(t, PreflightRepoPath("/home/user/repo"))
	require.Error(t, PreflightRepoPath("/home/user/../etc"))
	require.Error(t, PreflightRepoPath("/home/user/\x00repo"))
}
