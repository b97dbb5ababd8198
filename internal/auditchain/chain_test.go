package auditchain

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndVerify_Empty(t *testing.T) {
	dir := t.TempDir()
	result, err := Verify(filepath.Join(dir, "missing.jsonl"))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 0, result.TotalEntries)
}

func TestAppendAndVerify_Chain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	chain := New(path)

	_, err := chain.Append(Now(), "tool_start", "scan_repo", map[string]string{"runId": "r1"})
	require.NoError(t, err)
	_, err = chain.Append(Now(), "tool_end", "scan_repo", map[string]string{"runId": "r1", "status": "ok"})
	require.NoError(t, err)

	result, err := Verify(path)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.TotalEntries)
}

func TestVerify_DetectsTamper(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	chain := New(path)

	for i := 0; i < 3; i++ {
		_, err := chain.Append(Now(), "tool_start", "scan_repo", nil)
		require.NoError(t, err)
	}

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	tampered := strings.Replace(lines[2], `"tool_start"`, `"tool_xxxx"`, 1)
	lines[2] = tampered
	writeLines(t, path, lines)

	result, err := Verify(path)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.BrokenAt)
	assert.Equal(t, "hash mismatch", result.BrokenReason)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}
