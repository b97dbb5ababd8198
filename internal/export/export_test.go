package export

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, repoRoot string) (auditPacketDir, evidenceDir string) {
	t.Helper()
	runDir := filepath.Join(repoRoot, ".compliance", "runs", "run-1")
	auditPacketDir = filepath.Join(runDir, "audit_packet")
	evidenceDir = filepath.Join(runDir, "evidence")
	require.NoError(t, os.MkdirAll(auditPacketDir, 0o755))
	require.NoError(t, os.MkdirAll(evidenceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(auditPacketDir, "index.md"), []byte("# report\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(evidenceDir, "gitleaks.json"), []byte("[]"), 0o644))
	return
}

func TestWrite_ProducesDeterministicArchive(t *testing.T) {
	repoRoot := t.TempDir()
	auditPacketDir, evidenceDir := writeFixture(t, repoRoot)
	zipPath := filepath.Join(repoRoot, ".compliance", "exports", "run-1", "audit_packet.zip")

	r1, err := Write(repoRoot, zipPath, auditPacketDir, evidenceDir, true)
	require.NoError(t, err)
	assert.True(t, r1.IncludesEvidence)
	assert.NotEmpty(t, r1.SHA256)

	zipPath2 := filepath.Join(repoRoot, ".compliance", "exports", "run-1", "audit_packet_2.zip")
	r2, err := Write(repoRoot, zipPath2, auditPacketDir, evidenceDir, true)
	require.NoError(t, err)
	assert.Equal(t, r1.SHA256, r2.SHA256)

	zr, err := zip.OpenReader(r1.ZipPath)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "audit_packet/index.md")
	assert.Contains(t, names, "evidence/gitleaks.json")
}

func TestWrite_ExcludesEvidenceWhenNotRequested(t *testing.T) {
	repoRoot := t.TempDir()
	auditPacketDir, evidenceDir := writeFixture(t, repoRoot)
	zipPath := filepath.Join(repoRoot, ".compliance", "exports", "run-1", "audit_packet.zip")

	r, err := Write(repoRoot, zipPath, auditPacketDir, evidenceDir, false)
	require.NoError(t, err)
	assert.False(t, r.IncludesEvidence)

	zr, err := zip.OpenReader(r.ZipPath)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		assert.NotContains(t, f.Name, "evidence/")
	}
}

func TestWrite_RejectsEscapingPath(t *testing.T) {
	repoRoot := t.TempDir()
	auditPacketDir, evidenceDir := writeFixture(t, repoRoot)
	_, err := Write(repoRoot, filepath.Join(repoRoot, "..", "evil.zip"), auditPacketDir, evidenceDir, false)
	assert.Error(t, err)
}
