// Package export builds the deterministic audit-packet archive that
// export_audit_packet hands back to a caller: a zip of audit_packet/ (and
// optionally evidence/), built at the highest compression level, with the
// finished file's SHA-256 reported alongside its size.
package export

import (
	"archive/flate"
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/complynav/compliance-navigator/internal/policy"
)

// Result is what Write reports back to the caller.
type Result struct {
	ZipPath         string
	Bytes           int64
	SHA256          string
	IncludesEvidence bool
}

// deterministicModTime is stamped on every zip entry so that two exports of
// byte-identical inputs produce byte-identical archives; a zip entry's
// timestamp would otherwise vary with wall-clock time.
var deterministicModTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Write archives auditPacketDir (and, when includeEvidence is true,
// evidenceDir) into zipPath. zipPath is re-verified against repoRoot's
// .compliance root before any bytes are written. Symlinks inside either
// source directory are skipped, never followed.
func Write(repoRoot, zipPath, auditPacketDir, evidenceDir string, includeEvidence bool) (Result, error) {
	verified, err := policy.AssertUnder(policy.ComplianceRoot(repoRoot), zipPath)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(filepath.Dir(verified), 0o755); err != nil {
		return Result{}, fmt.Errorf("creating export directory: %w", err)
	}

	f, err := os.Create(verified)
	if err != nil {
		return Result{}, fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
	if err := addTree(zw, auditPacketDir, "audit_packet"); err != nil {
		zw.Close()
		return Result{}, err
	}
	if includeEvidence {
		if err := addTree(zw, evidenceDir, "evidence"); err != nil {
			zw.Close()
			return Result{}, err
		}
	}
	if err := zw.Close(); err != nil {
		return Result{}, fmt.Errorf("finalising archive: %w", err)
	}

	size, sum, err := hashFile(verified)
	if err != nil {
		return Result{}, err
	}

	return Result{ZipPath: verified, Bytes: size, SHA256: sum, IncludesEvidence: includeEvidence}, nil
}

// addTree walks srcDir in deterministic (lexicographic) path order, adding
// each regular file under archivePrefix. Symlinks are skipped outright.
func addTree(zw *zip.Writer, srcDir, archivePrefix string) error {
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return nil
	}

	var paths []string
	err := filepath.Walk(srcDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", srcDir, err)
	}
	sort.Strings(paths)

	for _, p := range paths {
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if err := addFile(zw, p, filepath.ToSlash(filepath.Join(archivePrefix, rel))); err != nil {
			return err
		}
	}
	return nil
}

func addFile(zw *zip.Writer, src, archiveName string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("building zip header for %s: %w", src, err)
	}
	hdr.Name = archiveName
	hdr.Method = zip.Deflate
	hdr.Modified = deterministicModTime

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating zip entry %s: %w", archiveName, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("writing zip entry %s: %w", archiveName, err)
	}
	return nil
}

func hashFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("opening archive for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("hashing archive: %w", err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
