// Package packet implements the Audit Packet Writer (C8): it composes the
// executive report, verbatim JSON serialisations, and copied scanner
// evidence into a self-contained <run>/audit_packet/ directory. Every
// destination path is verified through internal/policy before it is opened
// for writing.
package packet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/jung-kurt/gofpdf"

	"github.com/complynav/compliance-navigator/internal/policy"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// Result is generate_audit_packet's output record.
type Result struct {
	AuditPacketPath  string
	IndexPath        string
	FindingsJSONPath string
	EvidencePath     string
	Files            []string
}

// Write builds <runDir>/audit_packet from a completed ScanResult and a copy
// of that run's evidence files. runDir must already have been validated by
// the caller against C1 (it is re-validated here as a defence-in-depth
// choke point, per the teacher's habit of never trusting a path twice-removed
// from its own validation).
func Write(repoRoot, runDir string, result types.ScanResult, remediation *types.RemediationPlan, evidenceSrcDir string) (Result, error) {
	packetDir, err := policy.AssertUnder(policy.ComplianceRoot(repoRoot), filepath.Join(runDir, "audit_packet"))
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(packetDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating audit packet dir: %w", err)
	}

	var files []string

	findingsPath, err := writeJSON(repoRoot, packetDir, "findings.json", result.Findings)
	if err != nil {
		return Result{}, err
	}
	files = append(files, findingsPath)

	coveragePath, err := writeJSON(repoRoot, packetDir, "coverage.json", result.ControlCoverage)
	if err != nil {
		return Result{}, err
	}
	files = append(files, coveragePath)

	roiPath, err := writeJSON(repoRoot, packetDir, "roi.json", result.ROIEstimate)
	if err != nil {
		return Result{}, err
	}
	files = append(files, roiPath)

	manifestPath, err := writeJSON(repoRoot, packetDir, "manifest.json", result.Manifest)
	if err != nil {
		return Result{}, err
	}
	files = append(files, manifestPath)

	indexMD := renderIndexMarkdown(result, remediation)
	indexPath, err := policy.AssertUnder(policy.ComplianceRoot(repoRoot), filepath.Join(packetDir, "index.md"))
	if err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(indexPath, []byte(indexMD), 0o644); err != nil {
		return Result{}, fmt.Errorf("writing index.md: %w", err)
	}
	files = append(files, indexPath)

	indexPDFPath, err := policy.AssertUnder(policy.ComplianceRoot(repoRoot), filepath.Join(packetDir, "index.pdf"))
	if err != nil {
		return Result{}, err
	}
	if err := writeIndexPDF(indexPDFPath, result); err != nil {
		return Result{}, err
	}
	files = append(files, indexPDFPath)

	evidenceDstDir, err := policy.AssertUnder(policy.ComplianceRoot(repoRoot), filepath.Join(packetDir, "evidence"))
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(evidenceDstDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating evidence dir: %w", err)
	}
	copied, err := copyEvidence(repoRoot, evidenceSrcDir, evidenceDstDir)
	if err != nil {
		return Result{}, err
	}
	files = append(files, copied...)

	return Result{
		AuditPacketPath:  packetDir,
		IndexPath:        indexPath,
		FindingsJSONPath: findingsPath,
		EvidencePath:     evidenceDstDir,
		Files:            files,
	}, nil
}

func writeJSON(repoRoot, dir, name string, v interface{}) (string, error) {
	path, err := policy.AssertUnder(policy.ComplianceRoot(repoRoot), filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

// copyEvidence copies (never moves) every file under evidenceSrcDir into
// evidenceDstDir. Symlinks are skipped — evidence is never followed outside
// its own directory.
func copyEvidence(repoRoot, srcDir, dstDir string) ([]string, error) {
	entries, err := os.ReadDir(srcDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading evidence dir: %w", err)
	}

	var copied []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		srcPath := filepath.Join(srcDir, entry.Name())
		dstPath, err := policy.AssertUnder(policy.ComplianceRoot(repoRoot), filepath.Join(dstDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return nil, err
		}
		copied = append(copied, dstPath)
	}
	sort.Strings(copied)
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening evidence source %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating evidence copy %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying evidence to %s: %w", dst, err)
	}
	return nil
}

func writeIndexPDF(path string, result types.ScanResult) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Compliance Audit Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 6, fmt.Sprintf("Run: %s   Framework: %s", result.RunID, result.Framework))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 8, "Coverage")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 6, fmt.Sprintf("Covered: %.2f%%  Potential: %.2f%%  Full: %.2f%%",
		result.ControlCoverage.CoveragePct, result.ControlCoverage.CoveragePctPotential, result.ControlCoverage.CoveragePctFull))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 8, "Findings by severity")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	for _, sev := range types.SeverityOrder {
		pdf.Cell(40, 6, fmt.Sprintf("%s: %d", sev, result.CountsBySeverity[sev]))
		pdf.Ln(5)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 8, "Estimated hours saved")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 6, fmt.Sprintf("Conservative: %.2fh   Likely: %.2fh", result.ROIEstimate.HoursSavedConservative, result.ROIEstimate.HoursSavedLikely))
	pdf.Ln(5)
	pdf.MultiCell(0, 4, result.ROIEstimate.Basis, "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("rendering index.pdf: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
