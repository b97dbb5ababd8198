// Package scanners implements the scanner runner (C4) and the per-scanner
// normalisers (C5): it spawns the three allow-listed scanner binaries,
// captures their evidence, classifies each run, and turns native JSON into
// the unified Finding model.
package scanners

import (
	"os/exec"
	"runtime"

	"github.com/complynav/compliance-navigator/pkg/types"
)

// ScannerKindInfo groups the static facts C4 needs about a scanner kind.
type ScannerKindInfo struct {
	Kind types.ScannerKind

	// Program returns the platform-appropriate program name.
	Program func() string

	// BuildArgs returns the main invocation's arguments given the repo
	// path and the evidence directory to write into (or stdout-only).
	BuildArgs func(repoPath, evidenceDir string) []string

	// OutputFile returns a non-empty report path when the scanner writes its
	// report to a file (via --report-path / --output-file-path) rather than
	// stdout.
	OutputFile func(evidenceDir string) string

	// Precondition returns a non-empty skip reason if the scanner should
	// not run at all (e.g. no package.json for npm audit).
	Precondition func(repoPath string) (skip bool, reason string)

	// VersionArgs returns the args for the --version probe.
	VersionArgs func() []string

	// Normalise parses the scanner's native JSON bytes into Findings.
	Normalise func(raw []byte) []types.Finding
}

func isWindows() bool { return runtime.GOOS == "windows" }

// LookPath wraps exec.LookPath so the runner can classify "missing" before
// even trying to spawn the process.
func LookPath(program string) (string, error) {
	return exec.LookPath(program)
}

// Registry is the closed set of scanner kinds the runner knows about, in
// the order C11 invokes them.
func Registry() []ScannerKindInfo {
	return []ScannerKindInfo{
		gitleaksDef(),
		npmAuditDef(),
		checkovDef(),
	}
}
