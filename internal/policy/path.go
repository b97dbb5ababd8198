// Package policy implements the two security choke-points every writing or
// process-spawning component must pass through: the path escape guard (C1)
// and the command allowlist (C2).
package policy

import (
	"path/filepath"
	"runtime"
	"strings"

	apperrors "github.com/complynav/compliance-navigator/pkg/errors"
)

// PreflightRepoPath rejects strings containing ".." segments or NUL bytes
// before any path resolution occurs, per C1's repo-path preflight.
func PreflightRepoPath(repoPath string) error {
	if strings.ContainsRune(repoPath, 0) {
		return apperrors.NewPathEscapeError(repoPath, "").WithDetail("reason", "NUL byte in path")
	}
	for _, part := range strings.FieldsFunc(repoPath, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return apperrors.NewPathEscapeError(repoPath, "").WithDetail("reason", "'..' segment in path")
		}
	}
	return nil
}

// canonicalize absolute-ises a path, resolves "." and "..", normalises
// separators, and, on Windows, folds to lower case for a case-insensitive
// filesystem comparison.
func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean(abs)
	if runtime.GOOS == "windows" {
		clean = strings.ToLower(clean)
	}
	return clean, nil
}

// AssertUnder is C1's sole operation: it canonicalises both root and target
// and fails unless target equals root or begins with root followed by the
// platform separator. This is the single choke-point that prevents
// directory escape — every component that writes a file must call it first.
func AssertUnder(root, target string) (string, error) {
	canonRoot, err := canonicalize(root)
	if err != nil {
		return "", apperrors.NewPathEscapeError(target, root).WithCause(err)
	}
	canonTarget, err := canonicalize(target)
	if err != nil {
		return "", apperrors.NewPathEscapeError(target, root).WithCause(err)
	}

	if canonTarget == canonRoot || strings.HasPrefix(canonTarget, canonRoot+string(filepath.Separator)) {
		return canonTarget, nil
	}
	return "", apperrors.NewPathEscapeError(target, root)
}

// ComplianceRoot returns the <repoPath>/.compliance root every write target
// must resolve under.
func ComplianceRoot(repoPath string) string {
	return filepath.Join(repoPath, ".compliance")
}
