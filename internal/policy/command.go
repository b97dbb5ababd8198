package policy

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/complynav/compliance-navigator/pkg/errors"
)

// AllowlistEntry pairs a regex matched against a full command string with a
// human-readable description. Descriptions (never the regexes themselves)
// are surfaced in the manifest so an auditor can read the policy without
// reading source.
type AllowlistEntry struct {
	Pattern     *regexp.Regexp
	Description string
}

// shellMetacharacters are rejected in any argument before a command is ever
// wrapped for the rare case a shell is unavoidable (Windows batch wrappers).
var shellMetacharacters = regexp.MustCompile(`[&|<>^%!\x00-\x1F]`)

// Allowlist is the static table of allowed command-line patterns: the three
// scanner invocations and their --version probes.
var Allowlist = []AllowlistEntry{
	{regexp.MustCompile(`^gitleaks(\.exe)? detect --source .+ --report-format json --report-path .+ --no-git -v( --config .+)?$`), "gitleaks secrets scan"},
	{regexp.MustCompile(`^gitleaks(\.exe)? version$`), "gitleaks version probe"},
	{regexp.MustCompile(`^npm(\.cmd)? audit --json$`), "npm audit dependency scan"},
	{regexp.MustCompile(`^npm(\.cmd)? --version$`), "npm version probe"},
	{regexp.MustCompile(`^checkov(\.exe)? -d .+ --output json --output-file-path .+ --compact$`), "checkov IaC scan"},
	{regexp.MustCompile(`^checkov(\.exe)? --version$`), "checkov version probe"},
}

// Descriptions returns the allowlist's human-readable descriptions, in
// table order, for embedding in a run's manifest.
func Descriptions() []string {
	out := make([]string, 0, len(Allowlist))
	for _, e := range Allowlist {
		out = append(out, e.Description)
	}
	return out
}

// AssertAllowed fails unless the full command string matches one of the
// allowlist regexes.
func AssertAllowed(commandLine string) error {
	for _, entry := range Allowlist {
		if entry.Pattern.MatchString(commandLine) {
			return nil
		}
	}
	return apperrors.NewDisallowedCommandError(commandLine)
}

// AssertArgsSafe rejects any argument containing shell metacharacters. Call
// this before spawning whenever a shell is unavoidable (Windows batch
// wrappers); direct exec.Command invocations never pass through a shell and
// do not require it, but calling it unconditionally is harmless.
func AssertArgsSafe(args []string) error {
	for _, a := range args {
		if shellMetacharacters.MatchString(a) {
			return apperrors.NewDisallowedCommandError(strings.Join(args, " ")).
				WithDetail("reason", fmt.Sprintf("argument %q contains a shell metacharacter", a))
		}
	}
	return nil
}

// QuoteForShell wraps an argument in double quotes with embedded quotes
// doubled, for the Windows batch-wrapper shell path.
func QuoteForShell(arg string) string {
	return `"` + strings.ReplaceAll(arg, `"`, `""`) + `"`
}

// CommandLine joins a program and its arguments into the single string
// AssertAllowed and the manifest operate on.
func CommandLine(program string, args ...string) string {
	return strings.TrimSpace(program + " " + strings.Join(args, " "))
}
