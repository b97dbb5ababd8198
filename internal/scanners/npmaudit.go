package scanners

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/complynav/compliance-navigator/pkg/types"
)

// npmAuditVia mirrors the first entry of a vulnerability's "via" array when
// it is an object (as opposed to a bare package-name string).
type npmAuditVia struct {
	Title   string `json:"title"`
	Severity string `json:"severity"`
	Range   string `json:"range"`
}

type npmAuditFixAvailable struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type npmAuditVulnerability struct {
	Name        string          `json:"name"`
	Severity    string          `json:"severity"`
	Via         []json.RawMessage `json:"via"`
	Range       string          `json:"range"`
	FixAvailable json.RawMessage `json:"fixAvailable"`
}

type npmAuditReport struct {
	Vulnerabilities map[string]npmAuditVulnerability `json:"vulnerabilities"`
}

func npmSeverity(native string) types.Severity {
	switch native {
	case "critical":
		return types.SeverityCritical
	case "high":
		return types.SeverityHigh
	case "moderate":
		return types.SeverityMedium
	case "low":
		return types.SeverityLow
	default:
		return types.SeverityInfo
	}
}

func npmAuditTitle(pkg string, v npmAuditVulnerability) string {
	for _, raw := range v.Via {
		var via npmAuditVia
		if err := json.Unmarshal(raw, &via); err == nil && via.Title != "" {
			return via.Title
		}
	}
	return fmt.Sprintf("Vulnerable dependency: %s", pkg)
}

func npmAuditRemediation(v npmAuditVulnerability) string {
	var fix npmAuditFixAvailable
	if err := json.Unmarshal(v.FixAvailable, &fix); err == nil && fix.Name != "" && fix.Version != "" {
		return fmt.Sprintf("Upgrade %s to %s.", fix.Name, fix.Version)
	}
	return "Run `npm audit fix` and review the suggested upgrade."
}

func normaliseNpmAudit(raw []byte) []types.Finding {
	var report npmAuditReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}

	pkgs := make([]string, 0, len(report.Vulnerabilities))
	for pkg := range report.Vulnerabilities {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	findings := make([]types.Finding, 0, len(report.Vulnerabilities))
	for _, pkg := range pkgs {
		v := report.Vulnerabilities[pkg]
		severity := npmSeverity(v.Severity)
		id := identityID(string(types.ScannerNpmAudit), pkg, string(severity))
		findings = append(findings, types.Finding{
			ID:          id,
			Scanner:     types.ScannerNpmAudit,
			Severity:    severity,
			Title:       npmAuditTitle(pkg, v),
			Description: fmt.Sprintf("Package %q is affected (range %s).", pkg, v.Range),
			Evidence: types.Evidence{
				Kind: types.EvidenceCommandOutput,
				Ref:  "npm-audit.json",
			},
			Remediation: npmAuditRemediation(v),
			Tags:        []string{"dependency"},
		})
	}
	return findings
}

func npmAuditDef() ScannerKindInfo {
	return ScannerKindInfo{
		Kind: types.ScannerNpmAudit,
		Program: func() string {
			if isWindows() {
				return "npm.cmd"
			}
			return "npm"
		},
		BuildArgs: func(repoPath, evidenceDir string) []string {
			return []string{"audit", "--json"}
		},
		OutputFile: func(evidenceDir string) string { return "" }, // stdout
		Precondition: func(repoPath string) (bool, string) {
			if !fileExists(filepath.Join(repoPath, "package.json")) {
				return true, "no package.json at repo root"
			}
			return false, ""
		},
		VersionArgs: func() []string { return []string{"--version"} },
		Normalise:   normaliseNpmAudit,
	}
}
