package scanners

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/complynav/compliance-navigator/pkg/types"
)

// gitleaksRecord mirrors the subset of gitleaks' report JSON the normaliser
// requires; unknown fields are tolerated.
type gitleaksRecord struct {
	RuleID      string   `json:"RuleID"`
	File        string   `json:"File"`
	StartLine   int      `json:"StartLine"`
	Description string   `json:"Description"`
	Tags        []string `json:"Tags"`
}

var criticalSecretRule = regexp.MustCompile(`(?i)private-key|aws-secret|github-pat`)

func gitleaksSeverity(ruleID string) types.Severity {
	if criticalSecretRule.MatchString(ruleID) {
		return types.SeverityCritical
	}
	return types.SeverityHigh
}

func normaliseGitleaks(raw []byte) []types.Finding {
	var records []gitleaksRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil
	}

	findings := make([]types.Finding, 0, len(records))
	for _, r := range records {
		id := identityID(string(types.ScannerGitleaks), r.RuleID, r.File, itoa(r.StartLine))
		findings = append(findings, types.Finding{
			ID:          id,
			Scanner:     types.ScannerGitleaks,
			Severity:    gitleaksSeverity(r.RuleID),
			Title:       r.RuleID,
			Description: r.Description,
			File:        r.File,
			Line:        r.StartLine,
			Evidence: types.Evidence{
				Kind: types.EvidenceScannerNative,
				Ref:  "gitleaks.json",
			},
			Remediation: "Rotate the exposed credential and remove it from version control history.",
			Tags:        r.Tags,
		})
	}
	return findings
}

func gitleaksDef() ScannerKindInfo {
	return ScannerKindInfo{
		Kind: types.ScannerGitleaks,
		Program: func() string {
			if isWindows() {
				return "gitleaks.exe"
			}
			return "gitleaks"
		},
		BuildArgs: func(repoPath, evidenceDir string) []string {
			args := []string{
				"detect",
				"--source", repoPath,
				"--report-format", "json",
				"--report-path", filepath.Join(evidenceDir, "gitleaks.json"),
				"--no-git",
				"-v",
			}
			if cfg := filepath.Join(repoPath, ".gitleaks.toml"); fileExists(cfg) {
				args = append(args, "--config", cfg)
			}
			return args
		},
		OutputFile: func(evidenceDir string) string {
			return filepath.Join(evidenceDir, "gitleaks.json")
		},
		Precondition: func(repoPath string) (bool, string) { return false, "" },
		VersionArgs: func() []string { return []string{"version"} },
		Normalise:   normaliseGitleaks,
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
