package scanners

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/complynav/compliance-navigator/pkg/types"
)

type checkovFailedCheck struct {
	CheckID  string `json:"check_id"`
	CheckName string `json:"check_name"`
	Resource string `json:"resource"`
	File     string `json:"file_path"`
	Severity string `json:"severity"`
	Guideline string `json:"guideline"`
}

type checkovResults struct {
	FailedChecks []checkovFailedCheck `json:"failed_checks"`
}

type checkovReport struct {
	Results checkovResults `json:"results"`
}

func checkovSeverity(native string) types.Severity {
	switch native {
	case "CRITICAL", "critical":
		return types.SeverityCritical
	case "HIGH", "high":
		return types.SeverityHigh
	case "MEDIUM", "medium":
		return types.SeverityMedium
	case "LOW", "low":
		return types.SeverityLow
	case "":
		return types.SeverityMedium // spec: missing severity defaults to medium
	default:
		return types.SeverityInfo
	}
}

func normaliseCheckov(raw []byte) []types.Finding {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	var reports []checkovReport
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &reports); err != nil {
			return nil
		}
	} else {
		var single checkovReport
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil
		}
		reports = []checkovReport{single}
	}

	findings := make([]types.Finding, 0)
	for _, report := range reports {
		for _, c := range report.Results.FailedChecks {
			severity := checkovSeverity(c.Severity)
			id := identityID(string(types.ScannerCheckov), c.CheckID, c.Resource, c.File)
			remediation := "Review the failed check guideline and apply the recommended configuration change."
			if c.Guideline != "" {
				remediation = fmt.Sprintf("See guideline: %s", c.Guideline)
			}
			findings = append(findings, types.Finding{
				ID:          id,
				Scanner:     types.ScannerCheckov,
				Severity:    severity,
				Title:       c.CheckName,
				Description: fmt.Sprintf("%s failed for resource %s", c.CheckID, c.Resource),
				File:        c.File,
				Evidence: types.Evidence{
					Kind: types.EvidenceScannerNative,
					Ref:  "checkov.json",
				},
				Remediation: remediation,
				Tags:        []string{"iac"},
			})
		}
	}
	return findings
}

func checkovDef() ScannerKindInfo {
	return ScannerKindInfo{
		Kind: types.ScannerCheckov,
		Program: func() string {
			if isWindows() {
				return "checkov.exe"
			}
			return "checkov"
		},
		BuildArgs: func(repoPath, evidenceDir string) []string {
			return []string{
				"-d", repoPath,
				"--output", "json",
				"--output-file-path", filepath.Join(evidenceDir, "checkov.json"),
				"--compact",
			}
		},
		OutputFile: func(evidenceDir string) string {
			return filepath.Join(evidenceDir, "checkov.json")
		},
		Precondition: func(repoPath string) (bool, string) { return false, "" },
		VersionArgs: func() []string { return []string{"--version"} },
		Normalise:   normaliseCheckov,
	}
}
