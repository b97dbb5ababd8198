package controls

import "github.com/complynav/compliance-navigator/pkg/types"

// soc2Controls is the sealed SOC2-lite dataset: 20 controls across the
// common criteria, availability, confidentiality, processing integrity, and
// privacy trust service categories.
var soc2Controls = []Control{
	{ID: "CC1.1", Name: "Control environment / code ownership", Description: "Demonstrates organizational commitment to integrity and ethical values over the codebase.", RequiresHumanEvidence: true},
	{ID: "CC2.1", Name: "Communication of security policies", Description: "Security policies are communicated to personnel.", RequiresHumanEvidence: true},
	{ID: "CC6.1", Name: "Logical access", Description: "Logical access to protected information assets is restricted.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerGitleaks, Confidence: 0.8}}},
	{ID: "CC6.2", Name: "Prior authorization of new users", Description: "New and modified system access is authorized prior to being granted.", RequiresHumanEvidence: true},
	{ID: "CC6.6", Name: "Encryption of data at rest", Description: "Data at rest is protected through encryption or equivalent controls.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerCheckov, Confidence: 0.7}}},
	{ID: "CC6.7", Name: "Transmission security", Description: "Transmission of data is protected.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerCheckov, Confidence: 0.6}}},
	{ID: "CC6.8", Name: "Malicious software prevention", Description: "Prevention, detection, and correction of malicious software.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerNpmAudit, Confidence: 0.6}}},
	{ID: "CC7.1", Name: "Vulnerability detection", Description: "Detects and responds to security events.", ScannerMappings: []ScannerMapping{
		{Scanner: types.ScannerGitleaks, Confidence: 0.7},
		{Scanner: types.ScannerNpmAudit, Confidence: 0.8},
		{Scanner: types.ScannerCheckov, Confidence: 0.7},
	}},
	{ID: "CC7.2", Name: "Anomaly monitoring", Description: "Monitors system components for anomalies.", RequiresHumanEvidence: true},
	{ID: "CC8.1", Name: "Change management", Description: "Changes are authorized, designed, developed, tested, approved.", RequiresHumanEvidence: true},
	{ID: "A1.2", Name: "Infrastructure resilience", Description: "Environmental protections, redundancy, and recovery infrastructure.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerCheckov, Confidence: 0.6}}},
	{ID: "C1.1", Name: "Secrets handling", Description: "Confidential information, including credentials, is protected.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerGitleaks, Confidence: 0.9}}},
	{ID: "C1.2", Name: "Data classification", Description: "Confidential information is identified and classified.", RequiresHumanEvidence: true},
	{ID: "PI1.1", Name: "Input validation", Description: "Processing integrity over inputs is maintained.", ScannerMappings: []ScannerMapping{
		{Scanner: types.ScannerNpmAudit, Confidence: 0.5},
		{Scanner: types.ScannerCheckov, Confidence: 0.5},
	}},
	{ID: "P1.1", Name: "Notice", Description: "Notice is provided about privacy practices.", RequiresHumanEvidence: true},
	{ID: "P2.1", Name: "Choice and consent", Description: "Choice and consent are obtained for collection/use of personal data.", RequiresHumanEvidence: true},
	{ID: "P3.1", Name: "Collection", Description: "Personal information is collected consistent with notice.", RequiresHumanEvidence: true},
	{ID: "P4.1", Name: "Use, retention, disposal", Description: "Personal information is used, retained, and disposed of appropriately.", RequiresHumanEvidence: true},
	{ID: "P5.1", Name: "Access to personal data", Description: "Individuals have access to and can correct their personal data; hardcoded PII/credential exposure is a gap indicator.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerGitleaks, Confidence: 0.4}}},
	{ID: "P6.1", Name: "Disclosure and notification", Description: "Personal information is disclosed only with consent or as required by law.", RequiresHumanEvidence: true},
}
