package controls

import "github.com/complynav/compliance-navigator/pkg/types"

// hipaaControls is the sealed HIPAA dataset: 12 technical safeguards
// (164.312) scored against scanners, plus 7 administrative safeguard
// placeholders (164.308) that always require human evidence and carry no
// scanner mappings — they are excluded from all three coverage percentage
// denominators (SPEC_FULL.md 4.6.2).
var hipaaControls = []Control{
	// Technical safeguards (45 CFR 164.312)
	{ID: "164.312(a)(1)", Name: "Access control", Description: "Technical policies and procedures for electronic information systems that maintain ePHI.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerGitleaks, Confidence: 0.8}}},
	{ID: "164.312(a)(2)(i)", Name: "Unique user identification", Description: "Assign a unique name/number for identifying and tracking user identity.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerGitleaks, Confidence: 0.4}}},
	{ID: "164.312(a)(2)(ii)", Name: "Emergency access procedure", Description: "Procedures for obtaining necessary ePHI during an emergency.", RequiresHumanEvidence: true},
	{ID: "164.312(a)(2)(iii)", Name: "Automatic logoff", Description: "Electronic procedures that terminate a session after inactivity.", RequiresHumanEvidence: true},
	{ID: "164.312(a)(2)(iv)", Name: "Encryption and decryption mechanism", Description: "A mechanism to encrypt and decrypt ePHI.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerCheckov, Confidence: 0.7}}},
	{ID: "164.312(b)", Name: "Audit controls", Description: "Hardware, software, and procedural mechanisms that record and examine activity.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerCheckov, Confidence: 0.3}}},
	{ID: "164.312(c)(1)", Name: "Integrity", Description: "Policies to protect ePHI from improper alteration or destruction.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerCheckov, Confidence: 0.6}}},
	{ID: "164.312(c)(2)", Name: "Mechanism to authenticate ePHI", Description: "Electronic mechanisms to corroborate ePHI has not been altered or destroyed.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerGitleaks, Confidence: 0.3}, {Scanner: types.ScannerCheckov, Confidence: 0.3}}},
	{ID: "164.312(d)", Name: "Person or entity authentication", Description: "Verify a person or entity seeking access to ePHI is the one claimed.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerGitleaks, Confidence: 0.7}}},
	{ID: "164.312(e)(1)", Name: "Transmission security", Description: "Technical security measures to guard against unauthorized access to ePHI transmitted over a network.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerCheckov, Confidence: 0.7}}},
	{ID: "164.312(e)(2)(i)", Name: "Integrity controls (transmission)", Description: "Security measures to ensure transmitted ePHI is not improperly modified.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerCheckov, Confidence: 0.5}}},
	{ID: "164.312(e)(2)(ii)", Name: "Encryption (transmission)", Description: "Encrypt ePHI whenever deemed appropriate.", ScannerMappings: []ScannerMapping{{Scanner: types.ScannerCheckov, Confidence: 0.7}}},

	// Administrative safeguards (45 CFR 164.308) — always human-evidence,
	// never mapped to a scanner, excluded from every coverage percentage.
	{ID: "164.308(a)(1)", Name: "Security management process", RequiresHumanEvidence: true},
	{ID: "164.308(a)(2)", Name: "Assigned security responsibility", RequiresHumanEvidence: true},
	{ID: "164.308(a)(3)", Name: "Workforce security", RequiresHumanEvidence: true},
	{ID: "164.308(a)(4)", Name: "Information access management", RequiresHumanEvidence: true},
	{ID: "164.308(a)(5)", Name: "Security awareness and training", RequiresHumanEvidence: true},
	{ID: "164.308(a)(6)", Name: "Security incident procedures", RequiresHumanEvidence: true},
	{ID: "164.308(a)(7)", Name: "Contingency plan", RequiresHumanEvidence: true},
}
