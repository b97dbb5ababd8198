// Package controls implements the control-mapping engine (C6): two sealed
// framework datasets (SOC2-lite, HIPAA) and the functions that map findings
// to controls, compute the three coverage percentages, and back-annotate
// findings with the controls they satisfy.
package controls

import "github.com/complynav/compliance-navigator/pkg/types"

// ScannerMapping ties a control to one scanner kind with a heuristic
// confidence in [0,1] that a finding from that scanner satisfies it.
type ScannerMapping struct {
	Scanner    types.ScannerKind
	Confidence float64
}

// Control is one row of a sealed framework dataset.
type Control struct {
	ID                    string
	Name                  string
	Description           string
	RequiresHumanEvidence bool
	ScannerMappings       []ScannerMapping
}

// Load returns the sealed control set for framework, in declared order.
// Both datasets are Go literals, never loaded from user-editable config, so
// a tampered framework file cannot silently change coverage math.
func Load(framework types.Framework) []Control {
	switch framework {
	case types.FrameworkHIPAA:
		return hipaaControls
	default:
		return soc2Controls
	}
}
