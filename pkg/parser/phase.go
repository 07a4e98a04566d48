package parser

import "strings"

// PhaseMarker is the substring that identifies a phase-declaring message.
const PhaseMarker = "CLI args:"

// DetectPhase reports the phase a message declares, if any.
// "plan" is checked before "apply".
func DetectPhase(message string) (Phase, bool) {
	if !strings.Contains(message, PhaseMarker) {
		return PhaseNone, false
	}
	switch {
	case strings.Contains(message, `"plan"`):
		return PhasePlan, true
	case strings.Contains(message, `"apply"`):
		return PhaseApply, true
	default:
		return PhaseNone, false
	}
}
