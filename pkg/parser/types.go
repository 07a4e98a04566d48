// Package parser turns a Terraform-style JSON-line log into normalized records.
package parser

import "strings"

// Level is the severity tag of a record.
type Level string

const (
	LevelError   Level = "error"
	LevelWarn    Level = "warn"
	LevelInfo    Level = "info"
	LevelDebug   Level = "debug"
	LevelTrace   Level = "trace"
	LevelUnknown Level = "unknown"
)

// Levels lists every level in severity order, unknown last.
var Levels = []Level{LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace, LevelUnknown}

// ParseLevel maps a raw level string onto the closed level set.
// Anything outside the set is LevelUnknown.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelError:
		return LevelError
	case LevelWarn:
		return LevelWarn
	case LevelInfo:
		return LevelInfo
	case LevelDebug:
		return LevelDebug
	case LevelTrace:
		return LevelTrace
	default:
		return LevelUnknown
	}
}

// UnmarshalText normalizes decoded levels, so records posted as JSON
// cannot introduce levels outside the closed set.
func (l *Level) UnmarshalText(text []byte) error {
	*l = ParseLevel(string(text))
	return nil
}

// Phase is the logical stage of the run a record belongs to.
type Phase string

const (
	// PhaseNone means no phase marker has been seen yet.
	PhaseNone  Phase = ""
	PhasePlan  Phase = "plan"
	PhaseApply Phase = "apply"
)

// ParsePhase maps a raw phase name onto the known phases. Anything else
// is PhaseNone.
func ParsePhase(s string) Phase {
	switch Phase(strings.ToLower(strings.TrimSpace(s))) {
	case PhasePlan:
		return PhasePlan
	case PhaseApply:
		return PhaseApply
	default:
		return PhaseNone
	}
}

// UnmarshalText normalizes decoded phases the same way.
func (p *Phase) UnmarshalText(text []byte) error {
	*p = ParsePhase(string(text))
	return nil
}

// Record is one non-blank input line after parsing.
type Record struct {
	// Index is the 0-based position among non-blank lines.
	Index int `json:"index"`

	// Timestamp is the raw timestamp text. Empty means none was found.
	Timestamp string `json:"timestamp,omitempty"`

	Level   Level  `json:"level"`
	Message string `json:"message"`

	// Phase is PhaseNone until the first marker line.
	Phase Phase `json:"phase,omitempty"`

	// PhaseStart is set on the marker record that established Phase.
	PhaseStart bool `json:"isPhaseStart"`

	// Structured reports whether the line decoded as a JSON object.
	Structured bool `json:"structured"`

	// Raw is the decoded object, or {"unparsed": line} for heuristic records.
	Raw map[string]any `json:"raw"`

	// RequestID groups records belonging to one provider request.
	RequestID string `json:"requestId,omitempty"`

	// ResourceType is the Terraform resource type the record refers to.
	ResourceType string `json:"resourceType,omitempty"`

	// HTTPRequestBody and HTTPResponseBody hold provider HTTP traffic
	// logged inline. They are also present in Raw.
	HTTPRequestBody  string `json:"httpRequestBody,omitempty"`
	HTTPResponseBody string `json:"httpResponseBody,omitempty"`
}

// HasTimestamp reports whether a timestamp was determined for the record.
func (r *Record) HasTimestamp() bool {
	return r.Timestamp != ""
}
