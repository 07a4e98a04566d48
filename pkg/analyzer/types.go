// Package analyzer reduces parsed log records into statistics and timelines.
package analyzer

import (
	"time"

	"github.com/ccollicutt/tflog/pkg/parser"
)

// Statistics summarizes one parsed stream.
type Statistics struct {
	// Total is the number of records.
	Total int `json:"total"`

	// LevelCounts holds only levels seen at least once.
	LevelCounts map[parser.Level]int `json:"levelCounts"`

	PhaseCounts PhaseCounts `json:"phaseCounts"`

	// TimeRange is nil when no record carries a timestamp.
	TimeRange *TimeRange `json:"timeRange,omitempty"`
}

// PhaseCounts splits records by phase. Other counts records with no phase.
type PhaseCounts struct {
	Plan  int `json:"plan"`
	Apply int `json:"apply"`
	Other int `json:"other"`
}

// TimeRange holds the smallest and largest timestamp strings observed.
// Bounds are compared as text, not as parsed times.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RequestSpan is the observed lifetime of one provider request.
type RequestSpan struct {
	RequestID    string    `json:"requestId"`
	ResourceType string    `json:"resourceType,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	DurationMs   int64     `json:"durationMs"`

	// Records is how many records carried this request ID.
	Records int `json:"records"`
}

// Duration returns End - Start.
func (s RequestSpan) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
