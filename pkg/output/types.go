// Package output provides formatting and output generation for analysis results.
package output

import (
	"time"

	"github.com/ccollicutt/tflog/pkg/analyzer"
	"github.com/ccollicutt/tflog/pkg/parser"
)

// Report is the complete analysis output for one log stream.
type Report struct {
	Summary    Summary                `json:"summary"`
	Statistics analyzer.Statistics    `json:"statistics"`
	Records    []parser.Record        `json:"records"`
	Timeline   []analyzer.RequestSpan `json:"timeline,omitempty"`
	Metadata   Metadata               `json:"metadata"`
}

// Summary provides the headline numbers of a report.
type Summary struct {
	// Total is the number of records.
	Total int `json:"total"`

	// Errors is the number of error-level records.
	Errors int `json:"errors"`

	// Warnings is the number of warn-level records.
	Warnings int `json:"warnings"`

	// Unstructured counts lines that were not JSON objects.
	Unstructured int `json:"unstructured"`

	// RequestGroups counts distinct provider request IDs.
	RequestGroups int `json:"requestGroups"`

	// Filtered counts records excluded by record filters.
	Filtered int `json:"filtered,omitempty"`
}

// Metadata provides context about the analysis run.
type Metadata struct {
	// Source is the analyzed file or upload name.
	Source string `json:"source"`

	// AnalyzedAt is when the analysis was performed.
	AnalyzedAt time.Time `json:"analyzedAt"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration"`
}

// NewReport creates a Report from analysis results.
func NewReport(result *analyzer.AnalysisResult) *Report {
	return &Report{
		Statistics: result.Stats,
		Records:    result.Records,
		Timeline:   result.Timeline,
		Metadata: Metadata{
			Source:     result.Metadata.Source,
			AnalyzedAt: result.Metadata.EndTime,
			Duration:   result.Metadata.EndTime.Sub(result.Metadata.StartTime),
		},
		Summary: Summary{
			Total:         result.Stats.Total,
			Errors:        result.Stats.Count(parser.LevelError),
			Warnings:      result.Stats.Count(parser.LevelWarn),
			Unstructured:  result.Metadata.Unstructured,
			RequestGroups: result.Metadata.RequestGroups,
			Filtered:      result.Metadata.Filtered,
		},
	}
}

// HasErrors returns true if any error-level record was found.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}
