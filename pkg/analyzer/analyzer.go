package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/ccollicutt/tflog/pkg/parser"
)

// Analyzer runs one full parse-and-reduce pass per log source.
// It holds only options, so one Analyzer may serve concurrent calls.
type Analyzer struct {
	timeline bool
	filter   FilterOptions
	now      func() time.Time
}

// AnalyzerOption configures analyzer behavior.
type AnalyzerOption func(*Analyzer)

// WithTimeline enables the request timeline.
func WithTimeline(enabled bool) AnalyzerOption {
	return func(a *Analyzer) {
		a.timeline = enabled
	}
}

// WithFilter keeps only records matching opts. Statistics and the
// timeline are computed over the kept records.
func WithFilter(opts FilterOptions) AnalyzerOption {
	return func(a *Analyzer) {
		a.filter = opts
	}
}

// WithClock replaces time.Now for metadata timestamps.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an analyzer. The timeline is enabled by default.
func New(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		timeline: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalysisResult contains the complete analysis output for one stream.
type AnalysisResult struct {
	// Records is the parsed stream in input order.
	Records []parser.Record

	// Stats is the aggregate over Records.
	Stats Statistics

	// Timeline is nil when disabled.
	Timeline []RequestSpan

	Metadata AnalysisMetadata
}

// AnalysisMetadata provides context about the analysis run.
type AnalysisMetadata struct {
	// Source names the analyzed stream.
	Source string

	// StartTime is when analysis began.
	StartTime time.Time

	// EndTime is when analysis completed.
	EndTime time.Time

	// Unstructured counts records produced by heuristic extraction.
	Unstructured int

	// RequestGroups counts distinct request IDs.
	RequestGroups int

	// Filtered counts parsed records dropped by the filter.
	Filtered int
}

// HasErrors returns true if any error-level record was found.
func (r *AnalysisResult) HasErrors() bool {
	return r.Stats.HasErrors()
}

// Analyze streams the source through the parser and computes statistics.
func (a *Analyzer) Analyze(ctx context.Context, source parser.LogSource) (*AnalysisResult, error) {
	start := a.now()

	rc, err := source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading log source: %w", err)
	}
	defer rc.Close()

	records, err := parser.ParseReader(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("reading log source %s: %w", source.Name(), err)
	}

	result := a.AnalyzeRecords(records)
	result.Metadata.Source = source.Name()
	result.Metadata.StartTime = start
	result.Metadata.EndTime = a.now()

	return result, nil
}

// AnalyzeRecords computes the result for records that were already parsed.
func (a *Analyzer) AnalyzeRecords(records []parser.Record) *AnalysisResult {
	parsed := len(records)
	records = Filter(records, a.filter)

	result := &AnalysisResult{
		Records: records,
		Stats:   Aggregate(records),
	}
	result.Metadata.Filtered = parsed - len(records)

	if a.timeline {
		result.Timeline = BuildTimeline(records)
	}

	for i := range records {
		if !records[i].Structured {
			result.Metadata.Unstructured++
		}
	}
	result.Metadata.RequestGroups = RequestGroups(records)

	return result
}
