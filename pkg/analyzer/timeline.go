package analyzer

import (
	"sort"
	"time"

	"github.com/ccollicutt/tflog/pkg/parser"
)

// timestampLayouts are tried in order when placing a record on the timeline.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp parses the timestamp forms found in Terraform logs.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BuildTimeline groups records by request ID and returns one span per
// request that has at least one parsable timestamp, ordered by start time.
func BuildTimeline(records []parser.Record) []RequestSpan {
	spans := make(map[string]*RequestSpan)
	timed := make(map[string]bool)
	var order []string

	for i := range records {
		rec := &records[i]
		if rec.RequestID == "" {
			continue
		}

		span, ok := spans[rec.RequestID]
		if !ok {
			span = &RequestSpan{RequestID: rec.RequestID}
			spans[rec.RequestID] = span
			order = append(order, rec.RequestID)
		}
		span.Records++
		if span.ResourceType == "" {
			span.ResourceType = rec.ResourceType
		}

		ts, ok := ParseTimestamp(rec.Timestamp)
		if !ok {
			continue
		}
		if !timed[rec.RequestID] {
			span.Start, span.End = ts, ts
			timed[rec.RequestID] = true
			continue
		}
		if ts.Before(span.Start) {
			span.Start = ts
		}
		if ts.After(span.End) {
			span.End = ts
		}
	}

	timeline := make([]RequestSpan, 0, len(order))
	for _, id := range order {
		if !timed[id] {
			continue
		}
		span := spans[id]
		span.DurationMs = span.Duration().Milliseconds()
		timeline = append(timeline, *span)
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		if !timeline[i].Start.Equal(timeline[j].Start) {
			return timeline[i].Start.Before(timeline[j].Start)
		}
		return timeline[i].RequestID < timeline[j].RequestID
	})

	return timeline
}

// RequestGroups counts distinct request IDs, with or without timestamps.
func RequestGroups(records []parser.Record) int {
	seen := make(map[string]struct{})
	for i := range records {
		if id := records[i].RequestID; id != "" {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// Slowest returns up to n spans ordered by duration, longest first.
func Slowest(timeline []RequestSpan, n int) []RequestSpan {
	sorted := make([]RequestSpan, len(timeline))
	copy(sorted, timeline)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DurationMs > sorted[j].DurationMs
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
