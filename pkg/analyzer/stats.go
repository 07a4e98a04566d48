package analyzer

import "github.com/ccollicutt/tflog/pkg/parser"

// Aggregate reduces records into Statistics in a single pass.
// It accepts an empty or nil slice.
func Aggregate(records []parser.Record) Statistics {
	stats := Statistics{
		LevelCounts: make(map[parser.Level]int),
	}

	for i := range records {
		rec := &records[i]

		stats.Total++
		stats.LevelCounts[parser.ParseLevel(string(rec.Level))]++

		switch rec.Phase {
		case parser.PhasePlan:
			stats.PhaseCounts.Plan++
		case parser.PhaseApply:
			stats.PhaseCounts.Apply++
		default:
			stats.PhaseCounts.Other++
		}

		if !rec.HasTimestamp() {
			continue
		}
		if stats.TimeRange == nil {
			stats.TimeRange = &TimeRange{Start: rec.Timestamp, End: rec.Timestamp}
			continue
		}
		if rec.Timestamp < stats.TimeRange.Start {
			stats.TimeRange.Start = rec.Timestamp
		}
		if rec.Timestamp > stats.TimeRange.End {
			stats.TimeRange.End = rec.Timestamp
		}
	}

	return stats
}

// Count returns the number of records at level.
func (s *Statistics) Count(level parser.Level) int {
	return s.LevelCounts[level]
}

// HasErrors reports whether any error-level record was seen.
func (s *Statistics) HasErrors() bool {
	return s.LevelCounts[parser.LevelError] > 0
}
