package analyzer

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ccollicutt/tflog/pkg/parser"
)

// FilterOptions selects a subset of records. Zero fields match everything.
type FilterOptions struct {
	// RequestID must equal the record's request ID.
	RequestID string

	// ResourceType is a substring of the resource type, the raw fields or
	// the message.
	ResourceType string

	// Query is a case-insensitive substring of the raw fields or message.
	Query string

	// Since and Until bound the record timestamp, both inclusive. Records
	// without a parsable timestamp never match a bounded window.
	Since time.Time
	Until time.Time
}

// IsZero reports whether the options select every record.
func (o FilterOptions) IsZero() bool {
	return o.RequestID == "" && o.ResourceType == "" && o.Query == "" &&
		o.Since.IsZero() && o.Until.IsZero()
}

// Filter returns the records matching opts in input order. Records keep
// their original Index and phase.
func Filter(records []parser.Record, opts FilterOptions) []parser.Record {
	if opts.IsZero() {
		return records
	}

	query := strings.ToLower(opts.Query)
	out := make([]parser.Record, 0, len(records))
	for i := range records {
		rec := &records[i]

		if opts.RequestID != "" && rec.RequestID != opts.RequestID {
			continue
		}
		if !inWindow(rec, opts.Since, opts.Until) {
			continue
		}

		if opts.ResourceType != "" || query != "" {
			text := searchText(rec)
			if opts.ResourceType != "" && !strings.Contains(rec.ResourceType, opts.ResourceType) &&
				!strings.Contains(text, opts.ResourceType) {
				continue
			}
			if query != "" && !strings.Contains(strings.ToLower(text), query) {
				continue
			}
		}

		out = append(out, *rec)
	}
	return out
}

func inWindow(rec *parser.Record, since, until time.Time) bool {
	if since.IsZero() && until.IsZero() {
		return true
	}
	ts, ok := ParseTimestamp(rec.Timestamp)
	if !ok {
		return false
	}
	if !since.IsZero() && ts.Before(since) {
		return false
	}
	if !until.IsZero() && ts.After(until) {
		return false
	}
	return true
}

// searchText is the raw fields as JSON followed by the message.
func searchText(rec *parser.Record) string {
	raw, err := json.Marshal(rec.Raw)
	if err != nil {
		return rec.Message
	}
	return string(raw) + " " + rec.Message
}
