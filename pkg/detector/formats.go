package detector

import "regexp"

// TimestampFormat represents a known timestamp format for detection.
type TimestampFormat struct {
	Name       string         // Human-readable name
	Pattern    *regexp.Regexp // Compiled regex (set during init)
	PatternStr string         // Pattern string for display
	Layout     string         // Go time layout for parsing
	Examples   []string       // Example timestamps
}

// DefaultFormats returns the built-in timestamp formats to detect.
// Terraform writes @timestamp as RFC 3339 with microseconds; its plain-text
// log lines start with an hclog timestamp (milliseconds, compact offset).
func DefaultFormats() []*TimestampFormat {
	formats := []*TimestampFormat{
		{
			Name:       "RFC 3339 with microseconds and timezone",
			PatternStr: `^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6}[+-]\d{2}:\d{2})`,
			Layout:     "2006-01-02T15:04:05.000000-07:00",
			Examples:   []string{"2024-01-15T10:30:00.123456-05:00"},
		},
		{
			Name:       "RFC 3339 with microseconds and Z",
			PatternStr: `^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6}Z)`,
			Layout:     "2006-01-02T15:04:05.000000Z",
			Examples:   []string{"2024-01-15T10:30:00.123456Z"},
		},
		{
			Name:       "hclog text timestamp",
			PatternStr: `^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}(?:Z|[+-]\d{4}))(?:\s|$)`,
			Layout:     "2006-01-02T15:04:05.000Z0700",
			Examples:   []string{"2024-01-15T10:30:00.123Z", "2024-01-15T10:30:00.123-0500"},
		},
		{
			Name:       "ISO 8601 with milliseconds and timezone",
			PatternStr: `^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}[+-]\d{2}:\d{2})`,
			Layout:     "2006-01-02T15:04:05.000-07:00",
			Examples:   []string{"2024-01-15T10:30:00.123+00:00"},
		},
		{
			Name:       "ISO 8601 with milliseconds",
			PatternStr: `^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3})`,
			Layout:     "2006-01-02T15:04:05.000",
			Examples:   []string{"2024-01-15T10:30:00.123"},
		},
		{
			Name:       "ISO 8601 with timezone",
			PatternStr: `^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[+-]\d{2}:\d{2})`,
			Layout:     "2006-01-02T15:04:05-07:00",
			Examples:   []string{"2024-01-15T10:30:00+00:00"},
		},
		{
			Name:       "ISO 8601 with Z (UTC)",
			PatternStr: `^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z)`,
			Layout:     "2006-01-02T15:04:05Z",
			Examples:   []string{"2024-01-15T10:30:00Z"},
		},
		{
			Name:       "ISO 8601",
			PatternStr: `^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})`,
			Layout:     "2006-01-02T15:04:05",
			Examples:   []string{"2024-01-15T10:30:00"},
		},
	}

	for _, f := range formats {
		f.Pattern = regexp.MustCompile(f.PatternStr)
	}

	return formats
}
