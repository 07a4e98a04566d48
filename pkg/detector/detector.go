// Package detector inspects a log file and reports how well it fits the
// Terraform JSON log format before a full analysis is run.
package detector

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ccollicutt/tflog/pkg/parser"
)

// Format is the overall verdict for a sample.
type Format string

const (
	// FormatJSONL means nearly every line is a JSON object.
	FormatJSONL Format = "jsonl"
	// FormatMixed means some, but not enough, lines are JSON objects.
	FormatMixed Format = "mixed"
	// FormatText means no line is a JSON object.
	FormatText Format = "text"
)

// jsonlThreshold is the structured share at which a sample counts as jsonl.
const jsonlThreshold = 0.9

// KeyRequestID is the provider request correlation key.
const KeyRequestID = "tf_req_id"

// TrackedKeys are the keys reported in KeyCoverage, in display order.
var TrackedKeys = []string{
	parser.KeyMessage,
	parser.KeyLevel,
	parser.KeyTimestamp,
	KeyRequestID,
}

// DetectionResult holds the result of analyzing a log sample.
type DetectionResult struct {
	Format          Format        // Overall verdict
	SampledLines    int           // Number of non-blank lines sampled
	StructuredLines int           // Lines that decoded as JSON objects
	HeuristicLines  int           // Lines that did not
	KeyCoverage     []KeyCoverage // One entry per TrackedKeys element
	PhaseMarkers    []PhaseMarker // Phase-declaring lines, in order
	Matches         []FormatMatch // Timestamp formats that matched, best first
	ParsedLines     int           // Lines whose timestamp matched the best format
}

// KeyCoverage tells how many structured lines carry a key.
type KeyCoverage struct {
	Key      string
	Count    int
	Coverage float64 // 0.0 to 1.0 of structured lines
}

// PhaseMarker is a sampled line that declares a phase.
type PhaseMarker struct {
	Line  int // 0-based index among sampled lines
	Phase parser.Phase
}

// FormatMatch represents a timestamp format that matched with its confidence score.
type FormatMatch struct {
	Format     *TimestampFormat
	Confidence float64   // 0.0 to 1.0 (share of sampled lines matched)
	MatchCount int       // Number of lines that matched
	SampleLine string    // Example timestamp that matched
	ParsedTime time.Time // Parsed timestamp from sample
}

// Detector samples log files to identify their shape.
type Detector struct {
	formats    []*TimestampFormat
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// New creates a new Detector with default formats.
func New(opts ...Option) *Detector {
	d := &Detector{
		formats:    DefaultFormats(),
		sampleSize: 100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile samples a log file and returns the detection result.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	lines, err := d.sampleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines analyzes a slice of log lines. Blank lines are skipped
// and do not count toward the sample.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{Format: FormatText}

	type formatStats struct {
		format     *TimestampFormat
		matchCount int
		sampleLine string
		parsedTime time.Time
	}
	stats := make(map[string]*formatStats)
	keyCounts := make(map[string]int, len(TrackedKeys))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := result.SampledLines
		result.SampledLines++

		// Structured lines are matched on @timestamp, text lines on their prefix.
		candidate := line
		decoded := parser.Decode(line)
		if decoded.Kind == parser.KindStructured {
			result.StructuredLines++
			for _, key := range TrackedKeys {
				if _, ok := decoded.Fields[key]; ok {
					keyCounts[key]++
				}
			}

			msg, _ := decoded.Fields[parser.KeyMessage].(string)
			if phase, ok := parser.DetectPhase(msg); ok {
				result.PhaseMarkers = append(result.PhaseMarkers, PhaseMarker{Line: idx, Phase: phase})
			}

			candidate, _ = decoded.Fields[parser.KeyTimestamp].(string)
		} else {
			result.HeuristicLines++
		}

		if candidate == "" {
			continue
		}
		for _, format := range d.formats {
			matches := format.Pattern.FindStringSubmatch(candidate)
			if len(matches) < 2 {
				continue
			}
			parsedTime, err := time.Parse(format.Layout, matches[1])
			if err != nil {
				continue
			}

			s := stats[format.Name]
			if s == nil {
				s = &formatStats{
					format:     format,
					sampleLine: matches[1],
					parsedTime: parsedTime,
				}
				stats[format.Name] = s
			}
			s.matchCount++
		}
	}

	if result.SampledLines == 0 {
		return result
	}

	switch share := float64(result.StructuredLines) / float64(result.SampledLines); {
	case share >= jsonlThreshold:
		result.Format = FormatJSONL
	case result.StructuredLines > 0:
		result.Format = FormatMixed
	}

	for _, key := range TrackedKeys {
		kc := KeyCoverage{Key: key, Count: keyCounts[key]}
		if result.StructuredLines > 0 {
			kc.Coverage = float64(kc.Count) / float64(result.StructuredLines)
		}
		result.KeyCoverage = append(result.KeyCoverage, kc)
	}

	for _, s := range stats {
		result.Matches = append(result.Matches, FormatMatch{
			Format:     s.format,
			Confidence: float64(s.matchCount) / float64(result.SampledLines),
			MatchCount: s.matchCount,
			SampleLine: s.sampleLine,
			ParsedTime: s.parsedTime,
		})
	}

	// Sort by confidence descending, then by pattern length (more specific
	// first), then by name so the order does not depend on map iteration
	sort.Slice(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if len(a.Format.PatternStr) != len(b.Format.PatternStr) {
			return len(a.Format.PatternStr) > len(b.Format.PatternStr)
		}
		return a.Format.Name < b.Format.Name
	})

	if len(result.Matches) > 0 {
		result.ParsedLines = result.Matches[0].MatchCount
	}

	return result
}

// sampleFile reads up to sampleSize non-blank lines from a file.
func (d *Detector) sampleFile(ctx context.Context, path string) ([]string, error) {
	// #nosec G304 - path is provided by user via CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), parser.MaxLineSize)

	for len(lines) < d.sampleSize && scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log file %s: %w", path, err)
	}

	return lines, nil
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *FormatMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one format matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}

// StructuredShare is the fraction of sampled lines that are JSON objects.
func (r *DetectionResult) StructuredShare() float64 {
	if r.SampledLines == 0 {
		return 0
	}
	return float64(r.StructuredLines) / float64(r.SampledLines)
}
