package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// MaxLineSize is the longest line ParseReader accepts.
// Provider HTTP bodies are logged inline and can be large.
const MaxLineSize = 16 * 1024 * 1024

// Parse converts the full content of a log stream into records.
// Blank lines are dropped before indexing. Parse never fails: lines that
// are not JSON objects go through heuristic extraction instead.
func Parse(content string) []Record {
	lines := strings.Split(content, "\n")
	records := make([]Record, 0, len(lines))

	phase := PhaseNone
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		var rec Record
		rec, phase = parseLine(len(records), line, phase)
		records = append(records, rec)
	}

	return records
}

// ParseReader is Parse over a reader. It checks ctx between lines and
// returns an error only for read failures or cancellation.
func ParseReader(ctx context.Context, r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	var records []Record
	phase := PhaseNone
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var rec Record
		rec, phase = parseLine(len(records), line, phase)
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log stream: %w", err)
	}

	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// parseLine builds the record for one non-blank line and returns the phase
// in effect for the lines that follow.
func parseLine(index int, line string, phase Phase) (Record, Phase) {
	decoded := Decode(line)
	if decoded.Kind == KindHeuristic {
		return Record{
			Index:     index,
			Timestamp: ExtractTimestamp(line),
			Level:     ExtractLevel(line),
			Message:   line,
			Phase:     phase,
			Raw:       map[string]any{"unparsed": line},
		}, phase
	}

	fields := decoded.Fields
	rec := Record{
		Index:        index,
		Timestamp:    stringField(fields, KeyTimestamp),
		Level:        LevelUnknown,
		Message:      stringField(fields, KeyMessage),
		Structured:   true,
		Raw:          fields,
		RequestID:    stringField(fields, "tf_req_id", "request_id", "tf_http_trans_id"),
		ResourceType: stringField(fields, "tf_resource_type", "resource_type"),

		HTTPRequestBody:  bodyField(fields, KeyHTTPRequestBody),
		HTTPResponseBody: bodyField(fields, KeyHTTPResponseBody),
	}
	if lvl := stringField(fields, KeyLevel); lvl != "" {
		rec.Level = ParseLevel(lvl)
	}

	if next, ok := DetectPhase(rec.Message); ok {
		phase = next
		rec.PhaseStart = true
	}
	rec.Phase = phase

	return rec, phase
}
