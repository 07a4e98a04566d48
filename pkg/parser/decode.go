package parser

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind tells which extraction branch a line takes.
type Kind int

const (
	// KindHeuristic means the line is not a JSON object.
	KindHeuristic Kind = iota
	// KindStructured means the line decoded into key/value fields.
	KindStructured
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindStructured {
		return "structured"
	}
	return "heuristic"
}

// Decoded is the outcome of a structured decode attempt.
// Fields is non-nil only for KindStructured.
type Decoded struct {
	Kind   Kind
	Fields map[string]any
}

// Well-known keys of the structured log format.
const (
	KeyMessage   = "@message"
	KeyLevel     = "@level"
	KeyTimestamp = "@timestamp"

	KeyHTTPRequestBody  = "tf_http_req_body"
	KeyHTTPResponseBody = "tf_http_res_body"
)

// Decode attempts to read line as a single JSON object.
// Arrays, scalars, null and trailing data all yield KindHeuristic.
func Decode(line string) Decoded {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Decoded{Kind: KindHeuristic}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return Decoded{Kind: KindHeuristic}
	}
	if dec.InputOffset() != int64(len(trimmed)) {
		return Decoded{Kind: KindHeuristic}
	}

	return Decoded{Kind: KindStructured, Fields: fields}
}

// stringField returns the first key holding a non-empty string value.
// Values of any other type are treated as absent.
func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// bodyField returns a logged HTTP body. String values are kept as is and
// anything else is re-encoded as JSON text.
func bodyField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
