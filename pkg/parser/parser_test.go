package parser

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_DropsBlankLines(t *testing.T) {
	content := "\n" +
		`{"@level":"info","@message":"first"}` + "\n" +
		"   \n" +
		"\t\n" +
		"plain text line\n" +
		"\r\n" +
		`{"@level":"debug","@message":"last"}` + "\n"

	records := Parse(content)

	if len(records) != 3 {
		t.Fatalf("Parse() returned %d records, want 3", len(records))
	}

	for i, rec := range records {
		if rec.Index != i {
			t.Errorf("records[%d].Index = %d, want %d", i, rec.Index, i)
		}
	}
}

func TestParse_Empty(t *testing.T) {
	for _, content := range []string{"", "\n\n", "   \n\t"} {
		records := Parse(content)
		if records == nil {
			t.Errorf("Parse(%q) = nil, want empty slice", content)
		}
		if len(records) != 0 {
			t.Errorf("Parse(%q) returned %d records, want 0", content, len(records))
		}
	}
}

func TestParse_StructuredLine(t *testing.T) {
	line := `{"@level":"ERROR","@message":"provider crashed","@timestamp":"2024-01-15T10:30:00.123456Z","tf_req_id":"abc-123","tf_resource_type":"aws_instance"}`

	records := Parse(line)
	if len(records) != 1 {
		t.Fatalf("Parse() returned %d records, want 1", len(records))
	}

	rec := records[0]
	if !rec.Structured {
		t.Error("Structured = false, want true")
	}
	if rec.Level != LevelError {
		t.Errorf("Level = %q, want %q", rec.Level, LevelError)
	}
	if rec.Message != "provider crashed" {
		t.Errorf("Message = %q, want %q", rec.Message, "provider crashed")
	}
	if rec.Timestamp != "2024-01-15T10:30:00.123456Z" {
		t.Errorf("Timestamp = %q", rec.Timestamp)
	}
	if rec.RequestID != "abc-123" {
		t.Errorf("RequestID = %q, want abc-123", rec.RequestID)
	}
	if rec.ResourceType != "aws_instance" {
		t.Errorf("ResourceType = %q, want aws_instance", rec.ResourceType)
	}
	if rec.Raw["@message"] != "provider crashed" {
		t.Errorf("Raw[@message] = %v, want decoded object", rec.Raw["@message"])
	}
	if rec.Phase != PhaseNone || rec.PhaseStart {
		t.Errorf("Phase = %q, PhaseStart = %v, want none/false", rec.Phase, rec.PhaseStart)
	}
}

func TestParse_HTTPBodies(t *testing.T) {
	content := `{"@message":"request","tf_req_id":"r1","tf_http_req_body":"{\"Action\":\"RunInstances\"}"}` + "\n" +
		`{"@message":"response","tf_req_id":"r1","tf_http_res_body":{"ok":true}}` + "\n" +
		`{"@message":"no body"}`

	records := Parse(content)
	if len(records) != 3 {
		t.Fatalf("Parse() returned %d records, want 3", len(records))
	}

	if records[0].HTTPRequestBody != `{"Action":"RunInstances"}` || records[0].HTTPResponseBody != "" {
		t.Errorf("record 0 bodies = %q / %q", records[0].HTTPRequestBody, records[0].HTTPResponseBody)
	}
	if records[1].HTTPResponseBody != `{"ok":true}` {
		t.Errorf("record 1 response body = %q, want re-encoded object", records[1].HTTPResponseBody)
	}

	data, err := json.Marshal(records[2])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "httpRequestBody") || strings.Contains(string(data), "httpResponseBody") {
		t.Errorf("empty bodies should be omitted: %s", data)
	}
}

func TestParse_StructuredDefaults(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing fields", `{"other":"value"}`},
		{"wrong types", `{"@message":42,"@level":true,"@timestamp":1705314600}`},
		{"null fields", `{"@message":null,"@level":null,"@timestamp":null}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := Parse(tt.line)
			if len(records) != 1 {
				t.Fatalf("Parse() returned %d records, want 1", len(records))
			}

			rec := records[0]
			if !rec.Structured {
				t.Error("Structured = false, want true")
			}
			if rec.Level != LevelUnknown {
				t.Errorf("Level = %q, want unknown", rec.Level)
			}
			if rec.Message != "" {
				t.Errorf("Message = %q, want empty", rec.Message)
			}
			if rec.HasTimestamp() {
				t.Errorf("Timestamp = %q, want absent", rec.Timestamp)
			}
		})
	}
}

func TestParse_UnrecognizedStructuredLevel(t *testing.T) {
	records := Parse(`{"@level":"fatal","@message":"boom"}`)
	if records[0].Level != LevelUnknown {
		t.Errorf("Level = %q, want unknown", records[0].Level)
	}
}

func TestParse_PreservesNumbers(t *testing.T) {
	records := Parse(`{"@message":"x","count":12345678901234567890}`)

	n, ok := records[0].Raw["count"].(json.Number)
	if !ok {
		t.Fatalf("Raw[count] is %T, want json.Number", records[0].Raw["count"])
	}
	if n.String() != "12345678901234567890" {
		t.Errorf("Raw[count] = %s", n)
	}
}

func TestParse_HeuristicLine(t *testing.T) {
	records := Parse("2024-01-15T10:30:00 some error happened")
	if len(records) != 1 {
		t.Fatalf("Parse() returned %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Structured {
		t.Error("Structured = true, want false")
	}
	if rec.Timestamp != "2024-01-15T10:30:00" {
		t.Errorf("Timestamp = %q, want 2024-01-15T10:30:00", rec.Timestamp)
	}
	if rec.Level != LevelError {
		t.Errorf("Level = %q, want error", rec.Level)
	}
	if rec.Message != "2024-01-15T10:30:00 some error happened" {
		t.Errorf("Message = %q, want the whole line", rec.Message)
	}
	if rec.Raw["unparsed"] != "2024-01-15T10:30:00 some error happened" {
		t.Errorf("Raw = %v, want unparsed wrapper", rec.Raw)
	}
}

func TestParse_HeuristicNothingRecognized(t *testing.T) {
	records := Parse("terraform exited with no output")

	rec := records[0]
	if rec.HasTimestamp() {
		t.Errorf("Timestamp = %q, want absent", rec.Timestamp)
	}
	if rec.Level != LevelUnknown {
		t.Errorf("Level = %q, want unknown", rec.Level)
	}
}

func TestParse_NonObjectJSONIsHeuristic(t *testing.T) {
	for _, line := range []string{`[1,2,3]`, `"warn"`, `42`, `null`, `{"a":1} trailing`, `{"a":`} {
		records := Parse(line)
		if records[0].Structured {
			t.Errorf("Parse(%q).Structured = true, want false", line)
		}
	}
}

func TestParse_PhaseTracking(t *testing.T) {
	lines := []string{
		`{"@level":"info","@message":"Terraform version: 1.7.0"}`,
		`{"@level":"info","@message":"CLI args: []string{\"terraform\", \"plan\"}"}`,
		`{"@level":"debug","@message":"building graph"}`,
		`not json at all`,
		`{"@level":"info","@message":"CLI args: []string{\"terraform\", \"apply\"}"}`,
		`{"@level":"trace","@message":"walking"}`,
	}

	records := Parse(strings.Join(lines, "\n"))

	want := []struct {
		phase Phase
		start bool
	}{
		{PhaseNone, false},
		{PhasePlan, true},
		{PhasePlan, false},
		{PhasePlan, false},
		{PhaseApply, true},
		{PhaseApply, false},
	}

	if len(records) != len(want) {
		t.Fatalf("Parse() returned %d records, want %d", len(records), len(want))
	}

	for i, w := range want {
		if records[i].Phase != w.phase {
			t.Errorf("records[%d].Phase = %q, want %q", i, records[i].Phase, w.phase)
		}
		if records[i].PhaseStart != w.start {
			t.Errorf("records[%d].PhaseStart = %v, want %v", i, records[i].PhaseStart, w.start)
		}
	}
}

func TestParse_RepeatedMarkerStartsAgain(t *testing.T) {
	marker := `{"@message":"CLI args: [\"plan\"]"}`
	records := Parse(marker + "\n" + marker)

	for i, rec := range records {
		if rec.Phase != PhasePlan || !rec.PhaseStart {
			t.Errorf("records[%d] = (%q, %v), want (plan, true)", i, rec.Phase, rec.PhaseStart)
		}
	}
}

func TestParse_PlanWinsOverApply(t *testing.T) {
	records := Parse(`{"@message":"CLI args: [\"apply\", \"plan\"]"}`)
	if records[0].Phase != PhasePlan {
		t.Errorf("Phase = %q, want plan", records[0].Phase)
	}
}

func TestParse_HeuristicLineCannotDeclarePhase(t *testing.T) {
	records := Parse(`2024-01-15T10:30:00 CLI args: ["plan"]`)
	if records[0].Phase != PhaseNone || records[0].PhaseStart {
		t.Errorf("Phase = %q, PhaseStart = %v, want none/false", records[0].Phase, records[0].PhaseStart)
	}
}

func TestParse_MarkerWithoutQuotedPhase(t *testing.T) {
	records := Parse(`{"@message":"CLI args: terraform plan"}`)
	if records[0].Phase != PhaseNone || records[0].PhaseStart {
		t.Errorf("Phase = %q, PhaseStart = %v, want none/false", records[0].Phase, records[0].PhaseStart)
	}
}

func TestParse_IndependentCalls(t *testing.T) {
	first := Parse(`{"@message":"CLI args: [\"apply\"]"}`)
	second := Parse(`{"@message":"hello"}`)

	if first[0].Phase != PhaseApply {
		t.Fatalf("first Phase = %q, want apply", first[0].Phase)
	}
	if second[0].Phase != PhaseNone {
		t.Errorf("second Phase = %q, want none (no state carried between calls)", second[0].Phase)
	}
}

func TestParseReader_MatchesParse(t *testing.T) {
	content := `{"@level":"info","@message":"CLI args: [\"plan\"]","@timestamp":"2024-01-15T10:00:00Z"}` + "\r\n" +
		"\r\n" +
		"2024-01-15T10:00:05 WARN something odd\r\n" +
		`{"@level":"error","@message":"failed"}`

	want := Parse(content)
	got, err := ParseReader(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("ParseReader() returned %d records, Parse() %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Index != want[i].Index || got[i].Level != want[i].Level ||
			got[i].Message != want[i].Message || got[i].Phase != want[i].Phase ||
			got[i].Timestamp != want[i].Timestamp || got[i].Structured != want[i].Structured {
			t.Errorf("record %d: ParseReader = %+v, Parse = %+v", i, got[i], want[i])
		}
	}
}

func TestParseReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParseReader(ctx, strings.NewReader("a\nb\n"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ParseReader() error = %v, want context.Canceled", err)
	}
}

func readAll(t *testing.T, src LogSource) string {
	t.Helper()
	rc, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading %s: %v", src.Name(), err)
	}
	return string(data)
}

func TestFileSource_Open(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apply.json")
	content := `{"@message":"hello"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(path)
	if src.Name() != path {
		t.Errorf("Name() = %q, want %q", src.Name(), path)
	}
	if got := readAll(t, src); got != content {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestFileSource_Missing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := src.Open(context.Background()); err == nil {
		t.Error("Open() expected error for missing file")
	}
}

func TestBytesSource_Open(t *testing.T) {
	src := NewBytesSource("upload.json", []byte("line"))

	if got := readAll(t, src); got != "line" || src.Name() != "upload.json" {
		t.Errorf("content = %q, Name() = %q", got, src.Name())
	}
}

func TestReaderSource_Open(t *testing.T) {
	src := NewReaderSource("", strings.NewReader("a\nb\n"))

	if got := readAll(t, src); got != "a\nb\n" {
		t.Errorf("content = %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() error = %v, want context.Canceled", err)
	}
}
