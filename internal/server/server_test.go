package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ccollicutt/tflog/pkg/config"
)

const sampleLog = `{"@level":"info","@message":"CLI args: []string{\"terraform\", \"apply\"}","@timestamp":"2024-01-15T10:00:00.000000Z"}
{"@level":"debug","@message":"request","@timestamp":"2024-01-15T10:00:01.000000Z","tf_req_id":"req-1","tf_resource_type":"aws_instance"}
{"@level":"error","@message":"response","@timestamp":"2024-01-15T10:00:03.500000Z","tf_req_id":"req-1"}
plain text line without structure
`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, modify func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	if modify != nil {
		modify(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return New(cfg, WithLogger(log.New(io.Discard, "", 0)))
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["analyses"] != float64(0) {
		t.Errorf("analyses = %v, want 0", body["analyses"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, nil)

	first := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Header().Get(RequestIDHeader)
	second := serve(s, httptest.NewRequest(http.MethodGet, "/missing", nil)).Header().Get(RequestIDHeader)

	for _, id := range []string{first, second} {
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("%s = %q, want a UUID", RequestIDHeader, id)
		}
	}
	if first == second {
		t.Error("request IDs should differ between requests")
	}
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, uploadRequest(t, "apply.json", sampleLog))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		ID   string `json:"id"`
		Logs []struct {
			Index      int    `json:"index"`
			Level      string `json:"level"`
			Phase      string `json:"phase"`
			Structured bool   `json:"structured"`
		} `json:"logs"`
		Stats struct {
			Total       int            `json:"total"`
			LevelCounts map[string]int `json:"levelCounts"`
			PhaseCounts struct {
				Apply int `json:"apply"`
			} `json:"phaseCounts"`
		} `json:"stats"`
		Timeline []struct {
			RequestID  string `json:"requestId"`
			DurationMs int64  `json:"durationMs"`
		} `json:"timeline"`
	}
	decodeBody(t, rec, &body)

	if _, err := uuid.Parse(body.ID); err != nil {
		t.Errorf("id = %q, want a UUID", body.ID)
	}
	if len(body.Logs) != 4 {
		t.Fatalf("logs = %d, want 4", len(body.Logs))
	}
	if body.Logs[3].Structured || body.Logs[3].Phase != "apply" {
		t.Errorf("last log = %+v, want heuristic record in apply phase", body.Logs[3])
	}
	if body.Stats.Total != 4 || body.Stats.PhaseCounts.Apply != 4 {
		t.Errorf("stats = %+v", body.Stats)
	}
	if body.Stats.LevelCounts["error"] != 1 {
		t.Errorf("levelCounts = %v, want one error", body.Stats.LevelCounts)
	}
	if len(body.Timeline) != 1 || body.Timeline[0].RequestID != "req-1" || body.Timeline[0].DurationMs != 2500 {
		t.Errorf("timeline = %+v, want req-1 lasting 2500ms", body.Timeline)
	}

	var health map[string]any
	decodeBody(t, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)), &health)
	if health["analyses"] != float64(1) {
		t.Errorf("analyses = %v, want 1", health["analyses"])
	}
}

func TestUpload_RejectsExtension(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, uploadRequest(t, "apply.log", sampleLog))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["detail"] != "Only .json files allowed" {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestUpload_ExtensionIsCaseInsensitive(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, uploadRequest(t, "APPLY.JSON", sampleLog))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.MaxUploadBytes = 64
	})

	rec := serve(s, uploadRequest(t, "apply.json", strings.Repeat(`{"@message":"x"}`+"\n", 10)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")

	rec := serve(s, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpload_EmptyFile(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, uploadRequest(t, "empty.json", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Logs  []any `json:"logs"`
		Stats struct {
			Total     int `json:"total"`
			TimeRange any `json:"timeRange"`
		} `json:"stats"`
	}
	decodeBody(t, rec, &body)
	if body.Logs == nil || len(body.Logs) != 0 {
		t.Errorf("logs = %v, want empty array", body.Logs)
	}
	if body.Stats.Total != 0 || body.Stats.TimeRange != nil {
		t.Errorf("stats = %+v, want empty", body.Stats)
	}
}

func TestTimeline(t *testing.T) {
	s := newTestServer(t, nil)

	payload := `{"logs":[
		{"index":0,"timestamp":"2024-01-15T10:00:00Z","level":"debug","message":"a","requestId":"r1"},
		{"index":1,"timestamp":"2024-01-15T10:00:02Z","level":"debug","message":"b","requestId":"r1"},
		{"index":2,"level":"info","message":"c","requestId":"r2"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/timeline", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Timeline []struct {
			RequestID  string `json:"requestId"`
			DurationMs int64  `json:"durationMs"`
			Records    int    `json:"records"`
		} `json:"timeline"`
	}
	decodeBody(t, rec, &body)

	if len(body.Timeline) != 1 {
		t.Fatalf("timeline = %+v, want only r1", body.Timeline)
	}
	if body.Timeline[0].DurationMs != 2000 || body.Timeline[0].Records != 2 {
		t.Errorf("span = %+v", body.Timeline[0])
	}
}

func TestTimeline_InvalidBody(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/timeline", strings.NewReader(`{"logs":`))
	req.Header.Set("Content-Type", "application/json")

	if rec := serve(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExport(t *testing.T) {
	var hits int32
	var gotSummary map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		var report map[string]any
		_ = json.NewDecoder(r.Body).Decode(&report)
		gotSummary, _ = report["summary"].(map[string]any)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Webhooks = []config.WebhookConfig{
			{Name: "incidents", URL: hook.URL},
			{Name: "disabled", URL: hook.URL, Trigger: config.WebhookTriggerNever},
		}
	})

	payload := `{"logs":[
		{"index":0,"level":"error","message":"boom"},
		{"index":1,"level":"info","message":"ok"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["exported_count"] != float64(2) || body["status"] != "success" || body["delivered"] != float64(1) || body["fired"] != float64(1) {
		t.Errorf("body = %v", body)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("webhook hits = %d, want 1", hits)
	}
	if gotSummary["errors"] != float64(1) || gotSummary["total"] != float64(2) {
		t.Errorf("webhook summary = %v", gotSummary)
	}
}

func TestExport_NoErrorsSkipsOnErrorsHook(t *testing.T) {
	var hits int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer hook.Close()

	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL}}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(`{"logs":[{"index":0,"level":"info","message":"ok"}]}`))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(s, req)
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["delivered"] != float64(0) {
		t.Errorf("delivered = %v, want 0", body["delivered"])
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("webhook hits = %d, want 0", hits)
	}
}

func TestExport_FailedWebhookIsNotDelivered(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer hook.Close()

	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Trigger: config.WebhookTriggerAlways}}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(`{"logs":[]}`))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["delivered"] != float64(0) || body["exported_count"] != float64(0) {
		t.Errorf("body = %v", body)
	}
	if body["status"] != "failed" {
		t.Errorf("status = %v, want failed", body["status"])
	}
}

func TestExport_PartialDelivery(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Webhooks = []config.WebhookConfig{
			{Name: "ok", URL: ok.URL, Trigger: config.WebhookTriggerAlways},
			{Name: "broken", URL: broken.URL, Trigger: config.WebhookTriggerAlways},
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(`{"logs":[]}`))
	req.Header.Set("Content-Type", "application/json")

	var body map[string]any
	decodeBody(t, serve(s, req), &body)
	if body["status"] != "partial" || body["delivered"] != float64(1) || body["fired"] != float64(2) {
		t.Errorf("body = %v", body)
	}
}

func TestExportStatus(t *testing.T) {
	tests := []struct {
		delivered, fired int
		want             string
	}{
		{0, 0, "success"},
		{2, 2, "success"},
		{1, 2, "partial"},
		{0, 3, "failed"},
	}
	for _, tt := range tests {
		if got := exportStatus(tt.delivered, tt.fired); got != tt.want {
			t.Errorf("exportStatus(%d, %d) = %q, want %q", tt.delivered, tt.fired, got, tt.want)
		}
	}
}

func TestAPI_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.MaxUploadBytes = 1024
	})

	var sb strings.Builder
	sb.WriteString(`{"logs":[`)
	for i := 0; i < 200; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"index":0,"level":"info","message":"padding padding padding","requestId":"r1"}`)
	}
	sb.WriteString(`]}`)
	payload := sb.String()

	for _, path := range []string{"/api/timeline", "/api/export"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")

			rec := serve(s, req)
			if rec.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("status = %d, want 413 (body %s)", rec.Code, rec.Body.String())
			}
			var body map[string]any
			decodeBody(t, rec, &body)
			if body["detail"] != "Request body too large" {
				t.Errorf("detail = %v", body["detail"])
			}
		})
	}
}
