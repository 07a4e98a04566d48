// Package server exposes log analysis over HTTP: uploads, request
// timelines and webhook export.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ccollicutt/tflog/pkg/analyzer"
	"github.com/ccollicutt/tflog/pkg/config"
	"github.com/ccollicutt/tflog/pkg/output"
	"github.com/ccollicutt/tflog/pkg/parser"
	"github.com/ccollicutt/tflog/pkg/webhook"
)

// RequestIDHeader carries the per-request UUID on every response.
const RequestIDHeader = "X-Request-ID"

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// Server holds the Gin engine and dependencies for the analysis API.
type Server struct {
	engine   *gin.Engine
	cfg      *config.Config
	analyzer *analyzer.Analyzer
	webhooks *webhook.Client
	logger   *log.Logger
	started  time.Time
	analyses atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWebhookClient replaces the client used by /api/export.
func WithWebhookClient(c *webhook.Client) Option {
	return func(s *Server) {
		if c != nil {
			s.webhooks = c
		}
	}
}

// New creates an API server for the given validated configuration.
func New(cfg *config.Config, opts ...Option) *Server {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:   engine,
		cfg:      cfg,
		analyzer: analyzer.New(analyzer.WithTimeline(true)),
		webhooks: webhook.NewClient(),
		logger:   log.New(os.Stderr, "[tflog] ", log.LstdFlags),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine.Use(s.requestID(), s.accessLog())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.POST("/upload", s.handleUpload)

	api := s.engine.Group("/api")
	api.POST("/timeline", s.handleTimeline)
	api.POST("/export", s.handleExport)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured listen address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Printf("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// requestID tags every request with a fresh UUID.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Printf("%s %s %d %s id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Microsecond), c.GetString("requestID"))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"analyses": s.analyses.Load(),
	})
}

// uploadResponse is the body returned by POST /upload.
type uploadResponse struct {
	ID       string                 `json:"id"`
	Logs     []parser.Record        `json:"logs"`
	Stats    analyzer.Statistics    `json:"stats"`
	Timeline []analyzer.RequestSpan `json:"timeline"`
}

func (s *Server) handleUpload(c *gin.Context) {
	limit := s.cfg.Server.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		abort(c, http.StatusBadRequest, "Missing file field")
		return
	}

	if !s.allowedExtension(fh.Filename) {
		abort(c, http.StatusBadRequest, fmt.Sprintf("Only %s files allowed", strings.Join(s.cfg.Server.AllowedExtensions, ", ")))
		return
	}
	if fh.Size > limit {
		abort(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, "Cannot read upload")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		abort(c, http.StatusBadRequest, "Cannot read upload")
		return
	}
	if int64(len(data)) > limit {
		abort(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), parser.NewBytesSource(fh.Filename, data))
	if err != nil {
		s.logger.Printf("analysis of %s failed: %v", fh.Filename, err)
		abort(c, http.StatusInternalServerError, "Analysis failed")
		return
	}
	s.analyses.Add(1)

	c.JSON(http.StatusOK, uploadResponse{
		ID:       uuid.NewString(),
		Logs:     result.Records,
		Stats:    result.Stats,
		Timeline: result.Timeline,
	})
}

func (s *Server) allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range s.cfg.Server.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// logsRequest is the body accepted by the /api endpoints.
type logsRequest struct {
	Logs []parser.Record `json:"logs"`
}

// bindLogs decodes a logsRequest body no larger than max_upload_bytes.
// It writes the error response itself and reports whether to continue.
func (s *Server) bindLogs(c *gin.Context, req *logsRequest) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Server.MaxUploadBytes)

	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		abort(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleTimeline(c *gin.Context) {
	var req logsRequest
	if !s.bindLogs(c, &req) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"timeline": analyzer.BuildTimeline(req.Logs)})
}

func (s *Server) handleExport(c *gin.Context) {
	var req logsRequest
	if !s.bindLogs(c, &req) {
		return
	}

	result := s.analyzer.AnalyzeRecords(req.Logs)
	result.Metadata.Source = "export"
	now := time.Now()
	result.Metadata.StartTime, result.Metadata.EndTime = now, now
	report := output.NewReport(result)

	deliveries := s.webhooks.Deliver(c.Request.Context(), report, report.HasErrors(), s.cfg.Webhooks)
	delivered := 0
	for _, d := range deliveries {
		if d.Response.Success() {
			delivered++
			continue
		}
		s.logger.Printf("webhook %s failed: %v", d.Webhook.DisplayName(), d.Response.Error)
	}

	c.JSON(http.StatusOK, gin.H{
		"exported_count": len(req.Logs),
		"status":         exportStatus(delivered, len(deliveries)),
		"delivered":      delivered,
		"fired":          len(deliveries),
	})
}

// exportStatus summarizes webhook delivery. No fired hooks is a success.
func exportStatus(delivered, fired int) string {
	switch {
	case delivered == fired:
		return "success"
	case delivered == 0:
		return "failed"
	default:
		return "partial"
	}
}

func abort(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
