// Package server exposes the classifier over HTTP: an upload form, a JSON
// API, health and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/redact"
	"github.com/ppiankov/logsieve/internal/source"
)

// DefaultMaxUpload caps the request body.
const DefaultMaxUpload = 32 << 20

// Config controls the service.
type Config struct {
	Addr string
	// MaxUpload caps the request body; MaxBytes caps the decoded text.
	MaxUpload     int64
	MaxBytes      int64
	MaxLineBytes  int
	MaxConcurrent int
	UploadWait    time.Duration
	DatePolicy    clf.DatePolicy
	Jobs          int
	Redactor      *redact.Redactor
	Audit         *AuditLogger
	Version       string
}

// Server is the HTTP classification service.
type Server struct {
	httpSrv    *http.Server
	cfg        Config
	classifier *clf.Classifier
	metrics    *Metrics
	limiter    *limiter
}

// New creates a server bound to cfg.Addr. metrics may be nil.
func New(cfg Config, metrics *Metrics) *Server {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = source.DefaultMaxBytes
	}
	s := &Server{
		cfg:     cfg,
		metrics: metrics,
		limiter: newLimiter(cfg.MaxConcurrent, cfg.UploadWait),
		classifier: clf.New(
			clf.WithJobs(cfg.Jobs),
			clf.WithDatePolicy(cfg.DatePolicy),
			clf.WithMaxLineBytes(cfg.MaxLineBytes),
		),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /api/classify", s.handleClassify)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      requestLogger(mux),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpSrv.ListenAndServe()
}

// Serve accepts connections on a listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpSrv.Serve(ln)
}

// Shutdown stops accepting connections and waits for running
// classifications to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	if derr := s.limiter.WaitForDrain(ctx); derr != nil && err == nil {
		err = derr
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
