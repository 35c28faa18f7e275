package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/logsieve/internal/cli"
	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/config"
	"github.com/ppiankov/logsieve/internal/logging"
	"github.com/ppiankov/logsieve/internal/server"
)

type serveOptions struct {
	input          inputFlags
	listen         string
	maxUpload      string
	maxConcurrent  int
	uploadWait     time.Duration
	auditLog       string
	logLevel       string
	logFormat      string
	redact         string
	redactPatterns string
}

func newServeCmd() *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload and classification service",
		Long: `Serve an upload form at / and a JSON API at POST /api/classify.
Health is at /healthz and Prometheus metrics at /metrics.`,
		Example: `  logsieve serve --listen :8080 --max-upload 64MB
  curl --data-binary @access.log localhost:8080/api/classify?rejects=1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyConfigDefaults(cmd)
			srv, audit, err := o.build()
			if err != nil {
				return err
			}
			defer func() { _ = audit.Close() }()
			ln, err := net.Listen("tcp", o.listen)
			if err != nil {
				return cli.NewNetworkError(fmt.Sprintf("listen %s: %v", o.listen, err))
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, srv, ln)
		},
	}

	addInputFlags(cmd, &o.input)
	f := cmd.Flags()
	f.StringVar(&o.listen, "listen", ":8080", "address to listen on")
	f.StringVar(&o.maxUpload, "max-upload", "32MB", "maximum request body")
	f.IntVar(&o.maxConcurrent, "max-concurrent", server.DefaultMaxConcurrent, "concurrent classifications")
	f.DurationVar(&o.uploadWait, "upload-wait", server.DefaultUploadWait, "how long an upload waits for a free slot")
	f.StringVar(&o.auditLog, "audit-log", "", "append one JSON line per upload to this file")
	f.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", "text", "log format: text or json")
	f.StringVar(&o.redact, "redact", "", "redact responses: true or a comma list of patterns")
	f.StringVar(&o.redactPatterns, "redact-patterns", "", "YAML file with extra redaction patterns")
	return cmd
}

func (o *serveOptions) build() (*server.Server, *server.AuditLogger, error) {
	if !verbose {
		logging.Setup(o.logLevel, o.logFormat)
	}

	policy, err := clf.ParseDatePolicy(o.input.datePolicy)
	if err != nil {
		return nil, nil, cli.NewUsageError(err.Error())
	}
	srcOpts, err := o.input.sourceOptions()
	if err != nil {
		return nil, nil, err
	}
	maxUpload, err := config.ParseSize(o.maxUpload)
	if err != nil {
		return nil, nil, cli.NewUsageError("--max-upload: " + err.Error())
	}
	redactor, err := buildRedactor(o.redact, o.redactPatterns)
	if err != nil {
		return nil, nil, err
	}

	var audit *server.AuditLogger
	if o.auditLog != "" {
		if audit, err = server.NewAuditLogger(o.auditLog); err != nil {
			return nil, nil, cli.NewPermissionError(fmt.Sprintf("open audit log: %v", err))
		}
	}

	srv := server.New(server.Config{
		Addr:          o.listen,
		MaxUpload:     maxUpload,
		MaxBytes:      srcOpts.MaxBytes,
		MaxLineBytes:  srcOpts.MaxLineBytes,
		MaxConcurrent: o.maxConcurrent,
		UploadWait:    o.uploadWait,
		DatePolicy:    policy,
		Jobs:          o.input.jobs,
		Redactor:      redactor,
		Audit:         audit,
		Version:       version,
	}, server.NewMetrics(prometheus.DefaultRegisterer))
	return srv, audit, nil
}

// serve runs srv on ln until ctx is done, then drains in-flight uploads.
func serve(ctx context.Context, srv *server.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("listening", "addr", ln.Addr().String(), "version", version)

	select {
	case err := <-errCh:
		if err != nil {
			return cli.NewNetworkError(err.Error())
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
