package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

const defaultTimeout = 5 * time.Minute

// commandContext returns a context bounded by --timeout or the configured
// default. The caller must call cancel when done.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	timeout := defaultTimeout

	// flag overrides config
	if timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil {
			timeout = d
		}
	} else if cfg != nil && cfg.Defaults.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Defaults.Timeout); err == nil {
			timeout = d
		}
	}

	return context.WithTimeout(parent, timeout)
}

// applyConfigDefaults sets flag values from config when the flag was not
// set on the command line. Flags > env > config > defaults; the config
// package already layers env over files.
func applyConfigDefaults(cmd *cobra.Command) {
	if cfg == nil {
		return
	}

	setDefault := func(name, value string) {
		if value != "" && !cmd.Flags().Changed(name) {
			if f := cmd.Flags().Lookup(name); f != nil {
				_ = f.Value.Set(value)
			}
		}
	}
	setInt := func(name string, value int64) {
		if value > 0 {
			setDefault(name, itoa(value))
		}
	}

	// classify
	setDefault("date-policy", cfg.Classify.DatePolicy)
	setInt("jobs", int64(cfg.Classify.Jobs))
	setDefault("max-bytes", cfg.Classify.MaxBytes)
	setDefault("max-line-bytes", cfg.Classify.MaxLineBytes)

	// render
	setDefault("format", cfg.Render.Format)
	if cfg.Render.ShowRejects {
		setDefault("rejects", "true")
	}
	setDefault("redact", cfg.Render.Redact)
	setDefault("redact-patterns", cfg.Render.RedactPatterns)
	if cfg.Render.Color != nil {
		if *cfg.Render.Color {
			setDefault("color", "always")
		} else {
			setDefault("color", "never")
		}
	}

	// serve
	setDefault("listen", cfg.Serve.Addr)
	setDefault("max-upload", cfg.Serve.MaxUpload)
	setInt("max-concurrent", int64(cfg.Serve.MaxConcurrent))
	setDefault("upload-wait", cfg.Serve.UploadWait)
	setDefault("audit-log", cfg.Serve.AuditLog)
	setDefault("log-level", cfg.Serve.LogLevel)
	setDefault("log-format", cfg.Serve.LogFormat)

	// kube
	setDefault("kubeconfig", cfg.Kube.Kubeconfig)
	setInt("tail", cfg.Kube.TailLines)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
