package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logsieve/internal/report"
)

type reportOptions struct {
	input    inputFlags
	json     bool
	markdown bool
	top      int
	window   time.Duration
	out      string
}

func newReportCmd() *cobra.Command {
	var o reportOptions

	cmd := &cobra.Command{
		Use:   "report <file|-|s3://bucket/key|gs://bucket/key|k8s://ns/pod>",
		Short: "Summarize an access log",
		Long: `Classify a log and print a summary: methods, status mix, top resources,
clients and agents, a request timeline and the most common shapes of
rejected lines, with suggested follow-up commands.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyConfigDefaults(cmd)
			ctx, cancel := commandContext(cmd.Context())
			defer cancel()
			return runReport(ctx, cmd.OutOrStdout(), args[0], &o)
		},
	}

	addInputFlags(cmd, &o.input)
	cmd.Flags().BoolVar(&o.json, "json", false, "output JSON")
	cmd.Flags().BoolVar(&o.markdown, "markdown", false, "output Markdown")
	cmd.Flags().IntVar(&o.top, "top", 10, "entries per top list")
	cmd.Flags().DurationVar(&o.window, "window", time.Hour, "timeline bucket width")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the report to a file")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

func runReport(ctx context.Context, stdout io.Writer, location string, o *reportOptions) error {
	res, err := o.input.load(ctx, location)
	if err != nil {
		return err
	}
	r := report.Build(res, location, report.Config{Top: o.top, Window: o.window})

	w := stdout
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	switch {
	case o.json:
		return r.WriteJSON(w)
	case o.markdown:
		return r.WriteMarkdown(w)
	default:
		return r.WriteText(w)
	}
}
