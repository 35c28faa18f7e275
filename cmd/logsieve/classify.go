package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logsieve/internal/cli"
	"github.com/ppiankov/logsieve/internal/cloud"
	"github.com/ppiankov/logsieve/internal/redact"
	"github.com/ppiankov/logsieve/internal/render"
	"github.com/ppiankov/logsieve/internal/source"
)

type classifyOptions struct {
	input inputFlags

	format        string
	showRejects   bool
	color         string
	sortField     string
	desc          bool
	methods       string
	statuses      string
	grep          string
	from          string
	to            string
	query         string
	redact        string
	redactPattern string
	out           string
	upload        string
	failOnRejects bool
}

func newClassifyCmd() *cobra.Command {
	var o classifyOptions

	cmd := &cobra.Command{
		Use:   "classify <file|-|s3://bucket/key|gs://bucket/key|k8s://ns/pod>",
		Short: "Classify an access log into entries and rejects",
		Long: `Read an Apache combined access log, match every line against the combined
format and print the parsed entries. Lines that do not match are rejects;
blank lines are skipped. gzip and zstd input is decoded automatically.`,
		Example: `  logsieve classify access.log
  logsieve classify access.log.gz --status 5xx --sort resource
  logsieve classify s3://logs/web/access.log --format parquet --out access.parquet
  logsieve classify k8s://web/deploy/httpd --tail 10000 --rejects
  logsieve classify access.log --format json --query 'entries[?status==` + "`404`" + `].resource'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyConfigDefaults(cmd)
			ctx, cancel := commandContext(cmd.Context())
			defer cancel()
			return runClassify(ctx, cmd.OutOrStdout(), args[0], &o)
		},
	}

	addInputFlags(cmd, &o.input)
	f := cmd.Flags()
	f.StringVarP(&o.format, "format", "f", "table", "output format: table, json, jsonl, csv, parquet, html")
	f.BoolVar(&o.showRejects, "rejects", false, "include rejected lines in the output")
	f.StringVar(&o.color, "color", "auto", "color table output: auto, always, never")
	f.StringVar(&o.sortField, "sort", "line", "sort entries by: line, ip, date, method, resource, status, size, referer, agent")
	f.BoolVar(&o.desc, "desc", false, "sort descending")
	f.StringVar(&o.methods, "method", "", "only these methods, comma-separated")
	f.StringVar(&o.statuses, "status", "", "only these statuses or classes, e.g. 404,5xx")
	f.StringVar(&o.grep, "grep", "", "only entries whose fields match this regex")
	f.StringVar(&o.from, "from", "", "only entries at or after (RFC3339, 2006-01-02 15:04:05, or -30m)")
	f.StringVar(&o.to, "to", "", "only entries at or before")
	f.StringVar(&o.query, "query", "", "JMESPath expression evaluated over the JSON result")
	f.StringVar(&o.redact, "redact", "", "redact output: true for all patterns, or a comma list (query_secret,credit_card,email,jwt,bearer,ip_v4)")
	f.StringVar(&o.redactPattern, "redact-patterns", "", "YAML file with extra redaction patterns")
	f.StringVarP(&o.out, "out", "o", "", "write output to a file instead of stdout")
	f.StringVar(&o.upload, "upload", "", "also upload the output to s3://bucket/key or gs://bucket/key")
	f.BoolVar(&o.failOnRejects, "fail-on-rejects", false, "exit 6 when any line is rejected")

	return cmd
}

func runClassify(ctx context.Context, stdout io.Writer, location string, o *classifyOptions) error {
	format, err := render.ParseFormat(o.format)
	if err != nil {
		return cli.NewUsageError(err.Error())
	}
	if err := render.ValidSortField(o.sortField); err != nil {
		return cli.NewUsageError(err.Error())
	}
	filter, err := o.filter(time.Now())
	if err != nil {
		return err
	}
	redactor, err := buildRedactor(o.redact, o.redactPattern)
	if err != nil {
		return err
	}
	if format.Binary() && o.out == "" && o.query == "" && isTerminal(stdout) {
		return cli.NewUsageError(fmt.Sprintf("refusing to write %s to a terminal, use --out", format))
	}

	res, err := o.input.load(ctx, location)
	if err != nil {
		return err
	}
	rejected, total := len(res.Rejects), res.Total()

	res = filter.Apply(res)
	if o.sortField != "line" || o.desc {
		if err := render.Sort(res.Entries, o.sortField, o.desc); err != nil {
			return cli.NewUsageError(err.Error())
		}
	}

	var buf bytes.Buffer
	contentType := string(format)
	if o.query != "" {
		if redactor != nil {
			res = redactor.Result(res)
		}
		if err := render.WriteQuery(&buf, res, o.query); err != nil {
			return cli.NewUsageError(err.Error())
		}
		contentType = "query"
	} else {
		opts := render.Options{
			Format:      format,
			ShowRejects: o.showRejects,
			Redactor:    redactor,
			Color:       useColor(o.color, stdout, o.out),
			Title:       location,
		}
		if err := render.Write(&buf, res, opts); err != nil {
			return fmt.Errorf("render %s: %w", format, err)
		}
	}

	if err := writeOutput(stdout, o.out, buf.Bytes()); err != nil {
		return err
	}
	if o.upload != "" {
		if err := uploadOutput(ctx, o.upload, buf.Bytes(), contentType, o.input.newBackend); err != nil {
			return err
		}
	}
	if redactor != nil && verbose {
		for _, h := range redactor.Hits() {
			_, _ = fmt.Fprintf(os.Stderr, "redacted %d %s\n", h.Count, h.Pattern)
		}
	}

	if o.failOnRejects && rejected > 0 {
		return cli.NewFindingsError(fmt.Sprintf("%d of %d lines rejected", rejected, total))
	}
	return nil
}

func (o *classifyOptions) filter(now time.Time) (*render.Filter, error) {
	f := &render.Filter{}
	var err error
	if f.Methods, err = render.ParseMethodFlag(o.methods); err != nil {
		return nil, cli.NewUsageError(err.Error())
	}
	if f.Statuses, err = render.ParseStatusFlag(o.statuses); err != nil {
		return nil, cli.NewUsageError(err.Error())
	}
	if o.grep != "" {
		if f.Grep, err = regexp.Compile(o.grep); err != nil {
			return nil, cli.NewUsageError(fmt.Sprintf("invalid --grep: %v", err))
		}
	}
	if f.From, err = render.ParseTimeFlag(o.from, now); err != nil {
		return nil, cli.NewUsageError("--from: " + err.Error())
	}
	if f.To, err = render.ParseTimeFlag(o.to, now); err != nil {
		return nil, cli.NewUsageError("--to: " + err.Error())
	}
	return f, nil
}

// buildRedactor returns nil when redaction is off. A patterns file
// without --redact enables the built-ins as well.
func buildRedactor(flag, patternsFile string) (*redact.Redactor, error) {
	enabled, names := redact.ParseFlag(flag)
	if !enabled && patternsFile == "" {
		return nil, nil
	}
	r, err := redact.New(names)
	if err != nil {
		return nil, cli.NewUsageError(err.Error())
	}
	if patternsFile != "" {
		if err := r.LoadPatterns(patternsFile); err != nil {
			return nil, cli.NewUsageError(err.Error())
		}
	}
	return r, nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func uploadOutput(ctx context.Context, dest string, data []byte, format string,
	newBackend func(ctx context.Context, scheme, bucket string) (cloud.Backend, error)) error {
	loc, err := cloud.ParseURL(dest)
	if err != nil {
		return cli.NewUsageError("invalid --upload: " + err.Error())
	}
	if loc.Key == "" || loc.Key[len(loc.Key)-1] == '/' {
		return cli.NewUsageError("--upload needs an object key, not a prefix")
	}
	if newBackend == nil {
		newBackend = cloud.NewBackend
	}
	b, err := newBackend(ctx, loc.Scheme, loc.Bucket)
	if err != nil {
		return cli.NewNetworkError(fmt.Sprintf("connect to %s: %v", loc.Scheme, err))
	}
	if err := b.Put(ctx, loc.Key, bytes.NewReader(data), int64(len(data)), cloud.ContentType(format)); err != nil {
		return cli.NewNetworkError(fmt.Sprintf("upload %s: %v", loc, err))
	}
	_, _ = fmt.Fprintf(os.Stderr, "Uploaded %s to %s\n", source.FormatBytes(int64(len(data))), loc)
	return nil
}

// useColor resolves --color. auto colors only a terminal stdout without
// NO_COLOR.
func useColor(mode string, stdout io.Writer, out string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if out != "" {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isTerminal(stdout)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
