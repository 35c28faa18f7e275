package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logsieve/internal/cli"
	"github.com/ppiankov/logsieve/internal/cloud"
	"github.com/ppiankov/logsieve/internal/source"
)

func newLsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ls <s3://bucket/prefix|gs://bucket/prefix>",
		Short: "List logs in object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd.Context())
			defer cancel()
			return runLs(ctx, cmd.OutOrStdout(), args[0], jsonOutput, nil)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func runLs(ctx context.Context, w io.Writer, raw string, jsonOutput bool,
	newBackend func(ctx context.Context, scheme, bucket string) (cloud.Backend, error)) error {
	loc, err := cloud.ParseURL(raw)
	if err != nil {
		return cli.NewUsageError(err.Error())
	}
	if newBackend == nil {
		newBackend = cloud.NewBackend
	}
	b, err := newBackend(ctx, loc.Scheme, loc.Bucket)
	if err != nil {
		return cli.NewNetworkError(fmt.Sprintf("connect to %s: %v", loc.Scheme, err))
	}
	objects, err := b.List(ctx, loc.Key)
	if err != nil {
		return cli.NewNetworkError(fmt.Sprintf("list %s: %v", loc, err))
	}

	if jsonOutput {
		type item struct {
			URL  string `json:"url"`
			Size int64  `json:"size"`
		}
		items := make([]item, len(objects))
		for i, o := range objects {
			items[i] = item{
				URL:  cloud.Location{Scheme: loc.Scheme, Bucket: loc.Bucket, Key: o.Key}.String(),
				Size: o.Size,
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(objects) == 0 {
		_, _ = fmt.Fprintf(w, "no objects under %s\n", loc)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, o := range objects {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", source.FormatBytes(o.Size), cloud.Location{Scheme: loc.Scheme, Bucket: loc.Bucket, Key: o.Key})
	}
	return tw.Flush()
}
