package main

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/logsieve/internal/cli"
	"github.com/ppiankov/logsieve/internal/tui"
)

func newBrowseCmd() *cobra.Command {
	var in inputFlags

	cmd := &cobra.Command{
		Use:   "browse <file|-|s3://bucket/key|gs://bucket/key|k8s://ns/pod>",
		Short: "Browse classified entries interactively",
		Long: `Open a full-screen viewer over the classified log.

Keys: j/k scroll, d/u half page, g g top, G bottom, / search, n/N next and
previous match, s cycle sort field, S reverse, r toggle rejects, q quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyConfigDefaults(cmd)
			if args[0] == "-" {
				return cli.NewUsageError("browse needs a file or remote source; stdin is the terminal")
			}
			ctx, cancel := commandContext(cmd.Context())
			res, err := in.load(ctx, args[0])
			cancel()
			if err != nil {
				return err
			}
			return tui.Run(res, args[0])
		},
	}
	addInputFlags(cmd, &in)
	return cmd
}
