package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logsieve/internal/cli"
	"github.com/ppiankov/logsieve/internal/config"
	"github.com/ppiankov/logsieve/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg        *config.Config
	timeoutStr string
	jsonErrors bool
	verbose    bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		cli.FormatError(os.Stderr, err, jsonErrors)
		os.Exit(cli.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "logsieve",
		Short:         "Split Apache access logs into parsed entries and rejected lines",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cfg == nil {
				cfg = config.Load()
			}
			if !cmd.Flags().Changed("verbose") && cfg.Defaults.Verbose {
				verbose = true
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.Setup(level, "text")
		},
	}
	root.PersistentFlags().StringVar(&timeoutStr, "timeout", "", "timeout for remote sources (cloud, k8s)")
	root.PersistentFlags().BoolVar(&jsonErrors, "json-errors", false, "print errors as JSON on stderr")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose diagnostics on stderr")

	root.AddCommand(newClassifyCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newBrowseCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newLsCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newCompletionCmd())
	return root
}
