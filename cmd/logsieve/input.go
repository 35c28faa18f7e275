package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logsieve/internal/cli"
	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/cloud"
	"github.com/ppiankov/logsieve/internal/config"
	"github.com/ppiankov/logsieve/internal/k8s"
	"github.com/ppiankov/logsieve/internal/source"
)

// inputFlags are shared by every command that reads a log.
type inputFlags struct {
	datePolicy   string
	jobs         int
	maxBytes     string
	maxLineBytes string
	kubeconfig   string
	tail         int64
	since        time.Duration
	previous     bool

	// test seams
	stdin      io.Reader
	newBackend func(ctx context.Context, scheme, bucket string) (cloud.Backend, error)
	kube       *k8s.Client
}

func addInputFlags(cmd *cobra.Command, in *inputFlags) {
	f := cmd.Flags()
	f.StringVar(&in.datePolicy, "date-policy", "sentinel", "unparseable dates: sentinel, strict or raw")
	f.IntVar(&in.jobs, "jobs", 1, "parallel classification workers")
	f.StringVar(&in.maxBytes, "max-bytes", "", "maximum decoded input size (default 64MB)")
	f.StringVar(&in.maxLineBytes, "max-line-bytes", "", "maximum line length (default 1MB)")
	f.StringVar(&in.kubeconfig, "kubeconfig", "", "kubeconfig for k8s:// sources")
	f.Int64Var(&in.tail, "tail", 0, "k8s:// only: keep the last N lines")
	f.DurationVar(&in.since, "since", 0, "k8s:// only: keep lines newer than this")
	f.BoolVar(&in.previous, "previous", false, "k8s:// only: read the previous container instance")
}

func (in *inputFlags) classifier() (*clf.Classifier, error) {
	policy, err := clf.ParseDatePolicy(in.datePolicy)
	if err != nil {
		return nil, cli.NewUsageError(err.Error())
	}
	maxLine, err := config.ParseSize(in.maxLineBytes)
	if err != nil {
		return nil, cli.NewUsageError("--max-line-bytes: " + err.Error())
	}
	return clf.New(clf.WithJobs(in.jobs), clf.WithDatePolicy(policy), clf.WithMaxLineBytes(int(maxLine))), nil
}

func (in *inputFlags) sourceOptions() (source.Options, error) {
	maxBytes, err := config.ParseSize(in.maxBytes)
	if err != nil {
		return source.Options{}, cli.NewUsageError("--max-bytes: " + err.Error())
	}
	maxLine, err := config.ParseSize(in.maxLineBytes)
	if err != nil {
		return source.Options{}, cli.NewUsageError("--max-line-bytes: " + err.Error())
	}
	return source.Options{
		MaxBytes:     maxBytes,
		MaxLineBytes: int(maxLine),
		Stdin:        in.stdin,
		NewBackend:   in.newBackend,
		Kube:         in.kube,
		Kubeconfig:   in.kubeconfig,
		Logs: k8s.LogOptions{
			TailLines:    in.tail,
			SinceSeconds: int64(in.since.Seconds()),
			Previous:     in.previous,
		},
	}, nil
}

// load reads and classifies location.
func (in *inputFlags) load(ctx context.Context, location string) (*clf.Result, error) {
	c, err := in.classifier()
	if err != nil {
		return nil, err
	}
	opts, err := in.sourceOptions()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	lines, err := source.Load(ctx, location, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	res, err := c.Classify(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	slog.Debug("classified",
		"source", location,
		"lines", res.Lines,
		"entries", len(res.Entries),
		"rejects", len(res.Rejects),
		"duration", time.Since(start),
	)
	return res, nil
}
