package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"thor/internal/logging"
	"thor/internal/runner"
)

const (
	IsolationProcess   = "process"
	IsolationGoroutine = "goroutine"
)

// Options carries settings that shape how a run executes but never what it
// measures.
type Options struct {
	Isolation string
	LogLevel  string
	Out       io.Writer
	ErrOut    io.Writer
}

// Start runs a headless load test for cfg and prints its report to opts.Out.
func Start(ctx context.Context, cfg runner.Config, opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}
	if err := logging.SetLevel(opts.LogLevel); err != nil {
		return err
	}

	runID := uuid.New().String()
	log := logging.Log.WithField("run_id", runID)

	launcher, err := newLauncher(opts, runID, log)
	if err != nil {
		return err
	}
	logHeader(log, cfg, opts)

	d := &runner.Driver{
		Cfg:      cfg,
		Launcher: launcher,
		Out:      opts.Out,
		Log:      log,
	}
	average, err := d.Run(ctx)
	if err != nil {
		return err
	}

	log.WithField("average", average).Debug("run complete")
	return nil
}

func newLauncher(opts Options, runID string, log *logrus.Entry) (runner.Launcher, error) {
	switch opts.Isolation {
	case "", IsolationProcess:
		return &runner.ProcessLauncher{
			RunID:    runID,
			LogLevel: opts.LogLevel,
			Out:      opts.Out,
			ErrOut:   opts.ErrOut,
			Log:      log,
		}, nil
	case IsolationGoroutine:
		return &runner.GoroutineLauncher{Out: opts.Out, Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown isolation %q (want %q or %q)",
			opts.Isolation, IsolationProcess, IsolationGoroutine)
	}
}

func logHeader(log *logrus.Entry, cfg runner.Config, opts Options) {
	log.WithFields(logrus.Fields{
		"url":       cfg.URL,
		"processes": cfg.Processes,
		"requests":  cfg.Requests,
		"verbose":   cfg.Verbose,
		"isolation": opts.Isolation,
	}).Debug("starting thor load test")
}
