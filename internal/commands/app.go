package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chainguard-dev/ami-backup/internal/backup"
	"github.com/chainguard-dev/ami-backup/internal/config"
	"github.com/chainguard-dev/ami-backup/internal/journal"
	"github.com/chainguard-dev/ami-backup/internal/log"
	"github.com/chainguard-dev/ami-backup/internal/metrics"
	"github.com/chainguard-dev/ami-backup/internal/o11y"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const pushJob = "ami-backup"

// app is everything a command needs once configuration is resolved.
type app struct {
	cfg     *config.Config
	api     backup.API
	journal journal.Journal
	metrics *metrics.Recorder
	runID   string
	now     func() time.Time
	start   time.Time

	teardown teardown
}

// prepare resolves configuration and wires logging, tracing, the journal
// and the EC2 client. The returned context carries the logger.
func prepare(cmd *cobra.Command, d deps, f *flags) (_ context.Context, _ *app, err error) {
	ctx := cmd.Context()

	cfg, err := config.Load(f.configPath, d.getenv)
	if err != nil {
		return ctx, nil, err
	}
	f.apply(cmd, cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return ctx, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{
		cfg:   cfg,
		runID: uuid.NewString(),
		now:   d.now,
		start: d.now(),
	}
	defer func() {
		if err != nil {
			_ = a.teardown.Run(context.WithoutCancel(ctx))
		}
	}()

	var extra []slog.Handler
	otelHandler, shutdownLogs, err := o11y.SetupLogging(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to set up log export: %w", err)
	}
	if otelHandler != nil {
		extra = append(extra, otelHandler)
	}
	a.teardown.Push("log-export", shutdownLogs)

	ctx, err = log.Setup(ctx, d.stdout, log.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}, extra...)
	if err != nil {
		return ctx, nil, err
	}
	ctx = log.With(ctx, o11y.AttrRunID, a.runID)

	shutdownTracing, err := o11y.SetupTracing(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.teardown.Push("tracing", shutdownTracing)

	if cfg.NoJournal || cfg.JournalPath == "" {
		a.journal = journal.NewMemory()
	} else {
		a.journal, err = journal.NewBolt(cfg.JournalPath)
		if err != nil {
			return ctx, nil, err
		}
		clog.FromContext(ctx).Debug("using cleanup journal", "path", cfg.JournalPath)
	}

	a.api, err = d.newAPI(ctx, cfg.Region)
	if err != nil {
		return ctx, nil, err
	}

	a.metrics = metrics.New(cfg.ServerName)
	if cfg.PushgatewayURL != "" {
		a.teardown.Push("metrics", func(ctx context.Context) error {
			return a.metrics.Push(ctx, cfg.PushgatewayURL, pushJob)
		})
	}

	return ctx, a, nil
}

func (a *app) sweeper() *backup.Sweeper {
	return &backup.Sweeper{
		API:        a.api,
		Journal:    a.journal,
		Now:        a.now,
		RunID:      a.runID,
		DryRun:     a.cfg.DryRun,
		AllowEmpty: a.cfg.AllowEmpty,
	}
}

func (a *app) recordSweep(report *backup.SweepReport) {
	if report == nil {
		return
	}
	a.metrics.Swept(len(report.Deregistered), len(report.SnapshotsDeleted), len(report.Kept), len(report.Resumed))
}

// finish records the outcome and runs the teardown. Teardown still runs
// when ctx was cancelled by a signal. The returned error is logged once, by
// main.
func (a *app) finish(ctx context.Context, runErr error) error {
	a.metrics.Finished(runErr, a.start, a.now())

	if err := a.teardown.Run(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		return err
	}
	return runErr
}
