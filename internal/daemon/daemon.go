// Package daemon wires one mirror instance: a locked workspace, an
// exclusion rule list, the reconciler and the pass scheduler.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"

	"github.com/mirrorbox/mirrorbox/internal/mirror"
	"github.com/mirrorbox/mirrorbox/internal/workspace"
)

type Daemon struct {
	cfg    *Config
	ws     *workspace.Workspace
	rules  *mirror.RuleList
	recon  *mirror.Reconciler
	sched  *Scheduler
	log    *slog.Logger
	passes int
}

func New(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ws, err := workspace.New(cfg.SourceDir, cfg.ReplicaDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	rules, err := mirror.LoadRuleList(cfg.ExcludeFrom, cfg.Excludes...)
	if err != nil {
		return nil, fmt.Errorf("exclusion rules: %w", err)
	}

	recon := mirror.NewReconciler(logger,
		mirror.WithRules(rules),
		mirror.WithDryRun(cfg.DryRun),
	)

	return &Daemon{
		cfg:   cfg,
		ws:    ws,
		rules: rules,
		recon: recon,
		sched: NewScheduler(cfg.Interval, clockwork.NewRealClock(), logger),
		log:   logger,
	}, nil
}

// Start locks the replica and runs passes until ctx is canceled. With
// Once set it runs a single pass and returns that pass's error, there
// is no next tick to retry on.
func (d *Daemon) Start(ctx context.Context) error {
	d.log.Info("mirror daemon starting",
		"source", d.ws.SourceDir,
		"replica", d.ws.ReplicaDir,
		"interval", d.cfg.Interval,
		"rules", d.rules.Len(),
		"once", d.cfg.Once,
		"dryRun", d.cfg.DryRun,
	)

	if err := d.ws.Lock(); err != nil {
		return fmt.Errorf("acquire replica lock: %w", err)
	}
	defer func() {
		if err := d.ws.Unlock(); err != nil {
			d.log.Warn("release replica lock", "error", err)
		}
	}()

	if d.cfg.Once {
		return d.runPass()
	}

	err := d.sched.Run(ctx, d.runPass)
	if errors.Is(err, context.Canceled) {
		d.log.Info("received interrupt, stopping daemon")
		return nil
	}
	return err
}

func (d *Daemon) runPass() error {
	d.passes++
	log := d.log.With("pass", d.passes)
	log.Info("synchronization pass started")

	report, err := d.recon.Synchronize(d.ws.SourceDir, d.ws.ReplicaDir)
	if err != nil {
		return err
	}

	if report.Changed() || len(report.Skipped) > 0 {
		log.Info("synchronization pass finished",
			"createdDirs", report.CreatedDirs(),
			"copiedFiles", report.CopiedFiles(),
			"deletedFiles", report.DeletedFiles(),
			"deletedDirs", report.DeletedDirs(),
			"copied", humanize.Bytes(uint64(report.BytesCopied())),
			"skipped", len(report.Skipped),
			"tsTotal", report.Duration,
		)
	} else {
		log.Info("synchronization pass finished, replica in sync", "tsTotal", report.Duration)
	}
	return nil
}
