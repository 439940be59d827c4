package cli

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/config"
	"github.com/mrz1836/cortex/internal/coordination"
	"github.com/mrz1836/cortex/internal/decision"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/handlers"
	"github.com/mrz1836/cortex/internal/lifecycle"
	"github.com/mrz1836/cortex/internal/pipeline"
	"github.com/mrz1836/cortex/internal/processor"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
)

// app is one occurrence's scheduler wired from configuration.
type app struct {
	cfg     *config.Config
	clock   clock.Clock
	store   *store.SQLStore
	manager *task.Manager
	proc    *processor.Processor
	logger  zerolog.Logger
}

// loadConfig reads the layered configuration and applies the global flag overrides.
func loadConfig(ctx context.Context, flags *GlobalFlags, logger zerolog.Logger) (*config.Config, error) {
	overrides := &config.Config{}
	if flags != nil {
		overrides.Occurrence.ID = flags.Occurrence
		overrides.Store.Path = flags.Database
	}
	cfg, err := config.LoadWithOverrides(logger.WithContext(ctx), overrides)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp opens the store and builds the scheduler for cfg.Occurrence.ID.
// The caller must Close the returned app.
func openApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	stages, err := pipeline.ParseStages(cfg.Pipeline.EnabledStages)
	if err != nil {
		return nil, errors.Wrap(err, "invalid pipeline.enabled_stages")
	}

	dbPath, err := config.DatabasePath(cfg)
	if err != nil {
		return nil, err
	}

	clk := clock.RealClock{}
	s, err := store.Open(ctx, store.Options{
		Path:        dbPath,
		BusyTimeout: cfg.Store.BusyTimeout,
		Clock:       clk,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, clock: clk, store: s, logger: logger}
	if err := a.build(stages); err != nil {
		_ = s.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(stages []pipeline.Stage) error {
	factory := task.NewFactory(a.clock,
		task.WithMaxRoundNumber(a.cfg.Scheduler.MaxRoundNumber),
		task.WithMaxThoughtDepth(a.cfg.Scheduler.MaxThoughtDepth),
		task.WithLogger(a.logger),
	)

	manager, err := task.NewManager(a.store, factory, a.cfg.Occurrence.ID, a.logger,
		task.WithMaxActiveTasks(a.cfg.Scheduler.MaxActiveTasks),
		task.WithManagerClock(a.clock),
	)
	if err != nil {
		return err
	}

	proc, err := processor.New(a.store, manager,
		decision.NewScripted(a.logger),
		handlers.NewDefaultRegistry(a.logger),
		a.logger,
		processor.WithClock(a.clock),
		processor.WithConfig(processor.Config{
			MaxActiveThoughts: a.cfg.Scheduler.MaxActiveThoughts,
			BatchSize:         a.cfg.Scheduler.BatchSize,
			RoundDelay:        a.cfg.Scheduler.RoundDelay,
			MaxTimingHistory:  a.cfg.Pipeline.MaxTimingHistory,
			EnabledStages:     stages,
		}),
		processor.WithMetrics(newLogMetrics(a.logger)),
	)
	if err != nil {
		return err
	}

	a.manager = manager
	a.proc = proc
	return nil
}

// Close releases the store.
func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) coordinator() (*coordination.Coordinator, error) {
	return coordination.NewCoordinator(a.store, a.clock, a.logger)
}

func (a *app) maintenance() (*coordination.Maintenance, error) {
	return coordination.NewMaintenance(a.store, a.clock, coordination.MaintenanceConfig{
		SharedTaskStaleAfter: a.cfg.Maintenance.SharedTaskStaleAfter,
		StaleTaskAge:         a.cfg.Maintenance.StaleTaskAge,
		OrphanGrace:          a.cfg.Maintenance.OrphanGrace,
		CompletedRetention:   a.cfg.Maintenance.CompletedRetention,
	}, a.logger)
}

func (a *app) wakeup() (*lifecycle.Wakeup, error) {
	return lifecycle.NewWakeup(a.store, a.manager, a.proc, a.logger,
		lifecycle.WithClock(a.clock),
		lifecycle.WithConfig(lifecycle.Config{
			CompletionWindow: a.cfg.Wakeup.CompletionWindow,
			StepTimeout:      a.cfg.Wakeup.StepTimeout,
			PollInterval:     a.cfg.Wakeup.PollInterval,
		}),
	)
}

func (a *app) shutdown() (*lifecycle.Shutdown, error) {
	return lifecycle.NewShutdown(a.store, a.manager, a.proc, a.logger,
		lifecycle.WithClock(a.clock),
		lifecycle.WithConfig(lifecycle.Config{
			CompletionWindow: a.cfg.Shutdown.CompletionWindow,
			StepTimeout:      a.cfg.Wakeup.StepTimeout,
			PollInterval:     a.cfg.Wakeup.PollInterval,
		}),
	)
}

// withApp loads config, opens the app, runs fn and closes the app.
func withApp(ctx context.Context, flags *GlobalFlags, fn func(*app) error) error {
	logger := GetLogger()
	cfg, err := loadConfig(ctx, flags, logger)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to close store")
		}
	}()
	if err := fn(a); err != nil {
		return err
	}
	return nil
}
