package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cortex/internal/config"
	"github.com/mrz1836/cortex/internal/coordination"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/flock"
	"github.com/mrz1836/cortex/internal/lifecycle"
	"github.com/mrz1836/cortex/internal/processor"
	"github.com/mrz1836/cortex/internal/signal"
	"github.com/mrz1836/cortex/internal/tui"
)

// runOptions holds flags specific to the run command.
type runOptions struct {
	rounds     int
	noWakeup   bool
	noShutdown bool
	reason     string
}

// RunSummary is what `cortex run --output json` prints when the scheduler stops.
type RunSummary struct {
	OccurrenceID string                    `json:"occurrence_id"`
	Sweep        coordination.SweepReport  `json:"sweep"`
	Wakeup       *lifecycle.WakeupStatus   `json:"wakeup,omitempty"`
	Rounds       int                       `json:"rounds"`
	Interrupted  bool                      `json:"interrupted"`
	Shutdown     *lifecycle.ShutdownResult `json:"shutdown,omitempty"`
	Results      []processor.RoundResult   `json:"results,omitempty"`
	Duration     time.Duration             `json:"duration"`
}

// stopSignals is the part of signal.Handler the run loop depends on.
type stopSignals interface {
	Context() context.Context
	Interrupted() <-chan struct{}
	ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc)
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(parent *cobra.Command, flags *GlobalFlags) {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler for this occurrence",
		Long: `Run the processing loop for one agent occurrence.

The run command:
  1. Takes the occurrence lock (~/.cortex/locks/<occurrence>.lock)
  2. Sweeps stale shared tasks, stale tasks and orphaned thoughts
  3. Runs the wakeup ritual, or mirrors it when another occurrence claimed it
  4. Processes rounds until interrupted or --rounds is reached
  5. Asks the agent for consent to shut down

Press Ctrl+C once to stop gracefully, twice to force.

Examples:
  cortex run                       # Run until interrupted
  cortex run --rounds 10           # Process ten rounds, then shut down
  cortex run --occurrence worker-2 # Run a second occurrence on the same database
  cortex run --no-wakeup -o json   # Skip wakeup and print a JSON summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd.Context(), cmd.OutOrStdout(), flags, opts)
		},
	}

	cmd.Flags().IntVar(&opts.rounds, "rounds", 0, "stop after this many rounds (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.noWakeup, "no-wakeup", false, "skip the wakeup ritual")
	cmd.Flags().BoolVar(&opts.noShutdown, "no-shutdown", false, "stop without asking for shutdown consent")
	cmd.Flags().StringVar(&opts.reason, "reason", "", "reason given in the shutdown request")

	parent.AddCommand(cmd)
}

// runRun executes the run command with production dependencies.
func runRun(ctx context.Context, w io.Writer, flags *GlobalFlags, opts *runOptions) error {
	if opts.rounds < 0 {
		return errors.NewExitCode2Error(fmt.Errorf("%w: --rounds must not be negative", errors.ErrValueOutOfRange))
	}

	tui.CheckNoColor()
	logger := GetLogger()

	cfg, err := loadConfig(ctx, flags, logger)
	if err != nil {
		return err
	}

	lockDir, err := config.LocksPath()
	if err != nil {
		return err
	}
	lock, err := flock.Acquire(lockDir, cfg.Occurrence.ID)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			logger.Warn().Err(rerr).Str("path", lock.Path()).Msg("failed to release occurrence lock")
		}
	}()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to close store")
		}
	}()

	h := signal.NewHandler(ctx)
	defer h.Stop()

	out := tui.NewOutput(w, flags.Output, tui.WithQuiet(flags.Quiet))
	summary, err := runScheduler(h, a, out, opts)
	if out.IsJSON() {
		if jerr := out.JSON(summary); jerr != nil && err == nil {
			err = jerr
		}
	}
	return err
}

// runScheduler runs sweep, wakeup, processing and shutdown in order. It
// returns the summary even when a phase fails.
func runScheduler(sig stopSignals, a *app, out tui.Output, opts *runOptions) (summary RunSummary, err error) {
	ctx := sig.Context()
	start := time.Now()
	summary.OccurrenceID = a.cfg.Occurrence.ID
	logger := a.logger.With().Str("occurrence_id", a.cfg.Occurrence.ID).Logger()
	defer func() { summary.Duration = time.Since(start) }()

	report, err := sweep(ctx, a)
	if err != nil {
		return summary, err
	}
	summary.Sweep = report
	if n := report.Total(); n > 0 {
		out.Info(fmt.Sprintf("Maintenance removed or settled %d stale rows", n))
	}

	if a.cfg.Wakeup.Enabled && !opts.noWakeup {
		st, err := runWakeup(ctx, a, out)
		summary.Wakeup = &st
		if err != nil {
			if ctx.Err() != nil {
				summary.Interrupted = true
				logger.Info().Msg("interrupted during wakeup")
				return summary, nil
			}
			return summary, err
		}
	}

	out.Info(fmt.Sprintf("Processing as %s", a.cfg.Occurrence.ID))
	if opts.rounds > 0 {
		results, err := a.proc.RunRounds(ctx, opts.rounds)
		summary.Results = results
		summary.Rounds = len(results)
		if err != nil && ctx.Err() == nil {
			return summary, err
		}
	} else {
		err := a.proc.Run(ctx)
		summary.Rounds = a.proc.Pipeline().CurrentRound()
		if err != nil {
			return summary, err
		}
	}

	select {
	case <-sig.Interrupted():
		summary.Interrupted = true
	default:
	}

	if !a.cfg.Shutdown.Enabled || opts.noShutdown {
		out.Success("Stopped")
		return summary, nil
	}

	reason := opts.reason
	if reason == "" {
		reason = "operator requested stop"
		if !summary.Interrupted {
			reason = fmt.Sprintf("completed %d rounds", summary.Rounds)
		}
	}

	sctx, cancel := sig.ShutdownContext(a.cfg.Shutdown.Timeout)
	defer cancel()
	res, err := runShutdown(sctx, a, reason)
	summary.Shutdown = &res
	switch {
	case stderrors.Is(err, errors.ErrShutdownRejected):
		out.Warning(fmt.Sprintf("Shutdown rejected: %s", res.Reason))
		return summary, err
	case err != nil:
		return summary, err
	case !res.Done:
		out.Warning("Shutdown consent not given in time, stopping anyway")
		return summary, nil
	}
	out.Success("Shutdown accepted")
	return summary, nil
}

func sweep(ctx context.Context, a *app) (coordination.SweepReport, error) {
	m, err := a.maintenance()
	if err != nil {
		return coordination.SweepReport{}, err
	}
	return m.Sweep(ctx)
}

// runWakeup runs the wakeup ritual until it completes or its rounds run out.
func runWakeup(ctx context.Context, a *app, out tui.Output) (lifecycle.WakeupStatus, error) {
	w, err := a.wakeup()
	if err != nil {
		return lifecycle.WakeupStatus{}, err
	}

	out.Info("Waking up")
	st, err := w.StartProcessing(ctx, a.cfg.Wakeup.MaxRounds)
	if err != nil {
		return st, err
	}
	if !st.Complete {
		return st, fmt.Errorf("%w: %d of %d steps completed after %d rounds",
			errors.ErrWakeupFailed, st.CompletedSteps, st.TotalSteps, a.cfg.Wakeup.MaxRounds)
	}
	out.Success(fmt.Sprintf("Wakeup complete (%s)", st.Role))
	return st, nil
}

func runShutdown(ctx context.Context, a *app, reason string) (lifecycle.ShutdownResult, error) {
	sd, err := a.shutdown()
	if err != nil {
		return lifecycle.ShutdownResult{}, err
	}
	return sd.Request(ctx, reason, a.cfg.Shutdown.MaxRounds)
}
