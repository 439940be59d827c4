// Package processor runs the scheduling loop of one occurrence: it activates
// tasks, seeds thoughts and drives each round's thoughts through the pipeline
// in bounded batches. It also exposes the status snapshot and the pipeline
// control surface.
//
// Import rules:
//   - CAN import: internal/{clock,constants,contracts,domain,errors,pipeline,store,task}, std lib
//   - MUST NOT import: internal/cli, internal/lifecycle
package processor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/contracts"
	"github.com/mrz1836/cortex/internal/ctxutil"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/pipeline"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
)

// Config holds the loop settings.
type Config struct {
	// MaxActiveThoughts caps the pending thoughts pulled into one round.
	MaxActiveThoughts int

	// BatchSize is how many thoughts of a round run concurrently.
	BatchSize int

	// RoundDelay is the pause between rounds in Run.
	RoundDelay time.Duration

	// MaxTimingHistory bounds the thought durations kept for the average.
	MaxTimingHistory int

	// EnabledStages are the stages where a paused pipeline stops. Empty means all.
	EnabledStages []pipeline.Stage
}

// DefaultConfig returns the standard loop settings.
func DefaultConfig() Config {
	return Config{
		MaxActiveThoughts: constants.DefaultMaxActiveThoughts,
		BatchSize:         constants.DefaultBatchSize,
		RoundDelay:        constants.DefaultRoundDelay,
		MaxTimingHistory:  constants.DefaultMaxTimingHistory,
	}
}

// Option configures a Processor.
type Option func(*Processor)

// WithConfig replaces the loop settings. Non-positive sizes keep the defaults.
func WithConfig(cfg Config) Option {
	return func(p *Processor) {
		if cfg.MaxActiveThoughts > 0 {
			p.cfg.MaxActiveThoughts = cfg.MaxActiveThoughts
		}
		if cfg.BatchSize > 0 {
			p.cfg.BatchSize = cfg.BatchSize
		}
		if cfg.RoundDelay >= 0 {
			p.cfg.RoundDelay = cfg.RoundDelay
		}
		if cfg.MaxTimingHistory > 0 {
			p.cfg.MaxTimingHistory = cfg.MaxTimingHistory
		}
		p.cfg.EnabledStages = cfg.EnabledStages
	}
}

// WithContextBuilder sets the collaborator that builds thought contexts.
func WithContextBuilder(b contracts.ContextBuilder) Option {
	return func(p *Processor) {
		p.builder = b
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(clk clock.Clock) Option {
	return func(p *Processor) {
		p.clock = clock.OrReal(clk)
	}
}

// RoundResult summarizes one processing round.
type RoundResult struct {
	Round     int           `json:"round"`
	Activated int           `json:"activated"`
	Seeded    int           `json:"seeded"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Processor is the scheduling loop of one occurrence.
type Processor struct {
	cfg     Config
	store   store.Store
	manager *task.Manager
	decider contracts.DecisionMaker
	handler contracts.ActionHandler
	builder contracts.ContextBuilder
	state   *pipeline.State
	ctrl    *lazyController
	metrics Metrics
	timings *timingHistory
	clock   clock.Clock
	logger  zerolog.Logger
	runner  *runner
	running atomic.Bool
}

// New creates a Processor for the manager's occurrence.
func New(s store.Store, manager *task.Manager, decider contracts.DecisionMaker, handler contracts.ActionHandler, logger zerolog.Logger, opts ...Option) (*Processor, error) {
	if s == nil {
		return nil, errors.ErrNilStore
	}
	if manager == nil {
		return nil, fmt.Errorf("failed to create processor: task manager %w", errors.ErrEmptyValue)
	}
	if decider == nil {
		return nil, fmt.Errorf("failed to create processor: decision maker %w", errors.ErrEmptyValue)
	}

	p := &Processor{
		cfg:     DefaultConfig(),
		store:   s,
		manager: manager,
		decider: decider,
		handler: handler,
		metrics: NoopMetrics{},
		clock:   clock.RealClock{},
		logger: logger.With().
			Str("component", "processor").
			Str("occurrence_id", manager.OccurrenceID()).
			Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.state = pipeline.NewState(p.clock)
	p.ctrl = &lazyController{state: p.state, enabled: p.cfg.EnabledStages, logger: p.logger}
	p.timings = newTimingHistory(p.cfg.MaxTimingHistory)
	p.runner = &runner{
		store:   s,
		manager: manager,
		factory: manager.Factory(),
		builder: p.builder,
		decider: decider,
		handler: handler,
		state:   p.state,
		control: p.ctrl,
		metrics: p.metrics,
		timings: p.timings,
		clock:   p.clock,
		logger:  p.logger,
	}
	return p, nil
}

// OccurrenceID returns the occurrence the processor works for.
func (p *Processor) OccurrenceID() string {
	return p.manager.OccurrenceID()
}

// Pipeline returns the pipeline state.
func (p *Processor) Pipeline() *pipeline.State {
	return p.state
}

// Controller returns the pipeline controller, or nil before the first pause.
func (p *Processor) Controller() *pipeline.Controller {
	return p.ctrl.get()
}

// Run processes rounds until ctx is done or a store failure occurs. A
// cancelled context ends the loop without error.
func (p *Processor) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("processor for %s is already running", p.OccurrenceID())
	}
	defer p.running.Store(false)

	p.logger.Info().Msg("processing loop started")
	defer p.logger.Info().Int("rounds", p.state.CurrentRound()).Msg("processing loop stopped")

	for {
		if _, err := p.ProcessRound(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := ctxutil.Sleep(ctx, p.cfg.RoundDelay); err != nil {
			return nil
		}
	}
}

// RunRounds processes n rounds back to back.
func (p *Processor) RunRounds(ctx context.Context, n int) ([]RoundResult, error) {
	results := make([]RoundResult, 0, n)
	for i := 0; i < n; i++ {
		res, err := p.ProcessRound(ctx)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// ProcessRound runs one round: activate pending tasks, seed tasks without
// thoughts, then process up to MaxActiveThoughts pending thoughts with at most
// BatchSize running at once. A failing thought does not stop the round; a
// store failure does.
func (p *Processor) ProcessRound(ctx context.Context) (RoundResult, error) {
	start := time.Now()
	res := RoundResult{Round: p.state.NextRound()}
	if err := ctxutil.Canceled(ctx); err != nil {
		return res, err
	}

	activated, err := p.manager.ActivatePendingTasks(ctx)
	if err != nil {
		return res, errors.Wrap(err, "failed to activate tasks")
	}
	res.Activated = activated

	needing, err := p.manager.TasksNeedingSeed(ctx, p.cfg.MaxActiveThoughts)
	if err != nil {
		return res, errors.Wrap(err, "failed to find tasks to seed")
	}
	seeded, err := p.manager.GenerateSeedThoughts(ctx, needing, 0)
	if err != nil {
		return res, errors.Wrap(err, "failed to seed tasks")
	}
	res.Seeded = seeded

	thoughts, err := p.store.ListThoughts(ctx, store.ThoughtFilter{
		OccurrenceID: p.OccurrenceID(),
		Statuses:     []constants.ThoughtStatus{constants.ThoughtStatusPending},
		Limit:        p.cfg.MaxActiveThoughts,
	})
	if err != nil {
		return res, errors.Wrap(err, "failed to load pending thoughts")
	}

	results := make([]*Result, len(thoughts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.BatchSize)
	for i, th := range thoughts {
		i, th := i, th
		g.Go(func() error {
			r, err := p.runner.process(gctx, th, true)
			results[i] = r
			return err
		})
	}
	waitErr := g.Wait()

	for _, r := range results {
		if r == nil {
			continue
		}
		switch r.Status {
		case constants.ThoughtStatusCompleted, constants.ThoughtStatusDeferred:
			res.Processed++
		case constants.ThoughtStatusFailed:
			res.Processed++
			res.Failed++
		case constants.ThoughtStatusPending, constants.ThoughtStatusProcessing:
		}
	}
	res.Duration = time.Since(start)
	p.metrics.RoundCompleted(res.Round, res.Processed, res.Duration)

	if waitErr != nil {
		return res, waitErr
	}
	if res.Activated+res.Seeded+len(thoughts) > 0 {
		p.logger.Info().
			Int("round", res.Round).
			Int("activated", res.Activated).
			Int("seeded", res.Seeded).
			Int("processed", res.Processed).
			Int("failed", res.Failed).
			Dur("duration", res.Duration).
			Msg("round finished")
	}
	return res, nil
}

// ProcessThought runs one thought through the pipeline and finalizes it
// without touching its task. It implements contracts.ThoughtProcessor for the
// lifecycle rituals, which decide the task outcome themselves.
func (p *Processor) ProcessThought(ctx context.Context, thought *domain.Thought) (*domain.FinalAction, error) {
	if thought == nil {
		return nil, fmt.Errorf("failed to process thought: thought %w", errors.ErrEmptyValue)
	}
	res, err := p.runner.process(ctx, thought, false)
	if err != nil {
		return nil, err
	}
	if res.Action == nil {
		return nil, fmt.Errorf("thought %s: %w: %s", thought.ThoughtID, errors.ErrDecisionFailed, res.Error)
	}
	return res.Action, nil
}

// Compile-time check that Processor implements ThoughtProcessor.
var _ contracts.ThoughtProcessor = (*Processor)(nil)

func errNotPaused(op string) error {
	return fmt.Errorf("cannot %s: %w", op, errors.ErrNotPaused)
}
