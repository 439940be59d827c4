package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/contracts"
	"github.com/mrz1836/cortex/internal/coordination"
	"github.com/mrz1836/cortex/internal/ctxutil"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
)

// Config holds the timing of a ritual. Zero fields keep the ritual's defaults.
type Config struct {
	// CompletionWindow is how far back a completed shared task still counts.
	CompletionWindow time.Duration

	// StepTimeout bounds one thought of the ritual.
	StepTimeout time.Duration

	// PollInterval is the pause between rounds in StartProcessing.
	PollInterval time.Duration
}

// Option configures a ritual.
type Option func(*ritual)

// WithConfig overrides the ritual timing.
func WithConfig(cfg Config) Option {
	return func(r *ritual) {
		if cfg.CompletionWindow > 0 {
			r.cfg.CompletionWindow = cfg.CompletionWindow
		}
		if cfg.StepTimeout > 0 {
			r.cfg.StepTimeout = cfg.StepTimeout
		}
		if cfg.PollInterval > 0 {
			r.cfg.PollInterval = cfg.PollInterval
		}
	}
}

// WithClock sets the clock used for shared task ids and timestamps.
func WithClock(clk clock.Clock) Option {
	return func(r *ritual) {
		r.clock = clock.OrReal(clk)
	}
}

// ritual holds what wakeup and shutdown share: the claim, the shared root and
// the round loop.
type ritual struct {
	taskType string
	cfg      Config
	store    store.Store
	manager  *task.Manager
	proc     contracts.ThoughtProcessor
	coord    *coordination.Coordinator
	clock    clock.Clock
	logger   zerolog.Logger

	// runMu serializes rounds; mu guards the fields below.
	runMu sync.Mutex
	mu    sync.Mutex
	role  Role
	root  *domain.Task
	stop  context.CancelFunc
}

func newRitual(taskType string, cfg Config, s store.Store, m *task.Manager, proc contracts.ThoughtProcessor, logger zerolog.Logger, opts ...Option) (*ritual, error) {
	if s == nil {
		return nil, errors.ErrNilStore
	}
	if m == nil {
		return nil, fmt.Errorf("failed to create %s ritual: task manager %w", taskType, errors.ErrEmptyValue)
	}
	if proc == nil {
		return nil, fmt.Errorf("failed to create %s ritual: thought processor %w", taskType, errors.ErrEmptyValue)
	}

	r := &ritual{
		taskType: taskType,
		cfg:      cfg,
		store:    s,
		manager:  m,
		proc:     proc,
		clock:    clock.RealClock{},
		logger: logger.With().
			Str("component", taskType).
			Str("occurrence_id", m.OccurrenceID()).
			Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	coord, err := coordination.NewCoordinator(s, r.clock, logger)
	if err != nil {
		return nil, err
	}
	r.coord = coord
	return r, nil
}

// Role returns the part this occurrence plays, RoleNone before the first round.
func (r *ritual) Role() Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role
}

// RootTask returns a copy of the shared root as last read, or nil.
func (r *ritual) RootTask() *domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.root == nil {
		return nil
	}
	root := *r.root
	return &root
}

// claim finds or creates today's shared root. A root already completed within
// the window makes this occurrence an observer of that root without claiming.
func (r *ritual) claim(ctx context.Context, description string) (*domain.Task, Role, error) {
	done, err := r.coord.IsSharedTaskCompleted(ctx, r.taskType, r.cfg.CompletionWindow)
	if err != nil {
		return nil, RoleNone, err
	}
	if done {
		latest, err := r.coord.GetLatestSharedTask(ctx, r.taskType, r.cfg.CompletionWindow)
		if err != nil {
			return nil, RoleNone, err
		}
		if latest != nil {
			r.logger.Info().Str("task_id", latest.TaskID).Msg("shared task already completed")
			return latest, RoleObserver, nil
		}
	}

	root, created, err := r.coord.TryClaimSharedTask(ctx, coordination.ClaimRequest{
		TaskType:             r.taskType,
		ClaimantOccurrenceID: r.manager.OccurrenceID(),
		Description:          description,
	})
	if err != nil {
		return nil, RoleNone, err
	}
	if !created {
		return root, RoleObserver, nil
	}
	if err := r.manager.FinishTask(ctx, root, constants.TaskStatusActive, "", "claimed by "+r.manager.OccurrenceID()); err != nil {
		return nil, RoleNone, err
	}
	return root, RoleClaimant, nil
}

// readRoot reloads the shared root under its own occurrence id. A root removed
// by the maintenance sweep resets the claim so the next round claims again.
func (r *ritual) readRoot(ctx context.Context) (*domain.Task, error) {
	r.mu.Lock()
	root := r.root
	r.mu.Unlock()

	current, err := r.store.GetTaskByID(ctx, root.TaskID, root.AgentOccurrenceID)
	if stderrors.Is(err, errors.ErrTaskNotFound) {
		r.logger.Warn().Str("task_id", root.TaskID).Msg("shared task disappeared, claiming again")
		r.mu.Lock()
		r.root, r.role = nil, RoleNone
		r.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.root = current
	r.mu.Unlock()
	return current, nil
}

// nextThought returns the thought to run for t this round: a pending one if it
// exists, otherwise a fresh seed. It returns nil while a thought is still
// processing.
func (r *ritual) nextThought(ctx context.Context, t *domain.Task, round int) (*domain.Thought, error) {
	thoughts, err := r.store.GetThoughtsByTaskID(ctx, t.TaskID, t.AgentOccurrenceID)
	if err != nil {
		return nil, err
	}
	var pending *domain.Thought
	for _, th := range thoughts {
		switch th.Status {
		case constants.ThoughtStatusProcessing:
			return nil, nil
		case constants.ThoughtStatusPending:
			if pending == nil {
				pending = th
			}
		case constants.ThoughtStatusCompleted, constants.ThoughtStatusFailed, constants.ThoughtStatusDeferred:
		}
	}
	if pending != nil {
		return pending, nil
	}

	seed, err := r.manager.Factory().CreateSeedThought(t, round)
	if err != nil {
		return nil, err
	}
	if err := r.store.AddThought(ctx, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// runThought processes th within the step timeout. A thought that runs out of
// time fails with ErrTaskWaitTimeout; the processor has put it back to pending.
func (r *ritual) runThought(ctx context.Context, th *domain.Thought) (*domain.FinalAction, error) {
	stepCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
	defer cancel()

	action, err := r.proc.ProcessThought(stepCtx, th)
	switch {
	case err == nil:
		return action, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case stepCtx.Err() != nil:
		r.logger.Warn().Str("thought_id", th.ThoughtID).Dur("timeout", r.cfg.StepTimeout).Msg("ritual thought timed out")
		return nil, fmt.Errorf("thought %s: %w after %s", th.ThoughtID, errors.ErrTaskWaitTimeout, r.cfg.StepTimeout)
	default:
		return nil, err
	}
}

// loop runs round until done reports true, rounds are exhausted (rounds <= 0
// means no limit) or StopProcessing is called.
func (r *ritual) loop(ctx context.Context, rounds int, round func(context.Context, int) (bool, error)) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return fmt.Errorf("%s ritual is already processing", r.taskType)
	}
	r.stop = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.stop = nil
		r.mu.Unlock()
	}()

	for i := 0; rounds <= 0 || i < rounds; i++ {
		done, err := round(runCtx, i)
		if err != nil && runCtx.Err() != nil {
			return runCtx.Err()
		}
		if err != nil || done {
			return err
		}
		if err := ctxutil.Sleep(runCtx, r.cfg.PollInterval); err != nil {
			return err
		}
	}
	return nil
}

// StopProcessing cancels a running StartProcessing. It reports whether one was
// running.
func (r *ritual) StopProcessing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		return false
	}
	r.stop()
	return true
}

// isDecisionFailure reports whether a thought error leaves the store intact.
func isDecisionFailure(err error) bool {
	return stderrors.Is(err, errors.ErrDecisionFailed) || !task.IsStoreFailure(err)
}
