package lifecycle

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/decision"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/handlers"
	"github.com/mrz1836/cortex/internal/processor"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
	"github.com/mrz1836/cortex/internal/testutil"
)

//nolint:gochecknoglobals // Test fixture
var testEpoch = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// fastConfig keeps ritual loops quick in tests.
//
//nolint:gochecknoglobals // Test fixture
var fastConfig = Config{PollInterval: time.Millisecond, StepTimeout: time.Second}

func openTestStore(t *testing.T, clk clock.Clock) *store.SQLStore {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{
		Path:   filepath.Join(t.TempDir(), "cortex.db"),
		Clock:  clk,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newManager(t *testing.T, s store.Store, clk clock.Clock, occurrence string) *task.Manager {
	t.Helper()
	m, err := task.NewManager(s, task.NewFactory(clk), occurrence, zerolog.Nop(), task.WithManagerClock(clk))
	require.NoError(t, err)
	return m
}

// newProcessor returns the real pipeline with the scripted decision maker.
func newProcessor(t *testing.T, s store.Store, m *task.Manager, clk clock.Clock) *processor.Processor {
	t.Helper()
	p, err := processor.New(s, m, decision.NewScripted(zerolog.Nop()), handlers.NewDefaultRegistry(zerolog.Nop()),
		zerolog.Nop(), processor.WithClock(clk))
	require.NoError(t, err)
	return p
}

// stubProcessor answers every thought with decide and finalizes it the way
// the pipeline would. A nil action leaves the thought pending.
type stubProcessor struct {
	store  store.Store
	clock  clock.Clock
	mu     sync.Mutex
	decide func(th *domain.Thought) (*domain.FinalAction, error)
	calls  int
}

func (p *stubProcessor) ProcessThought(ctx context.Context, th *domain.Thought) (*domain.FinalAction, error) {
	p.mu.Lock()
	p.calls++
	decide := p.decide
	p.mu.Unlock()

	action, err := decide(th)
	if err != nil || action == nil {
		return action, err
	}
	if err := p.store.FinalizeThought(ctx, th.ThoughtID, th.AgentOccurrenceID, constants.ThoughtStatusCompleted, action, p.clock); err != nil {
		return nil, err
	}
	return action, nil
}

func (p *stubProcessor) setDecide(fn func(th *domain.Thought) (*domain.FinalAction, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decide = fn
}

func always(action constants.ActionType, params map[string]string) func(*domain.Thought) (*domain.FinalAction, error) {
	return func(*domain.Thought) (*domain.FinalAction, error) {
		return &domain.FinalAction{ActionType: action, ActionParams: params, Reasoning: "stub"}, nil
	}
}

func undecided(*domain.Thought) (*domain.FinalAction, error) {
	return nil, nil
}

// recordingStore records every write that goes through it.
type recordingStore struct {
	store.Store

	mu     sync.Mutex
	writes []string
}

func (r *recordingStore) record(op, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, op+" "+id)
}

func (r *recordingStore) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func (r *recordingStore) AddTask(ctx context.Context, t *domain.Task) error {
	r.record("AddTask", t.TaskID)
	return r.Store.AddTask(ctx, t)
}

func (r *recordingStore) InsertTaskIfAbsent(ctx context.Context, t *domain.Task) (bool, error) {
	r.record("InsertTaskIfAbsent", t.TaskID)
	return r.Store.InsertTaskIfAbsent(ctx, t)
}

func (r *recordingStore) UpdateTaskStatus(ctx context.Context, taskID string, status constants.TaskStatus, occurrenceID string, clk clock.Clock) error {
	r.record("UpdateTaskStatus", taskID)
	return r.Store.UpdateTaskStatus(ctx, taskID, status, occurrenceID, clk)
}

func (r *recordingStore) TransitionTaskStatus(ctx context.Context, taskID, occurrenceID string, from, to constants.TaskStatus, clk clock.Clock) error {
	r.record("TransitionTaskStatus", taskID)
	return r.Store.TransitionTaskStatus(ctx, taskID, occurrenceID, from, to, clk)
}

func (r *recordingStore) UpdateTaskOutcome(ctx context.Context, taskID, occurrenceID string, from constants.TaskStatus, outcome *domain.TaskOutcome, clk clock.Clock) error {
	r.record("UpdateTaskOutcome", taskID)
	return r.Store.UpdateTaskOutcome(ctx, taskID, occurrenceID, from, outcome, clk)
}

func (r *recordingStore) DeleteTask(ctx context.Context, taskID, occurrenceID string) error {
	r.record("DeleteTask", taskID)
	return r.Store.DeleteTask(ctx, taskID, occurrenceID)
}

func (r *recordingStore) AddThought(ctx context.Context, th *domain.Thought) error {
	r.record("AddThought", th.SourceTaskID)
	return r.Store.AddThought(ctx, th)
}

func (r *recordingStore) UpdateThoughtStatus(ctx context.Context, thoughtID string, status constants.ThoughtStatus, occurrenceID string, clk clock.Clock) error {
	r.record("UpdateThoughtStatus", thoughtID)
	return r.Store.UpdateThoughtStatus(ctx, thoughtID, status, occurrenceID, clk)
}

func (r *recordingStore) FinalizeThought(ctx context.Context, thoughtID, occurrenceID string, status constants.ThoughtStatus, action *domain.FinalAction, clk clock.Clock) error {
	r.record("FinalizeThought", thoughtID)
	return r.Store.FinalizeThought(ctx, thoughtID, occurrenceID, status, action, clk)
}

func (r *recordingStore) DeleteThought(ctx context.Context, thoughtID, occurrenceID string) error {
	r.record("DeleteThought", thoughtID)
	return r.Store.DeleteThought(ctx, thoughtID, occurrenceID)
}

func (r *recordingStore) TransferThoughtOwnership(ctx context.Context, thoughtID, from, to string, clk clock.Clock) error {
	r.record("TransferThoughtOwnership", thoughtID)
	return r.Store.TransferThoughtOwnership(ctx, thoughtID, from, to, clk)
}

func (r *recordingStore) AddCorrelation(ctx context.Context, corr *domain.Correlation) error {
	r.record("AddCorrelation", corr.CorrelationID)
	return r.Store.AddCorrelation(ctx, corr)
}

func newTestClock() *testutil.Clock {
	return testutil.NewClock(testEpoch)
}
