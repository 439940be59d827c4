package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/contracts"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
)

// WakeupStep is one affirmation of the wakeup sequence.
type WakeupStep struct {
	Name   string
	Prompt string
}

// WakeupSteps returns the wakeup sequence in execution order.
func WakeupSteps() []WakeupStep {
	return []WakeupStep{
		{constants.StepVerifyIdentity, "Confirm who you are and what you are for. If you agree, speak an affirmation starting with CORE IDENTITY."},
		{constants.StepValidateIntegrity, "Confirm your state, services and data are intact. If you agree, speak an affirmation starting with INTEGRITY."},
		{constants.StepEvaluateResilience, "Confirm you can act on principle when services degrade. If you agree, speak an affirmation starting with RESILIENCE."},
		{constants.StepAcceptIncompleteness, "Acknowledge what you do not know and that you will defer when unsure. If you agree, speak an affirmation starting with INCOMPLETENESS."},
		{constants.StepExpressGratitude, "Express gratitude for the chance to contribute. If you agree, speak an affirmation starting with SIGNALLING GRATITUDE."},
	}
}

// StepStatus is the state of one wakeup step task.
type StepStatus struct {
	Step   string               `json:"step"`
	TaskID string               `json:"task_id"`
	Status constants.TaskStatus `json:"status"`
}

// WakeupStatus is the aggregated progress of the wakeup ritual.
type WakeupStatus struct {
	Complete        bool         `json:"complete"`
	Failed          bool         `json:"failed"`
	Role            Role         `json:"role"`
	RootTaskID      string       `json:"root_task_id,omitempty"`
	TotalSteps      int          `json:"total_steps"`
	CompletedSteps  int          `json:"completed_steps"`
	ProgressPercent float64      `json:"progress_percent"`
	Steps           []StepStatus `json:"steps,omitempty"`
}

// Wakeup drives the wakeup ritual for one occurrence. The claimant creates a
// step task per affirmation under its own occurrence and runs one thought per
// step each round. Observers only read the shared root.
type Wakeup struct {
	*ritual

	// Guarded by ritual.mu.
	steps    []*domain.Task
	complete bool
	failed   bool
	stepErr  error
}

// NewWakeup creates the wakeup ritual for the manager's occurrence.
func NewWakeup(s store.Store, m *task.Manager, proc contracts.ThoughtProcessor, logger zerolog.Logger, opts ...Option) (*Wakeup, error) {
	r, err := newRitual(constants.WakeupTaskType, Config{
		CompletionWindow: constants.WakeupCompletionWindow,
		StepTimeout:      constants.DefaultStepTimeout,
		PollInterval:     constants.DefaultPollInterval,
	}, s, m, proc, logger, opts...)
	if err != nil {
		return nil, err
	}
	return &Wakeup{ritual: r}, nil
}

// IsComplete reports whether wakeup finished successfully.
func (w *Wakeup) IsComplete() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.complete
}

// Status returns the aggregated progress.
func (w *Wakeup) Status() WakeupStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := WakeupStatus{
		Complete:   w.complete,
		Failed:     w.failed,
		Role:       w.role,
		TotalSteps: len(WakeupSteps()),
	}
	if w.root != nil {
		st.RootTaskID = w.root.TaskID
	}
	for _, step := range w.steps {
		st.Steps = append(st.Steps, StepStatus{Step: stepName(step), TaskID: step.TaskID, Status: step.Status})
		if step.Status == constants.TaskStatusCompleted {
			st.CompletedSteps++
		}
	}
	// Observers see no steps; a completed root means every step completed.
	if w.role == RoleObserver && w.complete {
		st.CompletedSteps = st.TotalSteps
	}
	if st.TotalSteps > 0 {
		st.ProgressPercent = float64(st.CompletedSteps) * 100 / float64(st.TotalSteps)
	}
	return st
}

func stepName(t *domain.Task) string {
	for _, s := range WakeupSteps() {
		if strings.HasPrefix(t.TaskID, s.Name+"_") {
			return s.Name
		}
	}
	return "unknown"
}

// StartProcessing runs wakeup rounds until the ritual completes or fails, or
// rounds are used up (rounds <= 0 means no limit). A failed ritual returns
// ErrWakeupFailed.
func (w *Wakeup) StartProcessing(ctx context.Context, rounds int) (WakeupStatus, error) {
	err := w.loop(ctx, rounds, func(ctx context.Context, round int) (bool, error) {
		st, err := w.ProcessRound(ctx, round)
		if err != nil {
			return true, err
		}
		if st.Failed {
			if stepErr := w.stepError(); stepErr != nil {
				return true, fmt.Errorf("wakeup %s: %w: %w", st.RootTaskID, errors.ErrWakeupFailed, stepErr)
			}
			return true, fmt.Errorf("wakeup %s: %w", st.RootTaskID, errors.ErrWakeupFailed)
		}
		return st.Complete, nil
	})
	return w.Status(), err
}

// ProcessRound advances the ritual by one round.
func (w *Wakeup) ProcessRound(ctx context.Context, round int) (WakeupStatus, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	if st := w.Status(); st.Complete || st.Failed {
		return st, nil
	}

	if w.Role() == RoleNone {
		if err := w.start(ctx); err != nil {
			return w.Status(), errors.Wrap(err, "failed to start wakeup")
		}
		if w.IsComplete() {
			return w.Status(), nil
		}
	}

	var err error
	if w.Role() == RoleClaimant {
		err = w.advance(ctx, round)
	} else {
		err = w.observe(ctx)
	}
	return w.Status(), err
}

func (w *Wakeup) start(ctx context.Context) error {
	root, role, err := w.claim(ctx, "Wakeup ritual")
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.root, w.role = root, role
	w.complete = root.Status == constants.TaskStatusCompleted
	w.mu.Unlock()

	if role != RoleClaimant {
		w.logger.Info().Str("task_id", root.TaskID).Str("status", root.Status.String()).Msg("observing wakeup")
		return nil
	}

	priority := constants.SystemTaskPriority
	steps := make([]*domain.Task, 0, len(WakeupSteps()))
	for _, s := range WakeupSteps() {
		step, err := w.manager.Factory().CreateTask(task.TaskSpec{
			TaskID:            task.NewStepTaskID(s.Name),
			Description:       s.Prompt,
			ChannelID:         constants.SystemChannelID,
			AgentOccurrenceID: w.manager.OccurrenceID(),
			CorrelationID:     root.TaskID,
			ParentTaskID:      root.TaskID,
			Priority:          &priority,
			Status:            constants.TaskStatusActive,
		})
		if err != nil {
			return err
		}
		if err := w.store.AddTask(ctx, step); err != nil {
			return err
		}
		steps = append(steps, step)
	}

	w.mu.Lock()
	w.steps = steps
	w.mu.Unlock()
	w.logger.Info().Str("task_id", root.TaskID).Int("steps", len(steps)).Msg("claimed wakeup")
	return nil
}

// advance runs one thought for every active step, then settles the root once
// every step is terminal.
func (w *Wakeup) advance(ctx context.Context, round int) error {
	w.mu.Lock()
	steps := append([]*domain.Task(nil), w.steps...)
	w.mu.Unlock()

	for i, step := range steps {
		current, err := w.store.GetTaskByID(ctx, step.TaskID, step.AgentOccurrenceID)
		if err != nil {
			return err
		}
		steps[i] = current
		if current.Status != constants.TaskStatusActive {
			continue
		}
		if err := w.runStep(ctx, current, round); err != nil {
			return err
		}
	}

	w.mu.Lock()
	w.steps = steps
	w.mu.Unlock()

	completed := 0
	for _, step := range steps {
		if !task.IsTerminalTaskStatus(step.Status) {
			return nil
		}
		if step.Status == constants.TaskStatusCompleted {
			completed++
		}
	}
	return w.finishRoot(ctx, completed == len(steps))
}

// runStep processes one thought of step. SPEAK and PONDER affirm the step;
// any other action or a failed decision fails it.
func (w *Wakeup) runStep(ctx context.Context, step *domain.Task, round int) error {
	th, err := w.nextThought(ctx, step, round)
	if err != nil || th == nil {
		return err
	}

	log := w.logger.With().Str("task_id", step.TaskID).Str("thought_id", th.ThoughtID).Logger()
	action, err := w.runThought(ctx, th)
	switch {
	case stderrors.Is(err, errors.ErrTaskWaitTimeout):
		return w.failTimedOutStep(ctx, step, th, err)
	case err != nil && !isDecisionFailure(err):
		return err
	case err != nil:
		log.Warn().Err(err).Msg("wakeup step decision failed")
		return w.manager.FinishTask(ctx, step, constants.TaskStatusFailed, "", err.Error())
	case action == nil:
		return nil
	case action.ActionType == constants.ActionSpeak || action.ActionType == constants.ActionPonder:
		log.Info().Str("action", action.ActionType.String()).Msg("wakeup step affirmed")
		return w.manager.FinishTask(ctx, step, constants.TaskStatusCompleted, action.Param("content", action.Reasoning), "")
	default:
		log.Warn().Str("action", action.ActionType.String()).Msg("wakeup step not affirmed")
		return w.manager.FinishTask(ctx, step, constants.TaskStatusFailed, "",
			fmt.Sprintf("unexpected action %s", action.ActionType))
	}
}

// failTimedOutStep force-fails a step whose thought ran past the step timeout.
// Both writes use the step's own occurrence id.
func (w *Wakeup) failTimedOutStep(ctx context.Context, step *domain.Task, th *domain.Thought, cause error) error {
	err := w.store.UpdateThoughtStatus(ctx, th.ThoughtID, constants.ThoughtStatusFailed, th.AgentOccurrenceID, w.clock)
	if err != nil && task.IsStoreFailure(err) {
		return err
	}
	if err := w.manager.FinishTask(ctx, step, constants.TaskStatusFailed, "", cause.Error()); err != nil {
		return err
	}

	w.mu.Lock()
	if w.stepErr == nil {
		w.stepErr = fmt.Errorf("step %s: %w", step.TaskID, cause)
	}
	w.mu.Unlock()
	w.logger.Error().
		Err(cause).
		Str("task_id", step.TaskID).
		Str("occurrence_id", step.AgentOccurrenceID).
		Msg("wakeup step force-failed")
	return nil
}

func (w *Wakeup) stepError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stepErr
}

func (w *Wakeup) finishRoot(ctx context.Context, success bool) error {
	w.mu.Lock()
	root := w.root
	w.mu.Unlock()

	var err error
	if success {
		err = w.manager.FinishTask(ctx, root, constants.TaskStatusCompleted, "all wakeup steps completed", "")
	} else {
		err = w.manager.FinishTask(ctx, root, constants.TaskStatusFailed, "", "one or more wakeup steps failed")
	}
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.complete, w.failed = success, !success
	w.mu.Unlock()
	if success {
		w.logger.Info().Str("task_id", root.TaskID).Msg("wakeup completed")
	} else {
		w.logger.Error().Str("task_id", root.TaskID).Msg("wakeup failed")
	}
	return nil
}

// observe mirrors the shared root's terminal status. It never writes.
func (w *Wakeup) observe(ctx context.Context) error {
	root, err := w.readRoot(ctx)
	if err != nil || root == nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch root.Status {
	case constants.TaskStatusCompleted:
		w.complete = true
		w.logger.Info().Str("task_id", root.TaskID).Msg("wakeup completed by claimant")
	case constants.TaskStatusFailed, constants.TaskStatusRejected:
		w.failed = true
		w.logger.Error().Str("task_id", root.TaskID).Msg("wakeup failed by claimant")
	case constants.TaskStatusPending, constants.TaskStatusActive, constants.TaskStatusDeferred:
	}
	return nil
}

// WaitForTaskCompletion waits for t and force-fails it after maxWait.
func (w *Wakeup) WaitForTaskCompletion(ctx context.Context, t *domain.Task, maxWait, poll time.Duration) (constants.TaskStatus, error) {
	return WaitForTaskCompletion(ctx, w.store, w.manager, t, maxWait, poll, w.logger)
}
