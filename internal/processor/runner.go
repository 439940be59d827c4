package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/contracts"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/pipeline"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
)

// defaultRejectReason is recorded when a REJECT action carries no reason.
const defaultRejectReason = "No reason provided"

// Result is what happened to one thought.
type Result struct {
	ThoughtID  string                  `json:"thought_id"`
	TaskID     string                  `json:"task_id"`
	Action     *domain.FinalAction     `json:"action,omitempty"`
	Status     constants.ThoughtStatus `json:"status"`
	TaskStatus constants.TaskStatus    `json:"task_status,omitempty"`
	FollowUpID string                  `json:"follow_up_id,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Duration   time.Duration           `json:"duration"`
}

// runner drives single thoughts through the stages from build_context to
// handler_complete. It is shared by the goroutines of a round; each call only
// writes the thought it was given and that thought's task.
type runner struct {
	store   store.Store
	manager *task.Manager
	factory *task.Factory
	builder contracts.ContextBuilder
	decider contracts.DecisionMaker
	handler contracts.ActionHandler
	state   *pipeline.State
	control *lazyController
	metrics Metrics
	timings *timingHistory
	clock   clock.Clock
	logger  zerolog.Logger
}

// thoughtRun carries the values produced by one stage for the next.
type thoughtRun struct {
	thought       *domain.Thought
	owner         *domain.Task
	thoughtCtx    *domain.ThoughtContext
	dma           *domain.DMAResults
	action        *domain.FinalAction
	handlerResult *domain.HandlerResult
	handlerErr    string
	result        *Result
}

// process runs th through the pipeline. When settle is true the selected
// action is also applied to the owning task and follow-ups are created;
// otherwise only the thought is finalized and the caller owns the task.
//
// The returned error is reserved for store failures and context
// cancellation. Everything else is reported in the Result.
func (r *runner) process(ctx context.Context, th *domain.Thought, settle bool) (*Result, error) {
	start := time.Now()
	res := &Result{ThoughtID: th.ThoughtID, TaskID: th.SourceTaskID, Status: th.Status}
	log := r.logger.With().Str("thought_id", th.ThoughtID).Str("task_id", th.SourceTaskID).Logger()

	if err := task.CheckThoughtTransition(th.Status, constants.ThoughtStatusProcessing); err != nil {
		res.Error = err.Error()
		return res, nil
	}

	owner, err := r.store.GetTaskByID(ctx, th.SourceTaskID, th.AgentOccurrenceID)
	if err != nil {
		if !stderrors.Is(err, errors.ErrTaskNotFound) {
			return res, err
		}
		log.Warn().Msg("thought has no task, failing it")
		if err := r.setThoughtStatus(ctx, th, constants.ThoughtStatusFailed); err != nil {
			return res, err
		}
		res.Status = th.Status
		res.Error = err.Error()
		return res, nil
	}
	res.TaskStatus = owner.Status

	if err := r.setThoughtStatus(ctx, th, constants.ThoughtStatusProcessing); err != nil {
		return res, err
	}
	if err := r.state.Enter(th.ThoughtID, th.SourceTaskID, th.ThoughtType.String(), pipeline.StageBuildContext); err != nil {
		return res, err
	}
	r.metrics.StageEntered(th.ThoughtID, pipeline.StageBuildContext)

	run := &thoughtRun{thought: th, owner: owner, result: res}
	steps := []struct {
		stage pipeline.Stage
		fn    func(context.Context, *thoughtRun) error
	}{
		{pipeline.StageBuildContext, r.buildContext},
		{pipeline.StagePerformDMAs, r.evaluate},
		{pipeline.StagePerformASPDMA, r.selectAction},
		{pipeline.StageActionSelection, r.checkAction},
		{pipeline.StageHandlerStart, r.handle},
		{pipeline.StageHandlerComplete, func(ctx context.Context, run *thoughtRun) error {
			return r.settle(ctx, run, settle)
		}},
	}

	for _, step := range steps {
		if err := r.gate(ctx, th.ThoughtID, step.stage); err != nil {
			return r.interrupted(ctx, run, step.stage, settle, err)
		}
		if err := step.fn(ctx, run); err != nil {
			// Collaborator errors fail the thought. Only settle writes to the store.
			if ctx.Err() != nil || (step.stage == pipeline.StageHandlerComplete && task.IsStoreFailure(err)) {
				return r.interrupted(ctx, run, step.stage, settle, err)
			}
			if err := r.failDecision(ctx, run, step.stage, settle, err); err != nil {
				return r.interrupted(ctx, run, step.stage, settle, err)
			}
			break
		}
		if next, ok := pipeline.NextStage(step.stage); ok {
			r.state.MoveThought(th.ThoughtID, step.stage, next)
			r.metrics.StageEntered(th.ThoughtID, next)
		}
	}

	r.leave(th.ThoughtID, true)
	res.Status = th.Status
	res.TaskStatus = owner.Status
	res.Duration = time.Since(start)
	r.timings.record(res.Duration)

	var actionType constants.ActionType
	if run.action != nil {
		actionType = run.action.ActionType
	}
	r.metrics.ThoughtProcessed(th.ThoughtID, actionType, th.Status, res.Duration)
	log.Debug().
		Str("action", actionType.String()).
		Str("status", th.Status.String()).
		Dur("duration", res.Duration).
		Msg("thought processed")
	return res, nil
}

// gate is the stage boundary check: abort first, then the pause point.
func (r *runner) gate(ctx context.Context, thoughtID string, stage pipeline.Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := r.control.get()
	if c == nil {
		return nil
	}
	if c.ShouldAbort(thoughtID) {
		return fmt.Errorf("thought %s: %w", thoughtID, errors.ErrThoughtAborted)
	}
	if c.ShouldPauseAt(stage, thoughtID) {
		return c.WaitForResume(ctx, thoughtID)
	}
	return nil
}

func (r *runner) buildContext(ctx context.Context, run *thoughtRun) error {
	th := run.thought
	var tc *domain.ThoughtContext
	if r.builder != nil {
		built, err := r.builder.Build(ctx, th, run.owner)
		if err != nil {
			return err
		}
		tc = built
	}
	if tc == nil && th.Context != nil {
		c := *th.Context
		tc = &c
	}
	if tc == nil {
		tc = &domain.ThoughtContext{}
	}

	if tc.AgentOccurrenceID != "" && tc.AgentOccurrenceID != th.AgentOccurrenceID {
		r.logger.Debug().
			Str("thought_id", th.ThoughtID).
			Str("context_occurrence_id", tc.AgentOccurrenceID).
			Str("occurrence_id", th.AgentOccurrenceID).
			Msg("corrected built context occurrence id")
	}
	tc.SchemaVersion = domain.ThoughtContextSchemaVersion
	tc.TaskID = th.SourceTaskID
	tc.AgentOccurrenceID = th.AgentOccurrenceID
	tc.RoundNumber = th.RoundNumber
	tc.Depth = th.ThoughtDepth
	tc.ParentThoughtID = th.ParentThoughtID
	if tc.ChannelID == "" {
		tc.ChannelID = th.ChannelID
	}
	if tc.CorrelationID == "" && run.owner.Context != nil {
		tc.CorrelationID = run.owner.Context.CorrelationID
	}
	run.thoughtCtx = tc
	return nil
}

func (r *runner) evaluate(ctx context.Context, run *thoughtRun) error {
	dma, err := r.decider.EvaluateThought(ctx, run.thought, run.thoughtCtx)
	if err != nil {
		return err
	}
	run.dma = dma
	return nil
}

func (r *runner) selectAction(ctx context.Context, run *thoughtRun) error {
	action, err := r.decider.SelectAction(ctx, run.thought, run.thoughtCtx, run.dma)
	if err != nil {
		return err
	}
	if action == nil {
		return fmt.Errorf("%w: no action selected", errors.ErrDecisionFailed)
	}
	run.action = action
	run.result.Action = action
	return nil
}

func (r *runner) checkAction(_ context.Context, run *thoughtRun) error {
	for _, a := range constants.AllActionTypes() {
		if a == run.action.ActionType {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown action %q", errors.ErrDecisionFailed, run.action.ActionType)
}

// handle runs the action handler for non-terminal actions. A handler failure
// does not stop the pipeline: the thought is finalized FAILED in settle.
func (r *runner) handle(ctx context.Context, run *thoughtRun) error {
	if run.action.ActionType.IsTerminal() || run.action.ActionType == constants.ActionPonder || r.handler == nil {
		return nil
	}
	hres, err := r.handler.Handle(ctx, run.thought, run.action)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		run.handlerErr = err.Error()
		return nil
	}
	if hres == nil || !hres.Success {
		msg := "handler reported failure"
		if hres != nil && hres.Message != "" {
			msg = hres.Message
		}
		run.handlerErr = fmt.Errorf("%w: %s", errors.ErrHandlerFailed, msg).Error()
	}
	run.handlerResult = hres
	return nil
}

// settle writes the final action with the thought's terminal status and, when
// asked, applies the action to the task.
func (r *runner) settle(ctx context.Context, run *thoughtRun, settleTask bool) error {
	th, owner, action := run.thought, run.owner, run.action

	if run.handlerErr != "" {
		run.result.Error = run.handlerErr
		if err := r.finalize(ctx, th, constants.ThoughtStatusFailed, action); err != nil {
			return err
		}
		if !settleTask {
			return nil
		}
		content := fmt.Sprintf("The %s action for this task failed: %s. Decide how to proceed.", action.ActionType, run.handlerErr)
		return r.followUp(ctx, run, task.NewFollowUpSpec(content))
	}

	switch action.ActionType {
	case constants.ActionTaskComplete:
		if err := r.finalize(ctx, th, constants.ThoughtStatusCompleted, action); err != nil {
			return err
		}
		if settleTask {
			return r.finishTask(ctx, owner, constants.TaskStatusCompleted, action.Param("summary", action.Reasoning), "")
		}
	case constants.ActionReject:
		if err := r.finalize(ctx, th, constants.ThoughtStatusCompleted, action); err != nil {
			return err
		}
		if settleTask {
			return r.finishTask(ctx, owner, constants.TaskStatusRejected, "", action.Param("reason", defaultRejectReason))
		}
	case constants.ActionDefer:
		if err := r.finalize(ctx, th, constants.ThoughtStatusDeferred, action); err != nil {
			return err
		}
		if settleTask {
			return r.finishTask(ctx, owner, constants.TaskStatusDeferred, "", action.Param("reason", "deferred for human input"))
		}
	case constants.ActionPonder:
		if th.ThoughtDepth+1 > r.factory.MaxThoughtDepth() {
			if err := r.finalize(ctx, th, constants.ThoughtStatusDeferred, action); err != nil {
				return err
			}
			if settleTask {
				return r.finishTask(ctx, owner, constants.TaskStatusDeferred, "", errors.ErrDepthExceeded.Error())
			}
			return nil
		}
		if err := r.finalize(ctx, th, constants.ThoughtStatusCompleted, action); err != nil {
			return err
		}
		if settleTask {
			notes := make([]string, 0, len(th.PonderNotes)+1)
			notes = append(notes, th.PonderNotes...)
			notes = append(notes, action.Param("questions", action.Reasoning))
			return r.followUp(ctx, run, task.FollowUpSpec{
				Content:        th.Content,
				IncrementRound: true,
				IncrementDepth: true,
				ThoughtType:    constants.ThoughtTypePonder,
				PonderNotes:    notes,
			})
		}
	case constants.ActionSpeak, constants.ActionObserve, constants.ActionMemorize,
		constants.ActionRecall, constants.ActionForget, constants.ActionTool:
		if err := r.finalize(ctx, th, constants.ThoughtStatusCompleted, action); err != nil {
			return err
		}
		if settleTask && run.handlerResult != nil && run.handlerResult.FollowUpContent != "" {
			return r.followUp(ctx, run, task.NewFollowUpSpec(run.handlerResult.FollowUpContent))
		}
	}
	return nil
}

// finalize records action and status once. A thought finalized elsewhere
// is left alone.
func (r *runner) finalize(ctx context.Context, th *domain.Thought, status constants.ThoughtStatus, action *domain.FinalAction) error {
	if err := task.CheckThoughtTransition(th.Status, status); err != nil {
		return err
	}
	err := r.store.FinalizeThought(ctx, th.ThoughtID, th.AgentOccurrenceID, status, action, r.clock)
	if err != nil {
		if stderrors.Is(err, errors.ErrFinalActionAlreadySet) {
			r.logger.Warn().Str("thought_id", th.ThoughtID).Msg("final action already recorded")
			return nil
		}
		return err
	}
	th.Status = status
	th.FinalAction = action
	return nil
}

// finishTask applies a task transition. A task another thought already
// finished is logged and left alone.
func (r *runner) finishTask(ctx context.Context, owner *domain.Task, status constants.TaskStatus, summary, reason string) error {
	err := r.manager.FinishTask(ctx, owner, status, summary, reason)
	if err != nil && !task.IsStoreFailure(err) {
		r.logger.Warn().Err(err).Str("task_id", owner.TaskID).Str("status", status.String()).Msg("task transition skipped")
		return nil
	}
	return err
}

// followUp stores the continuation of the thought. A chain that hits the round
// or depth bound defers its task instead.
func (r *runner) followUp(ctx context.Context, run *thoughtRun, spec task.FollowUpSpec) error {
	next, err := r.factory.CreateFollowUpThought(run.thought, spec)
	if err != nil {
		if stderrors.Is(err, errors.ErrRoundLimitExceeded) || stderrors.Is(err, errors.ErrDepthExceeded) {
			r.logger.Warn().Err(err).Str("task_id", run.owner.TaskID).Msg("follow-up refused, deferring task")
			return r.finishTask(ctx, run.owner, constants.TaskStatusDeferred, "", err.Error())
		}
		return err
	}
	if err := r.store.AddThought(ctx, next); err != nil {
		return err
	}
	run.result.FollowUpID = next.ThoughtID
	return nil
}

// failDecision handles an error from a stage before the handler ran. The
// thought fails, and in settle mode so does its task.
func (r *runner) failDecision(ctx context.Context, run *thoughtRun, stage pipeline.Stage, settleTask bool, cause error) error {
	r.logger.Warn().Err(cause).
		Str("thought_id", run.thought.ThoughtID).
		Str("stage", stage.String()).
		Msg("thought failed")
	run.result.Error = cause.Error()
	r.state.SetError(run.thought.ThoughtID, cause.Error())

	if err := r.setThoughtStatus(ctx, run.thought, constants.ThoughtStatusFailed); err != nil {
		return err
	}
	if settleTask {
		return r.finishTask(ctx, run.owner, constants.TaskStatusFailed, "", cause.Error())
	}
	return nil
}

// interrupted handles an abort, a cancelled context or a store failure. An
// aborted thought fails. A cancelled one goes back to pending for the next
// run. Store failures are returned as is.
func (r *runner) interrupted(ctx context.Context, run *thoughtRun, stage pipeline.Stage, settleTask bool, cause error) (*Result, error) {
	th := run.thought
	run.result.Error = cause.Error()

	switch {
	case stderrors.Is(cause, errors.ErrThoughtAborted):
		r.leave(th.ThoughtID, true)
		r.logger.Info().Str("thought_id", th.ThoughtID).Str("stage", stage.String()).Msg("thought aborted")
		if err := r.setThoughtStatus(ctx, th, constants.ThoughtStatusFailed); err != nil {
			return run.result, err
		}
		run.result.Status = th.Status
		if settleTask {
			if err := r.finishTask(ctx, run.owner, constants.TaskStatusFailed, "", "thought aborted by operator"); err != nil {
				return run.result, err
			}
		}
		run.result.TaskStatus = run.owner.Status
		return run.result, nil

	case ctx.Err() != nil:
		r.leave(th.ThoughtID, false)
		if th.Status == constants.ThoughtStatusProcessing {
			if err := r.setThoughtStatus(context.WithoutCancel(ctx), th, constants.ThoughtStatusPending); err != nil {
				r.logger.Error().Err(err).Str("thought_id", th.ThoughtID).Msg("failed to re-queue thought")
			}
		}
		run.result.Status = th.Status
		return run.result, ctx.Err()

	default:
		r.leave(th.ThoughtID, false)
		return run.result, cause
	}
}

func (r *runner) setThoughtStatus(ctx context.Context, th *domain.Thought, status constants.ThoughtStatus) error {
	if err := task.CheckThoughtTransition(th.Status, status); err != nil {
		return err
	}
	if err := r.store.UpdateThoughtStatus(ctx, th.ThoughtID, status, th.AgentOccurrenceID, r.clock); err != nil {
		return err
	}
	th.Status = status
	return nil
}

// leave takes the thought out of the pipeline. processed counts it in the
// pipeline totals.
func (r *runner) leave(thoughtID string, processed bool) {
	if processed {
		r.state.Complete(thoughtID)
	} else {
		r.state.Remove(thoughtID)
	}
	if c := r.control.get(); c != nil {
		c.Release(thoughtID)
	}
}
