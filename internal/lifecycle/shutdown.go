package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/contracts"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
)

// defaultRejectReason is reported when a REJECT carries no reason.
const defaultRejectReason = "No reason provided"

// ShutdownResult is the outcome of a shutdown request as seen by this
// occurrence.
type ShutdownResult struct {
	Role     Role                 `json:"role"`
	TaskID   string               `json:"task_id,omitempty"`
	Status   constants.TaskStatus `json:"status,omitempty"`
	Done     bool                 `json:"done"`
	Accepted bool                 `json:"accepted"`
	Rejected bool                 `json:"rejected"`
	Reason   string               `json:"reason,omitempty"`
}

// Shutdown asks the agent to consent to stopping. The claimant seeds a thought
// on the shared root and processes it directly; the thought stays owned by the
// shared occurrence. TASK_COMPLETE accepts and REJECT refuses. Observers only
// read the root.
type Shutdown struct {
	*ritual

	// Guarded by ritual.mu.
	reason string
	result ShutdownResult
}

// NewShutdown creates the shutdown ritual for the manager's occurrence.
func NewShutdown(s store.Store, m *task.Manager, proc contracts.ThoughtProcessor, logger zerolog.Logger, opts ...Option) (*Shutdown, error) {
	r, err := newRitual(constants.ShutdownTaskType, Config{
		CompletionWindow: constants.ShutdownCompletionWindow,
		StepTimeout:      constants.DefaultStepTimeout,
		PollInterval:     constants.DefaultPollInterval,
	}, s, m, proc, logger, opts...)
	if err != nil {
		return nil, err
	}
	return &Shutdown{ritual: r}, nil
}

// Result returns the outcome so far.
func (s *Shutdown) Result() ShutdownResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Request runs the shutdown ritual for reason until the agent accepts or
// rejects, or rounds are used up (rounds <= 0 means no limit). A refusal
// returns ErrShutdownRejected with the agent's reason in the result.
func (s *Shutdown) Request(ctx context.Context, reason string, rounds int) (ShutdownResult, error) {
	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()
	return s.StartProcessing(ctx, rounds)
}

// StartProcessing runs shutdown rounds until the outcome is known.
func (s *Shutdown) StartProcessing(ctx context.Context, rounds int) (ShutdownResult, error) {
	err := s.loop(ctx, rounds, func(ctx context.Context, round int) (bool, error) {
		res, err := s.ProcessRound(ctx, round)
		return res.Done, err
	})
	res := s.Result()
	if err != nil {
		return res, err
	}
	switch {
	case res.Rejected:
		return res, fmt.Errorf("shutdown %s: %w: %s", res.TaskID, errors.ErrShutdownRejected, res.Reason)
	case res.Done && !res.Accepted:
		return res, fmt.Errorf("shutdown %s ended %s: %s", res.TaskID, res.Status, res.Reason)
	}
	return res, nil
}

// ProcessRound advances the ritual by one round.
func (s *Shutdown) ProcessRound(ctx context.Context, round int) (ShutdownResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if res := s.Result(); res.Done {
		return res, nil
	}

	if s.Role() == RoleNone {
		s.mu.Lock()
		description := "System shutdown requested"
		if s.reason != "" {
			description += ": " + s.reason
		}
		s.mu.Unlock()

		root, role, err := s.claim(ctx, description)
		if err != nil {
			return s.Result(), errors.Wrap(err, "failed to start shutdown")
		}
		s.mu.Lock()
		s.root, s.role = root, role
		s.result = ShutdownResult{Role: role, TaskID: root.TaskID, Status: root.Status}
		s.mu.Unlock()
		s.logger.Info().Str("task_id", root.TaskID).Str("role", role.String()).Msg("shutdown started")
	}

	if s.Role() == RoleClaimant {
		if err := s.advance(ctx, round); err != nil {
			return s.Result(), err
		}
	}
	return s.check(ctx)
}

// advance runs one consent thought on the active root.
func (s *Shutdown) advance(ctx context.Context, round int) error {
	root, err := s.readRoot(ctx)
	if err != nil || root == nil || root.Status != constants.TaskStatusActive {
		return err
	}
	th, err := s.nextThought(ctx, root, round)
	if err != nil || th == nil {
		return err
	}

	action, err := s.runThought(ctx, th)
	switch {
	case stderrors.Is(err, errors.ErrTaskWaitTimeout):
		s.logger.Warn().Err(err).Msg("shutdown decision timed out, asking again next round")
		return nil
	case err != nil && !isDecisionFailure(err):
		return err
	case err != nil:
		s.logger.Warn().Err(err).Str("thought_id", th.ThoughtID).Msg("shutdown decision failed, asking again next round")
		return nil
	case action == nil:
		return nil
	case action.ActionType == constants.ActionTaskComplete:
		return s.manager.FinishTask(ctx, root, constants.TaskStatusCompleted, "shutdown accepted", "")
	case action.ActionType == constants.ActionReject:
		return s.manager.FinishTask(ctx, root, constants.TaskStatusFailed, "", action.Param("reason", defaultRejectReason))
	default:
		s.logger.Info().Str("action", action.ActionType.String()).Msg("shutdown not decided yet")
		return nil
	}
}

// check reads the root and records a terminal outcome. It never writes.
func (s *Shutdown) check(ctx context.Context) (ShutdownResult, error) {
	if s.Role() == RoleNone {
		return s.Result(), nil
	}
	root, err := s.readRoot(ctx)
	if err != nil || root == nil {
		return s.Result(), err
	}

	res := s.Result()
	res.Status = root.Status
	switch root.Status {
	case constants.TaskStatusCompleted:
		res.Done, res.Accepted = true, true
	case constants.TaskStatusFailed, constants.TaskStatusRejected:
		res.Done = true
		rejection, err := s.rejection(ctx, root)
		if err != nil {
			return res, err
		}
		if rejection != nil {
			res.Rejected = true
			res.Reason = rejection.Param("reason", defaultRejectReason)
		} else if root.Outcome != nil {
			res.Reason = root.Outcome.Reason
		}
	case constants.TaskStatusPending, constants.TaskStatusActive, constants.TaskStatusDeferred:
	}

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
	if res.Done {
		s.logger.Info().
			Str("task_id", root.TaskID).
			Bool("accepted", res.Accepted).
			Bool("rejected", res.Rejected).
			Str("reason", res.Reason).
			Msg("shutdown decided")
	}
	return res, nil
}

// rejection returns the REJECT action recorded on the root's thoughts, if any.
func (s *Shutdown) rejection(ctx context.Context, root *domain.Task) (*domain.FinalAction, error) {
	thoughts, err := s.store.GetThoughtsByTaskID(ctx, root.TaskID, root.AgentOccurrenceID)
	if err != nil {
		return nil, err
	}
	for i := len(thoughts) - 1; i >= 0; i-- {
		if fa := thoughts[i].FinalAction; fa != nil && fa.ActionType == constants.ActionReject {
			return fa, nil
		}
	}
	return nil, nil
}
