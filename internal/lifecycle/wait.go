// Package lifecycle drives the shared rituals that bracket a run: the wakeup
// sequence before processing starts and the shutdown consent after it stops.
// Each ritual is claimed through the coordinator; the claimant performs it
// and every other occurrence only observes the shared task's status.
//
// Import rules:
//   - CAN import: internal/{clock,constants,contracts,coordination,ctxutil,domain,errors,store,task}, std lib
//   - MUST NOT import: internal/cli, internal/processor
package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/ctxutil"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
)

// Role is the part an occurrence plays in a shared ritual.
type Role string

// Ritual roles.
const (
	RoleNone     Role = ""
	RoleClaimant Role = "claimant"
	RoleObserver Role = "observer"
)

// String returns the role name, or "none" before the claim.
func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// WaitForTaskCompletion polls t until it reaches a terminal status and
// returns that status. When maxWait elapses first, the task is force-failed
// under its own occurrence id and ErrTaskWaitTimeout is returned.
func WaitForTaskCompletion(ctx context.Context, s store.TaskStore, m *task.Manager, t *domain.Task, maxWait, poll time.Duration, logger zerolog.Logger) (constants.TaskStatus, error) {
	if t == nil {
		return "", fmt.Errorf("failed to wait for task: task %w", errors.ErrEmptyValue)
	}
	if poll <= 0 {
		poll = constants.DefaultPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	current := t
	for {
		got, err := s.GetTaskByID(ctx, t.TaskID, t.AgentOccurrenceID)
		if err != nil {
			return "", errors.Wrapf(err, "failed to poll task %s", t.TaskID)
		}
		current = got
		if task.IsTerminalTaskStatus(current.Status) {
			return current.Status, nil
		}
		if err := ctxutil.Sleep(waitCtx, poll); err != nil {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return current.Status, err
	}

	reason := fmt.Sprintf("timed out after %s waiting for completion", maxWait)
	if m != nil {
		err := m.FinishTask(ctx, current, constants.TaskStatusFailed, "", reason)
		switch {
		case stderrors.Is(err, errors.ErrInvalidTransition):
			// Settled between the last poll and the force-fail.
			if got, getErr := s.GetTaskByID(ctx, t.TaskID, t.AgentOccurrenceID); getErr == nil && task.IsTerminalTaskStatus(got.Status) {
				return got.Status, nil
			}
			logger.Warn().Err(err).Str("task_id", t.TaskID).Msg("could not force-fail task")
		case err != nil:
			logger.Warn().Err(err).Str("task_id", t.TaskID).Msg("could not force-fail task")
		}
	}
	logger.Warn().
		Str("task_id", t.TaskID).
		Str("occurrence_id", t.AgentOccurrenceID).
		Dur("max_wait", maxWait).
		Msg("task wait timed out")
	return current.Status, fmt.Errorf("task %s: %w", t.TaskID, errors.ErrTaskWaitTimeout)
}
