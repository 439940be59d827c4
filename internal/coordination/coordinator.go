// Package coordination implements the shared-claim protocol that lets several
// occurrences sharing one store agree on who performs a system ritual.
//
// A shared task carries the sentinel occurrence id constants.SharedOccurrenceID.
// Exactly one occurrence creates it (the claimant); every other occurrence only
// reads it (an observer).
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain, internal/errors, internal/store, internal/task
//   - MUST NOT import: internal/lifecycle, internal/processor, internal/cli
package coordination

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
)

// SharedTaskID returns the deterministic id of the shared task of taskType on day:
// UPPER(taskType)_SHARED_YYYYMMDD, with the date taken in UTC.
func SharedTaskID(taskType string, day time.Time) string {
	return SharedTaskPrefix(taskType) + day.UTC().Format("20060102")
}

// SharedTaskPrefix returns the id prefix shared by every task of taskType.
func SharedTaskPrefix(taskType string) string {
	return strings.ToUpper(taskType) + "_SHARED_"
}

// ClaimRequest describes a claim attempt.
type ClaimRequest struct {
	// TaskType names the ritual, for example "wakeup".
	TaskType string

	// ClaimantOccurrenceID is the occurrence attempting the claim. It is logged,
	// never written to the shared task.
	ClaimantOccurrenceID string

	Description string

	// ChannelID defaults to constants.SystemChannelID.
	ChannelID string

	// Priority defaults to constants.SystemTaskPriority.
	Priority *int
}

// Coordinator runs the claim protocol on top of a store.
type Coordinator struct {
	store   store.TaskStore
	factory *task.Factory
	clock   clock.Clock
	logger  zerolog.Logger
}

// NewCoordinator creates a Coordinator. A nil clock uses the real clock.
func NewCoordinator(s store.TaskStore, clk clock.Clock, logger zerolog.Logger) (*Coordinator, error) {
	if s == nil {
		return nil, errors.ErrNilStore
	}
	clk = clock.OrReal(clk)
	return &Coordinator{
		store:   s,
		factory: task.NewFactory(clk),
		clock:   clk,
		logger:  logger.With().Str("component", "coordinator").Logger(),
	}, nil
}

// TryClaimSharedTask inserts today's shared task of req.TaskType unless it
// already exists. The insert is a single conditional statement, so of any
// number of concurrent callers exactly one sees wasCreated == true. The
// returned task is always the stored one and always carries the shared
// occurrence id.
func (c *Coordinator) TryClaimSharedTask(ctx context.Context, req ClaimRequest) (*domain.Task, bool, error) {
	if req.TaskType == "" {
		return nil, false, fmt.Errorf("failed to claim shared task: task type %w", errors.ErrEmptyValue)
	}
	if req.ClaimantOccurrenceID == "" {
		return nil, false, fmt.Errorf("failed to claim shared task: %w", errors.ErrMissingOccurrenceID)
	}

	priority := constants.SystemTaskPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	channelID := req.ChannelID
	if channelID == "" {
		channelID = constants.SystemChannelID
	}
	description := req.Description
	if description == "" {
		description = "Shared " + req.TaskType + " task"
	}

	taskID := SharedTaskID(req.TaskType, c.clock.Now())
	candidate, err := c.factory.CreateTask(task.TaskSpec{
		TaskID:            taskID,
		Description:       description,
		ChannelID:         channelID,
		AgentOccurrenceID: constants.SharedOccurrenceID,
		CorrelationID:     taskID,
		Priority:          &priority,
		Status:            constants.TaskStatusPending,
	})
	if err != nil {
		return nil, false, err
	}

	created, err := c.store.InsertTaskIfAbsent(ctx, candidate)
	if err != nil {
		return nil, false, err
	}

	log := c.logger.With().
		Str("task_id", taskID).
		Str("occurrence_id", req.ClaimantOccurrenceID).
		Logger()
	if created {
		log.Info().Msg("claimed shared task")
		return candidate, true, nil
	}

	existing, err := c.store.GetTaskByID(ctx, taskID, constants.SharedOccurrenceID)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to load shared task %s", taskID)
	}
	log.Info().Str("status", existing.Status.String()).Msg("shared task already claimed, observing")
	return existing, false, nil
}

// GetLatestSharedTask returns the newest shared task of taskType created
// within the window, or nil.
func (c *Coordinator) GetLatestSharedTask(ctx context.Context, taskType string, within time.Duration) (*domain.Task, error) {
	if taskType == "" {
		return nil, fmt.Errorf("failed to find shared task: task type %w", errors.ErrEmptyValue)
	}
	since := c.clock.Now().Add(-within)
	return c.store.LatestTaskWithPrefix(ctx, SharedTaskPrefix(taskType), constants.SharedOccurrenceID, since)
}

// GetSharedTaskStatus returns the status of the latest shared task of taskType
// within the window. found is false when there is none.
func (c *Coordinator) GetSharedTaskStatus(ctx context.Context, taskType string, within time.Duration) (status constants.TaskStatus, found bool, err error) {
	t, err := c.GetLatestSharedTask(ctx, taskType, within)
	if err != nil || t == nil {
		return "", false, err
	}
	return t.Status, true, nil
}

// IsSharedTaskCompleted reports whether the latest shared task of taskType
// within the window is completed. It only reads and is safe to call every round.
func (c *Coordinator) IsSharedTaskCompleted(ctx context.Context, taskType string, within time.Duration) (bool, error) {
	status, found, err := c.GetSharedTaskStatus(ctx, taskType, within)
	if err != nil {
		return false, err
	}
	return found && status == constants.TaskStatusCompleted, nil
}
