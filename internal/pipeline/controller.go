package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/errors"
)

// Controller layers pause, single-step, drain and abort over a State.
//
// Every thought gets its own buffered signal channel. A release sent before
// the thought reaches WaitForResume is kept, so it is never lost, and at most
// one release is pending per thought.
type Controller struct {
	mu         sync.Mutex
	state      *State
	logger     zerolog.Logger
	paused     bool
	singleStep bool
	enabled    map[Stage]bool
	signals    map[string]chan struct{}
	waiting    map[string]struct{}
	aborted    map[string]struct{}
}

// NewController creates a running controller over state with every stage enabled.
func NewController(state *State, logger zerolog.Logger) *Controller {
	if state == nil {
		state = NewState(nil)
	}
	return &Controller{
		state:   state,
		logger:  logger.With().Str("component", "pipeline_controller").Logger(),
		signals: make(map[string]chan struct{}),
		waiting: make(map[string]struct{}),
		aborted: make(map[string]struct{}),
	}
}

// State returns the pipeline state the controller drives.
func (c *Controller) State() *State {
	return c.state
}

// Pause stops thoughts at enabled stages and turns on single-step mode.
// It returns false if the controller was already paused.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return false
	}
	c.paused = true
	c.singleStep = true
	c.state.setPaused(true)
	c.logger.Info().Int("in_flight", c.state.TotalInFlight()).Msg("pipeline paused")
	return true
}

// Resume returns to normal processing and releases every held thought in
// drain order. It returns false if the controller was not paused.
func (c *Controller) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return false
	}
	c.paused = false
	c.singleStep = false
	c.state.setPaused(false)

	released := 0
	seen := make(map[string]struct{})
	for _, id := range c.state.DrainOrder() {
		seen[id] = struct{}{}
		c.signalLocked(id)
		released++
	}
	for id := range c.waiting {
		if _, ok := seen[id]; !ok {
			c.signalLocked(id)
			released++
		}
	}
	// Blocked waiters already hold their channel. Fresh channels keep stale
	// releases from letting a thought skip its next pause.
	c.signals = make(map[string]chan struct{})
	c.logger.Info().Int("released", released).Msg("pipeline resumed")
	return true
}

// IsPaused reports whether the controller is paused.
func (c *Controller) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SingleStepMode reports whether single-step mode is on.
func (c *Controller) SingleStepMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.singleStep
}

// SetSingleStepMode turns single-step mode on or off. With it off a paused
// controller lets thoughts run through every stage.
func (c *Controller) SetSingleStepMode(on bool) {
	c.mu.Lock()
	c.singleStep = on
	c.mu.Unlock()
}

// SetEnabledStages restricts the stages where thoughts pause. An empty list
// enables every stage.
func (c *Controller) SetEnabledStages(stages []Stage) error {
	enabled := make(map[Stage]bool, len(stages))
	for _, s := range stages {
		if !s.Valid() {
			return fmt.Errorf("failed to enable stage: %w: %q", errors.ErrUnknownStage, s)
		}
		enabled[s] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(enabled) == 0 {
		c.enabled = nil
		return nil
	}
	c.enabled = enabled
	return nil
}

// ShouldPauseAt reports whether the thought must wait at stage: the controller
// is paused in single-step mode, the stage is enabled and the thought is not
// aborted.
func (c *Controller) ShouldPauseAt(stage Stage, thoughtID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused || !c.singleStep || !c.stageEnabledLocked(stage) {
		return false
	}
	_, aborted := c.aborted[thoughtID]
	return !aborted
}

// WaitForResume blocks until the thought is released by SingleStep,
// ResumeThought or Resume. It returns ErrThoughtAborted if the thought is
// aborted, or the context error. It returns at once when not paused.
func (c *Controller) WaitForResume(ctx context.Context, thoughtID string) error {
	c.mu.Lock()
	if _, ok := c.aborted[thoughtID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("thought %s: %w", thoughtID, errors.ErrThoughtAborted)
	}
	if !c.paused {
		c.mu.Unlock()
		return nil
	}
	ch := c.channelLocked(thoughtID)
	c.waiting[thoughtID] = struct{}{}
	c.mu.Unlock()

	c.logger.Debug().Str("thought_id", thoughtID).Msg("thought waiting for release")

	var err error
	select {
	case <-ch:
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiting, thoughtID)
	if err != nil {
		return err
	}
	if _, ok := c.aborted[thoughtID]; ok {
		return fmt.Errorf("thought %s: %w", thoughtID, errors.ErrThoughtAborted)
	}
	return nil
}

// ResumeThought releases one thought for one stage. It returns false if the
// thought is neither in the pipeline nor waiting.
func (c *Controller) ResumeThought(thoughtID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.knownLocked(thoughtID) {
		return false
	}
	c.signalLocked(thoughtID)
	return true
}

// SingleStep releases exactly one waiting thought, chosen in drain order, for
// one stage. Thoughts still running a stage or already holding a release are
// skipped. It fails with ErrNotPaused while running and then changes nothing.
func (c *Controller) SingleStep() (StepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return StepResult{}, fmt.Errorf("cannot single-step: %w", errors.ErrNotPaused)
	}
	c.singleStep = true

	inFlight := c.state.TotalInFlight()
	if inFlight == 0 {
		return StepResult{PipelineEmpty: true}, nil
	}

	entry, ok := c.nextWaitingLocked()
	if !ok {
		c.logger.Debug().Int("in_flight", inFlight).Msg("single step found no waiting thought")
		return StepResult{NothingWaiting: true, ThoughtsInFlight: inFlight}, nil
	}
	id := entry.ThoughtID

	c.signalLocked(id)
	// The waiter leaves the set now so a second step cannot pick it again
	// before it wakes up.
	delete(c.waiting, id)
	next, _ := NextStage(entry.CurrentStage)
	c.logger.Debug().
		Str("thought_id", id).
		Str("stage", entry.CurrentStage.String()).
		Str("next_stage", next.String()).
		Msg("single step released thought")
	return StepResult{
		ThoughtID:        id,
		TaskID:           entry.TaskID,
		FromStage:        entry.CurrentStage,
		ToStage:          next,
		ThoughtsInFlight: inFlight,
	}, nil
}

// nextWaitingLocked returns the first thought in drain order that is blocked
// in WaitForResume with no release pending.
func (c *Controller) nextWaitingLocked() (ThoughtInPipeline, bool) {
	for _, id := range c.state.DrainOrder() {
		if _, ok := c.waiting[id]; !ok {
			continue
		}
		if ch, ok := c.signals[id]; ok && len(ch) > 0 {
			continue
		}
		if entry, ok := c.state.Find(id); ok {
			return entry, true
		}
	}
	return ThoughtInPipeline{}, false
}

// DrainPipelineStep returns the thought that should move first: latest stage,
// then earliest entry.
func (c *Controller) DrainPipelineStep() (string, bool) {
	return c.state.DrainNext()
}

// AbortThought flags the thought so it stops at its next stage boundary and
// releases anyone waiting on it. A running stage is not interrupted.
func (c *Controller) AbortThought(thoughtID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.knownLocked(thoughtID) {
		return fmt.Errorf("failed to abort thought %s: %w", thoughtID, errors.ErrThoughtNotInPipeline)
	}
	c.aborted[thoughtID] = struct{}{}
	c.signalLocked(thoughtID)
	c.logger.Info().Str("thought_id", thoughtID).Msg("thought aborted")
	return nil
}

// ShouldAbort reports whether the thought has been aborted.
func (c *Controller) ShouldAbort(thoughtID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.aborted[thoughtID]
	return ok
}

// Release forgets a thought that left the pipeline.
func (c *Controller) Release(thoughtID string) {
	c.mu.Lock()
	delete(c.signals, thoughtID)
	delete(c.aborted, thoughtID)
	delete(c.waiting, thoughtID)
	c.mu.Unlock()
}

// Snapshot returns a copy of the controller and pipeline state.
func (c *Controller) Snapshot() ControllerSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := ControllerSnapshot{
		RunState: RunStateRunning,
		Mode:     ModeNormal,
		Aborted:  sortedKeys(c.aborted),
		Waiting:  sortedKeys(c.waiting),
		Pipeline: c.state.Snapshot(),
	}
	if c.paused {
		snap.RunState = RunStatePaused
	}
	if c.singleStep {
		snap.Mode = ModeSingleStep
	}
	for _, s := range stageOrder {
		if c.stageEnabledLocked(s) {
			snap.EnabledStages = append(snap.EnabledStages, s)
		}
	}
	return snap
}

func (c *Controller) stageEnabledLocked(stage Stage) bool {
	if c.enabled == nil {
		return stage.Valid()
	}
	return c.enabled[stage]
}

func (c *Controller) knownLocked(thoughtID string) bool {
	if _, ok := c.waiting[thoughtID]; ok {
		return true
	}
	_, ok := c.state.Find(thoughtID)
	return ok
}

func (c *Controller) channelLocked(thoughtID string) chan struct{} {
	ch, ok := c.signals[thoughtID]
	if !ok {
		ch = make(chan struct{}, 1)
		c.signals[thoughtID] = ch
	}
	return ch
}

func (c *Controller) signalLocked(thoughtID string) {
	select {
	case c.channelLocked(thoughtID) <- struct{}{}:
	default:
	}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
