package processor

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/pipeline"
)

// Control operation names reported in ControlResult.Operation.
const (
	OpPause        = "pause"
	OpResume       = "resume"
	OpSingleStep   = "single_step"
	OpAbortThought = "abort_thought"
)

// ControlResult is the outcome of a control operation. Control operations
// never return an error or panic; failures are reported here.
type ControlResult struct {
	Success        bool                 `json:"success"`
	Operation      string               `json:"operation"`
	Message        string               `json:"message,omitempty"`
	Error          string               `json:"error,omitempty"`
	ThoughtID      string               `json:"thought_id,omitempty"`
	Step           *pipeline.StepResult `json:"step,omitempty"`
	ProcessingTime time.Duration        `json:"processing_time"`
	Timestamp      time.Time            `json:"timestamp"`
}

// lazyController creates the pipeline controller on first pause. Until then
// thoughts never consult it.
type lazyController struct {
	mu      sync.Mutex
	c       *pipeline.Controller
	state   *pipeline.State
	enabled []pipeline.Stage
	logger  zerolog.Logger
}

func (l *lazyController) get() *pipeline.Controller {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c
}

func (l *lazyController) ensure() (*pipeline.Controller, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.c != nil {
		return l.c, nil
	}
	c := pipeline.NewController(l.state, l.logger)
	if err := c.SetEnabledStages(l.enabled); err != nil {
		return nil, err
	}
	l.c = c
	return c, nil
}

// runControl runs op and converts its outcome, including a panic, into a
// ControlResult.
func (p *Processor) runControl(op string, fn func(*ControlResult) error) (res ControlResult) {
	start := time.Now()
	res = ControlResult{Operation: op, Timestamp: p.clock.Now()}
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", r)
			p.logger.Error().Str("operation", op).Interface("panic", r).Msg("control operation panicked")
		}
		res.ProcessingTime = time.Since(start)
	}()

	if err := fn(&res); err != nil {
		res.Success = false
		res.Error = err.Error()
		p.logger.Warn().Err(err).Str("operation", op).Msg("control operation failed")
		return res
	}
	res.Success = true
	return res
}

// Pause pauses processing. The controller is created on the first call.
// Pausing twice succeeds.
func (p *Processor) Pause() ControlResult {
	return p.runControl(OpPause, func(res *ControlResult) error {
		c, err := p.ctrl.ensure()
		if err != nil {
			return err
		}
		if c.Pause() {
			res.Message = "processing paused"
		} else {
			res.Message = "already paused"
		}
		return nil
	})
}

// Resume resumes processing. It fails when not paused.
func (p *Processor) Resume() ControlResult {
	return p.runControl(OpResume, func(res *ControlResult) error {
		c := p.ctrl.get()
		if c == nil || !c.Resume() {
			return errNotPaused("resume")
		}
		res.Message = "processing resumed"
		return nil
	})
}

// SingleStep releases one thought for one stage. It fails when not paused.
func (p *Processor) SingleStep() ControlResult {
	return p.runControl(OpSingleStep, func(res *ControlResult) error {
		c := p.ctrl.get()
		if c == nil {
			return errNotPaused("single-step")
		}
		step, err := c.SingleStep()
		if err != nil {
			return err
		}
		res.Step = &step
		res.ThoughtID = step.ThoughtID
		switch {
		case step.PipelineEmpty:
			res.Message = "pipeline empty"
		case step.NothingWaiting:
			res.Message = fmt.Sprintf("no thought waiting (%d in flight)", step.ThoughtsInFlight)
		default:
			res.Message = fmt.Sprintf("released %s from %s", step.ThoughtID, step.FromStage)
		}
		return nil
	})
}

// AbortThought stops a thought at its next stage boundary.
func (p *Processor) AbortThought(thoughtID string) ControlResult {
	return p.runControl(OpAbortThought, func(res *ControlResult) error {
		res.ThoughtID = thoughtID
		c, err := p.ctrl.ensure()
		if err != nil {
			return err
		}
		if err := c.AbortThought(thoughtID); err != nil {
			return err
		}
		res.Message = "thought aborted"
		return nil
	})
}
