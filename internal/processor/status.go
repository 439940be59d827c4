package processor

import (
	"context"
	"time"

	"github.com/mrz1836/cortex/internal/pipeline"
)

// Run states reported by Status.
const (
	StateStopped = "stopped"
	StateRunning = "running"
	StatePaused  = "paused"
)

// Status is a point-in-time view of the scheduler for operators.
type Status struct {
	OccurrenceID       string                 `json:"occurrence_id"`
	State              string                 `json:"state"`
	Mode               pipeline.Mode          `json:"mode"`
	CurrentRound       int                    `json:"current_round"`
	PendingTasks       int64                  `json:"pending_tasks"`
	ActiveTasks        int64                  `json:"active_tasks"`
	PendingThoughts    int64                  `json:"pending_thoughts"`
	ProcessingThoughts int64                  `json:"processing_thoughts"`
	TotalProcessed     int64                  `json:"total_processed"`
	InFlight           int                    `json:"in_flight"`
	StageCounts        map[pipeline.Stage]int `json:"stage_counts"`
	AverageThoughtTime time.Duration          `json:"average_thought_time"`
	TimingSamples      int                    `json:"timing_samples"`
	Timestamp          time.Time              `json:"timestamp"`
}

// Status returns the current snapshot.
func (p *Processor) Status(ctx context.Context) (Status, error) {
	counts, err := p.manager.Counts(ctx)
	if err != nil {
		return Status{}, err
	}
	avg, samples := p.timings.average()

	st := Status{
		OccurrenceID:       p.OccurrenceID(),
		State:              StateStopped,
		Mode:               pipeline.ModeNormal,
		CurrentRound:       p.state.CurrentRound(),
		PendingTasks:       counts.PendingTasks,
		ActiveTasks:        counts.ActiveTasks,
		PendingThoughts:    counts.PendingThoughts,
		ProcessingThoughts: counts.ProcessingThoughts,
		TotalProcessed:     p.state.TotalProcessed(),
		InFlight:           p.state.TotalInFlight(),
		StageCounts:        p.state.StageCounts(),
		AverageThoughtTime: avg,
		TimingSamples:      samples,
		Timestamp:          p.clock.Now(),
	}
	if p.running.Load() {
		st.State = StateRunning
	}
	if c := p.ctrl.get(); c != nil {
		if c.IsPaused() {
			st.State = StatePaused
		}
		if c.SingleStepMode() {
			st.Mode = pipeline.ModeSingleStep
		}
	}
	return st, nil
}
