package processor

import (
	"sync"
	"time"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/pipeline"
)

// Metrics receives the processor's round and per-thought timings. The CLI
// logs them; the status snapshot keeps its own timing history.
type Metrics interface {
	// RoundCompleted is called after every processing round.
	RoundCompleted(round, processed int, duration time.Duration)

	// ThoughtProcessed is called when a thought leaves the pipeline.
	ThoughtProcessed(thoughtID string, action constants.ActionType, status constants.ThoughtStatus, duration time.Duration)

	// StageEntered is called each time a thought enters a stage.
	StageEntered(thoughtID string, stage pipeline.Stage)
}

// NoopMetrics is a no-op implementation of Metrics for default behavior.
// Use this when metrics collection is not needed.
type NoopMetrics struct{}

// Ensure NoopMetrics implements Metrics interface.
var _ Metrics = (*NoopMetrics)(nil)

// RoundCompleted implements Metrics.
func (NoopMetrics) RoundCompleted(int, int, time.Duration) {}

// ThoughtProcessed implements Metrics.
func (NoopMetrics) ThoughtProcessed(string, constants.ActionType, constants.ThoughtStatus, time.Duration) {}

// StageEntered implements Metrics.
func (NoopMetrics) StageEntered(string, pipeline.Stage) {}

// timingHistory keeps the most recent thought durations.
type timingHistory struct {
	mu      sync.Mutex
	max     int
	samples []time.Duration
}

func newTimingHistory(maxSamples int) *timingHistory {
	if maxSamples <= 0 {
		maxSamples = constants.DefaultMaxTimingHistory
	}
	return &timingHistory{max: maxSamples}
}

func (h *timingHistory) record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, d)
	if over := len(h.samples) - h.max; over > 0 {
		h.samples = append(h.samples[:0:0], h.samples[over:]...)
	}
}

// average returns the mean duration and the number of samples.
func (h *timingHistory) average() (time.Duration, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) == 0 {
		return 0, 0
	}
	var total time.Duration
	for _, d := range h.samples {
		total += d
	}
	return total / time.Duration(len(h.samples)), len(h.samples)
}
