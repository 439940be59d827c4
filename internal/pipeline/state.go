package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/errors"
)

// ThoughtInPipeline records where a thought currently sits. It lives only in
// memory and is never persisted.
type ThoughtInPipeline struct {
	ThoughtID       string    `json:"thought_id"`
	TaskID          string    `json:"task_id"`
	ThoughtType     string    `json:"thought_type"`
	CurrentStage    Stage     `json:"current_stage"`
	EnteredStageAt  time.Time `json:"entered_stage_at"`
	StagesCompleted []Stage   `json:"stages_completed,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

func (t *ThoughtInPipeline) clone() ThoughtInPipeline {
	c := *t
	if t.StagesCompleted != nil {
		c.StagesCompleted = make([]Stage, len(t.StagesCompleted))
		copy(c.StagesCompleted, t.StagesCompleted)
	}
	return c
}

// Snapshot is a copy of the pipeline state at one instant.
type Snapshot struct {
	IsPaused        bool                          `json:"is_paused"`
	CurrentRound    int                           `json:"current_round"`
	TotalProcessed  int64                         `json:"total_processed"`
	TotalInFlight   int                           `json:"total_in_flight"`
	ThoughtsByStage map[Stage][]ThoughtInPipeline `json:"thoughts_by_stage"`
}

// State holds per-stage occupancy and the round counters. It is safe for
// concurrent use: the goroutines of one round each move their own thought.
type State struct {
	mu             sync.RWMutex
	clock          clock.Clock
	byStage        map[Stage][]*ThoughtInPipeline
	currentRound   int
	totalProcessed int64
	isPaused       bool
}

// NewState creates an empty pipeline state. A nil clock uses the real clock.
func NewState(clk clock.Clock) *State {
	byStage := make(map[Stage][]*ThoughtInPipeline, len(stageOrder))
	for _, s := range stageOrder {
		byStage[s] = nil
	}
	return &State{
		clock:   clock.OrReal(clk),
		byStage: byStage,
	}
}

// Enter places a thought at stage. A thought already in the pipeline is moved
// there and keeps its history.
func (s *State) Enter(thoughtID, taskID, thoughtType string, stage Stage) error {
	if thoughtID == "" {
		return fmt.Errorf("failed to enter pipeline: thought ID %w", errors.ErrEmptyValue)
	}
	if !stage.Valid() {
		return fmt.Errorf("failed to enter pipeline: %w: %q", errors.ErrUnknownStage, stage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.removeLocked(thoughtID)
	if entry == nil {
		entry = &ThoughtInPipeline{ThoughtID: thoughtID, TaskID: taskID, ThoughtType: thoughtType}
	}
	entry.CurrentStage = stage
	entry.EnteredStageAt = s.clock.Now()
	s.byStage[stage] = append(s.byStage[stage], entry)
	return nil
}

// MoveThought moves a thought from one stage to another. It returns false
// when the thought is not at from or either stage is unknown.
func (s *State) MoveThought(thoughtID string, from, to Stage) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byStage[from]
	for i, entry := range list {
		if entry.ThoughtID != thoughtID {
			continue
		}
		s.byStage[from] = append(list[:i:i], list[i+1:]...)
		entry.StagesCompleted = append(entry.StagesCompleted, from)
		entry.CurrentStage = to
		entry.EnteredStageAt = s.clock.Now()
		s.byStage[to] = append(s.byStage[to], entry)
		return true
	}
	return false
}

// ThoughtsAt returns copies of the thoughts at stage, in entry order.
func (s *State) ThoughtsAt(stage Stage) []ThoughtInPipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byStage[stage]
	out := make([]ThoughtInPipeline, 0, len(list))
	for _, entry := range list {
		out = append(out, entry.clone())
	}
	return out
}

// Find returns a copy of the thought's entry.
func (s *State) Find(thoughtID string) (ThoughtInPipeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry := s.findLocked(thoughtID); entry != nil {
		return entry.clone(), true
	}
	return ThoughtInPipeline{}, false
}

// SetError records the last error seen for a thought still in the pipeline.
func (s *State) SetError(thoughtID, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.findLocked(thoughtID)
	if entry == nil {
		return false
	}
	entry.LastError = msg
	return true
}

// Remove takes a thought out of the pipeline without counting it as processed.
func (s *State) Remove(thoughtID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.removeLocked(thoughtID)
	return entry != nil
}

// Complete takes a thought out of the pipeline and counts it as processed.
func (s *State) Complete(thoughtID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.removeLocked(thoughtID)
	if entry == nil {
		return false
	}
	s.totalProcessed++
	return true
}

// DrainNext returns the thought that should move first: the one at the latest
// stage, ties broken by the earliest entry time and then by entry order.
func (s *State) DrainNext() (string, bool) {
	entry, ok := s.DrainNextEntry()
	return entry.ThoughtID, ok
}

// DrainNextEntry is DrainNext returning a copy of the whole entry.
func (s *State) DrainNextEntry() (ThoughtInPipeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(stageOrder) - 1; i >= 0; i-- {
		var best *ThoughtInPipeline
		for _, entry := range s.byStage[stageOrder[i]] {
			if best == nil || entry.EnteredStageAt.Before(best.EnteredStageAt) {
				best = entry
			}
		}
		if best != nil {
			return best.clone(), true
		}
	}
	return ThoughtInPipeline{}, false
}

// DrainOrder returns every in-flight thought id in drain order.
func (s *State) DrainOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for i := len(stageOrder) - 1; i >= 0; i-- {
		list := make([]*ThoughtInPipeline, len(s.byStage[stageOrder[i]]))
		copy(list, s.byStage[stageOrder[i]])
		// Insertion sort keeps equal timestamps in entry order.
		for j := 1; j < len(list); j++ {
			for k := j; k > 0 && list[k].EnteredStageAt.Before(list[k-1].EnteredStageAt); k-- {
				list[k], list[k-1] = list[k-1], list[k]
			}
		}
		for _, entry := range list {
			out = append(out, entry.ThoughtID)
		}
	}
	return out
}

// StageCounts returns the number of thoughts at every stage.
func (s *State) StageCounts() map[Stage]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Stage]int, len(stageOrder))
	for _, st := range stageOrder {
		out[st] = len(s.byStage[st])
	}
	return out
}

// TotalInFlight returns the number of thoughts in the pipeline.
func (s *State) TotalInFlight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlightLocked()
}

// TotalProcessed returns the number of thoughts that left via Complete.
func (s *State) TotalProcessed() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalProcessed
}

// CurrentRound returns the round counter.
func (s *State) CurrentRound() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRound
}

// NextRound increments the round counter and returns the new value.
func (s *State) NextRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRound++
	return s.currentRound
}

// IsPaused reports the paused flag mirrored from the controller.
func (s *State) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isPaused
}

func (s *State) setPaused(paused bool) {
	s.mu.Lock()
	s.isPaused = paused
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStage := make(map[Stage][]ThoughtInPipeline, len(stageOrder))
	for _, st := range stageOrder {
		list := make([]ThoughtInPipeline, 0, len(s.byStage[st]))
		for _, entry := range s.byStage[st] {
			list = append(list, entry.clone())
		}
		byStage[st] = list
	}
	return Snapshot{
		IsPaused:        s.isPaused,
		CurrentRound:    s.currentRound,
		TotalProcessed:  s.totalProcessed,
		TotalInFlight:   s.inFlightLocked(),
		ThoughtsByStage: byStage,
	}
}

func (s *State) inFlightLocked() int {
	n := 0
	for _, list := range s.byStage {
		n += len(list)
	}
	return n
}

func (s *State) findLocked(thoughtID string) *ThoughtInPipeline {
	for _, list := range s.byStage {
		for _, entry := range list {
			if entry.ThoughtID == thoughtID {
				return entry
			}
		}
	}
	return nil
}

func (s *State) removeLocked(thoughtID string) *ThoughtInPipeline {
	for stage, list := range s.byStage {
		for i, entry := range list {
			if entry.ThoughtID == thoughtID {
				s.byStage[stage] = append(list[:i:i], list[i+1:]...)
				return entry
			}
		}
	}
	return nil
}
