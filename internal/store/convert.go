package store

import (
	"encoding/json"
	"time"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
)

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// marshalOptional encodes v as JSON, or "" when v is nil.
func marshalOptional[T any](v *T) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalOptional decodes s into a new T, or nil when s is empty.
func unmarshalOptional[T any](s string) (*T, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // empty column means absent value
	}
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func toTaskRow(t *domain.Task) (*taskRow, error) {
	contextJSON, err := marshalOptional(t.Context)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode task context")
	}
	outcomeJSON, err := marshalOptional(t.Outcome)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode task outcome")
	}
	row := &taskRow{
		TaskID:               t.TaskID,
		AgentOccurrenceID:    t.AgentOccurrenceID,
		ChannelID:            t.ChannelID,
		Description:          t.Description,
		Status:               string(t.Status),
		Priority:             t.Priority,
		ParentTaskID:         t.ParentTaskID,
		ContextJSON:          contextJSON,
		OutcomeJSON:          outcomeJSON,
		SignedBy:             t.SignedBy,
		Signature:            t.Signature,
		UpdatedInfoAvailable: t.UpdatedInfoAvailable,
		UpdatedInfoContent:   t.UpdatedInfoContent,
		CreatedAt:            toUnix(t.CreatedAt),
		UpdatedAt:            toUnix(t.UpdatedAt),
	}
	if t.Context != nil {
		row.CorrelationID = t.Context.CorrelationID
	}
	if t.SignedAt != nil {
		row.SignedAt = toUnix(*t.SignedAt)
	}
	return row, nil
}

func fromTaskRow(r *taskRow) (*domain.Task, error) {
	taskCtx, err := unmarshalOptional[domain.TaskContext](r.ContextJSON)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode context of task %s", r.TaskID)
	}
	outcome, err := unmarshalOptional[domain.TaskOutcome](r.OutcomeJSON)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode outcome of task %s", r.TaskID)
	}
	t := &domain.Task{
		TaskID:               r.TaskID,
		AgentOccurrenceID:    r.AgentOccurrenceID,
		ChannelID:            r.ChannelID,
		Description:          r.Description,
		Status:               constants.TaskStatus(r.Status),
		Priority:             r.Priority,
		ParentTaskID:         r.ParentTaskID,
		Context:              taskCtx,
		Outcome:              outcome,
		SignedBy:             r.SignedBy,
		Signature:            r.Signature,
		UpdatedInfoAvailable: r.UpdatedInfoAvailable,
		UpdatedInfoContent:   r.UpdatedInfoContent,
		CreatedAt:            fromUnix(r.CreatedAt),
		UpdatedAt:            fromUnix(r.UpdatedAt),
	}
	if r.SignedAt != 0 {
		signedAt := fromUnix(r.SignedAt)
		t.SignedAt = &signedAt
	}
	return t, nil
}

func toThoughtRow(t *domain.Thought) (*thoughtRow, error) {
	contextJSON, err := marshalOptional(t.Context)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode thought context")
	}
	actionJSON, err := marshalOptional(t.FinalAction)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode final action")
	}
	notesJSON := ""
	if len(t.PonderNotes) > 0 {
		data, err := json.Marshal(t.PonderNotes)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode ponder notes")
		}
		notesJSON = string(data)
	}
	return &thoughtRow{
		ThoughtID:         t.ThoughtID,
		SourceTaskID:      t.SourceTaskID,
		AgentOccurrenceID: t.AgentOccurrenceID,
		ParentThoughtID:   t.ParentThoughtID,
		ChannelID:         t.ChannelID,
		ThoughtType:       string(t.ThoughtType),
		Status:            string(t.Status),
		RoundNumber:       t.RoundNumber,
		ThoughtDepth:      t.ThoughtDepth,
		Content:           t.Content,
		ContextJSON:       contextJSON,
		PonderNotesJSON:   notesJSON,
		FinalActionJSON:   actionJSON,
		CreatedAt:         toUnix(t.CreatedAt),
		UpdatedAt:         toUnix(t.UpdatedAt),
	}, nil
}

func fromThoughtRow(r *thoughtRow) (*domain.Thought, error) {
	thoughtCtx, err := unmarshalOptional[domain.ThoughtContext](r.ContextJSON)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode context of thought %s", r.ThoughtID)
	}
	action, err := unmarshalOptional[domain.FinalAction](r.FinalActionJSON)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode final action of thought %s", r.ThoughtID)
	}
	var notes []string
	if r.PonderNotesJSON != "" {
		if err := json.Unmarshal([]byte(r.PonderNotesJSON), &notes); err != nil {
			return nil, errors.Wrapf(err, "failed to decode ponder notes of thought %s", r.ThoughtID)
		}
	}
	return &domain.Thought{
		ThoughtID:         r.ThoughtID,
		SourceTaskID:      r.SourceTaskID,
		AgentOccurrenceID: r.AgentOccurrenceID,
		ParentThoughtID:   r.ParentThoughtID,
		ChannelID:         r.ChannelID,
		ThoughtType:       constants.ThoughtType(r.ThoughtType),
		Status:            constants.ThoughtStatus(r.Status),
		RoundNumber:       r.RoundNumber,
		ThoughtDepth:      r.ThoughtDepth,
		Content:           r.Content,
		Context:           thoughtCtx,
		PonderNotes:       notes,
		FinalAction:       action,
		CreatedAt:         fromUnix(r.CreatedAt),
		UpdatedAt:         fromUnix(r.UpdatedAt),
	}, nil
}

func taskStatusStrings(statuses []constants.TaskStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func thoughtStatusStrings(statuses []constants.ThoughtStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
