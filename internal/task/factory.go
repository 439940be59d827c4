package task

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
)

// DefaultTaskPriority is used when a TaskSpec leaves Priority nil.
const DefaultTaskPriority = 5

// TaskSpec describes a task to build.
type TaskSpec struct {
	// TaskID is optional; a task_<uuid> id is generated when empty.
	TaskID            string
	Description       string
	ChannelID         string
	AgentOccurrenceID string
	CorrelationID     string
	UserID            string
	ParentTaskID      string

	// Priority defaults to DefaultTaskPriority when nil.
	Priority *int

	// Status defaults to pending.
	Status constants.TaskStatus

	// Context is an optional pre-built context. Its correlation and user
	// fields win over the TaskSpec fields; its occurrence id never does.
	Context *domain.TaskContext
}

// ThoughtSpec describes a thought to build.
type ThoughtSpec struct {
	// ThoughtID is optional; a th_<type>_<uuid> id is generated when empty.
	ThoughtID         string
	SourceTaskID      string
	AgentOccurrenceID string
	CorrelationID     string
	ChannelID         string
	Content           string
	ParentThoughtID   string
	ThoughtType       constants.ThoughtType
	RoundNumber       int
	ThoughtDepth      int
	PonderNotes       []string

	// Context is an optional pre-built context. Fields that describe the
	// thought itself are overwritten to match it.
	Context *domain.ThoughtContext
}

// FollowUpSpec controls CreateFollowUpThought.
type FollowUpSpec struct {
	Content string

	// IncrementRound adds one to the parent's round. Use NewFollowUpSpec for
	// the default of true.
	IncrementRound bool

	// IncrementDepth adds one to the parent's depth (pondering).
	IncrementDepth bool

	// ThoughtType defaults to standard.
	ThoughtType constants.ThoughtType

	PonderNotes []string
}

// NewFollowUpSpec returns a FollowUpSpec with the default options: next round,
// same depth, standard type.
func NewFollowUpSpec(content string) FollowUpSpec {
	return FollowUpSpec{
		Content:        content,
		IncrementRound: true,
		ThoughtType:    constants.ThoughtTypeStandard,
	}
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithMaxRoundNumber bounds the round number of any thought the factory builds.
// Zero or negative disables the bound.
func WithMaxRoundNumber(n int) FactoryOption {
	return func(f *Factory) {
		f.maxRound = n
	}
}

// WithMaxThoughtDepth lowers the depth ceiling. Values above
// constants.MaxThoughtDepth are clamped to it.
func WithMaxThoughtDepth(n int) FactoryOption {
	return func(f *Factory) {
		if n > 0 && n <= constants.MaxThoughtDepth {
			f.maxDepth = n
		}
	}
}

// WithLogger sets the logger used for context-correction diagnostics.
func WithLogger(logger zerolog.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// Factory is the only place tasks and thoughts are constructed. It refuses to
// build an entity without an occurrence id and keeps attached contexts in
// agreement with the entity they describe.
type Factory struct {
	clock    clock.Clock
	logger   zerolog.Logger
	maxRound int
	maxDepth int
}

// NewFactory creates a Factory. A nil clock uses the real clock.
func NewFactory(clk clock.Clock, opts ...FactoryOption) *Factory {
	f := &Factory{
		clock:    clock.OrReal(clk),
		logger:   zerolog.Nop(),
		maxRound: constants.DefaultMaxRoundNumber,
		maxDepth: constants.MaxThoughtDepth,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// MaxThoughtDepth returns the depth ceiling enforced by the factory.
func (f *Factory) MaxThoughtDepth() int {
	return f.maxDepth
}

// MaxRoundNumber returns the round bound, or zero when unbounded.
func (f *Factory) MaxRoundNumber() int {
	return f.maxRound
}

// CreateTask builds a validated task. It does not persist it.
func (f *Factory) CreateTask(spec TaskSpec) (*domain.Task, error) {
	if spec.AgentOccurrenceID == "" {
		return nil, fmt.Errorf("failed to create task: %w", errors.ErrMissingOccurrenceID)
	}
	if spec.Description == "" {
		return nil, fmt.Errorf("failed to create task: description %w", errors.ErrEmptyValue)
	}

	priority := DefaultTaskPriority
	if spec.Priority != nil {
		priority = *spec.Priority
	}
	if priority < constants.MinTaskPriority || priority > constants.MaxTaskPriority {
		return nil, fmt.Errorf("failed to create task: priority %d %w (%d-%d)",
			priority, errors.ErrValueOutOfRange, constants.MinTaskPriority, constants.MaxTaskPriority)
	}

	status := spec.Status
	if status == "" {
		status = constants.TaskStatusPending
	}

	taskID := spec.TaskID
	if taskID == "" {
		taskID = NewTaskID()
	}

	var taskCtx domain.TaskContext
	if spec.Context != nil {
		taskCtx = *spec.Context
		if taskCtx.AgentOccurrenceID != "" && taskCtx.AgentOccurrenceID != spec.AgentOccurrenceID {
			f.logger.Debug().
				Str("task_id", taskID).
				Str("context_occurrence_id", taskCtx.AgentOccurrenceID).
				Str("occurrence_id", spec.AgentOccurrenceID).
				Msg("overwriting mismatched occurrence id in task context")
		}
	} else {
		taskCtx = domain.TaskContext{
			CorrelationID: spec.CorrelationID,
			UserID:        spec.UserID,
		}
	}
	taskCtx.AgentOccurrenceID = spec.AgentOccurrenceID
	if taskCtx.ChannelID == "" {
		taskCtx.ChannelID = spec.ChannelID
	}
	if taskCtx.CorrelationID == "" {
		taskCtx.CorrelationID = spec.CorrelationID
	}
	if taskCtx.ParentTaskID == "" {
		taskCtx.ParentTaskID = spec.ParentTaskID
	}

	now := f.clock.Now()
	return &domain.Task{
		TaskID:            taskID,
		AgentOccurrenceID: spec.AgentOccurrenceID,
		ChannelID:         spec.ChannelID,
		Description:       spec.Description,
		Status:            status,
		Priority:          priority,
		ParentTaskID:      spec.ParentTaskID,
		Context:           &taskCtx,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// CreateThought builds a validated pending thought. It does not persist it.
func (f *Factory) CreateThought(spec ThoughtSpec) (*domain.Thought, error) {
	if spec.AgentOccurrenceID == "" {
		return nil, fmt.Errorf("failed to create thought: %w", errors.ErrMissingOccurrenceID)
	}
	if spec.SourceTaskID == "" {
		return nil, fmt.Errorf("failed to create thought: source task ID %w", errors.ErrEmptyValue)
	}
	if spec.Content == "" {
		return nil, fmt.Errorf("failed to create thought: content %w", errors.ErrEmptyValue)
	}
	if spec.ThoughtDepth < 0 || spec.ThoughtDepth > f.maxDepth {
		return nil, fmt.Errorf("failed to create thought: depth %d: %w (max %d)",
			spec.ThoughtDepth, errors.ErrDepthExceeded, f.maxDepth)
	}
	if spec.RoundNumber < 0 {
		return nil, fmt.Errorf("failed to create thought: round %d %w", spec.RoundNumber, errors.ErrValueOutOfRange)
	}
	if f.maxRound > 0 && spec.RoundNumber > f.maxRound {
		return nil, fmt.Errorf("failed to create thought: round %d: %w (max %d)",
			spec.RoundNumber, errors.ErrRoundLimitExceeded, f.maxRound)
	}

	thoughtType := spec.ThoughtType
	if thoughtType == "" {
		thoughtType = constants.ThoughtTypeStandard
	}
	thoughtID := spec.ThoughtID
	if thoughtID == "" {
		thoughtID = NewThoughtID(string(thoughtType))
	}

	thoughtCtx := f.thoughtContext(thoughtID, spec)
	now := f.clock.Now()
	return &domain.Thought{
		ThoughtID:         thoughtID,
		SourceTaskID:      spec.SourceTaskID,
		AgentOccurrenceID: spec.AgentOccurrenceID,
		ParentThoughtID:   spec.ParentThoughtID,
		ChannelID:         spec.ChannelID,
		ThoughtType:       thoughtType,
		Status:            constants.ThoughtStatusPending,
		RoundNumber:       spec.RoundNumber,
		ThoughtDepth:      spec.ThoughtDepth,
		Content:           spec.Content,
		Context:           thoughtCtx,
		PonderNotes:       append([]string(nil), spec.PonderNotes...),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// thoughtContext derives the context from spec. A supplied context keeps only
// its optional fields; everything describing the thought is overwritten.
func (f *Factory) thoughtContext(thoughtID string, spec ThoughtSpec) *domain.ThoughtContext {
	var c domain.ThoughtContext
	if spec.Context != nil {
		c = *spec.Context
		if c.AgentOccurrenceID != "" && c.AgentOccurrenceID != spec.AgentOccurrenceID {
			f.logger.Debug().
				Str("thought_id", thoughtID).
				Str("context_occurrence_id", c.AgentOccurrenceID).
				Str("occurrence_id", spec.AgentOccurrenceID).
				Msg("overwriting mismatched occurrence id in thought context")
		}
		if c.TaskID != "" && c.TaskID != spec.SourceTaskID {
			f.logger.Debug().
				Str("thought_id", thoughtID).
				Str("context_task_id", c.TaskID).
				Str("task_id", spec.SourceTaskID).
				Msg("overwriting mismatched task id in thought context")
		}
	}
	c.SchemaVersion = domain.ThoughtContextSchemaVersion
	c.TaskID = spec.SourceTaskID
	c.AgentOccurrenceID = spec.AgentOccurrenceID
	c.RoundNumber = spec.RoundNumber
	c.Depth = spec.ThoughtDepth
	c.ParentThoughtID = spec.ParentThoughtID
	if spec.ChannelID != "" {
		c.ChannelID = spec.ChannelID
	}
	if spec.CorrelationID != "" {
		c.CorrelationID = spec.CorrelationID
	}
	return &c
}

// CreateSeedThought builds the first thought of task at the given round.
// Channel, task and occurrence are copied from the task.
func (f *Factory) CreateSeedThought(task *domain.Task, round int) (*domain.Thought, error) {
	if task == nil {
		return nil, fmt.Errorf("failed to create seed thought: task %w", errors.ErrEmptyValue)
	}
	correlationID := ""
	if task.Context != nil {
		correlationID = task.Context.CorrelationID
	}
	return f.CreateThought(ThoughtSpec{
		ThoughtID:         NewThoughtID("seed"),
		SourceTaskID:      task.TaskID,
		AgentOccurrenceID: task.AgentOccurrenceID,
		CorrelationID:     correlationID,
		ChannelID:         task.ChannelID,
		Content:           seedContent(task),
		ThoughtType:       constants.ThoughtTypeStandard,
		RoundNumber:       round,
	})
}

func seedContent(task *domain.Task) string {
	if task.UpdatedInfoAvailable && task.UpdatedInfoContent != "" {
		return fmt.Sprintf("Initial seed thought for task: %s\nUpdated information: %s", task.Description, task.UpdatedInfoContent)
	}
	return "Initial seed thought for task: " + task.Description
}

// CreateFollowUpThought builds the continuation of parent. Source task,
// channel and occurrence are copied from the parent; the parent is linked.
func (f *Factory) CreateFollowUpThought(parent *domain.Thought, spec FollowUpSpec) (*domain.Thought, error) {
	if parent == nil {
		return nil, fmt.Errorf("failed to create follow-up thought: parent %w", errors.ErrEmptyValue)
	}

	round := parent.RoundNumber
	if spec.IncrementRound {
		round++
	}
	depth := parent.ThoughtDepth
	if spec.IncrementDepth {
		depth++
	}

	correlationID := ""
	if parent.Context != nil {
		correlationID = parent.Context.CorrelationID
	}

	return f.CreateThought(ThoughtSpec{
		SourceTaskID:      parent.SourceTaskID,
		AgentOccurrenceID: parent.AgentOccurrenceID,
		CorrelationID:     correlationID,
		ChannelID:         parent.ChannelID,
		Content:           spec.Content,
		ParentThoughtID:   parent.ThoughtID,
		ThoughtType:       spec.ThoughtType,
		RoundNumber:       round,
		ThoughtDepth:      depth,
		PonderNotes:       spec.PonderNotes,
	})
}
