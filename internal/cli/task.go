package cli

import (
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/contracts"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/logging"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
	"github.com/mrz1836/cortex/internal/tui"
)

// taskAddOptions holds flags specific to the task add command.
type taskAddOptions struct {
	priority      int
	channel       string
	correlationID string
	userID        string
}

// taskListOptions holds flags specific to the task list command.
type taskListOptions struct {
	all      bool
	shared   bool
	statuses []string
	limit    int
}

// AddTaskCommand adds the task command group to the root command.
func AddTaskCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the tasks of an occurrence",
		Long: `Add, list and inspect the tasks of one occurrence.

Examples:
  cortex task add "summarize the incident report"
  cortex task list --all
  cortex task show task_0b6c...`,
	}

	cmd.AddCommand(newTaskAddCmd(flags), newTaskListCmd(flags), newTaskShowCmd(flags))
	parent.AddCommand(cmd)
}

func newTaskAddCmd(flags *GlobalFlags) *cobra.Command {
	opts := &taskAddOptions{}
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Queue a new pending task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.TrimSpace(strings.Join(args, " "))
			return withApp(cmd.Context(), flags, func(a *app) error {
				return runTaskAdd(cmd.Context(), cmd.OutOrStdout(), flags.Output, a, description, opts)
			})
		},
	}
	cmd.Flags().IntVar(&opts.priority, "priority", task.DefaultTaskPriority,
		fmt.Sprintf("task priority (%d-%d)", constants.MinTaskPriority, constants.MaxTaskPriority))
	cmd.Flags().StringVar(&opts.channel, "channel", constants.CLIChannelID, "channel the task originated from")
	cmd.Flags().StringVar(&opts.correlationID, "correlation-id", "", "correlation id for tracing")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user the task is for")
	return cmd
}

func runTaskAdd(ctx context.Context, w io.Writer, output string, a *app, description string, opts *taskAddOptions) error {
	priority := opts.priority
	t, err := a.manager.CreateTask(ctx, task.TaskSpec{
		Description:       description,
		ChannelID:         opts.channel,
		AgentOccurrenceID: a.cfg.Occurrence.ID,
		CorrelationID:     opts.correlationID,
		UserID:            opts.userID,
		Priority:          &priority,
	})
	if err != nil {
		if errors.IsValidation(err) {
			return errors.NewExitCode2Error(err)
		}
		return err
	}

	out := tui.NewOutput(w, output)
	if out.IsJSON() {
		return out.JSON(t)
	}
	out.Success(fmt.Sprintf("Queued %s for %s: %s", t.TaskID, t.AgentOccurrenceID, logging.Preview(t.Description, 60)))
	return nil
}

func newTaskListCmd(flags *GlobalFlags) *cobra.Command {
	opts := &taskListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `List the tasks of an occurrence, highest priority first.

By default only unfinished tasks (pending, active, deferred) are shown.

Examples:
  cortex task list                    # Unfinished tasks
  cortex task list --all              # Every task, including finished ones
  cortex task list --status failed    # Only failed tasks
  cortex task list --shared           # The shared wakeup and shutdown tasks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tui.CheckNoColor()
			return withApp(cmd.Context(), flags, func(a *app) error {
				return runTaskList(cmd.Context(), cmd.OutOrStdout(), flags.Output, a, opts)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.all, "all", false, "include finished tasks")
	cmd.Flags().BoolVar(&opts.shared, "shared", false, "list the shared ritual tasks instead")
	cmd.Flags().StringSliceVar(&opts.statuses, "status", nil, "filter by status (repeatable, comma separated)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of tasks (0 for no limit)")
	return cmd
}

func runTaskList(ctx context.Context, w io.Writer, output string, a *app, opts *taskListOptions) error {
	filter, err := taskListFilter(a.cfg.Occurrence.ID, opts)
	if err != nil {
		return err
	}

	tasks, err := a.store.ListTasks(ctx, filter)
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, output)
	if out.IsJSON() {
		if tasks == nil {
			tasks = []*domain.Task{}
		}
		return out.JSON(tasks)
	}

	if len(tasks) == 0 {
		_, _ = fmt.Fprintf(w, "No tasks for %s. Run 'cortex task add <description>' to queue one.\n", filter.OccurrenceID)
		return nil
	}

	// Failed and deferred tasks go first, each group keeping the store order.
	slices.SortStableFunc(tasks, func(a, b *domain.Task) int {
		return cmp.Compare(attentionRank(a.Status), attentionRank(b.Status))
	})

	table := tui.NewTable(w, []string{"TASK", "STATUS", "PRI", "UPDATED", "DESCRIPTION"})
	for _, t := range tasks {
		table.AddRow(
			t.TaskID,
			tui.RenderTaskStatus(t.Status),
			fmt.Sprintf("%d", t.Priority),
			tui.RelativeTimeWith(t.UpdatedAt, a.clock),
			logging.Preview(t.Description, 0),
		)
	}
	return table.Render()
}

func attentionRank(s constants.TaskStatus) int {
	if contracts.IsAttentionStatus(s) {
		return 0
	}
	return 1
}

// taskListFilter turns the list flags into a store filter.
func taskListFilter(occurrenceID string, opts *taskListOptions) (store.TaskFilter, error) {
	filter := store.TaskFilter{OccurrenceID: occurrenceID, Limit: opts.limit}
	if opts.shared {
		filter.OccurrenceID = constants.SharedOccurrenceID
	}
	if opts.limit < 0 {
		return filter, errors.NewExitCode2Error(fmt.Errorf("%w: --limit must not be negative", errors.ErrValueOutOfRange))
	}

	if len(opts.statuses) > 0 {
		for _, name := range opts.statuses {
			status, err := parseTaskStatus(name)
			if err != nil {
				return filter, errors.NewExitCode2Error(err)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
		return filter, nil
	}
	if !opts.all {
		filter.Statuses = []constants.TaskStatus{
			constants.TaskStatusPending,
			constants.TaskStatusActive,
			constants.TaskStatusDeferred,
		}
	}
	return filter, nil
}

func taskStatuses() []constants.TaskStatus {
	return []constants.TaskStatus{
		constants.TaskStatusPending,
		constants.TaskStatusActive,
		constants.TaskStatusCompleted,
		constants.TaskStatusFailed,
		constants.TaskStatusDeferred,
		constants.TaskStatusRejected,
	}
}

func parseTaskStatus(name string) (constants.TaskStatus, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range taskStatuses() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown task status %q", errors.ErrValueOutOfRange, name)
}

// TaskDetail is a task with its thoughts.
type TaskDetail struct {
	*domain.Task
	Thoughts []*domain.Thought `json:"thoughts"`
}

func newTaskShowCmd(flags *GlobalFlags) *cobra.Command {
	var shared bool
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task and its thoughts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tui.CheckNoColor()
			return withApp(cmd.Context(), flags, func(a *app) error {
				occurrenceID := a.cfg.Occurrence.ID
				if shared {
					occurrenceID = constants.SharedOccurrenceID
				}
				return runTaskShow(cmd.Context(), cmd.OutOrStdout(), flags.Output, a, args[0], occurrenceID)
			})
		},
	}
	cmd.Flags().BoolVar(&shared, "shared", false, "look the task up among the shared ritual tasks")
	return cmd
}

func runTaskShow(ctx context.Context, w io.Writer, output string, a *app, taskID, occurrenceID string) error {
	t, err := a.store.GetTaskByID(ctx, taskID, occurrenceID)
	if err != nil {
		if stderrors.Is(err, errors.ErrTaskNotFound) {
			return errors.NewExitCode2Error(fmt.Errorf("%w: %s in occurrence %s", errors.ErrTaskNotFound, taskID, occurrenceID))
		}
		return err
	}
	thoughts, err := a.store.GetThoughtsByTaskID(ctx, taskID, occurrenceID)
	if err != nil {
		return err
	}
	if thoughts == nil {
		thoughts = []*domain.Thought{}
	}

	out := tui.NewOutput(w, output)
	if out.IsJSON() {
		return out.JSON(TaskDetail{Task: t, Thoughts: thoughts})
	}
	return renderTaskDetail(w, t, thoughts, a)
}

func renderTaskDetail(w io.Writer, t *domain.Task, thoughts []*domain.Thought, a *app) error {
	styles := tui.NewOutputStyles()
	_, _ = fmt.Fprintln(w, styles.Header.Render(t.TaskID))
	_, _ = fmt.Fprintf(w, "%s\n", logging.Preview(t.Description, 200))
	_, _ = fmt.Fprintf(w, "%s  priority %d  %s  updated %s\n",
		tui.RenderTaskStatus(t.Status), t.Priority, t.ChannelID, tui.RelativeTimeWith(t.UpdatedAt, a.clock))
	if t.ParentTaskID != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.Dim.Render("parent"), t.ParentTaskID)
	}
	if t.Outcome != nil {
		outcome := t.Outcome.Summary
		if t.Outcome.Reason != "" {
			outcome = strings.TrimSpace(outcome + " " + styles.Dim.Render(t.Outcome.Reason))
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.Dim.Render("outcome"), outcome)
	}
	_, _ = fmt.Fprintln(w)

	if len(thoughts) == 0 {
		_, _ = fmt.Fprintln(w, styles.Dim.Render("No thoughts yet."))
		return nil
	}

	table := tui.NewTable(w, []string{"THOUGHT", "STATUS", "ROUND", "DEPTH", "ACTION", "CONTENT"})
	for _, th := range thoughts {
		action := "-"
		if th.FinalAction != nil {
			action = th.FinalAction.ActionType.String()
		}
		status := lipgloss.NewStyle().Foreground(tui.ThoughtStatusColor(th.Status)).Render(th.Status.String())
		table.AddRow(
			th.ThoughtID,
			status,
			fmt.Sprintf("%d", th.RoundNumber),
			fmt.Sprintf("%d", th.ThoughtDepth),
			action,
			logging.Preview(th.Content, 0),
		)
	}
	return table.Render()
}
