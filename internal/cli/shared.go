package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/lifecycle"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/tui"
)

// SharedStatus is the latest shared task of one type within its completion window.
type SharedStatus struct {
	TaskType  string               `json:"task_type"`
	Found     bool                 `json:"found"`
	TaskID    string               `json:"task_id,omitempty"`
	Status    constants.TaskStatus `json:"status,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	UpdatedAt time.Time            `json:"updated_at,omitzero"`
	Window    time.Duration        `json:"window"`

	// Steps and StepsCompleted are filled for the wakeup ritual only.
	Steps          int `json:"steps,omitempty"`
	StepsCompleted int `json:"steps_completed,omitempty"`
}

// Progress returns the completed share of the wakeup steps in percent.
func (s SharedStatus) Progress() float64 {
	if s.Steps == 0 {
		return 0
	}
	return float64(s.StepsCompleted) * 100 / float64(s.Steps)
}

// AddSharedCommand adds the shared command to the root command.
func AddSharedCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "shared",
		Short: "Show the shared wakeup and shutdown tasks",
		Long: `Show the latest wakeup and shutdown tasks shared by all occurrences.

A shared task is claimed once per day by the first occurrence to insert it.
Every other occurrence observes it and mirrors its outcome.

Examples:
  cortex shared            # Display the shared task table
  cortex shared -o json    # Display as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tui.CheckNoColor()
			return withApp(cmd.Context(), flags, func(a *app) error {
				return runShared(cmd.Context(), cmd.OutOrStdout(), flags.Output, a)
			})
		},
	}
	parent.AddCommand(cmd)
}

func runShared(ctx context.Context, w io.Writer, output string, a *app) error {
	shared, err := sharedStatuses(ctx, a)
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, output)
	if out.IsJSON() {
		return out.JSON(shared)
	}

	return renderSharedTable(w, shared, a)
}

func renderSharedTable(w io.Writer, shared []SharedStatus, a *app) error {
	table := tui.NewTable(w, []string{"RITUAL", "STATUS", "PROGRESS", "UPDATED", "TASK"})
	for _, s := range shared {
		table.AddRow(sharedCells(s, a)...)
	}
	return table.Render()
}

// sharedStatuses reads the wakeup and shutdown shared tasks within their windows.
func sharedStatuses(ctx context.Context, a *app) ([]SharedStatus, error) {
	coord, err := a.coordinator()
	if err != nil {
		return nil, err
	}

	rituals := []struct {
		taskType string
		window   time.Duration
	}{
		{constants.WakeupTaskType, a.cfg.Wakeup.CompletionWindow},
		{constants.ShutdownTaskType, a.cfg.Shutdown.CompletionWindow},
	}

	statuses := make([]SharedStatus, 0, len(rituals))
	for _, r := range rituals {
		st := SharedStatus{TaskType: r.taskType, Window: r.window}
		latest, err := coord.GetLatestSharedTask(ctx, r.taskType, r.window)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			st.Found = true
			st.TaskID = latest.TaskID
			st.Status = latest.Status
			st.UpdatedAt = latest.UpdatedAt
			if latest.Outcome != nil {
				st.Reason = latest.Outcome.Reason
			}
			if r.taskType == constants.WakeupTaskType {
				if err := countWakeupSteps(ctx, a, &st); err != nil {
					return nil, err
				}
			}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// countWakeupSteps counts the claimant's step tasks. Steps belong to the
// claimant's occurrence, so the filter is on the parent only.
func countWakeupSteps(ctx context.Context, a *app, st *SharedStatus) error {
	steps, err := a.store.ListTasks(ctx, store.TaskFilter{ParentTaskID: st.TaskID})
	if err != nil {
		return err
	}
	st.Steps = len(lifecycle.WakeupSteps())
	for _, t := range steps {
		if t.Status == constants.TaskStatusCompleted {
			st.StepsCompleted++
		}
	}
	return nil
}

func sharedCells(s SharedStatus, a *app) []string {
	name := tui.HumanizeName(s.TaskType)
	if !s.Found {
		return []string{name, tui.NewOutputStyles().Dim.Render("none"), "-", "-", "-"}
	}
	progress := "-"
	if s.Steps > 0 {
		progress = tui.ProgressBar(s.Progress(), 10)
	}
	status := tui.RenderTaskStatus(s.Status)
	if s.Reason != "" {
		status += " " + tui.NewOutputStyles().Dim.Render(s.Reason)
	}
	return []string{name, status, progress, tui.RelativeTimeWith(s.UpdatedAt, a.clock), s.TaskID}
}
