package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cortex/internal/config"
	"github.com/mrz1836/cortex/internal/flock"
	"github.com/mrz1836/cortex/internal/pipeline"
	"github.com/mrz1836/cortex/internal/processor"
	"github.com/mrz1836/cortex/internal/tui"
)

const statusLabelWidth = 12

// StatusView is the status of one occurrence as seen from the store.
type StatusView struct {
	processor.Status

	// Locked reports that a `cortex run` process holds the occurrence lock.
	Locked    bool           `json:"locked"`
	HolderPID string         `json:"holder_pid,omitempty"`
	Shared    []SharedStatus `json:"shared"`
}

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the scheduler status of this occurrence",
		Long: `Display the queue of one occurrence and the shared rituals.

The status view shows:
  • whether a 'cortex run' process holds the occurrence lock
  • pending and active tasks
  • pending and processing thoughts
  • the latest wakeup and shutdown shared tasks

Examples:
  cortex status                       # Display the status of the default occurrence
  cortex status --occurrence worker-2 # Another occurrence on the same database
  cortex status --output json         # Display as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tui.CheckNoColor()
			return withApp(cmd.Context(), flags, func(a *app) error {
				return runStatus(cmd.Context(), cmd.OutOrStdout(), flags, a)
			})
		},
	}
	parent.AddCommand(cmd)
}

// runStatus executes the status command against an opened app.
func runStatus(ctx context.Context, w io.Writer, flags *GlobalFlags, a *app) error {
	view, err := buildStatusView(ctx, a)
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, flags.Output)
	if out.IsJSON() {
		return out.JSON(view)
	}
	return renderStatus(w, view, flags.Quiet, a)
}

func buildStatusView(ctx context.Context, a *app) (StatusView, error) {
	st, err := a.proc.Status(ctx)
	if err != nil {
		return StatusView{}, err
	}
	view := StatusView{Status: st}

	lockDir, err := config.LocksPath()
	if err != nil {
		return StatusView{}, err
	}
	view.Locked, view.HolderPID, err = flock.Holder(lockDir, a.cfg.Occurrence.ID)
	if err != nil {
		return StatusView{}, err
	}
	if view.Locked {
		view.State = processor.StateRunning
	}

	view.Shared, err = sharedStatuses(ctx, a)
	if err != nil {
		return StatusView{}, err
	}
	return view, nil
}

func renderStatus(w io.Writer, view StatusView, quiet bool, a *app) error {
	styles := tui.NewOutputStyles()

	if !quiet {
		_, _ = fmt.Fprintln(w, styles.Header.Render("CORTEX "+view.OccurrenceID))
	}

	state := view.State
	if view.HolderPID != "" {
		state = fmt.Sprintf("%s (pid %s)", state, view.HolderPID)
	}
	if view.Mode == pipeline.ModeSingleStep {
		state += " single-step"
	}

	fields := [][2]string{
		{"State", state},
		{"Tasks", fmt.Sprintf("%d pending, %d active", view.PendingTasks, view.ActiveTasks)},
		{"Thoughts", fmt.Sprintf("%d pending, %d processing", view.PendingThoughts, view.ProcessingThoughts)},
	}
	if view.TimingSamples > 0 {
		fields = append(fields, [2]string{"Avg thought", tui.FormatDuration(view.AverageThoughtTime)})
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(w, "%s  %s\n", tui.Pad(styles.Dim.Render(f[0]), statusLabelWidth), f[1]); err != nil {
			return err
		}
	}

	if !quiet {
		_, _ = fmt.Fprintln(w)
	}
	if err := renderSharedTable(w, view.Shared, a); err != nil {
		return err
	}

	if !quiet && view.PendingTasks+view.ActiveTasks > 0 && !view.Locked {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, styles.Dim.Render(
			fmt.Sprintf("Run 'cortex run --occurrence %s' to process the queue.", view.OccurrenceID)))
	}
	return nil
}
