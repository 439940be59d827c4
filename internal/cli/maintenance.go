package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cortex/internal/coordination"
	"github.com/mrz1836/cortex/internal/tui"
)

// AddMaintenanceCommand adds the maintenance command group to the root command.
func AddMaintenanceCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Database maintenance",
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Clean up stale and orphaned work",
		Long: `Run the maintenance sweep that 'cortex run' performs at startup.

The sweep:
  • deletes unfinished shared tasks older than maintenance.shared_task_stale_after
  • completes unfinished ordinary tasks older than maintenance.stale_task_age
  • deletes thoughts whose task no longer exists
  • deletes completed tasks older than maintenance.completed_retention

Examples:
  cortex maintenance sweep
  cortex maintenance sweep -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				return runSweep(cmd.Context(), cmd.OutOrStdout(), flags.Output, a)
			})
		},
	}

	cmd.AddCommand(sweepCmd)
	parent.AddCommand(cmd)
}

func runSweep(ctx context.Context, w io.Writer, output string, a *app) error {
	report, err := sweep(ctx, a)
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, output)
	if out.IsJSON() {
		return out.JSON(report)
	}
	if report.Total() == 0 {
		out.Success("Nothing to clean up")
		return nil
	}
	return renderSweepReport(w, report)
}

func renderSweepReport(w io.Writer, report coordination.SweepReport) error {
	table := tui.NewTable(w, []string{"CLEANUP", "COUNT"})
	rows := []struct {
		label string
		n     int
	}{
		{"stale_shared_tasks_deleted", report.StaleSharedTasksDeleted},
		{"stale_shared_thoughts_deleted", report.StaleSharedThoughtsDeleted},
		{"stale_tasks_completed", report.StaleTasksCompleted},
		{"orphan_thoughts_deleted", report.OrphanThoughtsDeleted},
		{"completed_tasks_deleted", report.CompletedTasksDeleted},
	}
	for _, r := range rows {
		table.AddRow(tui.HumanizeName(r.label), fmt.Sprintf("%d", r.n))
	}
	return table.Render()
}
