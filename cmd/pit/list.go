package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/pkg/models"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List all tasks in creation order.

Tasks whose agent session has exited are marked idle first.`,
	Args: cobra.NoArgs,
	RunE: withApp(runList),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task status, reaping exited agents",
	Args:  cobra.NoArgs,
	RunE:  withApp(runStatus),
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", formatTable, "Output format: table, json or yaml")
}

func runList(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	if _, err := a.orch.Reaper().Reap(ctx); err != nil {
		a.logger.Warn("reap before list", "err", err)
	}
	tasks, err := a.project.DB.ListTasks(ctx)
	if err != nil {
		return err
	}
	return writeTasks(cmd.OutOrStdout(), listOutput, tasks, time.Now())
}

func runStatus(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	res, err := a.orch.Reaper().Reap(ctx)
	if err != nil {
		return err
	}
	tasks, err := a.project.DB.ListTasks(ctx)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}
	fmt.Print(formatStatus(tasks))
	fmt.Print(reapedNote(len(res.Reaped)))
	return nil
}

// reapedNote reports sessions found dead by the reap before status. Those
// tasks went back to idle, so the note speaks of agents, not finished work.
func reapedNote(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("\n(%d agent(s) exited since last check)\n", n)
}

// formatStatus renders one line per task with its live session, if any.
func formatStatus(tasks []models.Task) string {
	icons := map[models.TaskStatus]string{
		models.TaskStatusIdle:    "○",
		models.TaskStatusRunning: "▶",
		models.TaskStatusDone:    "✓",
	}
	var b strings.Builder
	for _, t := range tasks {
		line := fmt.Sprintf("%s %-20s %s", icons[t.Status], t.Name, statusColor(t.Status).Sprint(t.Status))
		if t.Status == models.TaskStatusRunning && t.SessionName != "" {
			line += fmt.Sprintf("  (tmux: %s)", t.SessionName)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
