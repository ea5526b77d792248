package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/tmux"
	"github.com/iaptsiauri/pit/pkg/models"
)

var (
	watchLines    int
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <task>",
	Short: "Watch live output from a running task",
	Long: `Repaint the last lines of the agent's pane until the agent exits or
Ctrl-C is pressed. Watching does not attach, so nothing typed reaches the
agent.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runWatch),
}

func init() {
	watchCmd.Flags().IntVarP(&watchLines, "lines", "n", 30, "Number of lines to show")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 500*time.Millisecond, "Refresh interval")
}

func runWatch(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	task, err := a.project.DB.GetTaskByName(ctx, name)
	if err != nil {
		return fmt.Errorf("task %q: %w", name, err)
	}
	if task.Status != models.TaskStatusRunning || task.SessionName == "" {
		return fmt.Errorf("task '%s' is not running (status: %s)", name, task.Status)
	}

	title := color.New(color.FgYellow, color.Bold).Sprint(name)
	running := color.GreenString("▶ running")

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		out, err := a.sessions.Capture(ctx, task.SessionName, watchLines)
		if errors.Is(err, tmux.ErrSessionNotFound) {
			fmt.Println(color.YellowString("\n(agent exited)"))
			// Reconcile now rather than on the next list.
			if _, err := a.orch.Reaper().ReapTask(ctx, task); err != nil {
				a.logger.Warn("reap after watch", "task", name, "err", err)
			}
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Print("\x1b[2J\x1b[H")
		fmt.Printf("%s  %s  (Ctrl-C to stop)\n\n%s", title, running, out)

		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
		}
	}
}
