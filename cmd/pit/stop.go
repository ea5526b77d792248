package main

import (
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop <task>",
	Short: "Stop a task's agent (kills its tmux session)",
	Long: `Kill the task's agent session and mark the task idle.

The worktree, branch and resume token are kept, so 'pit open' picks the
conversation back up.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runStop),
}

var doneCmd = &cobra.Command{
	Use:   "done <task>",
	Short: "Mark a task done",
	Long: `Mark an idle task done. Running tasks must be stopped first.

Done tasks keep their worktree and branch; relaunching one makes it
running again.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runDone),
}

func runStop(cmd *cobra.Command, a *app, args []string) error {
	task, err := a.orch.Stop(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printOK("Stopped task '%s' (status: %s)", task.Name, task.Status)
	return nil
}

func runDone(cmd *cobra.Command, a *app, args []string) error {
	task, err := a.orch.Done(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printOK("Task '%s' marked done", task.Name)
	return nil
}
