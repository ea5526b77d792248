package main

import (
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:     "shell <task>",
	Aliases: []string{"sh"},
	Short:   "Open a shell in a task's worktree",
	Long: `Attach to a shell session rooted in the task's worktree.

The shell runs in its own tmux session (pit-shell-<task>) next to the
agent's and survives detaching. It is killed when the task is deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runShell),
}

func runShell(cmd *cobra.Command, a *app, args []string) error {
	if err := a.requireTmux(); err != nil {
		return err
	}
	_, err := a.orch.Shell(cmd.Context(), args[0], true)
	return err
}
