package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/lifecycle"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:     "delete <task>",
	Aliases: []string{"rm"},
	Short:   "Delete a task, its worktree and its branch",
	Long: `Delete a task.

This command:
  - Kills the task's agent and shell sessions
  - Removes the worktree and the pit/<task> branch
  - Deletes the task's checkpoint tags
  - Removes the task record

Unmerged work on the branch is lost. Use --force to skip the confirmation.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runDelete),
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	task, err := a.project.DB.GetTaskByName(ctx, name)
	if err != nil {
		return fmt.Errorf("task %q: %w", name, err)
	}

	if !deleteForce {
		question := fmt.Sprintf("Delete task '%s' and branch %s?", task.Name, task.Branch)
		ok, err := confirm(os.Stdin, os.Stdout, question)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Delete cancelled.")
			return nil
		}
	}

	err = a.orch.Delete(ctx, name)
	var cleanup *lifecycle.CleanupError
	switch {
	case errors.As(err, &cleanup):
		for _, w := range cleanup.Warnings {
			printWarn("%s", w)
		}
	case err != nil:
		return err
	}


	printOK("Deleted task '%s'", name)
	return nil
}
