package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/checkpoint"
	"github.com/iaptsiauri/pit/pkg/models"
)

var (
	checkpointsOutput string
	rollbackTo        int
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint <task>",
	Short: "Save a checkpoint of a task's current state",
	Long: `Commit any uncommitted work in the task's worktree and tag the branch
head as pit/checkpoint/<task>/<n>.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runCheckpoint),
}

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints <task>",
	Short: "List a task's checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runCheckpoints),
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <task> [n]",
	Short: "Roll a task back to its last checkpoint (or checkpoint n)",
	Long: `Hard-reset the task's worktree to a checkpoint.

Current work is committed and tagged pit/pre-rollback/<task> first, so a
rollback can itself be undone. The task must not be running.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withApp(runRollback),
}

func init() {
	checkpointsCmd.Flags().StringVarP(&checkpointsOutput, "output", "o", formatTable, "Output format: table, json or yaml")
	rollbackCmd.Flags().IntVarP(&rollbackTo, "to", "t", 0, "Checkpoint number (default: latest)")
}

func runCheckpoint(cmd *cobra.Command, a *app, args []string) error {
	task, err := a.project.DB.GetTaskByName(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("task %q: %w", args[0], err)
	}

	n, err := a.checkpoints.Create(task.Name, task.Branch, task.Worktree)
	if err != nil {
		return err
	}
	printOK("Checkpoint #%d saved for '%s'", n, task.Name)

	cps, err := a.checkpoints.List(task.Name)
	if err != nil {
		return err
	}
	fmt.Println()
	printCheckpoints(cps, n)
	return nil
}

func runCheckpoints(cmd *cobra.Command, a *app, args []string) error {
	cps, err := a.checkpoints.List(args[0])
	if err != nil {
		return err
	}
	if checkpointsOutput != formatTable {
		if cps == nil {
			cps = []checkpoint.Checkpoint{}
		}
		return writeStructured(cmd.OutOrStdout(), checkpointsOutput, cps)
	}
	if len(cps) == 0 {
		fmt.Printf("No checkpoints for '%s'. Create one with: pit checkpoint %s\n", args[0], args[0])
		return nil
	}
	printCheckpoints(cps, 0)
	return nil
}

func runRollback(cmd *cobra.Command, a *app, args []string) error {
	task, err := a.project.DB.GetTaskByName(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("task %q: %w", args[0], err)
	}
	if task.Status == models.TaskStatusRunning {
		return fmt.Errorf("task '%s' is running; stop it first before rolling back", task.Name)
	}

	target := rollbackTo
	if len(args) == 2 {
		target, err = strconv.Atoi(args[1])
		if err != nil || target <= 0 {
			return fmt.Errorf("invalid checkpoint number %q", args[1])
		}
	}

	n, err := a.checkpoints.Rollback(task.Name, task.Worktree, target)
	if err != nil {
		return err
	}
	printOK("Rolled back '%s' to checkpoint #%d", task.Name, n)
	fmt.Printf("  Undo with: git -C %s reset --hard %s\n", task.Worktree, checkpoint.SafetyTag(task.Name))
	return nil
}

// printCheckpoints lists checkpoints, marking the one just created.
func printCheckpoints(cps []checkpoint.Checkpoint, created int) {
	fmt.Println("All checkpoints:")
	for _, cp := range cps {
		marker := ""
		if cp.Index == created {
			marker = " ← new"
		}
		fmt.Printf("  #%d: %s %s  %s%s\n", cp.Index, cp.Commit, cp.Message, cp.Age, marker)
	}
}
