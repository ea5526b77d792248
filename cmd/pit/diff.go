package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/git"
	"github.com/iaptsiauri/pit/internal/gitinfo"
)

var (
	diffStat   bool
	diffOutput string
)

var diffCmd = &cobra.Command{
	Use:   "diff <task>",
	Short: "Show a task's changes against the main branch",
	Long: `Show what the task branch changed since it forked from the main branch
(main...pit/<task>), followed by uncommitted changes in the worktree.

The main branch is origin's HEAD when known, otherwise main, master or
develop.

Examples:
  pit diff fix-auth           # Stat summary and full patch
  pit diff fix-auth --stat    # Stat summary only
  pit diff fix-auth -o json   # Commits and per-file counts as JSON`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runDiff),
}

func init() {
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "Only show the --stat summary")
	diffCmd.Flags().StringVarP(&diffOutput, "output", "o", "", "Print a summary as json or yaml instead of a patch")
}

func runDiff(cmd *cobra.Command, a *app, args []string) error {
	task, err := a.project.DB.GetTaskByName(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("task %q: %w", args[0], err)
	}

	repo := git.NewRunner(a.project.Root)
	var wt *git.ExecRunner
	if _, err := os.Stat(task.Worktree); err == nil {
		wt = git.NewRunner(task.Worktree)
	}

	if diffOutput != "" {
		var info gitinfo.Info
		if wt != nil {
			info = gitinfo.Gather(repo, task.Branch, wt, task.Worktree)
		} else {
			info = gitinfo.Gather(repo, task.Branch, nil, "")
		}
		return writeStructured(cmd.OutOrStdout(), diffOutput, info)
	}

	base := gitinfo.DetectMainBranch(repo)
	rangeSpec := base + "..." + task.Branch

	stat, err := repo.DiffStat(rangeSpec)
	if err != nil {
		return err
	}
	if stat == "" {
		fmt.Printf("No committed changes on branch '%s' vs '%s'\n", task.Branch, base)
	} else {
		fmt.Println(stat)
		if !diffStat {
			patch, err := repo.DiffRange(rangeSpec)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Println(patch)
		}
	}

	if wt == nil {
		return nil
	}
	uncommitted, err := wt.DiffWorkingTree()
	if err != nil {
		a.logger.Warn("diff worktree", "task", task.Name, "err", err)
		return nil
	}
	if uncommitted != "" {
		fmt.Println()
		printWarn("Uncommitted changes in %s:", task.Worktree)
		if !diffStat {
			fmt.Println(uncommitted)
		}
	}
	return nil
}
