package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/tmux"
	"github.com/iaptsiauri/pit/internal/workspace"
	"github.com/iaptsiauri/pit/pkg/models"
)

var (
	cleanupDryRun bool
	cleanupForce  bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove worktrees, branches and sessions left behind by deleted tasks",
	Long: `Find pit artifacts that no task owns and remove them.

This command:
  - Reconciles running tasks whose sessions have exited
  - Finds worktrees under .pit/worktrees and pit/* branches with no task
  - Finds pit sessions on the pit tmux server with no running task
  - Removes them after confirmation

Examples:
  pit cleanup --dry-run   # Show what would be removed
  pit cleanup -f          # Remove without asking`,
	Args: cobra.NoArgs,
	RunE: withApp(runCleanup),
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupDryRun, "dry-run", "n", false, "Only list what would be removed")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Do not ask for confirmation")
}

// cleanupPlan is the set of orphaned artifacts found by planCleanup.
type cleanupPlan struct {
	Workspaces []workspace.Workspace
	Sessions   []string
}

func (p cleanupPlan) empty() bool {
	return len(p.Workspaces) == 0 && len(p.Sessions) == 0
}

func runCleanup(cmd *cobra.Command, a *app, _ []string) error {
	ctx := cmd.Context()

	if _, err := a.orch.Reaper().Reap(ctx); err != nil {
		printWarn("Could not reconcile sessions: %v", err)
	}

	tasks, err := a.project.DB.ListTasks(ctx)
	if err != nil {
		return err
	}
	orphans, err := a.workspaces.Orphans(taskNames(tasks))
	if err != nil {
		return err
	}

	var sessions []string
	if a.sessions.Available() {
		live, err := a.sessions.ListPitSessions(ctx)
		if err != nil {
			printWarn("Could not list tmux sessions: %v", err)
		}
		sessions = straySessions(live, tasks)
	}

	plan := cleanupPlan{Workspaces: orphans, Sessions: sessions}
	if plan.empty() {
		printOK("Nothing to clean up")
		return nil
	}

	printPlan(plan)
	if cleanupDryRun {
		return nil
	}
	if !cleanupForce {
		ok, err := confirm(os.Stdin, os.Stdout, "Remove these?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	failed := applyCleanup(ctx, a, plan)
	if failed > 0 {
		return fmt.Errorf("%d item(s) could not be removed", failed)
	}
	printOK("Cleanup complete")
	return nil
}

func printPlan(p cleanupPlan) {
	if len(p.Workspaces) > 0 {
		fmt.Println("Orphaned workspaces:")
		for _, ws := range p.Workspaces {
			fmt.Printf("  %s  %s\n", ws.Branch, ws.Path)
		}
	}
	if len(p.Sessions) > 0 {
		fmt.Println("Stray tmux sessions:")
		for _, s := range p.Sessions {
			fmt.Printf("  %s\n", s)
		}
	}
}

func applyCleanup(ctx context.Context, a *app, p cleanupPlan) int {
	failed := 0
	for _, s := range p.Sessions {
		if err := a.sessions.Kill(ctx, s); err != nil {
			printWarn("kill %s: %v", s, err)
			failed++
		}
	}
	for _, ws := range p.Workspaces {
		warnings, err := a.workspaces.Teardown(ws)
		for _, w := range warnings {
			printWarn("%s", w)
		}
		if err != nil {
			printWarn("remove %s: %v", ws.Path, err)
			failed++
		}
	}
	return failed
}

func taskNames(tasks []models.Task) []string {
	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = t.Name
	}
	return names
}

// straySessions returns pit sessions that no running task owns. A task's
// shell session is kept while the task exists.
func straySessions(live []string, tasks []models.Task) []string {
	owned := make(map[string]bool, 2*len(tasks))
	for _, t := range tasks {
		owned[tmux.ShellSessionName(t.Name)] = true
		if t.Status == models.TaskStatusRunning && t.SessionName != "" {
			owned[t.SessionName] = true
		}
	}
	var stray []string
	for _, s := range live {
		if tmux.IsPitSession(s) && !owned[s] {
			stray = append(stray, s)
		}
	}
	return stray
}
