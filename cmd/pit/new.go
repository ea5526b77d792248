package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/issues"
	"github.com/iaptsiauri/pit/internal/lifecycle"
	"github.com/iaptsiauri/pit/internal/names"
)

var (
	newDescription string
	newPrompt      string
	newIssue       string
	newAgent       string
	newBase        string
	newRun         bool
)

var newCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a task (branch + worktree)",
	Long: `Create a task: a pit/<name> branch checked out into .pit/worktrees/<name>.

Names may contain letters, digits, '-' and '_'. Without a name a random
adjective-noun name is picked.

With --issue, the Linear or GitHub issue is fetched and, unless --prompt is
given, its title and description become the agent's prompt.

Examples:
  pit new fix-auth -p "fix the login timeout"
  pit new --issue https://github.com/acme/app/issues/42
  pit new spike -a codex --base origin/main --run`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(runNew),
}

func init() {
	newCmd.Flags().StringVarP(&newDescription, "description", "d", "", "Short description shown in listings")
	newCmd.Flags().StringVarP(&newPrompt, "prompt", "p", "", "Prompt sent to the agent on first launch")
	newCmd.Flags().StringVarP(&newIssue, "issue", "i", "", "Linear or GitHub issue URL")
	newCmd.Flags().StringVarP(&newAgent, "agent", "a", "", "Agent to use (claude, pi, codex, aider, amp, goose, custom)")
	newCmd.Flags().StringVarP(&newBase, "base", "b", "", "Ref to branch from (default: config defaults.base_ref, then HEAD)")
	newCmd.Flags().BoolVar(&newRun, "run", false, "Launch the agent in the background after creating")
}

func runNew(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()

	opts := lifecycle.CreateOptions{
		Description: newDescription,
		Prompt:      newPrompt,
		IssueRef:    newIssue,
		Agent:       newAgent,
		BaseRef:     newBase,
	}
	if opts.BaseRef == "" {
		opts.BaseRef = a.cfg.Defaults.BaseRef
	}

	if len(args) > 0 {
		opts.Name = args[0]
	} else {
		tasks, err := a.project.DB.ListTasks(ctx)
		if err != nil {
			return err
		}
		taken := make([]string, 0, len(tasks))
		for _, t := range tasks {
			taken = append(taken, t.Name)
		}
		opts.Name = names.Generate(taken)
	}

	if newIssue != "" {
		client := issues.NewClient(a.cfg.Linear.APIKey, a.cfg.GitHub.Token)
		issue, err := client.Fetch(ctx, newIssue)
		if err != nil {
			// The task is still useful without the issue details.
			printWarn("could not fetch issue: %v", err)
		} else {
			opts.IssueTitle = issue.DisplayTitle()
			if opts.Prompt == "" {
				opts.Prompt = issues.Prompt(issue)
			}
			if opts.Description == "" {
				opts.Description = issue.Title
			}
		}
	}

	task, err := a.orch.Create(ctx, opts)
	if err != nil {
		return err
	}

	printOK("Created task '%s' on branch '%s' (agent: %s)", task.Name, task.Branch, task.Agent)
	fmt.Printf("  worktree: %s\n", task.Worktree)
	if task.IssueTitle != "" {
		fmt.Printf("  issue:    %s\n", task.IssueTitle)
	}
	if task.Prompt != "" {
		fmt.Printf("  prompt:   %s\n", firstLine(task.Prompt))
	}

	if !newRun {
		fmt.Printf("\nLaunch it with: pit open %s\n", task.Name)
		return nil
	}
	if err := a.requireTmux(); err != nil {
		return err
	}
	res, err := a.orch.Launch(ctx, task.Name, lifecycle.LaunchOptions{})
	if err != nil {
		return err
	}
	printLaunched(res)
	return nil
}
