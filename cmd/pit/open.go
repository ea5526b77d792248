package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/lifecycle"
	"github.com/iaptsiauri/pit/internal/tmux"
)

var openCmd = &cobra.Command{
	Use:   "open <task>",
	Short: "Launch a task's agent and attach to it",
	Long: `Launch the task's agent in its tmux session and attach the terminal.

If the agent is already running, attach to the live session instead.
Relaunching a task resumes the previous agent conversation when the agent
supports it. Detach with Ctrl-] d; the task keeps running.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runOpen),
}

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Launch a task's agent in the background",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runRun),
}

func runOpen(cmd *cobra.Command, a *app, args []string) error {
	if err := a.requireTmux(); err != nil {
		return err
	}
	_, err := a.orch.Launch(cmd.Context(), args[0], lifecycle.LaunchOptions{Attach: true})
	return err
}

func runRun(cmd *cobra.Command, a *app, args []string) error {
	if err := a.requireTmux(); err != nil {
		return err
	}
	res, err := a.orch.Launch(cmd.Context(), args[0], lifecycle.LaunchOptions{})
	if err != nil {
		return err
	}
	printLaunched(res)
	return nil
}

// printLaunched reports a background launch and how to attach to it.
func printLaunched(res *lifecycle.LaunchResult) {
	name := res.Task.Name
	if res.AlreadyRunning {
		printOK("Task '%s' is already running (tmux: %s)", name, res.Session)
	} else {
		verb := "Started"
		if res.Command.Resumed {
			verb = "Resumed"
		}
		printOK("%s task '%s' (%s) in background (tmux: %s)", verb, name, res.Task.Agent, res.Session)
		fmt.Printf("  command: %s\n", res.Command)
	}
	fmt.Printf("  Attach with: pit open %s   (or tmux -L %s attach -t %s)\n", name, tmux.DefaultSocket, res.Session)
	fmt.Println("  Detach with: Ctrl-] d")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
