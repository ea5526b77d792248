package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/exec"
	"github.com/iaptsiauri/pit/internal/project"
	"github.com/iaptsiauri/pit/internal/tmux"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pit in the current repository",
	Long: `Initialize pit in the enclosing git repository.

This command:
  - Creates the .pit directory and its task database
  - Adds .pit/ to .gitignore unless it is already ignored
  - Checks that git and tmux are installed

Other commands initialize the project on first use, so running init is
optional.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	start, err := startDir()
	if err != nil {
		return err
	}
	root, err := project.FindRoot(start)
	if err != nil {
		return err
	}

	proj, err := project.Init(root)
	if err != nil {
		return err
	}
	defer proj.Close()

	printOK("Initialized pit in %s", proj.PitDir)

	runner := exec.NewRunner()
	if _, err := runner.LookPath("tmux"); err != nil {
		printStatus("⚠", "tmux not found; install it before launching agents", color.FgYellow)
	} else {
		printOK("tmux found (sessions run on socket %q)", tmux.DefaultSocket)
	}
	fmt.Println()
	fmt.Println("Create a task with: pit new <name> -p \"<prompt>\"")
	return nil
}
