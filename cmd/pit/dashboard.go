package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/tui"
)

// runDashboard opens the interactive dashboard; it is what plain `pit` runs.
func runDashboard(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireTmux(); err != nil {
		return err
	}

	backend := &tui.Service{
		Orchestrator: a.orch,
		Store:        a.project.DB,
		Sessions:     a.sessions,
		RepoPath:     a.project.Root,
	}
	m := tui.New(ctx, backend, tui.Options{
		WatchDir:        a.project.PitDir,
		RefreshInterval: a.cfg.Dashboard.RefreshInterval,
		DefaultAgent:    a.orch.DefaultAgent(),
		Logger:          a.logger,
	})

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
