// Package tui provides the interactive dashboard shown by a bare `pit`.
//
// The dashboard lists the project's tasks and drives the same lifecycle
// operations as the CLI: open (launch and attach), background launch, stop,
// done, delete and new. Attaching suspends the dashboard with
// tea.ExecProcess and the task is reconciled once the user detaches.
//
// The view refreshes when the task database changes on disk (fsnotify on
// .pit/pit.db*) and on a fixed tick, which also runs the reaper so tasks
// whose agent exited drop back to idle.
//
// Usage:
//
//	m := tui.New(ctx, backend, tui.Options{WatchDir: project.PitDir})
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package tui
