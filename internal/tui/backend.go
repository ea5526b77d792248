package tui

import (
	"context"
	"os/exec"

	"github.com/iaptsiauri/pit/internal/git"
	"github.com/iaptsiauri/pit/internal/gitinfo"
	"github.com/iaptsiauri/pit/internal/lifecycle"
	"github.com/iaptsiauri/pit/internal/names"
	"github.com/iaptsiauri/pit/internal/state"
	"github.com/iaptsiauri/pit/pkg/models"
)

// Backend is what the dashboard needs from the rest of pit.
type Backend interface {
	// Tasks reaps exited sessions and returns every task.
	Tasks(ctx context.Context) ([]*models.Task, error)
	Create(ctx context.Context, opts lifecycle.CreateOptions) (*models.Task, error)
	// Launch starts the task's agent without attaching.
	Launch(ctx context.Context, name string) (*lifecycle.LaunchResult, error)
	Stop(ctx context.Context, name string) (*models.Task, error)
	Done(ctx context.Context, name string) (*models.Task, error)
	Delete(ctx context.Context, name string) error
	// AttachCommand returns the command that attaches to a session.
	AttachCommand(session string) *exec.Cmd
	// Reconcile reaps one task after the user detaches from it.
	Reconcile(ctx context.Context, name string) error
	// Changes summarizes the task branch against the main branch.
	Changes(task *models.Task) gitinfo.Info
	// SuggestName returns a free random task name.
	SuggestName(ctx context.Context) string
}

// Attacher builds attach commands for sessions.
type Attacher interface {
	AttachCommand(name string) *exec.Cmd
}

// Service adapts the orchestrator and store to Backend.
type Service struct {
	Orchestrator *lifecycle.Orchestrator
	Store        state.TaskReader
	Sessions     Attacher
	RepoPath     string
}

// Tasks implements Backend.
func (s *Service) Tasks(ctx context.Context) ([]*models.Task, error) {
	if _, err := s.Orchestrator.Reaper().Reap(ctx); err != nil {
		return nil, err
	}
	tasks, err := s.Store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Task, len(tasks))
	for i := range tasks {
		out[i] = &tasks[i]
	}
	return out, nil
}

// Create implements Backend.
func (s *Service) Create(ctx context.Context, opts lifecycle.CreateOptions) (*models.Task, error) {
	return s.Orchestrator.Create(ctx, opts)
}

// Launch implements Backend.
func (s *Service) Launch(ctx context.Context, name string) (*lifecycle.LaunchResult, error) {
	return s.Orchestrator.Launch(ctx, name, lifecycle.LaunchOptions{})
}

// Stop implements Backend.
func (s *Service) Stop(ctx context.Context, name string) (*models.Task, error) {
	return s.Orchestrator.Stop(ctx, name)
}

// Done implements Backend.
func (s *Service) Done(ctx context.Context, name string) (*models.Task, error) {
	return s.Orchestrator.Done(ctx, name)
}

// Delete implements Backend.
func (s *Service) Delete(ctx context.Context, name string) error {
	return s.Orchestrator.Delete(ctx, name)
}

// AttachCommand implements Backend.
func (s *Service) AttachCommand(session string) *exec.Cmd {
	return s.Sessions.AttachCommand(session)
}

// Reconcile implements Backend.
func (s *Service) Reconcile(ctx context.Context, name string) error {
	task, err := s.Store.GetTaskByName(ctx, name)
	if err != nil {
		return err
	}
	_, err = s.Orchestrator.Reaper().ReapTask(ctx, task)
	return err
}

// Changes implements Backend.
func (s *Service) Changes(task *models.Task) gitinfo.Info {
	return gitinfo.Gather(git.NewRunner(s.RepoPath), task.Branch, git.NewRunner(task.Worktree), task.Worktree)
}

// SuggestName implements Backend.
func (s *Service) SuggestName(ctx context.Context) string {
	var taken []string
	if tasks, err := s.Store.ListTasks(ctx); err == nil {
		for _, t := range tasks {
			taken = append(taken, t.Name)
		}
	}
	return names.Generate(taken)
}

var _ Backend = (*Service)(nil)
