// Package lifecycle sequences the task store, workspace manager and
// session manager into the create, launch, stop, done and delete
// operations. It is the only writer callers use.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/iaptsiauri/pit/internal/agent"
	"github.com/iaptsiauri/pit/internal/reap"
	"github.com/iaptsiauri/pit/internal/state"
	"github.com/iaptsiauri/pit/internal/telemetry"
	"github.com/iaptsiauri/pit/internal/tmux"
	"github.com/iaptsiauri/pit/internal/workspace"
	"github.com/iaptsiauri/pit/pkg/models"
)

// Store is the task persistence the orchestrator needs.
type Store interface {
	state.TaskReader
	state.TaskWriter
	state.Reconciler
}

// Workspaces provisions and removes task workspaces.
type Workspaces interface {
	Provision(taskName, baseRef string) (workspace.Workspace, error)
	Teardown(ws workspace.Workspace) ([]string, error)
}

// Sessions controls tmux sessions.
type Sessions interface {
	reap.SessionLister
	Create(ctx context.Context, name, workDir string, argv []string) error
	Exists(ctx context.Context, name string) bool
	Kill(ctx context.Context, name string) error
	Attach(ctx context.Context, name string) error
}

// Checkpoints removes the checkpoint tags a task leaves in the repository.
type Checkpoints interface {
	DeleteAll(taskName string) ([]string, error)
}

// Orchestrator drives task lifecycles.
type Orchestrator struct {
	store      Store
	workspaces Workspaces
	sessions   Sessions
	reaper     *reap.Reaper
	opts       options
	logger     *log.Logger
	tracer     trace.Tracer
}

// New creates an Orchestrator.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	tracer := o.tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}

	reaper := reap.New(req.Store, req.Sessions)
	reaper.SetLogger(logger)
	reaper.SetTracer(tracer)

	return &Orchestrator{
		store:      req.Store,
		workspaces: req.Workspaces,
		sessions:   req.Sessions,
		reaper:     reaper,
		opts:       o,
		logger:     logger.WithPrefix("lifecycle"),
		tracer:     tracer,
	}
}

// Reaper returns the reaper sharing this orchestrator's store and sessions.
func (o *Orchestrator) Reaper() *reap.Reaper {
	return o.reaper
}

// DefaultAgent returns the agent applied to tasks created without one.
func (o *Orchestrator) DefaultAgent() string {
	return o.opts.defaultAgent
}

// CreateOptions describes a new task.
type CreateOptions struct {
	Name        string
	Description string
	Prompt      string
	IssueRef    string
	IssueTitle  string
	// Agent defaults to the orchestrator's default agent.
	Agent string
	// BaseRef defaults to HEAD.
	BaseRef string
}

// Create provisions the workspace and records the task as Idle. If the
// record cannot be written the workspace is torn down again.
func (o *Orchestrator) Create(ctx context.Context, opts CreateOptions) (task *models.Task, err error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "lifecycle.create", telemetry.AttrTaskName.String(opts.Name))
	defer func() { telemetry.End(span, err) }()

	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}

	// Checked up front so a duplicate never reaches git.
	if _, err := o.store.GetTaskByName(ctx, opts.Name); err == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrDuplicateName, opts.Name)
	} else if !errors.Is(err, state.ErrNotFound) {
		return nil, fmt.Errorf("look up task: %w", err)
	}

	agentID := opts.Agent
	if agentID == "" {
		agentID = o.opts.defaultAgent
	}

	ws, err := o.workspaces.Provision(opts.Name, opts.BaseRef)
	if err != nil {
		return nil, fmt.Errorf("provision workspace: %w", err)
	}

	task, err = o.store.CreateTask(ctx, state.NewTask{
		Name:        opts.Name,
		Description: opts.Description,
		Prompt:      opts.Prompt,
		IssueRef:    opts.IssueRef,
		IssueTitle:  opts.IssueTitle,
		Agent:       agentID,
		Branch:      ws.Branch,
		Worktree:    ws.Path,
	})
	if err != nil {
		createErr := fmt.Errorf("create task: %w", err)
		if _, tdErr := o.workspaces.Teardown(ws); tdErr != nil {
			return nil, errors.Join(createErr, fmt.Errorf("roll back workspace: %w", tdErr))
		}
		return nil, createErr
	}

	o.logger.Info("task created", "task", task.Name, "agent", task.Agent, "branch", task.Branch)
	return task, nil
}

// LaunchOptions controls Launch.
type LaunchOptions struct {
	// Attach hands the terminal to the session and blocks until detach.
	Attach bool
}

// LaunchResult describes what Launch did.
type LaunchResult struct {
	Task    *models.Task
	Session string
	// Command is the agent command started; zero when AlreadyRunning.
	Command agent.Command
	// AlreadyRunning is set when a live session was reused.
	AlreadyRunning bool
}

// Launch ensures the task has a live agent session, starting one if
// needed, and optionally attaches to it. A task with a resume token is
// resumed; otherwise a fresh token is minted.
func (o *Orchestrator) Launch(ctx context.Context, name string, opts LaunchOptions) (res *LaunchResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "lifecycle.launch", telemetry.AttrTaskName.String(name))
	defer func() { telemetry.End(span, err) }()

	task, err := o.store.GetTaskByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up task: %w", err)
	}
	session := tmux.SessionName(task.Name)
	span.SetAttributes(telemetry.AttrSession.String(session), telemetry.AttrAgent.String(task.Agent))

	if o.sessions.Exists(ctx, session) {
		if task.Status != models.TaskStatusRunning || task.SessionName != session {
			// The session outlived its row's status; adopt it.
			if err := o.store.MarkRunning(ctx, task.ID, session, task.ResumeToken); err != nil {
				return nil, fmt.Errorf("record session: %w", err)
			}
		}
		if task, err = o.store.GetTask(ctx, task.ID); err != nil {
			return nil, fmt.Errorf("reload task: %w", err)
		}
		res = &LaunchResult{Task: task, Session: session, AlreadyRunning: true}
		if opts.Attach {
			return res, o.attach(ctx, task, session)
		}
		return res, nil
	}

	if task.Status == models.TaskStatusRunning {
		if _, err := o.reaper.ReapTask(ctx, task); err != nil {
			return nil, err
		}
		task.Status = models.TaskStatusIdle
	}
	if !task.Status.CanTransitionTo(models.TaskStatusRunning) {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, task.Name, task.Status)
	}

	prevStatus, prevSession, prevToken := task.Status, task.SessionName, task.ResumeToken
	token := prevToken
	resume := token != ""
	if !resume {
		token = o.opts.newToken()
	}
	cmd := agent.Build(agent.Invocation{
		Agent:  task.Agent,
		Prompt: task.Prompt,
		Token:  token,
		Resume: resume,
	})
	span.SetAttributes(telemetry.AttrResumed.Bool(cmd.Resumed))

	if err := o.store.MarkRunning(ctx, task.ID, session, token); err != nil {
		return nil, fmt.Errorf("record launch: %w", err)
	}

	if err := o.sessions.Create(ctx, session, task.Worktree, cmd.Argv); err != nil {
		spawnErr := fmt.Errorf("create session: %w", err)
		if rbErr := o.store.RestoreSession(ctx, task.ID, prevStatus, prevSession, prevToken); rbErr != nil {
			return nil, errors.Join(spawnErr, rbErr)
		}
		return nil, spawnErr
	}

	o.logger.Info("session started", "task", task.Name, "session", session, "resumed", cmd.Resumed, "command", cmd.String())

	if task, err = o.store.GetTask(ctx, task.ID); err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}
	res = &LaunchResult{Task: task, Session: session, Command: cmd}
	if opts.Attach {
		return res, o.attach(ctx, task, session)
	}
	return res, nil
}

// attach blocks on the session, then reconciles the task in case the
// agent exited while attached. A session that is already gone when the
// attach starts means the agent exited right after spawning.
func (o *Orchestrator) attach(ctx context.Context, task *models.Task, session string) error {
	attachErr := o.sessions.Attach(ctx, session)
	if attachErr != nil && !errors.Is(attachErr, tmux.ErrSessionNotFound) {
		return fmt.Errorf("attach: %w", attachErr)
	}

	current, err := o.store.GetTask(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("reload task: %w", err)
	}
	if _, err := o.reaper.ReapTask(ctx, current); err != nil {
		return err
	}

	if attachErr != nil {
		return fmt.Errorf("%w: %s (agent %q) exited immediately; check that it is installed: %w",
			ErrAgentExited, task.Name, task.Agent, attachErr)
	}
	return nil
}

// Stop kills the task's session and marks it Idle. Stopping a task with
// no session is a no-op.
func (o *Orchestrator) Stop(ctx context.Context, name string) (task *models.Task, err error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "lifecycle.stop", telemetry.AttrTaskName.String(name))
	defer func() { telemetry.End(span, err) }()

	task, err = o.store.GetTaskByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up task: %w", err)
	}

	if err := o.sessions.Kill(ctx, tmux.SessionName(task.Name)); err != nil {
		return nil, fmt.Errorf("kill session: %w", err)
	}

	if task.Status == models.TaskStatusRunning {
		if err := o.store.UpdateStatus(ctx, task.ID, models.TaskStatusIdle); err != nil {
			return nil, fmt.Errorf("record stop: %w", err)
		}
		o.logger.Info("task stopped", "task", task.Name)
	}

	if task, err = o.store.GetTask(ctx, task.ID); err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}
	return task, nil
}

// Done marks an Idle task finished. A task whose agent is still running
// must be stopped first.
func (o *Orchestrator) Done(ctx context.Context, name string) (task *models.Task, err error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "lifecycle.done", telemetry.AttrTaskName.String(name))
	defer func() { telemetry.End(span, err) }()

	task, err = o.store.GetTaskByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up task: %w", err)
	}

	if task.Status == models.TaskStatusRunning {
		reaped, err := o.reaper.ReapTask(ctx, task)
		if err != nil {
			return nil, err
		}
		if reaped {
			task.Status = models.TaskStatusIdle
		}
	}

	if !task.Status.CanTransitionTo(models.TaskStatusDone) {
		if task.Status == models.TaskStatusRunning {
			return nil, fmt.Errorf("%w: %s is running; stop it first", ErrInvalidTransition, task.Name)
		}
		return nil, fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, task.Name, task.Status)
	}

	if err := o.store.UpdateStatus(ctx, task.ID, models.TaskStatusDone); err != nil {
		return nil, fmt.Errorf("record done: %w", err)
	}
	o.logger.Info("task done", "task", task.Name)

	if task, err = o.store.GetTask(ctx, task.ID); err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}
	return task, nil
}

// Delete removes the task's sessions, workspace and record. The record is
// removed even when the workspace cannot be fully cleaned up; those
// problems come back as a *CleanupError.
func (o *Orchestrator) Delete(ctx context.Context, name string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "lifecycle.delete", telemetry.AttrTaskName.String(name))
	defer func() { telemetry.End(span, err) }()

	task, err := o.store.GetTaskByName(ctx, name)
	if err != nil {
		return fmt.Errorf("look up task: %w", err)
	}

	// A live agent must be gone before its worktree disappears.
	if err := o.sessions.Kill(ctx, tmux.SessionName(task.Name)); err != nil {
		return fmt.Errorf("kill session: %w", err)
	}

	var warnings []string
	if err := o.sessions.Kill(ctx, tmux.ShellSessionName(task.Name)); err != nil {
		warnings = append(warnings, fmt.Sprintf("shell session: %v", err))
	}

	tdWarnings, tdErr := o.workspaces.Teardown(workspace.Workspace{Branch: task.Branch, Path: task.Worktree})
	warnings = append(warnings, tdWarnings...)
	if tdErr != nil {
		warnings = append(warnings, tdErr.Error())
	}

	// Tags would otherwise be picked up by a new task of the same name.
	if o.opts.checkpoints != nil {
		if _, err := o.opts.checkpoints.DeleteAll(task.Name); err != nil {
			warnings = append(warnings, fmt.Sprintf("checkpoint tags: %v", err))
		}
	}

	if err := o.store.DeleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	o.logger.Info("task deleted", "task", task.Name, "warnings", len(warnings))

	if len(warnings) > 0 {
		return &CleanupError{Task: task.Name, Warnings: warnings}
	}
	return nil
}

// Shell opens, or reuses, an interactive shell session in the task's
// worktree and returns its name.
func (o *Orchestrator) Shell(ctx context.Context, name string, attach bool) (session string, err error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "lifecycle.shell", telemetry.AttrTaskName.String(name))
	defer func() { telemetry.End(span, err) }()

	task, err := o.store.GetTaskByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("look up task: %w", err)
	}

	session = tmux.ShellSessionName(task.Name)
	if !o.sessions.Exists(ctx, session) {
		if err := o.sessions.Create(ctx, session, task.Worktree, []string{o.opts.shell}); err != nil {
			return "", fmt.Errorf("create shell session: %w", err)
		}
	}
	if attach {
		if err := o.sessions.Attach(ctx, session); err != nil {
			return session, fmt.Errorf("attach: %w", err)
		}
	}
	return session, nil
}
