// Package reap reconciles persisted task status with the sessions that are
// actually alive on the tmux server.
package reap

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/iaptsiauri/pit/internal/state"
	"github.com/iaptsiauri/pit/internal/telemetry"
	"github.com/iaptsiauri/pit/internal/tmux"
	"github.com/iaptsiauri/pit/pkg/models"
)

// SessionLister reports the live sessions on the tmux server.
type SessionLister interface {
	ListLive(ctx context.Context) (map[string]bool, error)
}

// Result summarizes one reconciliation pass.
type Result struct {
	// Checked is the number of Running tasks examined.
	Checked int
	// Reaped names the tasks moved back to Idle.
	Reaped []string
}

// Reaper moves Running tasks whose session has exited back to Idle.
// It never marks a task Done.
type Reaper struct {
	store    state.Reconciler
	sessions SessionLister
	logger   *log.Logger
	tracer   trace.Tracer
}

// New creates a Reaper.
func New(store state.Reconciler, sessions SessionLister) *Reaper {
	return &Reaper{
		store:    store,
		sessions: sessions,
		logger:   log.New(io.Discard),
		tracer:   telemetry.Tracer(),
	}
}

// SetLogger sets the logger.
func (r *Reaper) SetLogger(l *log.Logger) {
	r.logger = l.WithPrefix("reap")
}

// SetTracer overrides the global tracer.
func (r *Reaper) SetTracer(t trace.Tracer) {
	r.tracer = t
}

// Reap runs one pass. Running it twice in a row changes nothing the
// second time.
func (r *Reaper) Reap(ctx context.Context) (res Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, r.tracer, "reap.pass")
	defer func() {
		span.SetAttributes(telemetry.AttrReaped.Int(len(res.Reaped)))
		telemetry.End(span, err)
	}()

	running, err := r.store.ListTasksByStatus(ctx, models.TaskStatusRunning)
	if err != nil {
		return res, fmt.Errorf("list running tasks: %w", err)
	}
	res.Checked = len(running)
	if len(running) == 0 {
		return res, nil
	}

	live, err := r.sessions.ListLive(ctx)
	if err != nil {
		return res, fmt.Errorf("list live sessions: %w", err)
	}

	for i := range running {
		reaped, err := r.reconcile(ctx, &running[i], live)
		if err != nil {
			return res, err
		}
		if reaped {
			res.Reaped = append(res.Reaped, running[i].Name)
		}
	}
	return res, nil
}

// ReapTask reconciles a single task, typically right after an attach
// returns. It reports whether the task was moved to Idle.
func (r *Reaper) ReapTask(ctx context.Context, task *models.Task) (bool, error) {
	if task.Status != models.TaskStatusRunning {
		return false, nil
	}
	live, err := r.sessions.ListLive(ctx)
	if err != nil {
		return false, fmt.Errorf("list live sessions: %w", err)
	}
	return r.reconcile(ctx, task, live)
}

func (r *Reaper) reconcile(ctx context.Context, task *models.Task, live map[string]bool) (bool, error) {
	session := sessionFor(task)
	if live[session] {
		return false, nil
	}

	// Conditional on status and session so a concurrent relaunch wins.
	changed, err := r.store.MarkIdleIfRunning(ctx, task.ID, task.SessionName)
	if err != nil {
		return false, fmt.Errorf("reap %s: %w", task.Name, err)
	}
	if changed {
		r.logger.Info("session exited, task idle", "task", task.Name, "session", session)
	}
	return changed, nil
}

// sessionFor returns the session bound to a task, deriving it from the name
// for rows written before a session was recorded.
func sessionFor(task *models.Task) string {
	if task.SessionName != "" {
		return task.SessionName
	}
	return tmux.SessionName(task.Name)
}
