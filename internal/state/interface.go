package state

import (
	"context"
	"io"

	"github.com/iaptsiauri/pit/pkg/models"
)

// TaskReader is the read API exposed to listings and the dashboard.
type TaskReader interface {
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	GetTaskByName(ctx context.Context, name string) (*models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	ListTasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error)
}

// TaskWriter handles task mutations. Every method is one transaction.
type TaskWriter interface {
	CreateTask(ctx context.Context, nt NewTask) (*models.Task, error)
	UpdateStatus(ctx context.Context, id int64, status models.TaskStatus) error
	UpdateSession(ctx context.Context, id int64, sessionName, resumeToken string) error
	MarkRunning(ctx context.Context, id int64, sessionName, resumeToken string) error
	RestoreSession(ctx context.Context, id int64, status models.TaskStatus, sessionName, resumeToken string) error
	DeleteTask(ctx context.Context, id int64) error
}

// Reconciler is the narrow surface the reaper needs.
type Reconciler interface {
	ListTasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error)
	MarkIdleIfRunning(ctx context.Context, id int64, sessionName string) (bool, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
	Version() (int, error)
}

// TaskStore composes the focused interfaces above.
type TaskStore interface {
	io.Closer
	Migrator
	TaskReader
	TaskWriter
	Reconciler
}

// Compile-time verification that DB implements all interfaces.
var (
	_ TaskStore  = (*DB)(nil)
	_ TaskReader = (*DB)(nil)
	_ TaskWriter = (*DB)(nil)
	_ Reconciler = (*DB)(nil)
	_ Migrator   = (*DB)(nil)
)
