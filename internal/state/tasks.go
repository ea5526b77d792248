package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iaptsiauri/pit/pkg/models"
)

// NewTask holds the fields supplied when a task row is created.
// Status always starts at idle.
type NewTask struct {
	Name        string
	Description string
	Prompt      string
	IssueRef    string
	IssueTitle  string
	Agent       string
	Branch      string
	Worktree    string
}

const taskColumns = `id, name, description, prompt, issue_ref, issue_title, agent,
	branch, worktree, status, resume_token, session_name, created_at, updated_at`

// CreateTask inserts a new idle task.
func (db *DB) CreateTask(ctx context.Context, nt NewTask) (*models.Task, error) {
	now := db.now()
	var id int64

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE name = ?", nt.Name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: check name: %w", ErrStorageIO, err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %q", ErrDuplicateName, nt.Name)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (name, description, prompt, issue_ref, issue_title, agent,
				branch, worktree, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, nt.Name, nt.Description, nt.Prompt, nt.IssueRef, nt.IssueTitle, nt.Agent,
			nt.Branch, nt.Worktree, string(models.TaskStatusIdle), formatTime(now), formatTime(now))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %q", ErrDuplicateName, nt.Name)
			}
			return fmt.Errorf("%w: insert task: %w", ErrStorageIO, err)
		}

		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%w: get task id: %w", ErrStorageIO, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return db.GetTask(ctx, id)
}

// GetTask retrieves a task by ID.
func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// GetTaskByName retrieves a task by its unique name.
func (db *DB) GetTaskByName(ctx context.Context, name string) (*models.Task, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE name = ?", name)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %q: %w", name, err)
	}
	return t, nil
}

// ListTasks returns all tasks in creation order.
func (db *DB) ListTasks(ctx context.Context) ([]models.Task, error) {
	return db.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY id")
}

// ListTasksByStatus returns tasks with the given status in creation order.
func (db *DB) ListTasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	return db.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks WHERE status = ? ORDER BY id", string(status))
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list tasks: %w", ErrStorageIO, err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate tasks: %w", ErrStorageIO, err)
	}
	return tasks, nil
}

// UpdateStatus sets the status of a task.
func (db *DB) UpdateStatus(ctx context.Context, id int64, status models.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("update status: invalid status %q", status)
	}
	return db.updateOne(ctx, "update status", id,
		"UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?",
		string(status), formatTime(db.now()), id)
}

// UpdateSession records the session name and resume token bound to a task.
func (db *DB) UpdateSession(ctx context.Context, id int64, sessionName, resumeToken string) error {
	return db.updateOne(ctx, "update session", id,
		"UPDATE tasks SET session_name = ?, resume_token = ?, updated_at = ? WHERE id = ?",
		sessionName, resumeToken, formatTime(db.now()), id)
}

// MarkRunning sets the task running and binds the session in one write.
func (db *DB) MarkRunning(ctx context.Context, id int64, sessionName, resumeToken string) error {
	return db.updateOne(ctx, "mark running", id,
		"UPDATE tasks SET status = ?, session_name = ?, resume_token = ?, updated_at = ? WHERE id = ?",
		string(models.TaskStatusRunning), sessionName, resumeToken, formatTime(db.now()), id)
}

// RestoreSession puts back a status and session binding in one write. The
// orchestrator uses it to undo MarkRunning when a session fails to start.
func (db *DB) RestoreSession(ctx context.Context, id int64, status models.TaskStatus, sessionName, resumeToken string) error {
	if !status.Valid() {
		return fmt.Errorf("restore session: invalid status %q", status)
	}
	return db.updateOne(ctx, "restore session", id,
		"UPDATE tasks SET status = ?, session_name = ?, resume_token = ?, updated_at = ? WHERE id = ?",
		string(status), sessionName, resumeToken, formatTime(db.now()), id)
}

// MarkIdleIfRunning flips a running task bound to sessionName back to idle.
// It reports whether a row changed; a task that was stopped, relaunched
// under another session, or deleted in the meantime is left alone.
func (db *DB) MarkIdleIfRunning(ctx context.Context, id int64, sessionName string) (bool, error) {
	var changed bool
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, updated_at = ?
			WHERE id = ? AND status = ? AND session_name = ?
		`, string(models.TaskStatusIdle), formatTime(db.now()), id, string(models.TaskStatusRunning), sessionName)
		if err != nil {
			return fmt.Errorf("%w: mark idle: %w", ErrStorageIO, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: mark idle: %w", ErrStorageIO, err)
		}
		changed = n > 0
		return nil
	})
	return changed, err
}

// DeleteTask removes a task row.
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	return db.updateOne(ctx, "delete task", id, "DELETE FROM tasks WHERE id = ?", id)
}

// updateOne runs a single-row mutation and maps zero affected rows to ErrNotFound.
func (db *DB) updateOne(ctx context.Context, op string, id int64, query string, args ...any) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrStorageIO, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrStorageIO, err)
		}
		if n == 0 {
			return fmt.Errorf("%s: %w: id %d", op, ErrNotFound, id)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var status, createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Prompt, &t.IssueRef, &t.IssueTitle, &t.Agent,
		&t.Branch, &t.Worktree, &status, &t.ResumeToken, &t.SessionName, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan task: %w", ErrStorageIO, err)
	}

	t.Status = models.TaskStatus(status)
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("%w: parse created_at: %w", ErrStorageIO, err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("%w: parse updated_at: %w", ErrStorageIO, err)
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
