package models

import (
	"fmt"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusIdle indicates no agent session is bound to the task.
	TaskStatusIdle TaskStatus = "idle"
	// TaskStatusRunning indicates an agent session was launched for the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusDone indicates the user marked the task finished.
	TaskStatusDone TaskStatus = "done"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusIdle, TaskStatusRunning, TaskStatusDone:
		return true
	default:
		return false
	}
}

// validTransitions defines the allowed status edges.
var validTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusIdle: {
		TaskStatusRunning: true, // launch
		TaskStatusDone:    true, // explicit completion
	},
	TaskStatusRunning: {
		TaskStatusIdle: true, // stop or reap
	},
	TaskStatusDone: {
		TaskStatusRunning: true, // relaunch
	},
}

// CanTransitionTo reports whether moving from s to next is a permitted edge.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	return validTransitions[s][next]
}

// Task represents a unit of work bound to one workspace and at most one
// live session.
type Task struct {
	// ID is the store-assigned identifier.
	ID int64 `json:"id" yaml:"id"`
	// Name is unique within a project and drives branch, path and session names.
	Name string `json:"name" yaml:"name"`
	// Description is optional free text shown in listings.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Prompt is handed to the agent on a fresh launch.
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	// IssueRef is an opaque issue reference, usually a URL.
	IssueRef string `json:"issue_ref,omitempty" yaml:"issue_ref,omitempty"`
	// IssueTitle is the display title of the referenced issue.
	IssueTitle string `json:"issue_title,omitempty" yaml:"issue_title,omitempty"`
	// Agent is the agent identifier used for dispatch.
	Agent string `json:"agent" yaml:"agent"`
	// Branch is the git branch owned by the task.
	Branch string `json:"branch" yaml:"branch"`
	// Worktree is the filesystem path of the task's worktree.
	Worktree string `json:"worktree" yaml:"worktree"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status" yaml:"status"`
	// ResumeToken lets agents that support it continue a previous session.
	ResumeToken string `json:"resume_token,omitempty" yaml:"resume_token,omitempty"`
	// SessionName is the tmux session last bound to the task.
	SessionName string `json:"session_name,omitempty" yaml:"session_name,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// HasIssue reports whether the task references an issue.
func (t *Task) HasIssue() bool {
	return t.IssueRef != ""
}

// Age formats how long ago the task was created, e.g. "45s", "3m", "2h", "4d".
func (t *Task) Age(now time.Time) string {
	d := now.Sub(t.CreatedAt)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", max(int(d.Seconds()), 0))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
