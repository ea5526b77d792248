package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"idle is valid", TaskStatusIdle, true},
		{"running is valid", TaskStatusRunning, true},
		{"done is valid", TaskStatusDone, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"error is not a status", TaskStatus("error"), false},
		{"typo status is invalid", TaskStatus("runing"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	statuses := []TaskStatus{TaskStatusIdle, TaskStatusRunning, TaskStatusDone}
	allowed := map[[2]TaskStatus]bool{
		{TaskStatusIdle, TaskStatusRunning}: true,
		{TaskStatusRunning, TaskStatusIdle}: true,
		{TaskStatusIdle, TaskStatusDone}:    true,
		{TaskStatusDone, TaskStatusRunning}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]TaskStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}

	if TaskStatus("bogus").CanTransitionTo(TaskStatusIdle) {
		t.Error("unknown status should not transition anywhere")
	}
}

func TestTask_HasIssue(t *testing.T) {
	task := &Task{Name: "fix-auth"}
	if task.HasIssue() {
		t.Error("task without issue ref reported HasIssue")
	}
	task.IssueRef = "https://github.com/acme/app/issues/7"
	if !task.HasIssue() {
		t.Error("task with issue ref reported !HasIssue")
	}
}

func TestTask_Age(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	task := &Task{CreatedAt: created}

	tests := []struct {
		after time.Duration
		want  string
	}{
		{-time.Second, "0s"},
		{45 * time.Second, "45s"},
		{3 * time.Minute, "3m"},
		{2*time.Hour + 59*time.Minute, "2h"},
		{50 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		if got := task.Age(created.Add(tt.after)); got != tt.want {
			t.Errorf("Age(+%v) = %q, want %q", tt.after, got, tt.want)
		}
	}
}
