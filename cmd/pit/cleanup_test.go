package main

import (
	"reflect"
	"testing"

	"github.com/iaptsiauri/pit/internal/tmux"
	"github.com/iaptsiauri/pit/pkg/models"
)

func TestStraySessions(t *testing.T) {
	tasks := []models.Task{
		{Name: "alpha", Status: models.TaskStatusRunning, SessionName: tmux.SessionName("alpha")},
		{Name: "beta", Status: models.TaskStatusIdle},
	}

	tests := []struct {
		name string
		live []string
		want []string
	}{
		{
			name: "running session is owned",
			live: []string{tmux.SessionName("alpha")},
		},
		{
			name: "idle task session is stray",
			live: []string{tmux.SessionName("beta")},
			want: []string{tmux.SessionName("beta")},
		},
		{
			name: "shell sessions of existing tasks are kept",
			live: []string{tmux.ShellSessionName("alpha"), tmux.ShellSessionName("beta")},
		},
		{
			name: "sessions of deleted tasks are stray",
			live: []string{tmux.SessionName("gone"), tmux.ShellSessionName("gone")},
			want: []string{tmux.SessionName("gone"), tmux.ShellSessionName("gone")},
		},
		{
			name: "foreign sessions are ignored",
			live: []string{"main", "work"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := straySessions(tt.live, tasks)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("straySessions = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskNames(t *testing.T) {
	got := taskNames([]models.Task{{Name: "a"}, {Name: "b"}})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("taskNames = %v", got)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string][]string{
		"init": nil, "new": nil, "list": {"ls"}, "status": nil, "open": nil,
		"run": nil, "stop": nil, "done": nil, "delete": {"rm"}, "shell": {"sh"},
		"diff": nil, "watch": nil, "checkpoint": nil, "checkpoints": nil,
		"rollback": nil, "cleanup": nil, "issues": nil, "config": nil, "version": nil,
	}
	for name, aliases := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered (err %v)", name, err)
			continue
		}
		for _, alias := range aliases {
			if c, _, err := rootCmd.Find([]string{alias}); err != nil || c != cmd {
				t.Errorf("alias %q does not resolve to %q", alias, name)
			}
		}
	}

	for _, sub := range []string{"get", "set", "unset", "list", "path"} {
		if c, _, err := rootCmd.Find([]string{"config", sub}); err != nil || c.Name() != sub {
			t.Errorf("config %s not registered", sub)
		}
	}
}
