package agent

import (
	"reflect"
	"testing"

	"github.com/iaptsiauri/pit/pkg/models"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name        string
		inv         Invocation
		want        []string
		wantResumed bool
	}{
		{
			name: "claude fresh with prompt",
			inv:  Invocation{Agent: "claude", Prompt: "fix login", Token: "tok-1"},
			want: []string{"claude", "--session-id", "tok-1", "fix login"},
		},
		{
			name: "claude fresh without prompt",
			inv:  Invocation{Agent: "claude", Token: "tok-1"},
			want: []string{"claude", "--session-id", "tok-1"},
		},
		{
			name:        "claude resume ignores prompt",
			inv:         Invocation{Agent: "claude", Prompt: "fix login", Token: "tok-1", Resume: true},
			want:        []string{"claude", "-r", "tok-1"},
			wantResumed: true,
		},
		{
			name: "pi fresh",
			inv:  Invocation{Agent: "pi", Prompt: "add tests"},
			want: []string{"pi", "add tests"},
		},
		{
			name: "pi fresh without prompt",
			inv:  Invocation{Agent: "pi"},
			want: []string{"pi"},
		},
		{
			name:        "pi resume",
			inv:         Invocation{Agent: "pi", Token: "tok", Resume: true},
			want:        []string{"pi", "--continue"},
			wantResumed: true,
		},
		{
			name: "codex fresh",
			inv:  Invocation{Agent: "codex", Prompt: "refactor"},
			want: []string{"codex", "refactor"},
		},
		{
			name: "codex resume falls back to fresh",
			inv:  Invocation{Agent: "codex", Prompt: "refactor", Token: "tok", Resume: true},
			want: []string{"codex", "refactor"},
		},
		{
			name: "aider fresh",
			inv:  Invocation{Agent: "aider", Prompt: "refactor"},
			want: []string{"aider", "--message", "refactor"},
		},
		{
			name: "aider without prompt",
			inv:  Invocation{Agent: "aider"},
			want: []string{"aider"},
		},
		{
			name: "amp fresh",
			inv:  Invocation{Agent: "amp", Prompt: "refactor"},
			want: []string{"amp", "--prompt", "refactor"},
		},
		{
			name: "amp without prompt",
			inv:  Invocation{Agent: "amp", Resume: true, Token: "tok"},
			want: []string{"amp"},
		},
		{
			name: "goose fresh",
			inv:  Invocation{Agent: "goose", Prompt: "refactor"},
			want: []string{"goose", "refactor"},
		},
		{
			name: "custom runs prompt through sh",
			inv:  Invocation{Agent: "custom", Prompt: "make test && echo ok"},
			want: []string{"sh", "-c", "make test && echo ok"},
		},
		{
			name: "custom without prompt prints a hint",
			inv:  Invocation{Agent: "custom"},
			want: []string{"sh", "-c", noAgentMessage},
		},
		{
			name: "unknown agent uses claude shape",
			inv:  Invocation{Agent: "foo", Prompt: "fix login", Token: "tok-2"},
			want: []string{"claude", "--session-id", "tok-2", "fix login"},
		},
		{
			name: "empty agent uses claude shape",
			inv:  Invocation{Token: "tok-3"},
			want: []string{"claude", "--session-id", "tok-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.inv)
			if !reflect.DeepEqual(got.Argv, tt.want) {
				t.Errorf("Argv = %q, want %q", got.Argv, tt.want)
			}
			if got.Resumed != tt.wantResumed {
				t.Errorf("Resumed = %v, want %v", got.Resumed, tt.wantResumed)
			}
		})
	}
}

func TestBuild_ResolvesAgent(t *testing.T) {
	if got := Build(Invocation{Agent: "foo"}).Agent; got != models.AgentClaude {
		t.Errorf("Agent = %q, want claude", got)
	}
	if got := Build(Invocation{Agent: "goose"}).Agent; got != models.AgentGoose {
		t.Errorf("Agent = %q, want goose", got)
	}
}

func TestCommand_String(t *testing.T) {
	cmd := Build(Invocation{Agent: "claude", Prompt: "fix the login page", Token: "abc"})
	want := "claude --session-id abc 'fix the login page'"
	if got := cmd.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
