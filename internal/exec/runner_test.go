package exec

import (
	"context"
	"strings"
	"testing"
)

func TestExecRunner_Run(t *testing.T) {
	r := NewRunner()
	if _, err := r.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	out, err := r.Run(context.Background(), dir, "sh", "-c", "pwd; echo oops >&2")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(string(out), "oops") {
		t.Errorf("expected stderr in combined output, got %q", out)
	}
}

func TestExitCode(t *testing.T) {
	r := NewRunner()
	if _, err := r.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	_, err := r.Run(context.Background(), "", "sh", "-c", "exit 3")
	if got := ExitCode(err); got != 3 {
		t.Errorf("ExitCode() = %d, want 3", got)
	}

	_, err = r.Run(context.Background(), "", "definitely-not-a-real-binary-pit")
	if got := ExitCode(err); got != -1 {
		t.Errorf("ExitCode() for missing binary = %d, want -1", got)
	}
}

func TestExecRunner_Command(t *testing.T) {
	cmd := NewRunner().Command("/tmp", "tmux", "attach", "-t", "pit-x")
	if cmd.Dir != "/tmp" {
		t.Errorf("Dir = %q", cmd.Dir)
	}
	if strings.Join(cmd.Args, " ") != "tmux attach -t pit-x" {
		t.Errorf("Args = %v", cmd.Args)
	}
}
