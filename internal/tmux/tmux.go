// Package tmux manages agent sessions on pit's dedicated tmux server.
//
// Every command goes through `tmux -L pit`, so pit never sees or touches
// sessions on the user's default server, and the custom key bindings in
// tmux.conf apply only here.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/iaptsiauri/pit/internal/exec"
)

// DefaultSocket is the tmux socket name pit uses.
const DefaultSocket = "pit"

const (
	sessionPrefix      = "pit-"
	shellSessionPrefix = "pit-shell-"
)

var (
	// ErrSpawnFailed is returned when tmux cannot start a session.
	ErrSpawnFailed = errors.New("session spawn failed")
	// ErrSessionNotFound is returned when a named session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionName maps a task name to its agent session name.
func SessionName(taskName string) string {
	return sessionPrefix + taskName
}

// ShellSessionName maps a task name to its ad hoc shell session name.
func ShellSessionName(taskName string) string {
	return shellSessionPrefix + taskName
}

// IsPitSession reports whether a session name follows pit's conventions.
func IsPitSession(name string) bool {
	return strings.HasPrefix(name, sessionPrefix)
}

// Manager wraps the dedicated tmux server.
type Manager struct {
	runner     exec.CommandRunner
	socket     string
	configPath string
	logger     *log.Logger
}

// NewManager creates a Manager on the default socket, writing tmux.conf
// into configDir. A config that cannot be written is logged and skipped;
// tmux still works with its defaults.
func NewManager(runner exec.CommandRunner, configDir string) *Manager {
	m := &Manager{
		runner: runner,
		socket: DefaultSocket,
		logger: log.New(io.Discard),
	}
	if configDir != "" {
		path, err := EnsureConfig(configDir)
		if err != nil {
			m.logger.Warn("tmux config unavailable", "error", err)
		} else {
			m.configPath = path
		}
	}
	return m
}

// SetLogger replaces the manager's logger.
func (m *Manager) SetLogger(l *log.Logger) {
	m.logger = l.WithPrefix("tmux")
}

// SetSocket points the manager at another tmux socket name.
func (m *Manager) SetSocket(socket string) {
	m.socket = socket
}

// Available reports whether the tmux binary is installed.
func (m *Manager) Available() bool {
	_, err := m.runner.LookPath("tmux")
	return err == nil
}

func (m *Manager) args(sub ...string) []string {
	var args []string
	if m.configPath != "" {
		args = append(args, "-f", m.configPath)
	}
	args = append(args, "-L", m.socket)
	return append(args, sub...)
}

func (m *Manager) run(ctx context.Context, sub ...string) ([]byte, error) {
	return m.runner.Run(ctx, "", "tmux", m.args(sub...)...)
}

// exact prevents tmux from resolving a target by prefix, so pit-fix never
// matches pit-fix-auth.
func exact(name string) string {
	return "=" + name
}

// Create spawns a detached session whose only process is argv, started in
// workDir. When argv exits the session ends with it.
func (m *Manager) Create(ctx context.Context, name, workDir string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%w: %s: empty command", ErrSpawnFailed, name)
	}

	sub := append([]string{"new-session", "-d", "-s", name, "-c", workDir}, argv...)
	out, err := m.run(ctx, sub...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v: %s", ErrSpawnFailed, name, err, strings.TrimSpace(string(out)))
	}

	m.logger.Debug("created session", "session", name, "dir", workDir, "argv0", argv[0])
	return nil
}

// LaunchBackground starts a session without attaching to it.
func (m *Manager) LaunchBackground(ctx context.Context, name, workDir string, argv []string) error {
	return m.Create(ctx, name, workDir, argv)
}

// Exists reports whether the named session is live.
func (m *Manager) Exists(ctx context.Context, name string) bool {
	_, err := m.run(ctx, "has-session", "-t", exact(name))
	return err == nil
}

// ListLive returns the names of all sessions on the dedicated server.
// A server that is not running has no sessions, which is not an error.
// Any other failure is returned so callers never reap against a server
// they could not read.
func (m *Manager) ListLive(ctx context.Context) (map[string]bool, error) {
	out, err := m.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if exec.ExitCode(err) > 0 && noServer(out) {
			return map[string]bool{}, nil
		}
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return nil, fmt.Errorf("list tmux sessions: %w", err)
		}
		return nil, fmt.Errorf("list tmux sessions: %s: %w", msg, err)
	}

	live := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			live[line] = true
		}
	}
	return live, nil
}

// noServer reports whether tmux output means the socket has no server behind
// it: either nothing listens on it or the socket file does not exist yet.
func noServer(out []byte) bool {
	msg := string(out)
	return strings.Contains(msg, "no server running") ||
		strings.Contains(msg, "No such file or directory")
}

// ListPitSessions returns live session names that follow pit's naming, sorted.
func (m *Manager) ListPitSessions(ctx context.Context) ([]string, error) {
	live, err := m.ListLive(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for name := range live {
		if IsPitSession(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Kill terminates the named session. Killing an absent session is a no-op.
func (m *Manager) Kill(ctx context.Context, name string) error {
	if !m.Exists(ctx, name) {
		return nil
	}
	out, err := m.run(ctx, "kill-session", "-t", exact(name))
	if err != nil && m.Exists(ctx, name) {
		return fmt.Errorf("kill session %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	m.logger.Debug("killed session", "session", name)
	return nil
}

// AttachCommand returns the command that attaches the current terminal to
// the named session. It drops $TMUX so attaching from inside another tmux
// client does not trip the nesting guard.
func (m *Manager) AttachCommand(name string) *osexec.Cmd {
	cmd := m.runner.Command("", "tmux", m.args("attach-session", "-t", exact(name))...)
	cmd.Env = withoutTMUX(os.Environ())
	return cmd
}

// Attach blocks with the terminal handed to the named session until the
// user detaches or the session ends.
func (m *Manager) Attach(ctx context.Context, name string) error {
	if !m.Exists(ctx, name) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	cmd := m.AttachCommand(name)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("attach %s: %w", name, err)
	}
	return nil
}

// Capture returns the last lines of the session's visible pane history.
func (m *Manager) Capture(ctx context.Context, name string, lines int) (string, error) {
	if !m.Exists(ctx, name) {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	out, err := m.run(ctx, "capture-pane", "-p", "-t", exact(name)+":", "-S", "-"+strconv.Itoa(lines))
	if err != nil {
		return "", fmt.Errorf("capture %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func withoutTMUX(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "TMUX=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
