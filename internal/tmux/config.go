package tmux

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// configFile rebinds the prefix to C-] so it does not collide with agents
// that capture C-b, and keeps a detach hint in the status bar.
const configFile = `# pit tmux config, prefix is Ctrl-]
unbind C-b
set -g prefix C-]
bind C-] send-prefix
bind d detach-client

set -g status on
set -g status-style 'bg=#1a1a2e,fg=#888888'
set -g status-left '#[fg=#e0af68,bold] pit #[fg=#555555]| '
set -g status-left-length 20
set -g status-right '#[fg=#555555]| #[fg=#e0af68]Ctrl-] d#[fg=#888888] to detach '
set -g status-right-length 40

set -g default-terminal 'xterm-256color'
set -ga terminal-overrides ',xterm-256color:Tc'
set -g mouse on
`

// DefaultConfigDir returns $XDG_DATA_HOME/pit, ~/.local/share/pit, or a
// directory under the OS temp dir when no home is available.
func DefaultConfigDir() string {
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return filepath.Join(dataDir, "pit")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "pit")
	}
	return filepath.Join(os.TempDir(), "pit")
}

// EnsureConfig writes tmux.conf into dir unless an identical file is
// already there, and returns its path.
func EnsureConfig(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create tmux config dir: %w", err)
	}

	path := filepath.Join(dir, "tmux.conf")
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, []byte(configFile)) {
		return path, nil
	}

	if err := os.WriteFile(path, []byte(configFile), 0644); err != nil {
		return "", fmt.Errorf("write tmux config: %w", err)
	}
	return path, nil
}
