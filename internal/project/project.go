// Package project locates the git repository pit operates on and owns its
// .pit state directory.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iaptsiauri/pit/internal/git"
	"github.com/iaptsiauri/pit/internal/state"
)

// Dir is the state directory inside the repository root.
const Dir = ".pit"

var (
	// ErrNotGitRepo is returned when no enclosing git repository exists.
	ErrNotGitRepo = errors.New("not inside a git repository")
	// ErrNotInitialized is returned by Open for repositories without .pit.
	ErrNotInitialized = errors.New("not a pit project")
)

// Project is an initialized repository with its open task store.
type Project struct {
	Root   string
	PitDir string
	DB     *state.DB
}

// Close releases the task store.
func (p *Project) Close() error {
	return p.DB.Close()
}

// FindRoot walks up from start to the directory containing .git.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrNotGitRepo, start)
		}
		dir = parent
	}
}

// Init creates .pit and its database in the repository at root, and makes
// sure git ignores it. Safe to call on an initialized project.
func Init(root string) (*Project, error) {
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return nil, fmt.Errorf("%w: %s has no .git", ErrNotGitRepo, root)
	}

	pitDir := filepath.Join(root, Dir)
	if err := os.MkdirAll(pitDir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", pitDir, err)
	}

	if err := ensureIgnored(root, git.NewRunner(root)); err != nil {
		return nil, err
	}

	db, err := state.OpenProject(root)
	if err != nil {
		return nil, err
	}
	return &Project{Root: root, PitDir: pitDir, DB: db}, nil
}

// Open opens an initialized project.
func Open(root string) (*Project, error) {
	dbPath := state.ProjectDBPath(root)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: no %s; run `pit init` first", ErrNotInitialized, dbPath)
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Project{Root: root, PitDir: filepath.Join(root, Dir), DB: db}, nil
}

// Discover finds the repository enclosing start and opens it, initializing
// it first when needed.
func Discover(start string) (*Project, error) {
	root, err := FindRoot(start)
	if err != nil {
		return nil, err
	}
	p, err := Open(root)
	if errors.Is(err, ErrNotInitialized) {
		return Init(root)
	}
	return p, err
}

// ensureIgnored appends .pit to .gitignore unless some rule already covers it.
func ensureIgnored(root string, g git.IgnoreOperations) error {
	path := filepath.Join(root, ".gitignore")
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read .gitignore: %w", err)
	}

	for _, line := range strings.Split(string(content), "\n") {
		if l := strings.TrimSpace(line); l == Dir || l == Dir+"/" || l == "/"+Dir || l == "/"+Dir+"/" {
			return nil
		}
	}

	// Covered by a parent or global ignore file.
	if ignored, err := g.IsIgnored(Dir); err == nil && ignored {
		return nil
	}

	out := string(content)
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	out += Dir + "/\n"
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("write .gitignore: %w", err)
	}
	return nil
}
