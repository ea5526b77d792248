// Package workspace provisions and tears down the git branch + worktree
// pair that isolates each task.
package workspace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/iaptsiauri/pit/internal/git"
)

// BranchPrefix namespaces every branch pit creates.
const BranchPrefix = "pit/"

// ErrConflict is returned when a task's branch or worktree path already exists.
var ErrConflict = errors.New("workspace conflict")

// Workspace is the branch and worktree path owned by one task.
type Workspace struct {
	Branch string
	Path   string
}

// Git is the subset of git operations the manager needs.
type Git interface {
	git.BranchOperations
	git.WorktreeOperations
}

// Manager handles branch and worktree lifecycles for a project.
type Manager struct {
	repoPath string
	baseDir  string // <repo>/.pit/worktrees
	git      Git
	logger   *log.Logger
}

// NewManager creates a Manager for the repository at repoPath.
func NewManager(repoPath string) *Manager {
	return NewManagerWithRunner(repoPath, git.NewRunner(repoPath))
}

// NewManagerWithRunner creates a Manager with a custom git runner (for testing).
func NewManagerWithRunner(repoPath string, runner Git) *Manager {
	return &Manager{
		repoPath: repoPath,
		baseDir:  filepath.Join(repoPath, ".pit", "worktrees"),
		git:      runner,
		logger:   log.New(io.Discard),
	}
}

// SetLogger replaces the manager's logger.
func (m *Manager) SetLogger(l *log.Logger) {
	m.logger = l.WithPrefix("workspace")
}

// BaseDir returns the directory holding task worktrees.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// RepoPath returns the path to the main git repository.
func (m *Manager) RepoPath() string {
	return m.repoPath
}

// For returns the deterministic workspace of a task.
func (m *Manager) For(taskName string) Workspace {
	return Workspace{
		Branch: BranchPrefix + taskName,
		Path:   filepath.Join(m.baseDir, taskName),
	}
}

// Provision creates the task's branch from baseRef (HEAD when empty) and
// checks it out into a fresh worktree. A branch created here is deleted
// again if the worktree cannot be added.
func (m *Manager) Provision(taskName, baseRef string) (Workspace, error) {
	ws := m.For(taskName)

	exists, err := m.git.BranchExists(ws.Branch)
	if err != nil {
		return Workspace{}, fmt.Errorf("provision %s: %w", taskName, err)
	}
	if exists {
		return Workspace{}, fmt.Errorf("%w: branch %s already exists", ErrConflict, ws.Branch)
	}

	if _, err := os.Stat(ws.Path); err == nil {
		return Workspace{}, fmt.Errorf("%w: path %s already exists", ErrConflict, ws.Path)
	} else if !os.IsNotExist(err) {
		return Workspace{}, fmt.Errorf("provision %s: stat worktree path: %w", taskName, err)
	}

	if baseRef == "" {
		baseRef = "HEAD"
	}

	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return Workspace{}, fmt.Errorf("create worktree base directory: %w", err)
	}

	if err := m.git.CreateBranchAt(ws.Branch, baseRef); err != nil {
		return Workspace{}, fmt.Errorf("create branch %s: %w", ws.Branch, err)
	}

	if err := m.git.WorktreeAdd(ws.Path, ws.Branch); err != nil {
		addErr := fmt.Errorf("add worktree %s: %w", ws.Path, err)
		if delErr := m.git.DeleteBranch(ws.Branch); delErr != nil {
			m.logger.Error("branch left behind after failed provision", "branch", ws.Branch, "error", delErr)
			return Workspace{}, errors.Join(addErr, fmt.Errorf("roll back branch %s: %w", ws.Branch, delErr))
		}
		return Workspace{}, addErr
	}

	m.logger.Debug("provisioned workspace", "task", taskName, "branch", ws.Branch, "path", ws.Path)
	return ws, nil
}

// Teardown removes the worktree and deletes the branch. Problems that leave
// the task's footprint mostly cleaned up come back as warnings; only a
// worktree directory that cannot be removed at all is an error.
func (m *Manager) Teardown(ws Workspace) ([]string, error) {
	var warnings []string
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		m.logger.Warn(msg)
		warnings = append(warnings, msg)
	}

	if _, err := os.Stat(ws.Path); err == nil {
		if err := m.git.WorktreeRemoveOptionalForce(ws.Path, false); err != nil {
			warn("worktree %s had uncommitted changes; removed with --force", ws.Path)
			if err := m.forceRemove(ws.Path); err != nil {
				return warnings, fmt.Errorf("remove worktree %s: %w", ws.Path, err)
			}
		}
	} else if os.IsNotExist(err) {
		warn("worktree %s was already gone", ws.Path)
	} else {
		return warnings, fmt.Errorf("stat worktree %s: %w", ws.Path, err)
	}

	if err := m.git.WorktreePrune(); err != nil {
		warn("git worktree prune failed: %v", err)
	}

	exists, err := m.git.BranchExists(ws.Branch)
	switch {
	case err != nil:
		warn("could not check branch %s: %v", ws.Branch, err)
	case !exists:
		warn("branch %s was already gone", ws.Branch)
	default:
		if err := m.git.DeleteBranch(ws.Branch); err != nil {
			warn("could not delete branch %s: %v", ws.Branch, err)
		}
	}

	return warnings, nil
}

// forceRemove unlocks and force-removes a worktree, falling back to
// deleting the directory when git no longer tracks it.
func (m *Manager) forceRemove(path string) error {
	_ = m.git.WorktreeUnlock(path) // may not be locked

	if err := m.git.WorktreeRemoveOptionalForce(path, true); err != nil {
		m.logger.Debug("git worktree remove failed, deleting directory", "path", path, "error", err)
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	}
	return nil
}

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path   string
	Branch string
}

// List returns the worktrees git has registered under the base directory.
func (m *Manager) List() ([]Worktree, error) {
	output, err := m.git.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	all, err := parseWorktreeList(output)
	if err != nil {
		return nil, err
	}

	var owned []Worktree
	for _, wt := range all {
		if filepath.Dir(wt.Path) == m.baseDir {
			owned = append(owned, wt)
		}
	}
	return owned, nil
}

// parseWorktreeList parses the output of 'git worktree list --porcelain'.
func parseWorktreeList(output string) ([]Worktree, error) {
	var worktrees []Worktree
	var current *Worktree

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if current != nil {
				worktrees = append(worktrees, *current)
				current = nil
			}
			continue
		}

		if strings.HasPrefix(line, "worktree ") {
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		} else if strings.HasPrefix(line, "branch ") && current != nil {
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}

	if current != nil {
		worktrees = append(worktrees, *current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse worktree list: %w", err)
	}
	return worktrees, nil
}

// Orphans returns workspaces under the base directory or the pit/ branch
// namespace that belong to none of the known task names.
func (m *Manager) Orphans(known []string) ([]Workspace, error) {
	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}

	found := make(map[string]bool)
	entries, err := os.ReadDir(m.baseDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read worktree base directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			found[entry.Name()] = true
		}
	}

	registered, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, wt := range registered {
		found[filepath.Base(wt.Path)] = true
	}

	branches, err := m.git.ListBranches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	for _, b := range branches {
		if strings.HasPrefix(b, BranchPrefix) {
			found[strings.TrimPrefix(b, BranchPrefix)] = true
		}
	}

	var names []string
	for name := range found {
		if !knownSet[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	orphans := make([]Workspace, 0, len(names))
	for _, name := range names {
		orphans = append(orphans, m.For(name))
	}
	return orphans, nil
}
