// Package checkpoint snapshots a task branch as numbered git tags and rolls
// a worktree back to them.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/iaptsiauri/pit/internal/git"
)

const (
	tagRoot         = "pit/checkpoint/"
	safetyRoot      = "pit/pre-rollback/"
	autoSaveMessage = "[pit checkpoint] auto-save for "
)

var (
	// ErrNoCheckpoints is returned when rolling back a task with no checkpoints.
	ErrNoCheckpoints = errors.New("no checkpoints")
	// ErrNotFound is returned when a requested checkpoint index does not exist.
	ErrNotFound = errors.New("checkpoint not found")
)

// Checkpoint is one tagged snapshot of a task branch.
type Checkpoint struct {
	Index   int    `json:"index" yaml:"index"`
	Tag     string `json:"tag" yaml:"tag"`
	Commit  string `json:"commit" yaml:"commit"`
	Message string `json:"message" yaml:"message"`
	Age     string `json:"age" yaml:"age"`
}

// Repo is the subset of git operations run against the main repository.
type Repo interface {
	git.BranchOperations
	git.CommitOperations
	git.TagOperations
}

// Worktree is the subset of git operations run inside a task worktree.
type Worktree interface {
	git.BranchOperations
	git.DiffOperations
	git.CommitOperations
}

// Manager creates, lists and restores checkpoints.
type Manager struct {
	repo         Repo
	openWorktree func(path string) Worktree
	logger       *log.Logger
}

// NewManager creates a Manager for the repository at repoPath.
func NewManager(repoPath string) *Manager {
	return NewManagerWithRunner(git.NewRunner(repoPath), func(path string) Worktree {
		return git.NewRunner(path)
	})
}

// NewManagerWithRunner creates a Manager with custom git runners (for testing).
func NewManagerWithRunner(repo Repo, openWorktree func(path string) Worktree) *Manager {
	return &Manager{
		repo:         repo,
		openWorktree: openWorktree,
		logger:       log.New(io.Discard),
	}
}

// SetLogger replaces the manager's logger.
func (m *Manager) SetLogger(l *log.Logger) {
	m.logger = l.WithPrefix("checkpoint")
}

// TagName returns the tag of checkpoint n for a task.
func TagName(taskName string, n int) string {
	return tagRoot + taskName + "/" + strconv.Itoa(n)
}

// SafetyTag returns the tag written before a rollback.
func SafetyTag(taskName string) string {
	return safetyRoot + taskName
}

// Create commits any uncommitted work in the worktree and tags the branch
// head as the next checkpoint. It returns the new index.
func (m *Manager) Create(taskName, branch, worktreePath string) (int, error) {
	if _, err := m.autoCommit(worktreePath, taskName); err != nil {
		return 0, err
	}

	existing, err := m.List(taskName)
	if err != nil {
		return 0, err
	}
	next := 1
	if len(existing) > 0 {
		next = existing[len(existing)-1].Index + 1
	}

	commit, err := m.repo.ResolveRef(branch)
	if err != nil {
		return 0, fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	tag := TagName(taskName, next)
	if err := m.repo.CreateTag(tag, commit); err != nil {
		return 0, fmt.Errorf("create tag %s: %w", tag, err)
	}
	m.logger.Info("checkpoint created", "task", taskName, "index", next, "commit", commit)
	return next, nil
}

// List returns a task's checkpoints ordered by index.
func (m *Manager) List(taskName string) ([]Checkpoint, error) {
	prefix := tagRoot + taskName + "/"
	tags, err := m.repo.ListTags(prefix + "*")
	if err != nil {
		return nil, fmt.Errorf("list checkpoint tags: %w", err)
	}

	var checkpoints []Checkpoint
	for _, tag := range tags {
		n, err := strconv.Atoi(strings.TrimPrefix(tag, prefix))
		if err != nil || n <= 0 {
			continue
		}
		cp := Checkpoint{Index: n, Tag: tag}
		if line, err := m.repo.LogOne(tag, "%h|%s|%cr"); err == nil {
			parts := strings.SplitN(line, "|", 3)
			cp.Commit = parts[0]
			if len(parts) > 1 {
				cp.Message = parts[1]
			}
			if len(parts) > 2 {
				cp.Age = parts[2]
			}
		}
		checkpoints = append(checkpoints, cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].Index < checkpoints[j].Index
	})
	return checkpoints, nil
}

// Rollback hard-resets the worktree to checkpoint target, or to the latest
// checkpoint when target is 0. Current work is auto-committed and tagged as
// SafetyTag first so the rollback can be undone.
func (m *Manager) Rollback(taskName, worktreePath string, target int) (int, error) {
	checkpoints, err := m.List(taskName)
	if err != nil {
		return 0, err
	}
	if len(checkpoints) == 0 {
		return 0, fmt.Errorf("%w for task %q", ErrNoCheckpoints, taskName)
	}

	cp := checkpoints[len(checkpoints)-1]
	if target != 0 {
		found := false
		for _, c := range checkpoints {
			if c.Index == target {
				cp, found = c, true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %d", ErrNotFound, target)
		}
	}

	if _, err := m.autoCommit(worktreePath, taskName); err != nil {
		return 0, err
	}
	m.saveSafetyTag(taskName, worktreePath)

	if err := m.openWorktree(worktreePath).ResetHard(cp.Tag); err != nil {
		return 0, fmt.Errorf("reset to %s: %w", cp.Tag, err)
	}
	m.logger.Info("rolled back", "task", taskName, "index", cp.Index)
	return cp.Index, nil
}

// DeleteAll removes every checkpoint tag and the safety tag of a task. It
// returns the tags that were deleted.
func (m *Manager) DeleteAll(taskName string) ([]string, error) {
	tags, err := m.repo.ListTags(tagRoot + taskName + "/*")
	if err != nil {
		return nil, fmt.Errorf("list checkpoint tags: %w", err)
	}
	if safety, err := m.repo.ListTags(SafetyTag(taskName)); err == nil {
		tags = append(tags, safety...)
	}

	var deleted []string
	var errs []error
	for _, tag := range tags {
		if err := m.repo.DeleteTag(tag); err != nil {
			errs = append(errs, fmt.Errorf("delete tag %s: %w", tag, err))
			continue
		}
		deleted = append(deleted, tag)
	}
	return deleted, errors.Join(errs...)
}

// autoCommit stages and commits everything in the worktree. It reports
// whether a commit was made.
func (m *Manager) autoCommit(worktreePath, taskName string) (bool, error) {
	wt := m.openWorktree(worktreePath)
	if err := wt.AddAll(); err != nil {
		return false, fmt.Errorf("stage worktree: %w", err)
	}
	staged, err := wt.HasStagedChanges()
	if err != nil {
		return false, fmt.Errorf("check staged changes: %w", err)
	}
	if !staged {
		return false, nil
	}
	if err := wt.Commit(autoSaveMessage + taskName); err != nil {
		return false, fmt.Errorf("auto-commit: %w", err)
	}
	m.logger.Debug("auto-committed worktree", "task", taskName)
	return true, nil
}

// saveSafetyTag points SafetyTag at the worktree head, replacing any
// previous one. Failures are logged and ignored.
func (m *Manager) saveSafetyTag(taskName, worktreePath string) {
	head, err := m.openWorktree(worktreePath).ResolveRef("HEAD")
	if err != nil {
		m.logger.Warn("resolve worktree head", "task", taskName, "err", err)
		return
	}
	tag := SafetyTag(taskName)
	if existing, _ := m.repo.ListTags(tag); len(existing) > 0 {
		_ = m.repo.DeleteTag(tag)
	}
	if err := m.repo.CreateTag(tag, head); err != nil {
		m.logger.Warn("write safety tag", "task", taskName, "err", err)
	}
}
