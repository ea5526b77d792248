package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExecRunner implements Runner using exec.Command.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a new git runner for the repository or worktree at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

// Path returns the directory git commands run in.
func (r *ExecRunner) Path() string {
	return r.repoPath
}

// run executes a git command and returns its output.
func (r *ExecRunner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// runSilent executes a git command and ignores output.
func (r *ExecRunner) runSilent(args ...string) error {
	_, err := r.run(args...)
	return err
}

// runExitCode runs a git command whose exit status 1 is an answer, not a failure.
func (r *ExecRunner) runExitCode(args ...string) (bool, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
}

// Run executes an arbitrary git command with the given arguments.
func (r *ExecRunner) Run(args ...string) (string, error) {
	return r.run(args...)
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch() (string, error) {
	return r.run("rev-parse", "--abbrev-ref", "HEAD")
}

// ResolveRef returns the commit SHA a ref points at.
func (r *ExecRunner) ResolveRef(ref string) (string, error) {
	return r.run("rev-parse", "--verify", ref+"^{commit}")
}

// CreateBranchAt creates a branch pointing at base.
func (r *ExecRunner) CreateBranchAt(name, base string) error {
	return r.runSilent("branch", name, base)
}

// BranchExists returns true if the branch exists.
func (r *ExecRunner) BranchExists(name string) (bool, error) {
	exists, err := r.runExitCode("show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err != nil {
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return exists, nil
}

// DeleteBranch deletes the specified branch.
func (r *ExecRunner) DeleteBranch(name string) error {
	return r.runSilent("branch", "-D", name)
}

// ListBranches returns the short names of all local branches.
func (r *ExecRunner) ListBranches() ([]string, error) {
	out, err := r.run("branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// SymbolicRef resolves a symbolic ref.
func (r *ExecRunner) SymbolicRef(ref string) (string, error) {
	return r.run("symbolic-ref", ref)
}

// Status returns the output of git status --porcelain.
func (r *ExecRunner) Status() (string, error) {
	return r.run("status", "--porcelain")
}

// HasChanges returns true if there are uncommitted changes.
func (r *ExecRunner) HasChanges() (bool, error) {
	status, err := r.Status()
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}

// HasStagedChanges returns true if the index differs from HEAD.
func (r *ExecRunner) HasStagedChanges() (bool, error) {
	// diff --quiet exits 1 when there are differences.
	clean, err := r.runExitCode("diff", "--cached", "--quiet")
	if err != nil {
		return false, err
	}
	return !clean, nil
}

// DiffRange returns the patch for a revision range.
func (r *ExecRunner) DiffRange(rangeSpec string) (string, error) {
	return r.run("diff", rangeSpec)
}

// DiffStat returns the --stat summary for a revision range.
func (r *ExecRunner) DiffStat(rangeSpec string) (string, error) {
	return r.run("diff", "--stat", rangeSpec)
}

// DiffWorkingTree returns uncommitted changes against HEAD.
func (r *ExecRunner) DiffWorkingTree() (string, error) {
	return r.run("diff", "HEAD")
}

// AddAll stages every change including untracked files.
func (r *ExecRunner) AddAll() error {
	return r.runSilent("add", "-A")
}

// Commit creates a new commit with the given message.
func (r *ExecRunner) Commit(message string) error {
	return r.runSilent("commit", "-m", message)
}

// ResetHard moves HEAD and the working tree to ref.
func (r *ExecRunner) ResetHard(ref string) error {
	return r.runSilent("reset", "--hard", ref)
}

// LogOne formats the single commit at ref.
func (r *ExecRunner) LogOne(ref, format string) (string, error) {
	return r.run("log", "-1", "--format="+format, ref)
}

// CreateTag creates a lightweight tag at ref.
func (r *ExecRunner) CreateTag(name, ref string) error {
	return r.runSilent("tag", name, ref)
}

// DeleteTag deletes a tag.
func (r *ExecRunner) DeleteTag(name string) error {
	return r.runSilent("tag", "-d", name)
}

// ListTags returns tags matching a glob pattern.
func (r *ExecRunner) ListTags(pattern string) ([]string, error) {
	out, err := r.run("tag", "--list", pattern)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// WorktreeAdd creates a new worktree at the given path for the branch.
func (r *ExecRunner) WorktreeAdd(path, branch string) error {
	return r.runSilent("worktree", "add", path, branch)
}

// WorktreeRemoveOptionalForce removes the worktree, optionally with force.
func (r *ExecRunner) WorktreeRemoveOptionalForce(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, path)
	return r.runSilent(args...)
}

// WorktreeUnlock unlocks a locked worktree.
func (r *ExecRunner) WorktreeUnlock(path string) error {
	return r.runSilent("worktree", "unlock", path)
}

// WorktreeListPorcelain returns the raw porcelain output for detailed parsing.
func (r *ExecRunner) WorktreeListPorcelain() (string, error) {
	return r.run("worktree", "list", "--porcelain")
}

// WorktreePrune removes stale worktree entries.
func (r *ExecRunner) WorktreePrune() error {
	return r.runSilent("worktree", "prune")
}

// IsIgnored reports whether path is ignored.
func (r *ExecRunner) IsIgnored(path string) (bool, error) {
	return r.runExitCode("check-ignore", "-q", path)
}

func splitLines(out string) []string {
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
