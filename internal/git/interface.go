// Package git provides an interface for the git operations pit needs.
package git

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// ResolveRef returns the commit SHA a ref points at.
	ResolveRef(ref string) (string, error)
	// CreateBranchAt creates a branch pointing at base without checking it out.
	CreateBranchAt(name, base string) error
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
	// ListBranches returns the short names of all local branches.
	ListBranches() ([]string, error)
	// SymbolicRef resolves a symbolic ref such as refs/remotes/origin/HEAD.
	SymbolicRef(ref string) (string, error)
}

// DiffOperations defines the interface for git diff and status operations.
type DiffOperations interface {
	// Status returns the output of git status --porcelain.
	Status() (string, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges() (bool, error)
	// HasStagedChanges returns true if the index differs from HEAD.
	HasStagedChanges() (bool, error)
	// DiffRange returns the patch for a revision range such as main...branch.
	DiffRange(rangeSpec string) (string, error)
	// DiffStat returns the --stat summary for a revision range.
	DiffStat(rangeSpec string) (string, error)
	// DiffWorkingTree returns uncommitted changes against HEAD.
	DiffWorkingTree() (string, error)
}

// CommitOperations defines the interface for git commit operations.
type CommitOperations interface {
	// AddAll stages every change including untracked files.
	AddAll() error
	// Commit creates a new commit with the given message.
	Commit(message string) error
	// ResetHard moves HEAD and the working tree to ref.
	ResetHard(ref string) error
	// LogOne formats the single commit at ref with a --format string.
	LogOne(ref, format string) (string, error)
}

// TagOperations defines the interface for lightweight tags.
type TagOperations interface {
	// CreateTag creates a lightweight tag at ref.
	CreateTag(name, ref string) error
	// DeleteTag deletes a tag.
	DeleteTag(name string) error
	// ListTags returns tags matching a glob pattern.
	ListTags(pattern string) ([]string, error)
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAdd creates a new worktree at the given path for the branch.
	WorktreeAdd(path, branch string) error
	// WorktreeRemoveOptionalForce removes the worktree, optionally with force.
	WorktreeRemoveOptionalForce(path string, force bool) error
	// WorktreeUnlock unlocks a locked worktree.
	WorktreeUnlock(path string) error
	// WorktreeListPorcelain returns the raw porcelain output for detailed parsing.
	WorktreeListPorcelain() (string, error)
	// WorktreePrune removes stale worktree entries.
	WorktreePrune() error
}

// IgnoreOperations defines the interface for .gitignore queries.
type IgnoreOperations interface {
	// IsIgnored reports whether path is ignored by the repository's rules.
	IsIgnored(path string) (bool, error)
}

// Runner defines the complete interface for git operations.
// Consumers should prefer using focused interfaces when possible.
type Runner interface {
	BranchOperations
	DiffOperations
	CommitOperations
	TagOperations
	WorktreeOperations
	IgnoreOperations
	// Run executes an arbitrary git command with the given arguments.
	Run(args ...string) (string, error)
}
