package git_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/iaptsiauri/pit/internal/git"
	"github.com/iaptsiauri/pit/internal/git/gittest"
)

func TestExecRunner_Branches(t *testing.T) {
	repo := gittest.NewRepo(t)
	r := git.NewRunner(repo)

	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("CurrentBranch() = %q, want main", branch)
	}

	if err := r.CreateBranchAt("pit/feature", "HEAD"); err != nil {
		t.Fatalf("CreateBranchAt: %v", err)
	}
	exists, err := r.BranchExists("pit/feature")
	if err != nil || !exists {
		t.Fatalf("BranchExists(pit/feature) = %v, %v", exists, err)
	}

	branches, err := r.ListBranches()
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if strings.Join(branches, ",") != "main,pit/feature" {
		t.Errorf("ListBranches() = %v", branches)
	}

	if err := r.DeleteBranch("pit/feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	exists, err = r.BranchExists("pit/feature")
	if err != nil || exists {
		t.Errorf("branch still exists after delete: %v, %v", exists, err)
	}
}

func TestExecRunner_ErrorIncludesCommand(t *testing.T) {
	repo := gittest.NewRepo(t)
	r := git.NewRunner(repo)

	_, err := r.ResolveRef("does-not-exist")
	if err == nil {
		t.Fatal("expected error resolving a missing ref")
	}
	if !strings.Contains(err.Error(), "git rev-parse") {
		t.Errorf("error should name the git command, got %v", err)
	}
}

func TestExecRunner_StagedChangesAndCommit(t *testing.T) {
	repo := gittest.NewRepo(t)
	r := git.NewRunner(repo)

	staged, err := r.HasStagedChanges()
	if err != nil || staged {
		t.Fatalf("clean repo HasStagedChanges = %v, %v", staged, err)
	}

	gittest.WriteFile(t, repo, "a.txt", "hello\n")
	dirty, err := r.HasChanges()
	if err != nil || !dirty {
		t.Fatalf("HasChanges = %v, %v", dirty, err)
	}

	if err := r.AddAll(); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	staged, err = r.HasStagedChanges()
	if err != nil || !staged {
		t.Fatalf("HasStagedChanges after add = %v, %v", staged, err)
	}

	if err := r.Commit("add a"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	subject, err := r.LogOne("HEAD", "%s")
	if err != nil {
		t.Fatalf("LogOne: %v", err)
	}
	if subject != "add a" {
		t.Errorf("LogOne subject = %q", subject)
	}
}

func TestExecRunner_Tags(t *testing.T) {
	repo := gittest.NewRepo(t)
	r := git.NewRunner(repo)

	for _, tag := range []string{"pit/checkpoint/x/1", "pit/checkpoint/x/2", "other"} {
		if err := r.CreateTag(tag, "HEAD"); err != nil {
			t.Fatalf("CreateTag(%s): %v", tag, err)
		}
	}

	tags, err := r.ListTags("pit/checkpoint/x/*")
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("ListTags = %v, want 2 entries", tags)
	}

	if err := r.DeleteTag("other"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	tags, _ = r.ListTags("other")
	if len(tags) != 0 {
		t.Errorf("tag survived delete: %v", tags)
	}
}

func TestExecRunner_Worktrees(t *testing.T) {
	repo := gittest.NewRepo(t)
	r := git.NewRunner(repo)

	wt := filepath.Join(repo, ".pit", "worktrees", "feature")
	if err := r.CreateBranchAt("pit/feature", "HEAD"); err != nil {
		t.Fatalf("CreateBranchAt: %v", err)
	}
	if err := r.WorktreeAdd(wt, "pit/feature"); err != nil {
		t.Fatalf("WorktreeAdd: %v", err)
	}

	out, err := r.WorktreeListPorcelain()
	if err != nil {
		t.Fatalf("WorktreeListPorcelain: %v", err)
	}
	if !strings.Contains(out, "worktree "+wt) {
		t.Errorf("porcelain output missing %s:\n%s", wt, out)
	}

	if err := r.WorktreeRemoveOptionalForce(wt, true); err != nil {
		t.Fatalf("WorktreeRemoveOptionalForce: %v", err)
	}
	if err := r.WorktreePrune(); err != nil {
		t.Fatalf("WorktreePrune: %v", err)
	}
}

func TestExecRunner_IsIgnored(t *testing.T) {
	repo := gittest.NewRepo(t)
	r := git.NewRunner(repo)

	ignored, err := r.IsIgnored(".pit")
	if err != nil || ignored {
		t.Fatalf("IsIgnored before .gitignore = %v, %v", ignored, err)
	}

	gittest.WriteFile(t, repo, ".gitignore", ".pit\n")
	ignored, err = r.IsIgnored(".pit")
	if err != nil || !ignored {
		t.Errorf("IsIgnored after .gitignore = %v, %v", ignored, err)
	}
}
