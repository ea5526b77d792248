// Package gitinfo summarizes what a task branch changed relative to the
// project's main branch.
package gitinfo

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iaptsiauri/pit/internal/git"
)

// maxCommits bounds the log shown for a branch.
const maxCommits = 20

// Commit is one commit on the task branch.
type Commit struct {
	Hash    string `json:"hash" yaml:"hash"`
	Message string `json:"message" yaml:"message"`
	Age     string `json:"age" yaml:"age"`
}

// FileStat counts the changed lines of one file.
type FileStat struct {
	Path       string `json:"path" yaml:"path"`
	Insertions int    `json:"insertions" yaml:"insertions"`
	Deletions  int    `json:"deletions" yaml:"deletions"`
}

// Info is the change summary of a task.
type Info struct {
	Base       string     `json:"base" yaml:"base"`
	Commits    []Commit   `json:"commits" yaml:"commits"`
	Files      []FileStat `json:"files" yaml:"files"`
	Insertions int        `json:"insertions" yaml:"insertions"`
	Deletions  int        `json:"deletions" yaml:"deletions"`
}

// Runner is the subset of git operations gitinfo needs.
type Runner interface {
	git.BranchOperations
	Run(args ...string) (string, error)
}

// DetectMainBranch guesses the project's default branch: origin's HEAD,
// then main, master or develop, then the first local branch, then "main".
func DetectMainBranch(r git.BranchOperations) string {
	if ref, err := r.SymbolicRef("refs/remotes/origin/HEAD"); err == nil {
		if name, ok := strings.CutPrefix(ref, "refs/remotes/origin/"); ok && name != "" {
			return name
		}
	}
	for _, name := range []string{"main", "master", "develop"} {
		if ok, err := r.BranchExists(name); err == nil && ok {
			return name
		}
	}
	if branches, err := r.ListBranches(); err == nil && len(branches) > 0 {
		return branches[0]
	}
	return "main"
}

// Gather collects the commits and per-file line counts of branch against the
// main branch. When worktree is non-nil its uncommitted and untracked
// changes are folded in. Git failures yield a partial summary.
func Gather(repo Runner, branch string, worktree Runner, worktreePath string) Info {
	info := Info{Base: DetectMainBranch(repo)}

	if out, err := repo.Run("log", info.Base+".."+branch, "--format=%h\t%s\t%cr", "-n", strconv.Itoa(maxCommits)); err == nil {
		info.Commits = parseLog(out)
	}
	if out, err := repo.Run("diff", info.Base+"..."+branch, "--numstat"); err == nil {
		info.add(parseNumstat(out))
	}

	if worktree != nil {
		if out, err := worktree.Run("diff", "HEAD", "--numstat"); err == nil {
			info.add(parseNumstat(out))
		}
		if out, err := worktree.Run("ls-files", "--others", "--exclude-standard"); err == nil {
			var untracked []FileStat
			for _, path := range splitLines(out) {
				untracked = append(untracked, FileStat{
					Path:       path,
					Insertions: countLines(filepath.Join(worktreePath, path)),
				})
			}
			info.add(untracked)
		}
	}
	return info
}

// add merges stats into the summary, summing entries for the same path.
func (i *Info) add(stats []FileStat) {
	for _, s := range stats {
		i.Insertions += s.Insertions
		i.Deletions += s.Deletions
		merged := false
		for j := range i.Files {
			if i.Files[j].Path == s.Path {
				i.Files[j].Insertions += s.Insertions
				i.Files[j].Deletions += s.Deletions
				merged = true
				break
			}
		}
		if !merged {
			i.Files = append(i.Files, s)
		}
	}
}

func parseLog(out string) []Commit {
	var commits []Commit
	for _, line := range splitLines(out) {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 2 {
			continue
		}
		c := Commit{Hash: parts[0], Message: parts[1]}
		if len(parts) == 3 {
			c.Age = parts[2]
		}
		commits = append(commits, c)
	}
	return commits
}

// parseNumstat reads "added\tdeleted\tpath" lines. Binary files report "-"
// and count as zero.
func parseNumstat(out string) []FileStat {
	var stats []FileStat
	for _, line := range splitLines(out) {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		ins, _ := strconv.Atoi(parts[0])
		del, _ := strconv.Atoi(parts[1])
		stats = append(stats, FileStat{Path: parts[2], Insertions: ins, Deletions: del})
	}
	return stats
}

func countLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		n++
	}
	return n
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
