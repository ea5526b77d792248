// Command pit runs coding agents in parallel, one git worktree and tmux
// session per task.
package main

func main() {
	Execute()
}
