// Package exec provides an interface for command execution.
package exec

import (
	"context"
	osexec "os/exec"
)

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// Command returns an unstarted command for hosts that manage the
	// terminal themselves.
	Command(workDir string, name string, args ...string) *osexec.Cmd

	// LookPath reports where an executable is installed.
	LookPath(name string) (string, error)
}
