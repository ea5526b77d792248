package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when an operation would move a task
	// along an edge the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidName is returned for task names that cannot be used as
	// branch, directory and session names.
	ErrInvalidName = errors.New("invalid task name")
	// ErrAgentExited is returned by an attaching launch when the agent's
	// session was gone before the terminal could be handed over.
	ErrAgentExited = errors.New("agent exited")
)

// CleanupError reports a delete that succeeded but left something behind.
// The task row is gone; Warnings say what could not be cleaned up.
type CleanupError struct {
	Task     string
	Warnings []string
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("task %s deleted with %d cleanup warning(s): %s",
		e.Task, len(e.Warnings), strings.Join(e.Warnings, "; "))
}

// IsCleanupOnly reports whether err is nil or only a CleanupError, meaning
// the delete itself succeeded.
func IsCleanupOnly(err error) bool {
	if err == nil {
		return true
	}
	var ce *CleanupError
	return errors.As(err, &ce)
}
