package lifecycle

import "fmt"

// MaxNameLength bounds task names.
const MaxNameLength = 100

// ValidateName checks that a task name is usable as a branch suffix,
// directory name and tmux session name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxNameLength)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q contains %q; use letters, digits, '-' and '_'", ErrInvalidName, name, r)
		}
	}
	return nil
}
