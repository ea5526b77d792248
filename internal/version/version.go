// Package version exposes the embedded release version of pit.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String formats the version line printed by `pit version`.
func String() string {
	return "pit version " + Get()
}
