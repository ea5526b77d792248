package names

import (
	"regexp"
	"testing"
)

var namePattern = regexp.MustCompile(`^[a-z]+-[a-z]+$`)

func TestGenerate_Shape(t *testing.T) {
	for range 50 {
		name := Generate(nil)
		if !namePattern.MatchString(name) {
			t.Fatalf("Generate() = %q, want adjective-noun", name)
		}
	}
}

func TestGenerate_AvoidsTaken(t *testing.T) {
	// Deterministic source: first pick collides, second does not.
	picks := []int{0, 0, 1, 1}
	i := 0
	g := &Generator{intn: func(n int) int {
		v := picks[i%len(picks)]
		i++
		return v
	}}

	got := g.Generate([]string{"curious-branch"})
	if got != "brisk-pixel" {
		t.Errorf("Generate = %q, want brisk-pixel", got)
	}
}

func TestGenerate_FallsBackToNumbered(t *testing.T) {
	g := &Generator{intn: func(int) int { return 0 }}

	got := g.Generate([]string{"curious-branch", "task-1"})
	if got != "task-2" {
		t.Errorf("Generate = %q, want task-2", got)
	}
}
