// Package names generates friendly task names such as "brisk-ember".
package names

import (
	"fmt"
	"math/rand/v2"
)

var adjectives = []string{
	"curious", "brisk", "mellow", "vivid", "bright", "calm", "daring", "eager",
	"gentle", "keen", "lively", "nimble", "quiet", "rapid", "steady", "swift",
	"tidy", "bold", "clever", "fresh",
}

var nouns = []string{
	"branch", "pixel", "thread", "anchor", "beacon", "circuit", "delta", "ember",
	"harbor", "lantern", "meadow", "moment", "quill", "signal", "spark", "stride",
	"trail", "vector", "weave", "whisper",
}

const randomAttempts = 20

// Generator produces names not already taken.
type Generator struct {
	intn func(n int) int
}

// New returns a Generator backed by the global random source.
func New() *Generator {
	return &Generator{intn: rand.IntN}
}

// Generate returns an <adjective>-<noun> name not in taken, falling back
// to task-N when random picks keep colliding.
func (g *Generator) Generate(taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, name := range taken {
		used[name] = true
	}

	for range randomAttempts {
		name := adjectives[g.intn(len(adjectives))] + "-" + nouns[g.intn(len(nouns))]
		if !used[name] {
			return name
		}
	}

	for i := 1; ; i++ {
		name := fmt.Sprintf("task-%d", i)
		if !used[name] {
			return name
		}
	}
}

// Generate is a convenience for New().Generate.
func Generate(taken []string) string {
	return New().Generate(taken)
}
