package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iaptsiauri/pit/internal/git/gittest"
)

type fakeIgnore struct {
	ignored bool
	calls   int
}

func (f *fakeIgnore) IsIgnored(path string) (bool, error) {
	f.calls++
	return f.ignored, nil
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindRoot(nested)
	if err != nil {
		t.Fatalf("FindRoot: %v", err)
	}
	if got != root {
		t.Errorf("FindRoot = %q, want %q", got, root)
	}
}

func TestFindRoot_NotRepo(t *testing.T) {
	_, err := FindRoot(t.TempDir())
	if err == nil {
		t.Skip("temp dir is inside a git repository")
	}
	if !errors.Is(err, ErrNotGitRepo) {
		t.Errorf("FindRoot = %v, want ErrNotGitRepo", err)
	}
}

func TestEnsureIgnored(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		ignored  bool
		want     string
	}{
		{"no gitignore", "", false, ".pit/\n"},
		{"appends with newline", "node_modules", false, "node_modules\n.pit/\n"},
		{"already listed", "bin/\n.pit\n", false, "bin/\n.pit\n"},
		{"already listed with slash", ".pit/\n", false, ".pit/\n"},
		{"ignored elsewhere", "bin/\n", true, "bin/\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			path := filepath.Join(root, ".gitignore")
			if tt.existing != "" {
				if err := os.WriteFile(path, []byte(tt.existing), 0644); err != nil {
					t.Fatal(err)
				}
			}

			if err := ensureIgnored(root, &fakeIgnore{ignored: tt.ignored}); err != nil {
				t.Fatalf("ensureIgnored: %v", err)
			}

			got, _ := os.ReadFile(path)
			if string(got) != tt.want {
				t.Errorf(".gitignore = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInitAndOpen(t *testing.T) {
	repo := gittest.NewRepo(t)

	if _, err := Open(repo); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Open before init = %v, want ErrNotInitialized", err)
	}

	p, err := Init(repo)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	p.Close()

	if _, err := os.Stat(filepath.Join(repo, ".pit", "pit.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
	gi, _ := os.ReadFile(filepath.Join(repo, ".gitignore"))
	if !strings.Contains(string(gi), ".pit") {
		t.Errorf(".gitignore = %q", gi)
	}

	// Idempotent.
	p, err = Init(repo)
	if err != nil {
		t.Fatalf("second Init: %v", err)
	}
	p.Close()
	gi2, _ := os.ReadFile(filepath.Join(repo, ".gitignore"))
	if string(gi2) != string(gi) {
		t.Errorf(".gitignore changed on re-init: %q -> %q", gi, gi2)
	}

	p, err = Open(repo)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p.Close()
}

func TestDiscover_AutoInit(t *testing.T) {
	repo := gittest.NewRepo(t)
	sub := filepath.Join(repo, "src")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	p, err := Discover(sub)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	defer p.Close()

	if p.Root != repo {
		t.Errorf("Root = %q, want %q", p.Root, repo)
	}
	if p.PitDir != filepath.Join(repo, ".pit") {
		t.Errorf("PitDir = %q", p.PitDir)
	}
}
