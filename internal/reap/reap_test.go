package reap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/iaptsiauri/pit/internal/state"
	"github.com/iaptsiauri/pit/pkg/models"
)

type fakeSessions struct {
	live  map[string]bool
	err   error
	calls int
}

func (f *fakeSessions) ListLive(ctx context.Context) (map[string]bool, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool, len(f.live))
	for k, v := range f.live {
		out[k] = v
	}
	return out, nil
}

func setupStore(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "pit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createRunning(t *testing.T, db *state.DB, name, token string) *models.Task {
	t.Helper()
	ctx := context.Background()
	task, err := db.CreateTask(ctx, state.NewTask{
		Name:     name,
		Agent:    "claude",
		Branch:   "pit/" + name,
		Worktree: "/repo/.pit/worktrees/" + name,
	})
	if err != nil {
		t.Fatalf("CreateTask(%s): %v", name, err)
	}
	if err := db.MarkRunning(ctx, task.ID, "pit-"+name, token); err != nil {
		t.Fatalf("MarkRunning(%s): %v", name, err)
	}
	got, _ := db.GetTask(ctx, task.ID)
	return got
}

func TestReap_ExitedSessionBecomesIdle(t *testing.T) {
	db := setupStore(t)
	ctx := context.Background()

	alive := createRunning(t, db, "alive", "tok-a")
	gone := createRunning(t, db, "gone", "tok-g")

	sessions := &fakeSessions{live: map[string]bool{"pit-alive": true}}
	r := New(db, sessions)

	res, err := r.Reap(ctx)
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if res.Checked != 2 {
		t.Errorf("Checked = %d, want 2", res.Checked)
	}
	if len(res.Reaped) != 1 || res.Reaped[0] != "gone" {
		t.Errorf("Reaped = %v, want [gone]", res.Reaped)
	}

	got, _ := db.GetTask(ctx, gone.ID)
	if got.Status != models.TaskStatusIdle {
		t.Errorf("gone status = %q, want idle", got.Status)
	}
	if got.ResumeToken != "tok-g" {
		t.Errorf("gone token = %q, want tok-g", got.ResumeToken)
	}
	if got.UpdatedAt.Before(gone.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", gone.UpdatedAt, got.UpdatedAt)
	}

	got, _ = db.GetTask(ctx, alive.ID)
	if got.Status != models.TaskStatusRunning {
		t.Errorf("alive status = %q, want running", got.Status)
	}
}

func TestReap_Idempotent(t *testing.T) {
	db := setupStore(t)
	ctx := context.Background()
	createRunning(t, db, "gone", "tok")

	r := New(db, &fakeSessions{})
	first, err := r.Reap(ctx)
	if err != nil {
		t.Fatalf("first Reap: %v", err)
	}
	if len(first.Reaped) != 1 {
		t.Fatalf("first pass reaped %v", first.Reaped)
	}

	second, err := r.Reap(ctx)
	if err != nil {
		t.Fatalf("second Reap: %v", err)
	}
	if second.Checked != 0 || len(second.Reaped) != 0 {
		t.Errorf("second pass = %+v, want no-op", second)
	}
}

func TestReap_LeavesIdleAndDoneAlone(t *testing.T) {
	db := setupStore(t)
	ctx := context.Background()

	idle, _ := db.CreateTask(ctx, state.NewTask{Name: "idle", Branch: "pit/idle", Worktree: "/w/idle"})
	done, _ := db.CreateTask(ctx, state.NewTask{Name: "done", Branch: "pit/done", Worktree: "/w/done"})
	if err := db.UpdateStatus(ctx, done.ID, models.TaskStatusDone); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	sessions := &fakeSessions{}
	res, err := New(db, sessions).Reap(ctx)
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if res.Checked != 0 {
		t.Errorf("Checked = %d, want 0", res.Checked)
	}
	if sessions.calls != 0 {
		t.Errorf("tmux queried %d times with nothing running", sessions.calls)
	}

	for id, want := range map[int64]models.TaskStatus{idle.ID: models.TaskStatusIdle, done.ID: models.TaskStatusDone} {
		got, _ := db.GetTask(ctx, id)
		if got.Status != want {
			t.Errorf("task %d status = %q, want %q", id, got.Status, want)
		}
	}
}

func TestReap_ListFailure(t *testing.T) {
	db := setupStore(t)
	ctx := context.Background()
	task := createRunning(t, db, "t", "tok")

	boom := errors.New("tmux exploded")
	_, err := New(db, &fakeSessions{err: boom}).Reap(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected list error, got %v", err)
	}

	got, _ := db.GetTask(ctx, task.ID)
	if got.Status != models.TaskStatusRunning {
		t.Errorf("status changed on failed pass: %q", got.Status)
	}
}

func TestReapTask(t *testing.T) {
	db := setupStore(t)
	ctx := context.Background()
	task := createRunning(t, db, "t", "tok")

	r := New(db, &fakeSessions{live: map[string]bool{"pit-t": true}})
	changed, err := r.ReapTask(ctx, task)
	if err != nil || changed {
		t.Fatalf("live session: ReapTask = %v, %v", changed, err)
	}

	r = New(db, &fakeSessions{})
	changed, err = r.ReapTask(ctx, task)
	if err != nil || !changed {
		t.Fatalf("dead session: ReapTask = %v, %v", changed, err)
	}

	idle, _ := db.GetTask(ctx, task.ID)
	changed, err = r.ReapTask(ctx, idle)
	if err != nil || changed {
		t.Errorf("idle task: ReapTask = %v, %v", changed, err)
	}
}

func TestReap_RelaunchedTaskNotReaped(t *testing.T) {
	db := setupStore(t)
	ctx := context.Background()
	stale := createRunning(t, db, "t", "tok-1")

	// Relaunched under a new session after the pass read its snapshot.
	if err := db.MarkRunning(ctx, stale.ID, "pit-t-2", "tok-2"); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	r := New(db, &fakeSessions{})
	changed, err := r.ReapTask(ctx, stale)
	if err != nil {
		t.Fatalf("ReapTask: %v", err)
	}
	if changed {
		t.Error("stale snapshot should not reap a relaunched task")
	}
}
