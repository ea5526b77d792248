package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/iaptsiauri/pit/internal/state"
	"github.com/iaptsiauri/pit/internal/tmux"
	"github.com/iaptsiauri/pit/internal/workspace"
	"github.com/iaptsiauri/pit/pkg/models"
)

type fakeWorkspaces struct {
	root             string
	provisioned      map[string]workspace.Workspace
	provisions       int
	provisionErr     error
	teardownWarnings []string
	teardownErr      error
	tornDown         []string
}

func newFakeWorkspaces() *fakeWorkspaces {
	return &fakeWorkspaces{root: "/repo", provisioned: map[string]workspace.Workspace{}}
}

func (f *fakeWorkspaces) Provision(taskName, baseRef string) (workspace.Workspace, error) {
	f.provisions++
	if f.provisionErr != nil {
		return workspace.Workspace{}, f.provisionErr
	}
	if _, ok := f.provisioned[taskName]; ok {
		return workspace.Workspace{}, fmt.Errorf("%w: branch pit/%s already exists", workspace.ErrConflict, taskName)
	}
	ws := workspace.Workspace{
		Branch: workspace.BranchPrefix + taskName,
		Path:   filepath.Join(f.root, ".pit", "worktrees", taskName),
	}
	f.provisioned[taskName] = ws
	return ws, nil
}

func (f *fakeWorkspaces) Teardown(ws workspace.Workspace) ([]string, error) {
	f.tornDown = append(f.tornDown, ws.Branch)
	for name, p := range f.provisioned {
		if p == ws {
			delete(f.provisioned, name)
		}
	}
	return f.teardownWarnings, f.teardownErr
}

type fakeSessions struct {
	live      map[string][]string
	dirs      map[string]string
	createErr error
	creates   int
	attached  []string
	// exitOnAttach simulates the agent exiting while the user is attached.
	exitOnAttach bool
	// exitOnCreate simulates an agent whose process dies as soon as tmux
	// starts it, so the session is gone before anyone can attach.
	exitOnCreate bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{live: map[string][]string{}, dirs: map[string]string{}}
}

func (f *fakeSessions) ListLive(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(f.live))
	for name := range f.live {
		out[name] = true
	}
	return out, nil
}

func (f *fakeSessions) Create(ctx context.Context, name, workDir string, argv []string) error {
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.live[name]; ok {
		return fmt.Errorf("%w: duplicate session %s", tmux.ErrSpawnFailed, name)
	}
	f.dirs[name] = workDir
	if !f.exitOnCreate {
		f.live[name] = argv
	}
	return nil
}

func (f *fakeSessions) Exists(ctx context.Context, name string) bool {
	_, ok := f.live[name]
	return ok
}

func (f *fakeSessions) Kill(ctx context.Context, name string) error {
	delete(f.live, name)
	return nil
}

func (f *fakeSessions) Attach(ctx context.Context, name string) error {
	if _, ok := f.live[name]; !ok {
		return fmt.Errorf("%w: %s", tmux.ErrSessionNotFound, name)
	}
	f.attached = append(f.attached, name)
	if f.exitOnAttach {
		delete(f.live, name)
	}
	return nil
}

type fakeCheckpoints struct {
	tags    map[string][]string
	err     error
	deleted []string
}

func (f *fakeCheckpoints) DeleteAll(taskName string) ([]string, error) {
	f.deleted = append(f.deleted, taskName)
	tags := f.tags[taskName]
	delete(f.tags, taskName)
	return tags, f.err
}

type harness struct {
	db       *state.DB
	ws       *fakeWorkspaces
	sessions *fakeSessions
	orch     *Orchestrator
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "pit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{db: db, ws: newFakeWorkspaces(), sessions: newFakeSessions()}

	n := 0
	tokens := WithTokenGenerator(func() string {
		n++
		return fmt.Sprintf("tok-%d", n)
	})
	h.orch = New(RequiredConfig{Store: db, Workspaces: h.ws, Sessions: h.sessions}, append([]Option{tokens}, opts...)...)
	return h
}

func (h *harness) create(t *testing.T, name, agentID, prompt string) *models.Task {
	t.Helper()
	task, err := h.orch.Create(context.Background(), CreateOptions{Name: name, Agent: agentID, Prompt: prompt})
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return task
}

func (h *harness) task(t *testing.T, name string) *models.Task {
	t.Helper()
	task, err := h.db.GetTaskByName(context.Background(), name)
	if err != nil {
		t.Fatalf("GetTaskByName(%s): %v", name, err)
	}
	return task
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	task := h.create(t, "fix-auth", "claude", "fix login")
	if task.Status != models.TaskStatusIdle {
		t.Fatalf("created status = %q, want idle", task.Status)
	}
	if task.Branch != "pit/fix-auth" || task.Worktree != "/repo/.pit/worktrees/fix-auth" {
		t.Fatalf("workspace = %q %q", task.Branch, task.Worktree)
	}

	res, err := h.orch.Launch(ctx, "fix-auth", LaunchOptions{})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if res.Session != "pit-fix-auth" {
		t.Errorf("Session = %q", res.Session)
	}
	wantArgv := []string{"claude", "--session-id", "tok-1", "fix login"}
	if got := h.sessions.live["pit-fix-auth"]; !reflect.DeepEqual(got, wantArgv) {
		t.Errorf("argv = %q, want %q", got, wantArgv)
	}
	if h.sessions.dirs["pit-fix-auth"] != task.Worktree {
		t.Errorf("session dir = %q", h.sessions.dirs["pit-fix-auth"])
	}
	if got := h.task(t, "fix-auth"); got.Status != models.TaskStatusRunning || got.ResumeToken != "tok-1" {
		t.Errorf("after launch: status %q token %q", got.Status, got.ResumeToken)
	}

	// The agent exits on its own.
	delete(h.sessions.live, "pit-fix-auth")
	reaped, err := h.orch.Reaper().Reap(ctx)
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if len(reaped.Reaped) != 1 {
		t.Errorf("Reaped = %v", reaped.Reaped)
	}
	if got := h.task(t, "fix-auth"); got.Status != models.TaskStatusIdle || got.ResumeToken != "tok-1" {
		t.Errorf("after reap: status %q token %q", got.Status, got.ResumeToken)
	}

	res, err = h.orch.Launch(ctx, "fix-auth", LaunchOptions{})
	if err != nil {
		t.Fatalf("relaunch: %v", err)
	}
	if !res.Command.Resumed {
		t.Error("relaunch should resume")
	}
	if got := h.sessions.live["pit-fix-auth"]; !reflect.DeepEqual(got, []string{"claude", "-r", "tok-1"}) {
		t.Errorf("resume argv = %q", got)
	}

	if _, err := h.orch.Stop(ctx, "fix-auth"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	done, err := h.orch.Done(ctx, "fix-auth")
	if err != nil {
		t.Fatalf("Done: %v", err)
	}
	if done.Status != models.TaskStatusDone {
		t.Errorf("Done status = %q", done.Status)
	}

	if err := h.orch.Delete(ctx, "fix-auth"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := h.db.GetTaskByName(ctx, "fix-auth"); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("row survived delete: %v", err)
	}
	if len(h.sessions.live) != 0 {
		t.Errorf("live sessions after delete: %v", h.sessions.live)
	}
	if len(h.ws.provisioned) != 0 {
		t.Errorf("workspaces after delete: %v", h.ws.provisioned)
	}
}

func TestCreate_InvalidName(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"", "has space", "semi;colon", "a/b"} {
		_, err := h.orch.Create(context.Background(), CreateOptions{Name: name})
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("Create(%q) = %v, want ErrInvalidName", name, err)
		}
	}
	if h.ws.provisions != 0 {
		t.Errorf("invalid names reached the workspace manager %d times", h.ws.provisions)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	h := newHarness(t)
	h.create(t, "fix-auth", "", "")

	_, err := h.orch.Create(context.Background(), CreateOptions{Name: "fix-auth"})
	if !errors.Is(err, state.ErrDuplicateName) {
		t.Fatalf("duplicate Create = %v, want ErrDuplicateName", err)
	}
	if h.ws.provisions != 1 || len(h.ws.provisioned) != 1 {
		t.Errorf("provisions = %d, workspaces = %d; want 1, 1", h.ws.provisions, len(h.ws.provisioned))
	}
	tasks, _ := h.db.ListTasks(context.Background())
	if len(tasks) != 1 {
		t.Errorf("rows = %d, want 1", len(tasks))
	}
}

func TestCreate_DefaultAgent(t *testing.T) {
	h := newHarness(t, WithDefaultAgent("pi"))
	task := h.create(t, "t", "", "")
	if task.Agent != "pi" {
		t.Errorf("Agent = %q, want pi", task.Agent)
	}
	if h.orch.DefaultAgent() != "pi" {
		t.Errorf("DefaultAgent() = %q", h.orch.DefaultAgent())
	}
}

func TestCreate_ProvisionFailure(t *testing.T) {
	h := newHarness(t)
	h.ws.provisionErr = fmt.Errorf("%w: path exists", workspace.ErrConflict)

	_, err := h.orch.Create(context.Background(), CreateOptions{Name: "t"})
	if !errors.Is(err, workspace.ErrConflict) {
		t.Fatalf("Create = %v, want ErrConflict", err)
	}
	tasks, _ := h.db.ListTasks(context.Background())
	if len(tasks) != 0 {
		t.Errorf("row written after failed provision")
	}
}

type failingCreateStore struct {
	*state.DB
}

func (s failingCreateStore) CreateTask(ctx context.Context, nt state.NewTask) (*models.Task, error) {
	return nil, fmt.Errorf("%w: disk full", state.ErrStorageIO)
}

func TestCreate_StoreFailureTearsDown(t *testing.T) {
	h := newHarness(t)
	orch := New(RequiredConfig{Store: failingCreateStore{h.db}, Workspaces: h.ws, Sessions: h.sessions})

	_, err := orch.Create(context.Background(), CreateOptions{Name: "t"})
	if !errors.Is(err, state.ErrStorageIO) {
		t.Fatalf("Create = %v, want ErrStorageIO", err)
	}
	if len(h.ws.tornDown) != 1 || len(h.ws.provisioned) != 0 {
		t.Errorf("workspace not rolled back: torn down %v, left %v", h.ws.tornDown, h.ws.provisioned)
	}
}

func TestLaunch_UnknownAgentFallsBackToClaude(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "foo", "do it")

	res, err := h.orch.Launch(context.Background(), "t", LaunchOptions{})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	want := []string{"claude", "--session-id", "tok-1", "do it"}
	if !reflect.DeepEqual(res.Command.Argv, want) {
		t.Errorf("argv = %q, want %q", res.Command.Argv, want)
	}
	if res.Command.Agent != models.AgentClaude {
		t.Errorf("resolved agent = %q", res.Command.Agent)
	}
}

func TestLaunch_ReusesLiveSession(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "", "")
	ctx := context.Background()

	if _, err := h.orch.Launch(ctx, "t", LaunchOptions{}); err != nil {
		t.Fatalf("first Launch: %v", err)
	}
	res, err := h.orch.Launch(ctx, "t", LaunchOptions{Attach: true})
	if err != nil {
		t.Fatalf("second Launch: %v", err)
	}
	if !res.AlreadyRunning {
		t.Error("expected AlreadyRunning")
	}
	if h.sessions.creates != 1 {
		t.Errorf("creates = %d, want 1", h.sessions.creates)
	}
	if len(h.sessions.attached) != 1 || h.sessions.attached[0] != "pit-t" {
		t.Errorf("attached = %v", h.sessions.attached)
	}
}

func TestLaunch_StaleRunningRowIsReconciled(t *testing.T) {
	h := newHarness(t)
	task := h.create(t, "t", "claude", "")
	ctx := context.Background()

	// Row says running but tmux has nothing.
	if err := h.db.MarkRunning(ctx, task.ID, "pit-t", "old-token"); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	res, err := h.orch.Launch(ctx, "t", LaunchOptions{})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if !reflect.DeepEqual(res.Command.Argv, []string{"claude", "-r", "old-token"}) {
		t.Errorf("argv = %q", res.Command.Argv)
	}
	if !h.sessions.Exists(ctx, "pit-t") {
		t.Error("session not created")
	}
}

func TestLaunch_SpawnFailureRestoresIdle(t *testing.T) {
	h := newHarness(t)
	task := h.create(t, "t", "", "")
	ctx := context.Background()
	h.sessions.createErr = fmt.Errorf("%w: tmux not found", tmux.ErrSpawnFailed)

	_, err := h.orch.Launch(ctx, "t", LaunchOptions{})
	if !errors.Is(err, tmux.ErrSpawnFailed) {
		t.Fatalf("Launch = %v, want ErrSpawnFailed", err)
	}

	got := h.task(t, "t")
	if got.Status != models.TaskStatusIdle {
		t.Errorf("status = %q, want idle", got.Status)
	}
	if got.ResumeToken != task.ResumeToken || got.SessionName != task.SessionName {
		t.Errorf("session binding not restored: %q/%q", got.SessionName, got.ResumeToken)
	}
}

func TestLaunch_AttachReapsExitedAgent(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "", "")
	h.sessions.exitOnAttach = true

	if _, err := h.orch.Launch(context.Background(), "t", LaunchOptions{Attach: true}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got := h.task(t, "t"); got.Status != models.TaskStatusIdle {
		t.Errorf("status after agent exit = %q, want idle", got.Status)
	}
}

func TestLaunch_SpawnFailureKeepsDone(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "", "")
	ctx := context.Background()

	if _, err := h.orch.Launch(ctx, "t", LaunchOptions{}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := h.orch.Stop(ctx, "t"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := h.orch.Done(ctx, "t"); err != nil {
		t.Fatalf("Done: %v", err)
	}
	before := h.task(t, "t")

	h.sessions.createErr = fmt.Errorf("%w: tmux not found", tmux.ErrSpawnFailed)
	if _, err := h.orch.Launch(ctx, "t", LaunchOptions{}); !errors.Is(err, tmux.ErrSpawnFailed) {
		t.Fatalf("Launch = %v, want ErrSpawnFailed", err)
	}

	got := h.task(t, "t")
	if got.Status != models.TaskStatusDone {
		t.Errorf("status after failed relaunch = %q, want done", got.Status)
	}
	if got.ResumeToken != before.ResumeToken || got.SessionName != before.SessionName {
		t.Errorf("session binding = %q/%q, want %q/%q",
			got.SessionName, got.ResumeToken, before.SessionName, before.ResumeToken)
	}
}

func TestLaunch_AttachAfterAgentExitedImmediately(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "custom", "true")
	h.sessions.exitOnCreate = true

	_, err := h.orch.Launch(context.Background(), "t", LaunchOptions{Attach: true})
	if !errors.Is(err, ErrAgentExited) {
		t.Fatalf("Launch = %v, want ErrAgentExited", err)
	}
	if !errors.Is(err, tmux.ErrSessionNotFound) {
		t.Errorf("Launch = %v, want the session error kept in the chain", err)
	}
	if h.sessions.creates != 1 || len(h.sessions.attached) != 0 {
		t.Errorf("creates = %d, attached = %v", h.sessions.creates, h.sessions.attached)
	}

	got := h.task(t, "t")
	if got.Status != models.TaskStatusIdle {
		t.Errorf("status = %q, want idle", got.Status)
	}
	if got.ResumeToken != "tok-1" {
		t.Errorf("ResumeToken = %q, want tok-1 kept", got.ResumeToken)
	}
}

func TestLaunch_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Launch(context.Background(), "ghost", LaunchOptions{})
	if !errors.Is(err, state.ErrNotFound) {
		t.Errorf("Launch = %v, want ErrNotFound", err)
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "", "")
	ctx := context.Background()

	if _, err := h.orch.Launch(ctx, "t", LaunchOptions{}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	task, err := h.orch.Stop(ctx, "t")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if task.Status != models.TaskStatusIdle {
		t.Errorf("status = %q, want idle", task.Status)
	}
	if task.ResumeToken != "tok-1" {
		t.Errorf("token = %q, want tok-1", task.ResumeToken)
	}
	if h.sessions.Exists(ctx, "pit-t") {
		t.Error("session still live after stop")
	}

	// Stopping again is harmless.
	if _, err := h.orch.Stop(ctx, "t"); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestDone_Transitions(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "", "")
	ctx := context.Background()

	if _, err := h.orch.Launch(ctx, "t", LaunchOptions{}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := h.orch.Done(ctx, "t"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Done while running = %v, want ErrInvalidTransition", err)
	}

	if _, err := h.orch.Stop(ctx, "t"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := h.orch.Done(ctx, "t"); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if _, err := h.orch.Done(ctx, "t"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Done twice = %v, want ErrInvalidTransition", err)
	}

	// Done tasks can be relaunched.
	if _, err := h.orch.Launch(ctx, "t", LaunchOptions{}); err != nil {
		t.Fatalf("relaunch from done: %v", err)
	}
	if got := h.task(t, "t"); got.Status != models.TaskStatusRunning {
		t.Errorf("status = %q, want running", got.Status)
	}
}

func TestDone_ExitedAgentIsReconciledFirst(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "", "")
	ctx := context.Background()

	if _, err := h.orch.Launch(ctx, "t", LaunchOptions{}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	delete(h.sessions.live, "pit-t")

	task, err := h.orch.Done(ctx, "t")
	if err != nil {
		t.Fatalf("Done: %v", err)
	}
	if task.Status != models.TaskStatusDone {
		t.Errorf("status = %q, want done", task.Status)
	}
}

func TestDelete_RunningTaskAndShell(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "", "")
	ctx := context.Background()

	if _, err := h.orch.Launch(ctx, "t", LaunchOptions{}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := h.orch.Shell(ctx, "t", false); err != nil {
		t.Fatalf("Shell: %v", err)
	}

	if err := h.orch.Delete(ctx, "t"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(h.sessions.live) != 0 {
		t.Errorf("sessions left: %v", h.sessions.live)
	}
}

func TestDelete_WarningsDoNotBlock(t *testing.T) {
	h := newHarness(t)
	h.create(t, "t", "", "")
	ctx := context.Background()
	h.ws.teardownWarnings = []string{"could not delete branch pit/t: locked"}
	h.ws.teardownErr = errors.New("remove worktree: permission denied")

	err := h.orch.Delete(ctx, "t")
	var ce *CleanupError
	if !errors.As(err, &ce) {
		t.Fatalf("Delete = %v, want *CleanupError", err)
	}
	if len(ce.Warnings) != 2 {
		t.Errorf("Warnings = %v, want 2", ce.Warnings)
	}
	if !IsCleanupOnly(err) {
		t.Error("IsCleanupOnly should accept a CleanupError")
	}
	if _, err := h.db.GetTaskByName(ctx, "t"); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("row survived delete: %v", err)
	}
}

func TestDelete_RemovesCheckpoints(t *testing.T) {
	cps := &fakeCheckpoints{tags: map[string][]string{
		"t":     {"pit/checkpoint/t/1", "pit/checkpoint/t/2"},
		"other": {"pit/checkpoint/other/1"},
	}}
	h := newHarness(t, WithCheckpoints(cps))
	h.create(t, "t", "", "")

	if err := h.orch.Delete(context.Background(), "t"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !reflect.DeepEqual(cps.deleted, []string{"t"}) {
		t.Errorf("DeleteAll calls = %v, want [t]", cps.deleted)
	}
	if _, ok := cps.tags["other"]; !ok {
		t.Error("another task's checkpoints were removed")
	}
}

func TestDelete_CheckpointFailureIsWarning(t *testing.T) {
	cps := &fakeCheckpoints{err: errors.New("delete tag pit/checkpoint/t/1: locked")}
	h := newHarness(t, WithCheckpoints(cps))
	h.create(t, "t", "", "")
	ctx := context.Background()

	err := h.orch.Delete(ctx, "t")
	var ce *CleanupError
	if !errors.As(err, &ce) || len(ce.Warnings) != 1 {
		t.Fatalf("Delete = %v, want one cleanup warning", err)
	}
	if _, err := h.db.GetTaskByName(ctx, "t"); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("row survived delete: %v", err)
	}
}

func TestShell(t *testing.T) {
	h := newHarness(t, WithShell("/bin/zsh"))
	task := h.create(t, "t", "", "")
	ctx := context.Background()

	session, err := h.orch.Shell(ctx, "t", true)
	if err != nil {
		t.Fatalf("Shell: %v", err)
	}
	if session != "pit-shell-t" {
		t.Errorf("session = %q", session)
	}
	if got := h.sessions.live[session]; !reflect.DeepEqual(got, []string{"/bin/zsh"}) {
		t.Errorf("argv = %q", got)
	}
	if h.sessions.dirs[session] != task.Worktree {
		t.Errorf("dir = %q", h.sessions.dirs[session])
	}

	// Reused on the second call.
	if _, err := h.orch.Shell(ctx, "t", false); err != nil {
		t.Fatalf("second Shell: %v", err)
	}
	if h.sessions.creates != 1 {
		t.Errorf("creates = %d, want 1", h.sessions.creates)
	}
	if got := h.task(t, "t"); got.Status != models.TaskStatusIdle {
		t.Errorf("shell changed task status to %q", got.Status)
	}
}
