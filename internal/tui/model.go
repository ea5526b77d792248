package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/iaptsiauri/pit/internal/gitinfo"
	"github.com/iaptsiauri/pit/internal/lifecycle"
	"github.com/iaptsiauri/pit/pkg/models"
)

// DefaultRefreshInterval is used when Options.RefreshInterval is zero.
const DefaultRefreshInterval = 2 * time.Second

type mode int

const (
	modeList mode = iota
	modeConfirmDelete
	modeNew
)

// Options configures the dashboard.
type Options struct {
	// WatchDir is the .pit directory holding pit.db. Empty disables the
	// file watcher and leaves only the refresh tick.
	WatchDir        string
	RefreshInterval time.Duration
	DefaultAgent    string
	Logger          *log.Logger
}

type (
	tasksMsg struct {
		tasks []*models.Task
		err   error
	}
	changesMsg struct {
		name string
		info gitinfo.Info
	}
	// actionMsg reports the outcome of a lifecycle operation.
	actionMsg struct {
		status string
		err    error
	}
	launchedMsg struct {
		name    string
		session string
		err     error
	}
	attachDoneMsg struct {
		name string
		err  error
	}
	tickMsg time.Time
)

// Model is the dashboard's bubbletea model.
type Model struct {
	ctx     context.Context
	backend Backend
	opts    Options
	logger  *log.Logger

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	form    *taskForm

	tasks   []*models.Task
	cursor  int
	mode    mode
	changes *changesMsg

	busy      string
	status    string
	statusErr bool

	width   int
	height  int
	changed <-chan struct{}
	now     func() time.Time
}

// New creates the dashboard model. The file watcher, when enabled, lives
// until ctx is cancelled.
func New(ctx context.Context, backend Backend, opts Options) *Model {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.DefaultAgent == "" {
		opts.DefaultAgent = string(models.DefaultAgent)
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	m := &Model{
		ctx:     ctx,
		backend: backend,
		opts:    opts,
		logger:  opts.Logger.WithPrefix("tui"),
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		width:   80,
		height:  24,
		now:     time.Now,
	}

	if opts.WatchDir != "" {
		changed, err := watchDB(ctx, opts.WatchDir, m.logger)
		if err != nil {
			m.logger.Warn("file watcher unavailable, polling only", "dir", opts.WatchDir, "err", err)
		} else {
			m.changed = changed
		}
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refresh(), m.tick()}
	if m.changed != nil {
		cmds = append(cmds, waitForChange(m.changed))
	}
	return tea.Batch(cmds...)
}

// Selected returns the task under the cursor, or nil.
func (m *Model) Selected() *models.Task {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return nil
	}
	return m.tasks[m.cursor]
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if m.form != nil {
			m.form.SetWidth(min(msg.Width-4, 80))
		}
		return m, nil

	case tasksMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("refresh failed: %v", msg.err), true)
			return m, nil
		}
		m.setTasks(msg.tasks)
		return m, m.loadChanges()

	case changesMsg:
		if sel := m.Selected(); sel != nil && sel.Name == msg.name {
			m.changes = &msg
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())

	case dbChangedMsg:
		return m, tea.Batch(m.refresh(), waitForChange(m.changed))

	case actionMsg:
		m.busy = ""
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		} else {
			m.setStatus(msg.status, false)
		}
		return m, m.refresh()

	case launchedMsg:
		m.busy = ""
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("open %s: %v", msg.name, msg.err), true)
			return m, m.refresh()
		}
		name := msg.name
		return m, tea.ExecProcess(m.backend.AttachCommand(msg.session), func(err error) tea.Msg {
			return attachDoneMsg{name: name, err: err}
		})

	case attachDoneMsg:
		if msg.err != nil {
			m.logger.Warn("attach exited with error", "task", msg.name, "err", msg.err)
		}
		return m, m.reconcile(msg.name)

	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case modeConfirmDelete:
			return m.updateConfirmDelete(msg)
		case modeNew:
			return m.updateForm(msg)
		default:
			return m.updateList(msg)
		}
	}

	// Cursor blinks and other input internals belong to the form.
	if m.mode == modeNew && m.form != nil {
		return m, m.form.Update(msg)
	}
	return m, nil
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sel := m.Selected()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.move(-1)
		return m, m.loadChanges()

	case key.Matches(msg, m.keys.Down):
		m.move(1)
		return m, m.loadChanges()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.mode = modeNew
		m.form = newTaskForm(m.backend.SuggestName(m.ctx), m.opts.DefaultAgent)
		m.form.SetWidth(min(m.width-4, 80))
		return m, m.form.inputs[fieldName].Focus()
	}

	if sel == nil {
		return m, nil
	}
	name := sel.Name

	switch {
	case key.Matches(msg, m.keys.Open):
		return m, m.start("opening "+name, func() tea.Msg {
			res, err := m.backend.Launch(m.ctx, name)
			if err != nil {
				return launchedMsg{name: name, err: err}
			}
			return launchedMsg{name: name, session: res.Session}
		})

	case key.Matches(msg, m.keys.Background):
		return m, m.start("starting "+name, func() tea.Msg {
			res, err := m.backend.Launch(m.ctx, name)
			if err != nil {
				return actionMsg{err: err}
			}
			if res.AlreadyRunning {
				return actionMsg{status: name + " is already running"}
			}
			return actionMsg{status: fmt.Sprintf("started %s (%s)", name, res.Command)}
		})

	case key.Matches(msg, m.keys.Stop):
		return m, m.start("stopping "+name, func() tea.Msg {
			_, err := m.backend.Stop(m.ctx, name)
			return actionMsg{status: "stopped " + name, err: err}
		})

	case key.Matches(msg, m.keys.Done):
		return m, m.start("finishing "+name, func() tea.Msg {
			_, err := m.backend.Done(m.ctx, name)
			return actionMsg{status: name + " marked done", err: err}
		})

	case key.Matches(msg, m.keys.Delete):
		m.mode = modeConfirmDelete
		return m, nil
	}
	return m, nil
}

func (m *Model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = modeList
	sel := m.Selected()
	if msg.String() != "y" || sel == nil {
		m.setStatus("delete cancelled", false)
		return m, nil
	}
	name := sel.Name
	return m, m.start("deleting "+name, func() tea.Msg {
		err := m.backend.Delete(m.ctx, name)
		var cleanup *lifecycle.CleanupError
		if errors.As(err, &cleanup) {
			return actionMsg{status: fmt.Sprintf("deleted %s with %d cleanup warning(s)", name, len(cleanup.Warnings))}
		}
		return actionMsg{status: "deleted " + name, err: err}
	})
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.form = nil
		return m, nil
	case "tab", "down":
		return m, m.form.Focus(1)
	case "shift+tab", "up":
		return m, m.form.Focus(-1)
	case "enter":
		opts := m.form.Options()
		if err := lifecycle.ValidateName(opts.Name); err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.mode = modeList
		m.form = nil
		return m, m.start("creating "+opts.Name, func() tea.Msg {
			task, err := m.backend.Create(m.ctx, opts)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: fmt.Sprintf("created %s on %s", task.Name, task.Branch)}
		})
	}
	return m, m.form.Update(msg)
}

// start marks the dashboard busy and runs fn in the background.
func (m *Model) start(label string, fn tea.Cmd) tea.Cmd {
	m.busy = label
	m.status = ""
	return tea.Batch(fn, m.spinner.Tick)
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.backend.Tasks(m.ctx)
		return tasksMsg{tasks: tasks, err: err}
	}
}

func (m *Model) reconcile(name string) tea.Cmd {
	return func() tea.Msg {
		if err := m.backend.Reconcile(m.ctx, name); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "detached from " + name}
	}
}

func (m *Model) loadChanges() tea.Cmd {
	sel := m.Selected()
	if sel == nil {
		m.changes = nil
		return nil
	}
	if m.changes != nil && m.changes.name != sel.Name {
		m.changes = nil
	}
	task := *sel
	return func() tea.Msg {
		return changesMsg{name: task.Name, info: m.backend.Changes(&task)}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// setTasks replaces the task list, keeping the cursor on the same task
// when it still exists.
func (m *Model) setTasks(tasks []*models.Task) {
	var current string
	if sel := m.Selected(); sel != nil {
		current = sel.Name
	}
	m.tasks = tasks
	m.cursor = min(m.cursor, max(len(tasks)-1, 0))
	for i, t := range tasks {
		if t.Name == current {
			m.cursor = i
			break
		}
	}
}

func (m *Model) move(delta int) {
	if len(m.tasks) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.tasks)-1)
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}
