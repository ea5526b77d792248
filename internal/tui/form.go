package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iaptsiauri/pit/internal/lifecycle"
)

const (
	fieldName = iota
	fieldPrompt
	fieldAgent
	fieldCount
)

var fieldLabels = [fieldCount]string{"Name", "Prompt", "Agent"}

// taskForm collects the fields of a new task.
type taskForm struct {
	inputs  [fieldCount]textinput.Model
	focused int
	width   int
}

// newTaskForm creates the form. suggested fills the name placeholder and is
// used when the name is left empty.
func newTaskForm(suggested, defaultAgent string) *taskForm {
	f := &taskForm{width: 60}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 500
		ti.Width = f.width - 12
		f.inputs[i] = ti
	}
	f.inputs[fieldName].Placeholder = suggested
	f.inputs[fieldName].CharLimit = lifecycle.MaxNameLength
	f.inputs[fieldPrompt].Placeholder = "what should the agent do?"
	f.inputs[fieldAgent].Placeholder = defaultAgent
	f.inputs[fieldName].Focus()
	return f
}

// SetWidth sets the width of the form.
func (f *taskForm) SetWidth(width int) {
	f.width = width
	for i := range f.inputs {
		f.inputs[i].Width = max(width-16, 10)
	}
}

// Focus moves focus by delta fields, wrapping around.
func (f *taskForm) Focus(delta int) tea.Cmd {
	f.inputs[f.focused].Blur()
	f.focused = (f.focused + delta + fieldCount) % fieldCount
	return f.inputs[f.focused].Focus()
}

// Update forwards a message to the focused input.
func (f *taskForm) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return cmd
}

// Options returns the create options entered, falling back to placeholders
// for the name and agent.
func (f *taskForm) Options() lifecycle.CreateOptions {
	value := func(i int) string {
		if v := strings.TrimSpace(f.inputs[i].Value()); v != "" {
			return v
		}
		return f.inputs[i].Placeholder
	}
	return lifecycle.CreateOptions{
		Name:   value(fieldName),
		Prompt: strings.TrimSpace(f.inputs[fieldPrompt].Value()),
		Agent:  value(fieldAgent),
	}
}

// View renders the form.
func (f *taskForm) View() string {
	label := lipgloss.NewStyle().Width(8).Foreground(colorMuted)
	active := label.Foreground(colorAccent).Bold(true)

	var rows []string
	rows = append(rows, titleStyle.PaddingLeft(0).Render("New task"), "")
	for i, in := range f.inputs {
		l := label
		if i == f.focused {
			l = active
		}
		rows = append(rows, l.Render(fieldLabels[i])+in.View())
	}
	rows = append(rows, "", mutedStyle.Render("tab next · enter create · esc cancel"))
	return formBoxStyle.Width(f.width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
