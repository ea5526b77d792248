package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/iaptsiauri/pit/pkg/models"
)

const maxNameWidth = 30

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	if m.mode == modeNew && m.form != nil {
		b.WriteString(m.form.View())
		b.WriteString("\n")
		b.WriteString(m.statusView())
		return b.String()
	}

	b.WriteString(m.tableView())
	if sel := m.Selected(); sel != nil {
		b.WriteString("\n")
		b.WriteString(m.detailView(sel))
	}
	b.WriteString("\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) headerView() string {
	counts := map[models.TaskStatus]int{}
	for _, t := range m.tasks {
		counts[t.Status]++
	}
	summary := mutedStyle.Render(fmt.Sprintf("%d tasks · %d running · %d idle · %d done",
		len(m.tasks), counts[models.TaskStatusRunning], counts[models.TaskStatusIdle], counts[models.TaskStatusDone]))
	return titleStyle.Render("pit") + "  " + summary
}

func (m *Model) tableView() string {
	if len(m.tasks) == 0 {
		return mutedStyle.Render("  No tasks yet. Press n to create one.")
	}

	nameWidth := len("NAME")
	for _, t := range m.tasks {
		nameWidth = max(nameWidth, len(t.Name))
	}
	nameWidth = min(nameWidth, maxNameWidth)

	row := func(name, status, agent, age, issue string) string {
		return fmt.Sprintf("  %-*s  %-9s  %-7s  %4s  %s", nameWidth, truncate(name, nameWidth), status, agent, age, issue)
	}

	lines := []string{headerRowStyle.Render(row("NAME", "STATUS", "AGENT", "AGE", "ISSUE"))}
	now := m.now()
	issueWidth := max(m.width-nameWidth-36, 10)
	for i, t := range m.tasks {
		issue := t.IssueTitle
		if issue == "" {
			issue = t.IssueRef
		}
		status := fmt.Sprintf("%s %s", statusIcon(t.Status), t.Status)
		line := row(t.Name, status, t.Agent, t.Age(now), truncate(issue, issueWidth))
		if i == m.cursor {
			lines = append(lines, selectedStyle.Render(line))
			continue
		}
		lines = append(lines, statusStyle(t.Status).Render(line))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) detailView(t *models.Task) string {
	field := func(label, value string) string {
		return mutedStyle.Render(fmt.Sprintf("%-9s", label)) + value
	}

	rows := []string{
		field("branch", t.Branch),
		field("worktree", t.Worktree),
	}
	if t.SessionName != "" {
		rows = append(rows, field("session", t.SessionName))
	}
	if t.HasIssue() {
		rows = append(rows, field("issue", t.IssueRef))
	}
	if t.Prompt != "" {
		rows = append(rows, field("prompt", truncate(firstLine(t.Prompt), max(m.width-16, 20))))
	}

	if c := m.changes; c != nil && c.name == t.Name {
		info := c.info
		rows = append(rows, field("changes", fmt.Sprintf("%d commits vs %s, %d files ",
			len(info.Commits), info.Base, len(info.Files))+
			insertStyle.Render(fmt.Sprintf("+%d", info.Insertions))+" "+
			deleteStyle.Render(fmt.Sprintf("-%d", info.Deletions))))
		for i, f := range info.Files {
			if i == 5 {
				rows = append(rows, mutedStyle.Render(fmt.Sprintf("         … %d more", len(info.Files)-5)))
				break
			}
			rows = append(rows, fmt.Sprintf("         %s %s %s", f.Path,
				insertStyle.Render(fmt.Sprintf("+%d", f.Insertions)),
				deleteStyle.Render(fmt.Sprintf("-%d", f.Deletions))))
		}
	}

	return detailStyle.Width(max(m.width-2, 20)).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) statusView() string {
	switch {
	case m.mode == modeConfirmDelete:
		if sel := m.Selected(); sel != nil {
			return statusErrStyle.Render(fmt.Sprintf("Delete %s, its worktree and branch? (y/N)", sel.Name))
		}
	case m.busy != "":
		return m.spinner.View() + " " + m.busy
	case m.status != "" && m.statusErr:
		return statusErrStyle.Render("✗ " + m.status)
	case m.status != "":
		return statusOKStyle.Render("✓ " + m.status)
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
