package tui

import (
	"fmt"
	"strings"

	"pkt.systems/rooboost/schema"
)

const (
	dateLayout   = "2006-01-02 15:04"
	summaryWidth = 60
	projectWidth = 18
)

// View implements tea.Model.
func (m Model) View() string {
	if m.closed {
		return ""
	}
	var b strings.Builder
	title := m.cfg.Title
	if title == "" {
		title = "Tasks"
	}
	b.WriteString(m.theme.Title.Render(title))
	b.WriteString("\n")

	project := m.project
	if project == "" {
		project = "all"
	}
	header := fmt.Sprintf("source: %s  target: %s  project: %s  selected: %d", m.source, orNone(m.target), project, len(m.selected))
	b.WriteString(m.theme.Meta.Render(header))
	b.WriteString("\n\n")

	visible := m.visible()
	switch {
	case m.errText != "" && len(m.tasks) == 0:
	case len(visible) == 0 && m.tasks == nil && m.debug == "":
		b.WriteString("Loading tasks...\n")
	case len(visible) == 0:
		b.WriteString("No tasks found\n")
	default:
		for i, task := range visible {
			b.WriteString(m.renderRow(task, i == m.cursor))
			b.WriteString("\n")
		}
	}

	if m.errText != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.Error.Render(m.errText))
		b.WriteString("\n")
	}
	if m.debug != "" {
		b.WriteString(m.theme.Meta.Render("Debug: " + m.debug))
		b.WriteString("\n")
	}
	if len(m.notes) > 0 {
		b.WriteString("\n")
		for _, note := range m.notes {
			b.WriteString(m.theme.Meta.Render(note))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	if m.confirmDelete {
		b.WriteString(m.theme.Error.Render(fmt.Sprintf("Delete %d task(s)? (y/n)", len(m.targets()))))
	} else {
		b.WriteString(m.theme.Help.Render("j/k move  x select  a all  enter view  r reload  s source  t target  p project  m move  d delete  q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderRow(task schema.TaskRecord, cursor bool) string {
	mark := "[ ]"
	if m.selected[task.Path] {
		mark = "[x]"
	}
	project := m.theme.Project.Render(pad(truncate(task.ProjectName, projectWidth), projectWidth))
	line := fmt.Sprintf("%s %s %s %s %s",
		mark,
		task.ModifiedAt.Local().Format(dateLayout),
		project,
		truncate(oneLine(task.SummaryMessage), summaryWidth),
		task.ShortID(),
	)
	switch {
	case cursor:
		return m.theme.Cursor.Render(">") + " " + line
	case m.selected[task.Path]:
		return "  " + m.theme.Selected.Render(line)
	default:
		return "  " + line
	}
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orNone(source schema.SourceKey) string {
	if source == "" {
		return "none"
	}
	return string(source)
}
