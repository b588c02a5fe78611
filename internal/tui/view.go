package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/taproot/internal/views"
	"github.com/ldi/taproot/pkg/models"
)

var (
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	tabStyle         = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("12")).Bold(true).Underline(true)
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	doneStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Strikethrough(true)
	overdueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dueStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	highStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mediumStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	lowStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	promptLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("taproot"))
	b.WriteString("  ")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if m.view.IsList() {
		b.WriteString(m.renderList())
	} else {
		b.WriteString(m.renderStats())
	}

	b.WriteString("\n")
	if m.mode != modeList && m.mode != modeConfirmDelete {
		b.WriteString(promptLabelStyle.Render("> "))
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("a add  A subtask  e edit  u due  p priority  m move  d delete  space toggle  / search  v view  s/S sort  r reload  q quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderTabs() string {
	parts := make([]string, 0, len(models.Views()))
	for _, v := range models.Views() {
		if v == m.view {
			parts = append(parts, activeTabStyle.Render(string(v)))
		} else {
			parts = append(parts, tabStyle.Render(string(v)))
		}
	}
	return strings.Join(parts, "")
}

func (m Model) renderList() string {
	if len(m.rows) == 0 {
		return helpStyle.Render("  (no todos in this view)") + "\n"
	}

	now := time.Now()
	var b strings.Builder
	for i, r := range m.rows {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		b.WriteString(cursor)
		b.WriteString(strings.Repeat("  ", r.depth))
		b.WriteString(renderTask(r.task, now))
		b.WriteString("\n")
	}
	return b.String()
}

func renderTask(t *models.Task, now time.Time) string {
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}

	line := fmt.Sprintf("%s %s %s", check, priorityBadge(t.Priority), t.Text)
	if t.Completed {
		line = doneStyle.Render(line)
	}

	if t.DueDate != nil {
		due := t.DueDate.Format("2006-01-02")
		switch {
		case !t.Completed && t.Overdue(now):
			line += " " + overdueStyle.Render("overdue "+due)
		case !t.Completed && t.DueToday(now):
			line += " " + dueStyle.Render("due today")
		default:
			line += " " + helpStyle.Render("due "+due)
		}
	}
	if t.ChildrenCount > 0 {
		line += " " + helpStyle.Render(fmt.Sprintf("(%d)", t.ChildrenCount))
	}
	return line
}

func priorityBadge(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return highStyle.Render("!!!")
	case models.PriorityMedium:
		return mediumStyle.Render(" !!")
	default:
		return lowStyle.Render("  !")
	}
}

func (m Model) renderStats() string {
	local := views.Aggregate(m.store.Tasks(), time.Now())

	var b strings.Builder
	b.WriteString(titleStyle.Render("Top-level todos"))
	b.WriteString("\n")
	writeStats(&b, local)

	if m.remoteStats != nil {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Server totals (all todos)"))
		b.WriteString("\n")
		writeStats(&b, m.remoteStats)
	}
	return b.String()
}

func writeStats(b *strings.Builder, s *models.Stats) {
	row := func(label string, n int) {
		b.WriteString("  ")
		b.WriteString(statLabelStyle.Render(label))
		b.WriteString(fmt.Sprintf("%d\n", n))
	}
	row("total", s.Total)
	row("completed", s.Completed)
	row("pending", s.Pending)
	row("overdue", s.Overdue)
	row("due today", s.DueToday)
	row("high", s.ByPriority[models.PriorityHigh])
	row("medium", s.ByPriority[models.PriorityMedium])
	row("low", s.ByPriority[models.PriorityLow])
}
