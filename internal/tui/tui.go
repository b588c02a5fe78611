// Package tui is the terminal presentation layer. It renders the store's
// snapshot through the views package and issues mutations back through the
// store; it never talks to the API client directly.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/taproot/internal/config"
	"github.com/ldi/taproot/internal/store"
	"github.com/ldi/taproot/internal/views"
	"github.com/ldi/taproot/pkg/models"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeAddChild
	modeEdit
	modeDue
	modeMove
	modeSearch
	modeConfirmDelete
)

// row is one rendered line: a task plus its indentation depth.
type row struct {
	task  *models.Task
	depth int
}

type Model struct {
	store *store.Store
	cfg   config.Config

	view    models.View
	sortKey models.SortKey
	sortDir models.SortDirection

	rows   []row
	cursor int

	mode       mode
	input      textinput.Model
	target     string // task id the current form applies to
	pendingDel *models.Task

	searchSeq   int
	searchQuery string

	remoteStats *models.Stats
	status      string
	width       int
}

type (
	opDoneMsg      struct{ status string }
	opErrMsg       struct{ err error }
	searchTickMsg  struct{ seq int }
	remoteStatsMsg struct{ stats *models.Stats }
)

func NewModel(st *store.Store, cfg config.Config) Model {
	ti := textinput.New()
	ti.CharLimit = 500
	ti.Width = 40

	view := models.View(cfg.DefaultView)
	if !validView(view) {
		view = models.ViewAll
	}

	m := Model{
		store:   st,
		cfg:     cfg,
		view:    view,
		sortKey: models.SortDefault,
		sortDir: models.SortAsc,
		input:   ti,
		status:  "a add • space toggle • / search • v view • s sort • ? see help below",
	}
	m.rebuildRows()
	return m
}

// Run loads the initial collection and starts the program.
func Run(st *store.Store, cfg config.Config) error {
	if err := st.Load(context.Background()); err != nil {
		return err
	}
	program := tea.NewProgram(NewModel(st, cfg))
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 10
		return m, nil

	case opDoneMsg:
		m.status = msg.status
		m.rebuildRows()
		m.clampCursor()
		return m, nil

	case opErrMsg:
		m.status = msg.err.Error()
		m.rebuildRows()
		m.clampCursor()
		return m, nil

	case searchTickMsg:
		// Only the latest keystroke's tick dispatches; stale ones are
		// superseded and dropped.
		if msg.seq != m.searchSeq {
			return m, nil
		}
		query := m.searchQuery
		return m, m.opCmd(func(ctx context.Context) (string, error) {
			if err := m.store.Search(ctx, query); err != nil {
				return "", err
			}
			if strings.TrimSpace(query) == "" {
				return "Search cleared", nil
			}
			return "Search: " + query, nil
		})

	case remoteStatsMsg:
		m.remoteStats = msg.stats
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeConfirmDelete {
		return m.updateConfirmDelete(msg.String())
	}
	if m.mode == modeSearch {
		return m.updateSearchMode(msg)
	}
	if m.mode != modeList {
		return m.updateFormMode(msg)
	}
	return m.updateListMode(msg.String())
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "j", "down":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}

	case "v", "tab":
		m.view = nextView(m.view, 1)
		m.rebuildRows()
		m.clampCursor()
		if m.view == models.ViewStats {
			return m, m.fetchRemoteStats()
		}
	case "V", "shift+tab":
		m.view = nextView(m.view, -1)
		m.rebuildRows()
		m.clampCursor()
		if m.view == models.ViewStats {
			return m, m.fetchRemoteStats()
		}

	case "s":
		m.sortKey = nextSortKey(m.sortKey)
		m.status = "Sort: " + string(m.sortKey)
		m.rebuildRows()
		m.clampCursor()
	case "S":
		if m.sortDir == models.SortAsc {
			m.sortDir = models.SortDesc
		} else {
			m.sortDir = models.SortAsc
		}
		m.status = "Sort direction: " + string(m.sortDir)
		m.rebuildRows()
		m.clampCursor()

	case "a":
		m.mode = modeAdd
		m.target = ""
		m.startInput("New todo text", "")
	case "A":
		if t := m.currentTask(); t != nil {
			m.mode = modeAddChild
			m.target = t.ID
			m.startInput("New subtask of: "+t.Text, "")
		}

	case "e":
		if t := m.currentTask(); t != nil {
			m.mode = modeEdit
			m.target = t.ID
			m.startInput("Edit text", t.Text)
		}

	case "u":
		if t := m.currentTask(); t != nil {
			m.mode = modeDue
			m.target = t.ID
			m.startInput("Due date (YYYY-MM-DD)", formatDue(t.DueDate))
		}

	case "m":
		if t := m.currentTask(); t != nil {
			m.mode = modeMove
			m.target = t.ID
			m.startInput("New parent id (empty for root)", "")
		}

	case "p":
		if t := m.currentTask(); t != nil {
			id, next := t.ID, nextPriority(t.Priority)
			return m, m.opCmd(func(ctx context.Context) (string, error) {
				if _, err := m.store.Update(ctx, id, models.UpdateRequest{Priority: &next}); err != nil {
					return "", err
				}
				return "Priority: " + string(next), nil
			})
		}

	case " ":
		if t := m.currentTask(); t != nil {
			id, target := t.ID, !t.Completed
			return m, m.opCmd(func(ctx context.Context) (string, error) {
				if err := m.store.Toggle(ctx, id, target); err != nil {
					return "", err
				}
				if target {
					return "Completed (with subtasks)", nil
				}
				return "Reopened", nil
			})
		}

	case "d":
		if t := m.currentTask(); t != nil {
			m.mode = modeConfirmDelete
			m.pendingDel = t
			m.status = "Delete \"" + t.Text + "\" and all subtasks? y/n"
		}

	case "/":
		m.mode = modeSearch
		m.startInput("Search todos", m.searchQuery)

	case "r":
		return m, m.opCmd(func(ctx context.Context) (string, error) {
			if err := m.store.Load(ctx); err != nil {
				return "", err
			}
			return "Reloaded", nil
		})
	}
	return m, nil
}

func (m Model) updateFormMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeInput()
		m.status = "Cancelled"
		return m, nil
	case "enter":
		return m.submitForm()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	mode, target := m.mode, m.target
	m.closeInput()

	switch mode {
	case modeAdd, modeAddChild:
		if value == "" {
			m.status = "Text cannot be empty"
			return m, nil
		}
		req := models.CreateRequest{Text: value}
		if mode == modeAddChild {
			parent := target
			req.ParentID = &parent
		}
		return m, m.opCmd(func(ctx context.Context) (string, error) {
			if _, err := m.store.Create(ctx, req); err != nil {
				return "", err
			}
			return "Added todo", nil
		})

	case modeEdit:
		if value == "" {
			m.status = "Text cannot be empty"
			return m, nil
		}
		return m, m.opCmd(func(ctx context.Context) (string, error) {
			if _, err := m.store.Update(ctx, target, models.UpdateRequest{Text: &value}); err != nil {
				return "", err
			}
			return "Saved", nil
		})

	case modeDue:
		if value == "" {
			m.status = "Due date unchanged"
			return m, nil
		}
		due, err := parseDueInput(value)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		return m, m.opCmd(func(ctx context.Context) (string, error) {
			if _, err := m.store.Update(ctx, target, models.UpdateRequest{DueDate: due}); err != nil {
				return "", err
			}
			return "Due " + due.Format("2006-01-02"), nil
		})

	case modeMove:
		var newParent *string
		if value != "" {
			newParent = &value
		}
		return m, m.opCmd(func(ctx context.Context) (string, error) {
			if _, err := m.store.Move(ctx, target, newParent); err != nil {
				return "", err
			}
			return "Moved", nil
		})
	}
	return m, nil
}

func (m Model) updateSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeInput()
		m.searchQuery = ""
		m.searchSeq++
		return m, m.opCmd(func(ctx context.Context) (string, error) {
			if err := m.store.Load(ctx); err != nil {
				return "", err
			}
			return "Search cleared", nil
		})
	case "enter":
		m.closeInput()
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if q := m.input.Value(); q != m.searchQuery {
			m.searchQuery = q
			m.searchSeq++
			seq := m.searchSeq
			debounce := m.cfg.DebounceInterval()
			return m, tea.Batch(cmd, tea.Tick(debounce, func(time.Time) tea.Msg {
				return searchTickMsg{seq: seq}
			}))
		}
		return m, cmd
	}
}

func (m Model) updateConfirmDelete(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "y", "Y":
		t := m.pendingDel
		m.pendingDel = nil
		m.mode = modeList
		if t == nil {
			return m, nil
		}
		id := t.ID
		return m, m.opCmd(func(ctx context.Context) (string, error) {
			if err := m.store.Delete(ctx, id); err != nil {
				return "", err
			}
			return "Deleted", nil
		})
	case "n", "N", "esc":
		m.pendingDel = nil
		m.mode = modeList
		m.status = "Delete cancelled"
	}
	return m, nil
}

// opCmd runs a store operation off the update loop and reports the outcome
// as a message.
func (m Model) opCmd(op func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		status, err := op(context.Background())
		if err != nil {
			return opErrMsg{err: err}
		}
		return opDoneMsg{status: status}
	}
}

func (m Model) fetchRemoteStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := m.store.RemoteStats(context.Background())
		if err != nil {
			return opErrMsg{err: err}
		}
		return remoteStatsMsg{stats: stats}
	}
}

func (m *Model) rebuildRows() {
	now := time.Now()
	visible := views.Sort(views.Filter(m.store.Tasks(), m.view, now), m.sortKey, m.sortDir)

	m.rows = m.rows[:0]
	var walk func(ts []*models.Task, depth int)
	walk = func(ts []*models.Task, depth int) {
		for _, t := range ts {
			m.rows = append(m.rows, row{task: t, depth: depth})
			walk(t.Children, depth+1)
		}
	}
	walk(visible, 0)
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) currentTask() *models.Task {
	if len(m.rows) == 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].task
}

func (m *Model) startInput(placeholder, value string) {
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *Model) closeInput() {
	m.mode = modeList
	m.input.Blur()
	m.input.SetValue("")
}
