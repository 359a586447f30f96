package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"taskboard/domain"
	"taskboard/mutator"
	"taskboard/presenter"
)

// Board is the part of the mutator the terminal UI drives.
type Board interface {
	View() mutator.View
	Reload(ctx context.Context) error
	Toggle(ctx context.Context, categoryID, taskID domain.ID) *mutator.Mutation
	Delete(ctx context.Context, categoryID, taskID domain.ID) *mutator.Mutation
	Create(ctx context.Context, in domain.TaskInput) error
	Subscribe() (<-chan struct{}, func())
}

type changedMsg struct{}

type reloadedMsg struct{ err error }

// mutatedMsg is sent once Toggle or Delete has applied the local change.
type mutatedMsg struct {
	mut *mutator.Mutation
	row presenter.Row
}

type createdMsg struct {
	title string
	err   error
}

type Model struct {
	ctx   context.Context
	board Board
	style presenter.Style
	keys  keyMap
	help  help.Model

	changes     <-chan struct{}
	unsubscribe func()
	failures    Failures

	view       mutator.View
	cursor     int
	confirming *presenter.Row
	form       *taskForm
	status     string
}

// New builds the model. failures may be nil when nothing reports into it.
func New(ctx context.Context, board Board, style presenter.Style, failures Failures) Model {
	changes, unsubscribe := board.Subscribe()
	return Model{
		ctx:         ctx,
		board:       board,
		style:       style,
		keys:        defaultKeyMap(),
		help:        help.New(),
		changes:     changes,
		unsubscribe: unsubscribe,
		failures:    failures,
		view:        board.View(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), waitForFailure(m.failures), m.reload())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.style.Width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case mutatedMsg:
		m.status = describe(msg.mut, msg.row)
		m.refresh()
		return m, nil

	case failedMsg:
		m.refresh()
		m.status = m.describeFailure(msg.err)
		return m, waitForFailure(m.failures)

	case reloadedMsg:
		m.refresh()
		if msg.err == nil {
			m.status = ""
		}
		return m, nil

	case createdMsg:
		m.refresh()
		if msg.err != nil {
			m.status = fmt.Sprintf("could not create %q: %v", msg.title, msg.err)
		} else {
			m.status = fmt.Sprintf("created %q", msg.title)
		}
		return m, nil

	case tea.KeyMsg:
		if m.form != nil {
			return m.updateForm(msg)
		}
		if m.confirming != nil {
			return m.updateConfirm(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.unsubscribe()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(presenter.Rows(m.view.Snapshot))-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Toggle):
			if row, ok := m.selected(); ok {
				m.status = fmt.Sprintf("toggling %q...", row.Title)
				return m, m.mutate(m.board.Toggle, row)
			}
		case key.Matches(msg, m.keys.Delete):
			if row, ok := m.selected(); ok {
				m.confirming = &row
			}
		case key.Matches(msg, m.keys.New):
			var category domain.ID
			if row, ok := m.selected(); ok {
				category = row.CategoryID
			}
			m.form = newTaskForm(category)
			return m, nil
		case key.Matches(msg, m.keys.Reload):
			m.status = "reloading..."
			return m, m.reload()
		}
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		row := *m.confirming
		m.confirming = nil
		m.status = fmt.Sprintf("deleting %q...", row.Title)
		return m, m.mutate(m.board.Delete, row)
	case "n", "esc", "ctrl+c", "q":
		m.confirming = nil
		m.status = ""
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.form = nil
		return m, nil
	case "tab", "down":
		m.form.move(1)
		return m, nil
	case "shift+tab", "up":
		m.form.move(-1)
		return m, nil
	case "enter":
		in := m.form.input()
		if err := in.Validate(); err != nil {
			m.form.err = err
			return m, nil
		}
		m.form = nil
		m.status = fmt.Sprintf("creating %q...", in.Title)
		board, ctx := m.board, m.ctx
		return m, func() tea.Msg {
			return createdMsg{title: in.Title, err: board.Create(ctx, in)}
		}
	}
	return m, m.form.update(msg)
}

func (m Model) View() string {
	if m.form != nil {
		return m.form.view(m.style)
	}
	var b strings.Builder
	b.WriteString(presenter.RenderPage(m.view, m.style, m.cursor))
	if m.confirming != nil {
		b.WriteString("\n")
		b.WriteString(m.style.Error.Render(fmt.Sprintf("Delete %q? (y/n)", m.confirming.Title)))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.style.Muted.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) selected() (presenter.Row, bool) {
	rows := presenter.Rows(m.view.Snapshot)
	if m.cursor < 0 || m.cursor >= len(rows) {
		return presenter.Row{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) refresh() {
	m.view = m.board.View()
	n := len(presenter.Rows(m.view.Snapshot))
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) reload() tea.Cmd {
	board, ctx := m.board, m.ctx
	return func() tea.Msg {
		return reloadedMsg{err: board.Reload(ctx)}
	}
}

// mutate runs op off the update loop: a saturated mutation pool falls back
// to running the round trip on the calling goroutine. The optimistic change
// reaches the view through the change subscription.
func (m Model) mutate(op func(context.Context, domain.ID, domain.ID) *mutator.Mutation, row presenter.Row) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return mutatedMsg{mut: op(ctx, row.CategoryID, row.TaskID), row: row}
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func describe(mut *mutator.Mutation, row presenter.Row) string {
	if mut == nil || mut.Noop() {
		return fmt.Sprintf("%q is no longer on the board", row.Title)
	}
	return fmt.Sprintf("%s %q...", mut.Kind, row.Title)
}

func (m Model) describeFailure(err *mutator.MutationError) string {
	title := string(err.TaskID)
	for _, row := range presenter.Rows(m.view.Snapshot) {
		if row.TaskID == err.TaskID {
			title = row.Title
			break
		}
	}
	if err.Kind == mutator.KindCreate {
		return fmt.Sprintf("could not refresh after create: %v", err.Err)
	}
	return fmt.Sprintf("could not %s %q: %v; showing the server's copy", err.Kind, title, err.Err)
}

// Run blocks until the user quits. failures, when not nil, should be the
// sink the board's mutator reports into.
func Run(ctx context.Context, board Board, style presenter.Style, failures Failures) error {
	m := New(ctx, board, style, failures)
	defer m.unsubscribe()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
