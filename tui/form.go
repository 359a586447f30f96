package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskboard/domain"
	"taskboard/presenter"
)

const (
	fieldTitle = iota
	fieldDescription
	fieldCategory
	fieldDeadline
	fieldCount
)

var fieldLabels = [fieldCount]string{"Title", "Description", "Category", "Deadline"}

// taskForm collects the fields of a new task.
type taskForm struct {
	inputs [fieldCount]textinput.Model
	focus  int
	err    error
}

func newTaskForm(category domain.ID) *taskForm {
	f := &taskForm{}
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 256
		in.Width = 48
		f.inputs[i] = in
	}
	f.inputs[fieldTitle].Placeholder = "Buy milk"
	f.inputs[fieldDescription].Placeholder = "2 litres"
	f.inputs[fieldCategory].Placeholder = "category id (optional)"
	f.inputs[fieldCategory].SetValue(string(category))
	f.inputs[fieldDeadline].Placeholder = "YYYY-MM-DD (optional)"
	f.inputs[fieldDeadline].CharLimit = len(domain.DeadlineLayout)
	f.inputs[fieldTitle].Focus()
	return f
}

func (f *taskForm) move(delta int) {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	f.inputs[f.focus].Focus()
}

func (f *taskForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *taskForm) input() domain.TaskInput {
	return domain.TaskInput{
		Title:       strings.TrimSpace(f.inputs[fieldTitle].Value()),
		Description: strings.TrimSpace(f.inputs[fieldDescription].Value()),
		CategoryID:  domain.ID(strings.TrimSpace(f.inputs[fieldCategory].Value())),
		Deadline:    strings.TrimSpace(f.inputs[fieldDeadline].Value()),
	}
}

func (f *taskForm) view(st presenter.Style) string {
	var b strings.Builder
	b.WriteString(st.Title.Render("New task"))
	b.WriteString("\n\n")
	for i, in := range f.inputs {
		label := fieldLabels[i]
		if i == f.focus {
			label = st.Selected.Render(label)
		} else {
			label = st.Muted.Render(label)
		}
		b.WriteString(label)
		b.WriteString("\n  ")
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if f.err != nil {
		b.WriteString("\n")
		b.WriteString(st.Error.Render(f.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(st.Muted.Render("tab next field   enter save   esc cancel"))
	return b.String()
}
