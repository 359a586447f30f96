package presenter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskboard/mutator"
)

const (
	loadingText = "Loading Tasks..."
	errorTitle  = "Error Loading Tasks"
	emptyText   = "No Tasks found"
	pageTitle   = "Tasks"
)

// Render draws the page for v with no row selected.
func Render(v mutator.View, st Style) string {
	return RenderPage(v, st, -1)
}

// RenderPage draws the page and highlights the row at cursor, an index into
// Rows(v.Snapshot).
func RenderPage(v mutator.View, st Style, cursor int) string {
	switch {
	case v.Err != nil:
		return renderError(v.Err, st)
	case !v.Loaded:
		return st.Muted.Render(loadingText)
	}

	rows := Rows(v.Snapshot)
	var b strings.Builder
	b.WriteString(st.Title.Render(pageTitle))
	b.WriteString("\n")
	b.WriteString(st.Muted.Render(Summary(len(rows))))
	b.WriteString("\n")

	if len(rows) == 0 {
		b.WriteString("\n")
		b.WriteString(st.Muted.Render(emptyText))
		b.WriteString("\n")
		return b.String()
	}

	var current string
	for i, r := range rows {
		if i == 0 || string(r.CategoryID) != current {
			current = string(r.CategoryID)
			b.WriteString("\n")
			b.WriteString(categoryHeader(r, st))
			b.WriteString("\n")
		}
		line := taskLine(r, st)
		if i == cursor {
			line = st.Selected.Render(plainTaskLine(r))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if v.InFlight > 0 {
		b.WriteString("\n")
		b.WriteString(st.Muted.Render(fmt.Sprintf("syncing %d change(s)...", v.InFlight)))
		b.WriteString("\n")
	}
	return b.String()
}

// Summary is the header line above the task list.
func Summary(n int) string {
	return fmt.Sprintf("Displaying %d Tasks", n)
}

func renderError(err error, st Style) string {
	body := []string{
		st.Error.Render(errorTitle),
		st.Muted.Render(err.Error()),
	}
	if st.RetryHint != "" {
		body = append(body, "", st.Muted.Render(st.RetryHint))
	}
	out := strings.Join(body, "\n")
	if st.Width > 0 {
		out = lipgloss.NewStyle().Width(st.Width).Render(out)
	}
	return out + "\n"
}

func categoryHeader(r Row, st Style) string {
	style := st.Category
	if r.CategoryColor != "" {
		style = style.Foreground(lipgloss.Color(r.CategoryColor))
	}
	return style.Render(r.CategoryName)
}

func taskLine(r Row, st Style) string {
	if r.Completed {
		return st.Done.Render(plainTaskLine(r))
	}
	return st.Task.Render(plainTaskLine(r))
}

func plainTaskLine(r Row) string {
	mark := "[ ]"
	if r.Completed {
		mark = "[x]"
	}
	parts := []string{"  " + mark + " " + r.Title}
	if r.Description != "" {
		parts = append(parts, r.Description)
	}
	if r.Deadline != "" {
		parts = append(parts, "due "+r.Deadline)
	}
	return strings.Join(parts, " · ")
}
