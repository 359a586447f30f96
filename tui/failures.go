package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"taskboard/mutator"
)

// Failures carries recovered mutation failures from the mutator's workers to
// the status line. Report never blocks; a failure arriving while the buffer
// is full is dropped, the log still has it.
type Failures chan *mutator.MutationError

func NewFailures() Failures {
	return make(Failures, 16)
}

// Report is shaped to be used as mutator.Options.Report.
func (f Failures) Report(err *mutator.MutationError) {
	select {
	case f <- err:
	default:
	}
}

type failedMsg struct{ err *mutator.MutationError }

func waitForFailure(f Failures) tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		err, ok := <-f
		if !ok {
			return nil
		}
		return failedMsg{err: err}
	}
}
