package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskboard/domain"
	"taskboard/mutator"
	"taskboard/presenter"
)

type listOutput struct {
	Summary string          `json:"summary"`
	Rows    []presenter.Row `json:"rows"`
}

type mutationOutput struct {
	MutationID string          `json:"mutationId"`
	Kind       mutator.Kind    `json:"kind"`
	TaskID     domain.ID       `json:"taskId"`
	Error      string          `json:"error,omitempty"`
	Rows       []presenter.Row `json:"rows"`
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks grouped by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := app.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			defer board.Close()
			if err := board.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load tasks: %w", err)
			}
			return writeBoard(cmd, app, board.View())
		},
	}
}

func newToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <category-id> <task-id>",
		Short: "Flip a task between pending and completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, app, func(ctx context.Context, b *mutator.Mutator) *mutator.Mutation {
				return b.Toggle(ctx, domain.ID(args[0]), domain.ID(args[1]))
			})
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <category-id> <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd, fmt.Sprintf("delete task %s? [y/N] ", args[1])) {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
				return err
			}
			return runMutation(cmd, app, func(ctx context.Context, b *mutator.Mutator) *mutator.Mutation {
				return b.Delete(ctx, domain.ID(args[0]), domain.ID(args[1]))
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newCreateCmd(app *App) *cobra.Command {
	var in domain.TaskInput
	var category string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in.CategoryID = domain.ID(strings.TrimSpace(category))
			if err := in.Validate(); err != nil {
				return err
			}
			board, err := app.openBoard(ctx)
			if err != nil {
				return err
			}
			defer board.Close()
			if err := board.Create(ctx, in); err != nil {
				return fmt.Errorf("create task: %w", err)
			}
			return writeBoard(cmd, app, board.View())
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "Task title (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Task description (required)")
	cmd.Flags().StringVar(&category, "category", "", "Category id")
	cmd.Flags().StringVar(&in.Deadline, "deadline", "", "Deadline as YYYY-MM-DD")
	cmd.Flags().BoolVar(&in.Completed, "completed", false, "Create the task already completed")
	return cmd
}

func (app *App) openBoard(ctx context.Context) (*mutator.Mutator, error) {
	gw, err := app.gateway(ctx)
	if err != nil {
		return nil, err
	}
	return app.mutator(gw), nil
}

// runMutation loads the board, applies one mutation and waits for the
// server round trip so the printed board is the reconciled one.
func runMutation(cmd *cobra.Command, app *App, apply func(context.Context, *mutator.Mutator) *mutator.Mutation) error {
	ctx := cmd.Context()
	board, err := app.openBoard(ctx)
	if err != nil {
		return err
	}
	defer board.Close()
	if err := board.Load(ctx); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	mut := apply(ctx, board)
	if mut.Noop() {
		return fmt.Errorf("task %s not found in category %s", mut.TaskID, mut.CategoryID)
	}
	werr := mut.Wait(ctx)

	view := board.View()
	out := mutationOutput{
		MutationID: mut.ID,
		Kind:       mut.Kind,
		TaskID:     mut.TaskID,
		Rows:       presenter.Rows(view.Snapshot),
	}
	if werr != nil {
		out.Error = werr.Error()
	}
	if err := writeOut(cmd, app, out, presenter.Render(view, presenter.PlainStyle())); err != nil {
		return err
	}
	if werr != nil {
		return fmt.Errorf("%s not confirmed by the server: %w", mut.Kind, werr)
	}
	return nil
}

func writeBoard(cmd *cobra.Command, app *App, v mutator.View) error {
	rows := presenter.Rows(v.Snapshot)
	return writeOut(cmd, app, listOutput{Summary: presenter.Summary(len(rows)), Rows: rows}, presenter.Render(v, presenter.PlainStyle()))
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
