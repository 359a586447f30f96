package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/api"
	"taskboard/mutator"
	"taskboard/presenter"
	"taskboard/tui"
)

const (
	shutdownTimeout = 5 * time.Second
	tuiLogName      = "tui.log"
)

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive board (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}
}

func runTUI(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	failures, restore := app.prepareTUI()
	defer restore()

	board, err := app.openBoard(ctx)
	if err != nil {
		return err
	}
	defer board.Close()
	return tui.Run(ctx, board, presenter.DefaultStyle(), failures)
}

// prepareTUI moves logging off the terminal the board draws on and sends
// recovered mutation failures to the status line as well as the log.
func (app *App) prepareTUI() (tui.Failures, func()) {
	prev := app.log.Out
	out, closeLog := openTUILog()
	app.log.SetOutput(out)

	failures := tui.NewFailures()
	app.report = func(err *mutator.MutationError) {
		app.log.WithError(err.Err).WithFields(log.Fields{
			"mutation": err.MutationID,
			"kind":     err.Kind,
			"stage":    err.Stage,
			"task":     err.TaskID,
		}).Warn("recovered from mutation failure")
		failures.Report(err)
	}
	return failures, func() {
		app.report = nil
		app.log.SetOutput(prev)
		closeLog()
	}
}

// openTUILog appends to tui.log under the user cache dir, or discards when
// that is not writable.
func openTUILog() (io.Writer, func()) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return io.Discard, func() {}
	}
	dir = filepath.Join(dir, "taskboard")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return io.Discard, func() {}
	}
	f, err := os.OpenFile(filepath.Join(dir, tuiLogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { _ = f.Close() }
}

func newServeCmd(app *App) *cobra.Command {
	var addr, token string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP with a server-sent event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = app.cfg.Serve.Addr
			}
			if token == "" {
				token = app.cfg.Serve.Token
			}

			board, err := app.openBoard(ctx)
			if err != nil {
				return err
			}
			defer board.Close()
			if err := board.Load(ctx); err != nil {
				app.log.WithError(err).Warn("initial load failed; clients can retry with POST /api/reload")
			}

			opts := api.Options{Logger: app.log, Token: token, Scope: app.cfg.Profile}
			if ro := app.cfg.RedisOptions(); ro != nil {
				rc := redis.NewClient(ro)
				defer rc.Close()
				opts.Deduper = api.NewRedisDeduper(rc, app.cfg.Serve.IdempotencyTTL)
			}
			e := api.NewServer(board, opts)

			errCh := make(chan error, 1)
			go func() {
				app.log.WithField("addr", addr).Info("serving task board")
				errCh <- e.Start(addr)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token required from clients (default from config)")
	return cmd
}
