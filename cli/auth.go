package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"taskboard/gateway"
	"taskboard/storage"
)

func newLoginCmd(app *App) *cobra.Command {
	var identifier, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pw, err := resolvePassword(cmd, password)
			if err != nil {
				return err
			}
			gw, err := app.gateway(ctx)
			if err != nil {
				return err
			}
			session, err := gw.Login(ctx, identifier, pw)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := app.saveToken(cmd, session.Token); err != nil {
				return err
			}
			return writeOut(cmd, app, session.User, fmt.Sprintf("logged in as %s\n", displayName(session.User)))
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Username or email")
	cmd.Flags().StringVar(&password, "password", "", "Password (default: TASKBOARD_PASSWORD or prompt)")
	return cmd
}

func newRegisterCmd(app *App) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and save the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pw, err := resolvePassword(cmd, password)
			if err != nil {
				return err
			}
			gw, err := app.gateway(ctx)
			if err != nil {
				return err
			}
			session, err := gw.Register(ctx, username, email, pw)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			if err := app.saveToken(cmd, session.Token); err != nil {
				return err
			}
			return writeOut(cmd, app, session.User, fmt.Sprintf("registered %s\n", displayName(session.User)))
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (default: TASKBOARD_PASSWORD or prompt)")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, closeStore, err := app.tokenStore()
			if err != nil {
				return err
			}
			defer closeStore()
			if err := ts.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return err
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, err := app.gateway(ctx)
			if err != nil {
				return err
			}
			user, err := gw.Me(ctx)
			if errors.Is(err, gateway.ErrNoToken) {
				return errors.New("not logged in; run `taskboard login`")
			}
			if err != nil {
				return err
			}
			text := fmt.Sprintf("%s (id %s)\n", displayName(user), user.ID)
			if info, ierr := storage.InspectToken(gw.Config().Token); ierr == nil && !info.ExpiresAt.IsZero() {
				text += fmt.Sprintf("token expires %s\n", info.ExpiresAt.Format("2006-01-02 15:04"))
			}
			return writeOut(cmd, app, user, text)
		},
	}
}

func (app *App) saveToken(cmd *cobra.Command, token string) error {
	ts, closeStore, err := app.tokenStore()
	if err != nil {
		return err
	}
	defer closeStore()
	if err := ts.Save(cmd.Context(), token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// resolvePassword takes the flag, then TASKBOARD_PASSWORD, then one line of
// stdin.
func resolvePassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := os.Getenv("TASKBOARD_PASSWORD"); v != "" {
		return v, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password required")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func displayName(u gateway.User) string {
	if u.Username != "" {
		return u.Username
	}
	if u.Email != "" {
		return u.Email
	}
	return string(u.ID)
}
