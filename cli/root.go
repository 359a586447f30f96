package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/config"
	"taskboard/gateway"
	"taskboard/mutator"
	"taskboard/storage"
)

type App struct {
	ConfigPath string
	APIURL     string
	Profile    string
	Preset     string
	Debug      bool
	JSON       bool

	cfg config.Config
	log *log.Logger
	// report overrides the mutator's failure reporting when set.
	report func(*mutator.MutationError)
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskboard",
		Short:        "Task board client: list, toggle, create and delete tasks",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive board
  taskboard

  # Scriptable commands
  taskboard login --identifier ana@example.com
  taskboard list --json
  taskboard toggle 1 10

  # Serve the board to a browser front end
  taskboard serve --addr 127.0.0.1:8787
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.load(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Path to config file (default: user config dir)")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", "", "Backend base URL (overrides config and TASKBOARD_API_URL)")
	cmd.PersistentFlags().StringVar(&app.Profile, "profile", "", "Profile whose saved token is used")
	cmd.PersistentFlags().StringVar(&app.Preset, "preset", "", "Backend flavour (default|strapi|strapi-v4)")
	cmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&app.JSON, "json", false, "Print JSON instead of text")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newToggleCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newCreateCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newServeCmd(app))

	return cmd
}

func (app *App) load(cmd *cobra.Command) error {
	path := app.ConfigPath
	required := path != ""
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}
	if app.APIURL != "" {
		cfg.APIURL = app.APIURL
	}
	if app.Profile != "" {
		cfg.Profile = app.Profile
	}
	if app.Preset != "" {
		cfg.Preset = app.Preset
	}
	if app.Debug {
		cfg.Debug = true
	}
	app.cfg = cfg

	app.log = log.New()
	app.log.SetOutput(cmd.ErrOrStderr())
	app.log.SetLevel(log.StandardLogger().GetLevel())
	if cfg.Debug {
		app.log.SetLevel(log.DebugLevel)
	}
	return nil
}

// tokenStore opens the configured store. The returned close func releases
// the Redis client when one was dialled.
func (app *App) tokenStore() (storage.TokenStore, func(), error) {
	if app.cfg.TokenStore == config.TokenStoreRedis {
		rc := redis.NewClient(app.cfg.RedisOptions())
		return storage.NewRedisTokenStore(rc, app.cfg.Profile), func() { _ = rc.Close() }, nil
	}
	path := app.cfg.TokenPath
	if path == "" {
		var err error
		path, err = storage.DefaultTokenPath(app.cfg.Profile)
		if err != nil {
			return nil, nil, err
		}
	}
	return storage.NewFileTokenStore(path), func() {}, nil
}

// gateway builds a gateway authenticated with the configured or saved
// token. A missing token is fine for public endpoints.
func (app *App) gateway(ctx context.Context) (*gateway.Gateway, error) {
	gc, err := app.cfg.Gateway(app.log)
	if err != nil {
		return nil, err
	}
	if gc.Token == "" {
		ts, closeStore, err := app.tokenStore()
		if err != nil {
			return nil, err
		}
		defer closeStore()
		token, err := ts.Load(ctx)
		switch {
		case err == nil:
			gc.Token = token
			app.warnIfExpired(token)
		case errors.Is(err, storage.ErrNoToken):
			app.log.Debug("no saved token; continuing unauthenticated")
		default:
			return nil, fmt.Errorf("load token: %w", err)
		}
	}
	return gateway.New(gc)
}

func (app *App) warnIfExpired(token string) {
	info, err := storage.InspectToken(token)
	if err != nil {
		return
	}
	if info.Expired(timeNow()) {
		app.log.WithField("expired_at", info.ExpiresAt).Warn("saved token has expired; run `taskboard login`")
	}
}

func (app *App) mutator(gw mutator.Gateway) *mutator.Mutator {
	opts := app.cfg.MutatorOptions(app.log)
	if app.report != nil {
		opts.Report = app.report
	}
	return mutator.New(gw, storage.NewCache(), opts)
}
