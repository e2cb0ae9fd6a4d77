package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/CrowderSoup/kanban/config"
	"github.com/CrowderSoup/kanban/logging"
)

func appGlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"KANBAN_CONFIG"},
			Usage:   "Path to a YAML config file; environment variables override it",
		},
	}
}

// NewMainApp builds the kanban command line application.
func NewMainApp(version string) *cli.App {
	app := cli.NewApp()
	app.Name = "kanban"
	app.Usage = "Kanban board service"
	app.Description = `Serves the kanban REST API. Use "web" to start the server and "migrate" to bring the database schema up to date.`
	app.Version = version
	app.Flags = appGlobalFlags()
	app.Commands = []*cli.Command{
		CmdWeb,
		CmdMigrate,
	}
	app.DefaultCommand = CmdWeb.Name
	return app
}

// RunMainApp runs the app with a context that is cancelled on SIGINT or
// SIGTERM.
func RunMainApp(app *cli.App, args ...string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := app.RunContext(ctx, args)
	if err != nil {
		_, _ = fmt.Fprintf(app.ErrWriter, "Command error: %v\n", err)
	}
	return err
}

// setup loads the configuration named by the global flags and installs the
// logger described by it.
func setup(c *cli.Context) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := logging.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
