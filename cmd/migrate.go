package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/CrowderSoup/kanban/database"
)

// CmdMigrate represents the available migrate sub-command.
var CmdMigrate = &cli.Command{
	Name:        "migrate",
	Usage:       "Migrate the database",
	Description: "Applies every pending schema migration and exits.",
	Action:      runMigrate,
}

func runMigrate(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	store, err := database.Open(c.Context, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return err
	}

	logger.Info("database is up to date", "driver", cfg.Database.Driver)
	return nil
}
