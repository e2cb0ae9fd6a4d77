package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/CrowderSoup/kanban/database"
	"github.com/CrowderSoup/kanban/handlers"
	"github.com/CrowderSoup/kanban/services"
)

// CmdWeb represents the available web sub-command.
var CmdWeb = &cli.Command{
	Name:        "web",
	Usage:       "Start the kanban web server",
	Description: "Runs pending migrations and serves the REST API until interrupted.",
	Action:      runWeb,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "Listen address, overrides KANBAN_HTTP_ADDR",
		},
	},
}

func runWeb(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}

	ctx := c.Context

	store, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return err
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	authService := services.NewAuthService(store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	router := handlers.NewRouter(handlers.Dependencies{
		Auth:           authService,
		Boards:         services.NewBoardService(store, hub),
		Columns:        services.NewColumnService(store, hub),
		Cards:          services.NewCardService(store, hub),
		Comments:       services.NewCommentService(store, hub),
		Hub:            hub,
		Store:          store,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.HTTP.Addr, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// hijacked websocket connections are closed by stopping the hub
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
