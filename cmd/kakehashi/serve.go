package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/kakehashi"
)

func newServeCmd() *cobra.Command {
	var (
		port        int
		databaseURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		Long: "Run the gateway server: connect to the enabled backends, serve the\n" +
			"aggregated MCP endpoint at /mcp, per-backend mounts at /mcp/{prefix},\n" +
			"and the admin API under /admin.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if os.Getenv("KAKEHASHI_LOG_LEVEL") == "debug" {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			opts := []kakehashi.Option{
				kakehashi.WithVersion(version),
				kakehashi.WithLogger(logger),
			}
			if port != 0 {
				opts = append(opts, kakehashi.WithPort(port))
			}
			if databaseURL != "" {
				opts = append(opts, kakehashi.WithDatabaseURL(databaseURL))
			}

			app, err := kakehashi.New(opts...)
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides KAKEHASHI_PORT)")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres DSN (overrides KAKEHASHI_DATABASE_URL)")

	return cmd
}
