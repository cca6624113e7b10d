// storyctl is the operator CLI: schema migrations, catalog seeding and test tokens.
package main

import (
	"context"
	"os"

	"storyshelf/internal/config"
	"storyshelf/internal/db"
	"storyshelf/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "storyctl",
	Short:         "Operate a storyshelf deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// connect loads the environment config and opens the database pool.
func connect() (*config.Config, *pgxpool.Pool) {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	return cfg, db.MustConnect(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
