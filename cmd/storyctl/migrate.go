package main

import (
	"storyshelf/internal/migrations"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:       "migrate up|down|status|version",
	Short:     "Run database migrations",
	Long:      `Apply or inspect the embedded goose migrations against DATABASE_URL.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		_, pool := connect()
		defer pool.Close()
		return migrations.Run(commandContext(cmd), pool, args[0])
	},
}
