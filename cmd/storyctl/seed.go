package main

import (
	"fmt"

	"storyshelf/internal/catalog"
	"storyshelf/internal/repository"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringP("file", "f", "catalog.toml", "Path to the catalog TOML file")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert coin packs and bookstore items from a TOML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		f, err := catalog.LoadFile(path)
		if err != nil {
			return err
		}

		cfg, pool := connect()
		defer pool.Close()

		res, err := catalog.Apply(commandContext(cmd), repository.NewTxManager(pool, cfg.TxTimeout), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d coin packs, %d stories\n", res.CoinPacks, res.Stories)
		return nil
	},
}
