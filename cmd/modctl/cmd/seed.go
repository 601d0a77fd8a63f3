package cmd

import (
	"context"
	"fmt"

	"github.com/nfrund/modfinder/internal/database"
	"github.com/nfrund/modfinder/internal/factory"
	"github.com/spf13/cobra"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed <factory>",
	Short: "Insert records generated by a module factory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedCount < 1 {
			return fmt.Errorf("--count: %w: got %d", factory.ErrInvalidCount, seedCount)
		}
		ctx := cmd.Context()
		_, factories, err := collectSources(fsys, rootPath)
		if err != nil {
			return err
		}
		if _, err := factories.Table(args[0]); err != nil {
			return err
		}

		db, err := database.NewDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close(context.Background())

		seeder := factory.NewSeeder(factories, database.NewInserter(db))
		n, err := seeder.Seed(ctx, args[0], seedCount)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d %s record(s).\n", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntVarP(&seedCount, "count", "c", 1, "number of records to insert")
}
