package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/nfrund/modfinder/internal/database"
	"github.com/nfrund/modfinder/internal/factory"
	"github.com/nfrund/modfinder/internal/migration"
	"github.com/nfrund/modfinder/internal/module"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending module migrations",
	Long: `Collects the migrations/ folder of every module, orders the scripts by file
name and applies those not yet recorded in the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		migrations, _, err := collectSources(fsys, rootPath)
		if err != nil {
			return err
		}

		db, err := database.NewDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close(context.Background())

		runner := migration.NewRunner(migrations, database.NewMigrationExecutor(db))
		return runMigrations(ctx, cmd.OutOrStdout(), runner, migrateDryRun)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "list pending migrations without applying them")
}

func runMigrations(ctx context.Context, out io.Writer, runner *migration.Runner, dryRun bool) error {
	if dryRun {
		pending, err := runner.Pending(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(out, "Nothing to migrate.")
			return nil
		}
		for _, f := range pending {
			fmt.Fprintf(out, "pending  %s (%s)\n", f.Name, f.Module)
		}
		return nil
	}

	applied, err := runner.Run(ctx)
	for _, name := range applied {
		fmt.Fprintf(out, "applied  %s\n", name)
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "Nothing to migrate.")
	}
	return nil
}

// collectSources registers the migration and factory folders of every module
// without running the rest of the pipeline.
func collectSources(fs afero.Fs, root string) (*migration.Registry, *factory.Registry, error) {
	modules, err := module.Discover(fs, root)
	if err != nil {
		return nil, nil, err
	}

	migrations := migration.NewRegistry(fs)
	factories := factory.NewRegistry(fs)
	for _, m := range modules {
		if dir := filepath.Join(m.Path, module.MigrationsDir); dirExists(fs, dir) {
			migrations.AddSource(m.Name, dir)
		}
		if dir := filepath.Join(m.Path, module.FactoriesDir); dirExists(fs, dir) {
			factories.AddSource(m.Name, dir)
		}
	}
	return migrations, factories, nil
}

func dirExists(fs afero.Fs, dir string) bool {
	ok, _ := afero.DirExists(fs, dir)
	return ok
}
