package cmd

import (
	"log/slog"
	"os"

	"github.com/nfrund/modfinder/internal/config"
	"github.com/nfrund/modfinder/internal/logging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfg      *config.Config
	rootPath string
	logLevel string
	fsys     afero.Fs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:   "modctl",
	Short: "Inspect and scaffold application modules",
	Long: `modctl works with the module directories the server loads at boot.

Available commands:
  list       List modules and the resources they provide
  inspect    Load modules and print what they register
  new        Scaffold a new module
  migrate    Apply pending module migrations
  seed       Insert records generated by a module factory

Use "modctl [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if rootPath == "" {
			rootPath = cfg.ModulesPath
		}
		slog.SetDefault(logging.NewWithWriter(os.Stderr, cfg.LogFormat, logLevel))
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootPath, "root", "r", "", "module root directory (defaults to MODULES_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
}
