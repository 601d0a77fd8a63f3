package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/modfinder/internal/module"
	"github.com/nfrund/modfinder/internal/registry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List modules and the resources they provide",
	Long: `Discovers the modules under the module root and reports which conventional
resources each one ships. Nothing is loaded or executed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listModules(cmd.OutOrStdout(), fsys, rootPath)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listModules(out io.Writer, fs afero.Fs, root string) error {
	modules, err := module.Discover(fs, root)
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		fmt.Fprintf(out, "No modules found in %s.\n", root)
		return nil
	}

	loader := module.NewLoader(fs, registry.New(fs, echo.New(), nil))

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "MODULE\tNAMESPACE\tRESOURCES")
	fmt.Fprintln(w, "------\t---------\t---------")
	for _, m := range modules {
		res, err := loader.Inspect(m)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", m.Name, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, m.Namespace(), resourceList(res))
	}
	return w.Flush()
}

func resourceList(r module.Resources) string {
	var parts []string
	if r.Configs > 0 {
		parts = append(parts, fmt.Sprintf("configs(%d)", r.Configs))
	}
	if r.Helper {
		parts = append(parts, "helper")
	}
	if r.Factories {
		parts = append(parts, "factories")
	}
	if r.Migrations {
		parts = append(parts, "migrations")
	}
	if r.Views {
		parts = append(parts, "views")
	}
	if r.Routes != "" {
		parts = append(parts, "routes")
	}
	if r.Providers != "" {
		parts = append(parts, "providers")
	}
	if r.DI != "" {
		parts = append(parts, "di")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}
