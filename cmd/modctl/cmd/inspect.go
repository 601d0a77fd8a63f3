package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/modfinder/internal/manifest"
	"github.com/nfrund/modfinder/internal/module"
	"github.com/nfrund/modfinder/internal/registry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load modules and print what they register",
	Long: `Runs the full registration pipeline against a scratch application and prints
the resulting config keys, helper globals, views, routes, providers and bindings.
Service providers are recorded by id but their code is not run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspectModules(cmd.Context(), cmd.OutOrStdout(), fsys, rootPath)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

// listedProvider stands in for a provider that only the server can construct.
type listedProvider struct {
	registry.BaseProvider
	id string
}

func (p listedProvider) Name() string { return p.id }

func inspectModules(ctx context.Context, out io.Writer, fs afero.Fs, root string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reg := registry.New(fs, echo.New(), nil)
	if err := stubProviders(fs, root, reg); err != nil {
		return err
	}

	loader := module.NewLoader(fs, reg)
	modules, err := loader.LoadAll(ctx, root)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Modules (%d):\n", len(modules))
	for _, m := range modules {
		fmt.Fprintf(out, "  %s\t%s\n", m.Name, m.Path)
	}

	fmt.Fprintln(out, "\nConfig keys:")
	for _, key := range reg.Config.Keys() {
		v, _ := reg.Config.Get(key)
		fmt.Fprintf(out, "  %s = %v\n", key, v)
	}

	fmt.Fprintln(out, "\nHelper globals:")
	for _, name := range reg.Helpers.Names() {
		v, _ := reg.Helpers.Get(name)
		fmt.Fprintf(out, "  %s = %v\n", name, v)
	}

	fmt.Fprintln(out, "\nViews:")
	for _, ns := range reg.Views.Namespaces() {
		for _, view := range reg.Views.Views(ns) {
			fmt.Fprintf(out, "  %s\n", view)
		}
	}

	fmt.Fprintln(out, "\nRoutes:")
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	for _, r := range reg.Router.Routes() {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", r.Method, r.Path, r.Handler, r.Name)
	}
	w.Flush()

	fmt.Fprintln(out, "\nProviders:")
	for _, p := range reg.Providers() {
		fmt.Fprintf(out, "  %s\n", p.Name())
	}

	fmt.Fprintln(out, "\nBindings:")
	for _, b := range reg.Container.Bindings() {
		kind := "bind"
		if b.Shared {
			kind = "singleton"
		}
		fmt.Fprintf(out, "  %s -> %s (%s)\n", b.Abstract, b.Concrete, kind)
	}

	fmt.Fprintln(out, "\nFactory sources:")
	for _, src := range reg.Factories.Sources() {
		fmt.Fprintf(out, "  %s\t%s\n", src.Module, src.Path)
	}

	fmt.Fprintln(out, "\nMigrations:")
	files, err := reg.Migrations.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(out, "  %s\t%s\n", f.Module, f.Name)
	}
	return nil
}

// stubProviders adds a catalog entry for every provider id the modules list,
// so loading records them without needing their implementation.
func stubProviders(fs afero.Fs, root string, reg *registry.Registry) error {
	modules, err := module.Discover(fs, root)
	if err != nil {
		return err
	}

	loader := manifest.NewFileLoader(fs)
	for _, m := range modules {
		_, value, err := manifest.LoadBase(loader, filepath.Join(m.Path, filepath.FromSlash(module.ProvidersBase)))
		if errors.Is(err, manifest.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("module %s: %w", m.Name, err)
		}
		seq, _ := manifest.AsSequence(value)
		for _, item := range seq {
			if id, ok := item.(string); ok {
				reg.Provide(id, func() registry.Provider { return listedProvider{id: id} })
			}
		}
	}
	return nil
}
