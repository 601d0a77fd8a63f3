// Package module discovers module directories under a root and registers
// their conventional resources with the application registry.
//
// A module is any directory directly below the root. Inside it the loader
// looks for, in order:
//
//	configs/**          merged into the config namespace <module>.<dirs>.<file>
//	helpers.tengo       executed once in the shared helper scope
//	factories/          data factory source
//	migrations/         migration source
//	views/              view namespace <module>
//	routes.*            route declarations
//	etc/providers.*     list of service provider ids
//	etc/di.*            bind / singleton mappings
//
// Anything missing is skipped.
package module

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Conventional resource names, relative to a module root.
const (
	ConfigsDir    = "configs"
	HelperFile    = "helpers.tengo"
	FactoriesDir  = "factories"
	MigrationsDir = "migrations"
	ViewsDir      = "views"
	RoutesBase    = "routes"
	ProvidersBase = "etc/providers"
	DIBase        = "etc/di"
)

// ProvidersKey holds the provider list in etc/providers.toml and
// etc/providers.hcl, whose top level is always a table.
const ProvidersKey = "providers"

// Module is a directory below the module root.
type Module struct {
	Name string
	Path string
}

// Namespace returns the lowercased module name used for config keys and views.
func (m Module) Namespace() string {
	return Namespace(m.Name)
}

// Namespace lowercases a module name.
func Namespace(name string) string {
	return cases.Lower(language.Und).String(name)
}

// Discover lists the modules under root in lexicographic order. A missing
// root yields no modules and no error.
func Discover(fs afero.Fs, root string) ([]Module, error) {
	entries, err := afero.ReadDir(fs, root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Module{}, nil
		}
		return nil, fmt.Errorf("failed to read module root %s: %w", root, err)
	}

	modules := make([]Module, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "." || entry.Name() == ".." {
			continue
		}
		modules = append(modules, Module{
			Name: entry.Name(),
			Path: filepath.Join(root, entry.Name()),
		})
	}
	return modules, nil
}
