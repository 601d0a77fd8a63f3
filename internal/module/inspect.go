package module

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfrund/modfinder/internal/manifest"
	"github.com/spf13/afero"
)

// Resources lists the conventional resources present in a module.
type Resources struct {
	Configs    int
	Helper     bool
	Factories  bool
	Migrations bool
	Views      bool
	Routes     string
	Providers  string
	DI         string
}

// Empty reports whether the module has none of the conventional resources.
func (r Resources) Empty() bool {
	return r == Resources{}
}

// Inspect reports which resources m provides without registering anything.
func (l *Loader) Inspect(m Module) (Resources, error) {
	var res Resources
	var err error

	res.Configs, err = countConfigs(l.fs, filepath.Join(m.Path, ConfigsDir))
	if err != nil {
		return res, err
	}
	if res.Helper, err = afero.Exists(l.fs, filepath.Join(m.Path, HelperFile)); err != nil {
		return res, err
	}
	if res.Factories, err = afero.DirExists(l.fs, filepath.Join(m.Path, FactoriesDir)); err != nil {
		return res, err
	}
	if res.Migrations, err = afero.DirExists(l.fs, filepath.Join(m.Path, MigrationsDir)); err != nil {
		return res, err
	}
	if res.Views, err = afero.DirExists(l.fs, filepath.Join(m.Path, ViewsDir)); err != nil {
		return res, err
	}
	if res.Routes, err = l.find(m, RoutesBase); err != nil {
		return res, err
	}
	if res.Providers, err = l.find(m, ProvidersBase); err != nil {
		return res, err
	}
	if res.DI, err = l.find(m, DIBase); err != nil {
		return res, err
	}
	return res, nil
}

func (l *Loader) find(m Module, base string) (string, error) {
	path, err := l.manifests.Find(filepath.Join(m.Path, filepath.FromSlash(base)))
	if errors.Is(err, manifest.ErrNotFound) {
		return "", nil
	}
	return path, err
}

func countConfigs(fs afero.Fs, dir string) (int, error) {
	ok, err := afero.DirExists(fs, dir)
	if err != nil || !ok {
		return 0, err
	}

	count := 0
	err = afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() && manifest.Supported(info.Name()) {
			count++
		}
		return nil
	})
	return count, err
}
