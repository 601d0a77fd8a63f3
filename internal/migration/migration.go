package migration

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Extension is the file suffix of a migration script.
const Extension = ".surql"

// Source is a migrations folder contributed by a module.
type Source struct {
	Module string
	Path   string
}

// File is a single migration script.
type File struct {
	Name   string
	Path   string
	Module string
}

// Registry collects migration sources.
type Registry struct {
	mu      sync.RWMutex
	fs      afero.Fs
	sources []Source
}

// NewRegistry creates an empty registry reading from fs.
func NewRegistry(fs afero.Fs) *Registry {
	return &Registry{fs: fs}
}

// AddSource registers a folder of migration scripts.
func (r *Registry) AddSource(module, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, Source{Module: module, Path: path})
	slog.Debug("Registered migration source", "module", module, "path", path)
}

// Sources returns the registered sources in registration order.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Source(nil), r.sources...)
}

// Files lists every migration across all sources ordered by file name. When two
// sources carry the same file name the first registered one wins.
func (r *Registry) Files() ([]File, error) {
	r.mu.RLock()
	sources := append([]Source(nil), r.sources...)
	r.mu.RUnlock()

	seen := make(map[string]File)
	for _, src := range sources {
		entries, err := afero.ReadDir(r.fs, src.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration source %s: %w", src.Path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
				continue
			}
			f := File{Name: entry.Name(), Path: filepath.Join(src.Path, entry.Name()), Module: src.Module}
			if prev, exists := seen[f.Name]; exists {
				slog.Warn("Duplicate migration name, skipping", "name", f.Name, "kept", prev.Path, "skipped", f.Path)
				continue
			}
			seen[f.Name] = f
		}
	}

	files := make([]File, 0, len(seen))
	for _, f := range seen {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Executor applies migration scripts and remembers which ones ran.
type Executor interface {
	Applied(ctx context.Context) ([]string, error)
	Apply(ctx context.Context, name, script string) error
}

// Runner applies pending migrations in order.
type Runner struct {
	registry *Registry
	executor Executor
}

// NewRunner creates a runner.
func NewRunner(registry *Registry, executor Executor) *Runner {
	return &Runner{registry: registry, executor: executor}
}

// Pending returns the migrations that have not been applied yet.
func (r *Runner) Pending(ctx context.Context) ([]File, error) {
	files, err := r.registry.Files()
	if err != nil {
		return nil, err
	}
	applied, err := r.executor.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	pending := make([]File, 0, len(files))
	for _, f := range files {
		if _, ok := done[f.Name]; !ok {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

// Run applies every pending migration and returns the names it applied. It
// stops at the first failure.
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	pending, err := r.Pending(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(pending))
	for _, f := range pending {
		script, err := afero.ReadFile(r.registry.fs, f.Path)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", f.Path, err)
		}
		if err := r.executor.Apply(ctx, f.Name, string(script)); err != nil {
			return applied, fmt.Errorf("migration %s (%s) failed: %w", f.Name, f.Module, err)
		}
		slog.Info("Applied migration", "name", f.Name, "module", f.Module)
		applied = append(applied, f.Name)
	}
	return applied, nil
}
