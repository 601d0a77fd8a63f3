package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/nfrund/modfinder/internal/manifest"
)

// ErrUnknownFactory is returned by Make for a name no source defines.
var ErrUnknownFactory = errors.New("unknown factory")

// ErrInvalidCount is returned when fewer than one record is requested.
var ErrInvalidCount = errors.New("record count must be at least 1")

// Source is a folder of factory definitions contributed by a module.
type Source struct {
	Module string
	Path   string
}

// Definition describes how to generate records of one kind.
type Definition struct {
	Name       string         `json:"name"`
	Table      string         `json:"table"`
	Attributes map[string]any `json:"attributes"`
	Source     string         `json:"-"`
}

// Registry collects factory sources. Definitions are read lazily the first
// time they are needed.
type Registry struct {
	mu          sync.Mutex
	fs          afero.Fs
	sources     []Source
	definitions map[string]*Definition
	sequences   map[string]int
}

// NewRegistry creates an empty registry reading from fs.
func NewRegistry(fs afero.Fs) *Registry {
	return &Registry{
		fs:        fs,
		sequences: make(map[string]int),
	}
}

// AddSource registers a folder of definitions.
func (r *Registry) AddSource(module, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, Source{Module: module, Path: path})
	r.definitions = nil
	slog.Debug("Registered factory source", "module", module, "path", path)
}

// Sources returns the registered sources in registration order.
func (r *Registry) Sources() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Source(nil), r.sources...)
}

// Definitions loads (if needed) and returns every definition sorted by name.
func (r *Registry) Definitions() ([]Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(r.definitions))
	for _, d := range r.definitions {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Make generates one record from the named definition.
func (r *Registry) Make(name string) (map[string]any, error) {
	records, err := r.MakeMany(name, 1)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// MakeMany generates n records from the named definition.
func (r *Registry) MakeMany(name string, n int) ([]map[string]any, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return nil, err
	}
	def, ok := r.definitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFactory, name)
	}

	records := make([]map[string]any, 0, n)
	for range n {
		r.sequences[name]++
		records = append(records, expand(def.Attributes, r.sequences[name]).(map[string]any))
	}
	return records, nil
}

// Table returns the target table of the named definition.
func (r *Registry) Table(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return "", err
	}
	def, ok := r.definitions[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFactory, name)
	}
	return def.Table, nil
}

// load must be called with r.mu held.
func (r *Registry) load() error {
	if r.definitions != nil {
		return nil
	}

	loader := manifest.NewFileLoader(r.fs)
	defs := make(map[string]*Definition)
	for _, src := range r.sources {
		entries, err := afero.ReadDir(r.fs, src.Path)
		if err != nil {
			return fmt.Errorf("failed to read factory source %s: %w", src.Path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !manifest.Supported(entry.Name()) {
				continue
			}
			path := filepath.Join(src.Path, entry.Name())
			value, err := loader.Load(path)
			if err != nil {
				return err
			}

			var def Definition
			if err := manifest.Convert(value, &def); err != nil {
				return fmt.Errorf("invalid factory definition %s: %w", path, err)
			}
			// Keep the decoded attribute values so integers are not widened to float64.
			if raw, ok := manifest.AsMapping(value); ok {
				if attrs, ok := manifest.AsMapping(raw["attributes"]); ok {
					def.Attributes = attrs
				}
			}
			if def.Name == "" {
				def.Name = manifest.TrimExt(entry.Name())
			}
			if def.Table == "" {
				def.Table = def.Name
			}
			if def.Attributes == nil {
				def.Attributes = map[string]any{}
			}
			def.Source = path

			if prev, exists := defs[def.Name]; exists {
				slog.Warn("Factory redefined", "factory", def.Name, "previous", prev.Source, "source", path)
			}
			defs[def.Name] = &def
		}
	}
	r.definitions = defs
	return nil
}

// expand deep-copies v, replacing {{uuid}} and {{seq}} placeholders in strings.
func expand(v any, seq int) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = expand(val, seq)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = expand(val, seq)
		}
		return out
	case string:
		if t == "{{seq}}" {
			return seq
		}
		s := strings.ReplaceAll(t, "{{seq}}", strconv.Itoa(seq))
		for strings.Contains(s, "{{uuid}}") {
			s = strings.Replace(s, "{{uuid}}", uuid.NewString(), 1)
		}
		return s
	default:
		return v
	}
}

// Inserter persists generated records.
type Inserter interface {
	Insert(ctx context.Context, table string, record map[string]any) error
}

// Seeder generates records from a registry and hands them to an Inserter.
type Seeder struct {
	registry *Registry
	inserter Inserter
}

// NewSeeder creates a seeder.
func NewSeeder(registry *Registry, inserter Inserter) *Seeder {
	return &Seeder{registry: registry, inserter: inserter}
}

// Seed inserts n records generated by the named factory.
func (s *Seeder) Seed(ctx context.Context, name string, n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}
	table, err := s.registry.Table(name)
	if err != nil {
		return 0, err
	}
	records, err := s.registry.MakeMany(name, n)
	if err != nil {
		return 0, err
	}
	for i, rec := range records {
		if err := s.inserter.Insert(ctx, table, rec); err != nil {
			return i, fmt.Errorf("failed to insert %s record %d: %w", name, i+1, err)
		}
	}
	slog.Info("Seeded factory", "factory", name, "table", table, "count", len(records))
	return len(records), nil
}
