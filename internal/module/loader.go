package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nfrund/modfinder/internal/manifest"
	"github.com/nfrund/modfinder/internal/pubsub"
	"github.com/nfrund/modfinder/internal/registry"
	"github.com/nfrund/modfinder/internal/router"
	"github.com/spf13/afero"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Loader registers modules into an application registry.
type Loader struct {
	fs        afero.Fs
	manifests manifest.Loader
	reg       *registry.Registry
}

// NewLoader creates a loader reading modules from fs into reg.
func NewLoader(fs afero.Fs, reg *registry.Registry) *Loader {
	return &Loader{
		fs:        fs,
		manifests: manifest.NewFileLoader(fs),
		reg:       reg,
	}
}

// WithManifests replaces the manifest loader.
func (l *Loader) WithManifests(ml manifest.Loader) *Loader {
	l.manifests = ml
	return l
}

// Registry returns the registry modules are loaded into.
func (l *Loader) Registry() *registry.Registry {
	return l.reg
}

type registeredEvent struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// LoadAll discovers the modules under root, registers each in order and then
// boots the registered providers. The first error aborts loading.
func (l *Loader) LoadAll(ctx context.Context, root string) ([]Module, error) {
	startTime := time.Now()

	modules, err := Discover(l.fs, root)
	if err != nil {
		return nil, err
	}

	for _, m := range modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.Register(ctx, m); err != nil {
			return nil, err
		}
		payload, _ := json.Marshal(registeredEvent{Name: m.Name, Path: m.Path})
		l.publish(ctx, pubsub.Message{
			Topic:    pubsub.TopicModuleRegistered,
			Payload:  payload,
			Metadata: map[string]string{pubsub.MetaModule: m.Name, pubsub.MetaPath: m.Path},
		})
	}

	if err := l.reg.Boot(ctx); err != nil {
		return nil, err
	}

	l.publish(ctx, pubsub.Message{
		Topic:    pubsub.TopicModulesBooted,
		Payload:  []byte(strconv.Itoa(len(modules))),
		Metadata: map[string]string{pubsub.MetaCount: strconv.Itoa(len(modules))},
	})
	slog.Info("Modules loaded", "root", root, "count", len(modules), "duration", time.Since(startTime))
	return modules, nil
}

func (l *Loader) publish(ctx context.Context, msg pubsub.Message) {
	if err := l.reg.Events.Publish(ctx, msg); err != nil {
		slog.Warn("Failed to publish module event", "topic", msg.Topic, "error", err)
	}
}

// Register runs every registration step for m in order. A failing step stops
// the remaining ones; earlier steps stay applied.
func (l *Loader) Register(ctx context.Context, m Module) error {
	steps := []struct {
		name string
		run  func(context.Context, Module) error
	}{
		{"configs", l.registerConfigs},
		{"helper", l.registerHelper},
		{"factories", l.registerFactories},
		{"migrations", l.registerMigrations},
		{"views", l.registerViews},
		{"routes", l.registerRoutes},
		{"providers", l.registerProviders},
		{"di", l.registerBindings},
	}

	for _, step := range steps {
		if err := step.run(ctx, m); err != nil {
			slog.Error("Module registration failed", "module", m.Name, "step", step.name, "error", err)
			return err
		}
	}
	slog.Info("Module registered", "module", m.Name, "path", m.Path)
	return nil
}

func (l *Loader) registerConfigs(_ context.Context, m Module) error {
	dir := filepath.Join(m.Path, ConfigsDir)
	ok, err := afero.DirExists(l.fs, dir)
	if err != nil || !ok {
		return err
	}
	return l.mergeConfigDir(m, dir, []string{m.Namespace()})
}

func (l *Loader) mergeConfigDir(m Module, dir string, segments []string) error {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return fmt.Errorf("module %s: failed to read %s: %w", m.Name, dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if err := l.mergeConfigDir(m, path, append(segments, name)); err != nil {
				return err
			}
			continue
		}
		if !manifest.Supported(name) {
			slog.Debug("Skipping config file with unsupported format", "module", m.Name, "path", path)
			continue
		}

		value, err := l.manifests.Load(path)
		if err != nil {
			return fmt.Errorf("module %s: %w", m.Name, err)
		}
		key := strings.Join(append(segments[:len(segments):len(segments)], manifest.TrimExt(name)), ".")
		l.reg.Config.MergeFrom(key, value)
		slog.Debug("Merged module config", "module", m.Name, "key", key)
	}
	return nil
}

func (l *Loader) registerHelper(ctx context.Context, m Module) error {
	path := filepath.Join(m.Path, HelperFile)
	ok, err := afero.Exists(l.fs, path)
	if err != nil || !ok {
		return err
	}
	if err := l.reg.Helpers.Run(ctx, l.fs, path); err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}
	return nil
}

func (l *Loader) registerFactories(_ context.Context, m Module) error {
	dir := filepath.Join(m.Path, FactoriesDir)
	ok, err := afero.DirExists(l.fs, dir)
	if err != nil || !ok {
		return err
	}
	l.reg.Factories.AddSource(m.Name, dir)
	return nil
}

func (l *Loader) registerMigrations(_ context.Context, m Module) error {
	dir := filepath.Join(m.Path, MigrationsDir)
	ok, err := afero.DirExists(l.fs, dir)
	if err != nil || !ok {
		return err
	}
	l.reg.Migrations.AddSource(m.Name, dir)
	return nil
}

func (l *Loader) registerViews(_ context.Context, m Module) error {
	dir := filepath.Join(m.Path, ViewsDir)
	ok, err := afero.DirExists(l.fs, dir)
	if err != nil || !ok {
		return err
	}
	viewFS := afero.NewIOFS(afero.NewBasePathFs(l.fs, dir))
	if err := l.reg.Views.AddNamespace(m.Namespace(), viewFS); err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}
	return nil
}

func (l *Loader) registerRoutes(_ context.Context, m Module) error {
	path, value, err := l.loadManifest(m, RoutesBase)
	if err != nil || path == "" {
		return err
	}

	if _, ok := manifest.AsMapping(value); !ok {
		return &ConfigError{Module: m.Name, Manifest: RoutesBase, Expected: "a mapping with a routes list", Got: manifest.Describe(value)}
	}
	var file router.File
	if err := manifest.Convert(value, &file); err != nil {
		return fmt.Errorf("module %s: %s: %w", m.Name, path, err)
	}
	if err := l.reg.Router.Load(file, path); err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}
	return nil
}

func (l *Loader) registerProviders(ctx context.Context, m Module) error {
	path, value, err := l.loadManifest(m, ProvidersBase)
	if err != nil || path == "" {
		return err
	}

	if manifest.TableRooted(path) {
		if root, ok := manifest.AsMapping(value); ok && len(root) == 1 {
			if list, ok := root[ProvidersKey]; ok {
				value = list
			}
		}
	}

	seq, ok := manifest.AsSequence(value)
	if !ok {
		return &ConfigError{Module: m.Name, Manifest: ProvidersBase, Expected: "a list of provider ids", Got: manifest.Describe(value)}
	}

	ids := make([]string, 0, len(seq))
	for _, item := range seq {
		id, ok := item.(string)
		if !ok {
			return &ConfigError{Module: m.Name, Manifest: ProvidersBase, Expected: "a list of provider ids", Got: "a list containing " + manifest.Describe(item)}
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		if _, err := l.reg.RegisterByID(ctx, id); err != nil {
			return fmt.Errorf("module %s: %w", m.Name, err)
		}
	}
	return nil
}

func (l *Loader) registerBindings(_ context.Context, m Module) error {
	path, value, err := l.loadManifest(m, DIBase)
	if err != nil || path == "" {
		return err
	}

	root, ok := manifest.AsMapping(value)
	if !ok {
		return &ConfigError{Module: m.Name, Manifest: DIBase, Expected: "a mapping", Got: manifest.Describe(value)}
	}

	bind, err := bindingSection(m, root, "bind")
	if err != nil {
		return err
	}
	singleton, err := bindingSection(m, root, "singleton")
	if err != nil {
		return err
	}

	for _, abstract := range sortedKeys(bind) {
		l.reg.Container.Bind(abstract, bind[abstract])
	}
	for _, abstract := range sortedKeys(singleton) {
		l.reg.Container.Singleton(abstract, singleton[abstract])
	}
	return nil
}

func bindingSection(m Module, root map[string]any, section string) (map[string]string, error) {
	raw, present := root[section]
	if !present {
		return nil, nil
	}

	manifestName := DIBase + "." + section
	entries, ok := manifest.AsMapping(raw)
	if !ok {
		return nil, &ConfigError{Module: m.Name, Manifest: manifestName, Expected: "a mapping of interface to concrete", Got: manifest.Describe(raw)}
	}

	out := make(map[string]string, len(entries))
	for abstract, v := range entries {
		concrete, ok := v.(string)
		if !ok || concrete == "" {
			return nil, &ConfigError{Module: m.Name, Manifest: manifestName + "." + abstract, Expected: "a concrete name", Got: manifest.Describe(v)}
		}
		out[abstract] = concrete
	}
	return out, nil
}

// loadManifest loads the manifest stored under base in m. It returns an empty
// path and no error when the manifest does not exist.
func (l *Loader) loadManifest(m Module, base string) (string, any, error) {
	path, value, err := manifest.LoadBase(l.manifests, filepath.Join(m.Path, filepath.FromSlash(base)))
	if errors.Is(err, manifest.ErrNotFound) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("module %s: %w", m.Name, err)
	}
	return path, value, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
