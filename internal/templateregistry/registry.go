package templateregistry

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
)

// Extension is the file suffix of a view template.
const Extension = ".html"

// Registry holds all parsed module views for the application. Every view is
// stored under "<namespace>/<relative path>", e.g. "billing/invoices/show.html".
type Registry struct {
	templates  *template.Template
	namespaces map[string][]string
	mu         sync.RWMutex
}

// New creates an empty registry. funcs are made available to every view.
func New(funcs template.FuncMap) *Registry {
	return &Registry{
		templates:  template.New("").Funcs(funcs),
		namespaces: make(map[string][]string),
	}
}

// AddNamespace parses every view in viewFS into the registry under namespace.
// Registering the same namespace twice adds (and may replace) views.
func (r *Registry) AddNamespace(namespace string, viewFS fs.FS) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return fs.WalkDir(viewFS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, Extension) {
			return err
		}

		content, err := fs.ReadFile(viewFS, p)
		if err != nil {
			return fmt.Errorf("could not read view %s: %w", p, err)
		}

		name := path.Join(namespace, p)
		if _, err := r.templates.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("could not parse view %s: %w", name, err)
		}
		r.namespaces[namespace] = append(r.namespaces[namespace], name)
		slog.Debug("Registered module view", "name", name)
		return nil
	})
}

// Get retrieves a view by its namespaced name.
func (r *Registry) Get(name string) (*template.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl := r.templates.Lookup(name)
	return tmpl, tmpl != nil
}

// Render executes the named view into w.
func (r *Registry) Render(w io.Writer, name string, data any) error {
	tmpl, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("view not found: %s", name)
	}
	return tmpl.Execute(w, data)
}

// Namespaces returns the registered namespaces, sorted.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Views returns the view names registered under namespace.
func (r *Registry) Views(namespace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.namespaces[namespace]...)
}
