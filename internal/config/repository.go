package config

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// Repository is the dotted-key configuration namespace shared by the host and
// its modules. Module configuration is merged into a defaults layer, host values
// set with Set live in an overrides layer that always wins on lookup.
type Repository struct {
	mu        sync.RWMutex
	defaults  map[string]any
	overrides map[string]any
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		defaults:  make(map[string]any),
		overrides: make(map[string]any),
	}
}

// MergeFrom stores a module-provided value under key. When both the stored
// value and the new one are mappings they are deep merged, so configs/app.yaml
// and configs/app/db.yaml both survive. Otherwise, and for colliding leaves,
// the later merge wins.
func (r *Repository) MergeFrom(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parts := splitKey(key)
	if existing, ok := lookup(r.defaults, parts); ok {
		em, eIsMap := existing.(map[string]any)
		vm, vIsMap := value.(map[string]any)
		if eIsMap && vIsMap {
			value = deepMerge(em, vm)
		}
	}
	setPath(r.defaults, parts, value)
}

// Set stores a host value under key, taking precedence over merged values.
func (r *Repository) Set(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	setPath(r.overrides, splitKey(key), value)
}

// Get resolves key across both layers. Mappings and lists are returned as
// copies, so callers cannot change the stored configuration.
func (r *Repository) Get(key string) (any, bool) {
	v, ok := r.get(key)
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

func (r *Repository) get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parts := splitKey(key)
	override, hasOverride := lookup(r.overrides, parts)
	def, hasDefault := lookup(r.defaults, parts)

	switch {
	case hasOverride && hasDefault:
		om, oIsMap := override.(map[string]any)
		dm, dIsMap := def.(map[string]any)
		if oIsMap && dIsMap {
			return deepMerge(dm, om), true
		}
		return override, true
	case hasOverride:
		return override, true
	default:
		return def, hasDefault
	}
}

// Has reports whether key resolves to a value.
func (r *Repository) Has(key string) bool {
	_, ok := r.get(key)
	return ok
}

// GetString returns the value under key converted to a string.
func (r *Repository) GetString(key string) string {
	v, _ := r.get(key)
	return cast.ToString(v)
}

// GetInt returns the value under key converted to an int.
func (r *Repository) GetInt(key string) int {
	v, _ := r.get(key)
	return cast.ToInt(v)
}

// GetFloat returns the value under key converted to a float64.
func (r *Repository) GetFloat(key string) float64 {
	v, _ := r.get(key)
	return cast.ToFloat64(v)
}

// GetBool returns the value under key converted to a bool.
func (r *Repository) GetBool(key string) bool {
	v, _ := r.get(key)
	return cast.ToBool(v)
}

// GetDuration returns the value under key converted to a time.Duration.
func (r *Repository) GetDuration(key string) time.Duration {
	v, _ := r.get(key)
	return cast.ToDuration(v)
}

// GetStringSlice returns the value under key converted to a []string.
func (r *Repository) GetStringSlice(key string) []string {
	v, _ := r.get(key)
	return cast.ToStringSlice(v)
}

// Keys returns every leaf key across both layers, sorted.
func (r *Repository) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	flatten("", r.defaults, seen)
	flatten("", r.overrides, seen)

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitKey(key string) []string {
	return strings.Split(key, ".")
}

func setPath(tree map[string]any, parts []string, value any) {
	node := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
}

func lookup(tree map[string]any, parts []string) (any, bool) {
	var current any = tree
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// deepMerge returns a new map holding base with over applied on top.
func deepMerge(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		bm, bIsMap := out[k].(map[string]any)
		om, oIsMap := v.(map[string]any)
		if bIsMap && oIsMap {
			out[k] = deepMerge(bm, om)
			continue
		}
		out[k] = v
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, sub := range t {
			out[k] = copyValue(sub)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, sub := range t {
			out[i] = copyValue(sub)
		}
		return out
	default:
		return v
	}
}

func flatten(prefix string, tree map[string]any, into map[string]struct{}) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok && len(sub) > 0 {
			flatten(key, sub, into)
			continue
		}
		into[key] = struct{}{}
	}
}
