// Package manifest loads the structured data files a module ships with
// (configs, etc/providers, etc/di, routes, factory definitions).
//
// A manifest can be written as YAML, JSON, TOML or HCL. Whatever the source
// format, decoded values are normalized to map[string]any, []any and plain
// scalars so callers validate a single shape.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when no manifest file exists for a path or base name.
	ErrNotFound = errors.New("manifest not found")

	// ErrUnsupportedFormat is returned for files whose extension has no decoder.
	ErrUnsupportedFormat = errors.New("unsupported manifest format")
)

// Extensions lists the supported file extensions in lookup order.
var Extensions = []string{".yaml", ".yml", ".json", ".toml", ".hcl"}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Loader is the capability the module loader uses to read manifests.
type Loader interface {
	// Find resolves a base path without extension (e.g. "etc/providers") to an
	// existing manifest file, or returns ErrNotFound.
	Find(base string) (string, error)

	// Load decodes the manifest at path, or returns ErrNotFound.
	Load(path string) (any, error)
}

// FileLoader reads manifests from an afero filesystem.
type FileLoader struct {
	fs afero.Fs
}

// NewFileLoader creates a loader over fs.
func NewFileLoader(fs afero.Fs) *FileLoader {
	return &FileLoader{fs: fs}
}

// Find implements Loader.
func (l *FileLoader) Find(base string) (string, error) {
	for _, ext := range Extensions {
		candidate := base + ext
		ok, err := afero.Exists(l.fs, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		if ok {
			return candidate, nil
		}
	}
	return "", ErrNotFound
}

// Load implements Loader.
func (l *FileLoader) Load(path string) (any, error) {
	ok, err := afero.Exists(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("manifest load failed (%s): %w", path, err)
	}

	value, err := Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("manifest parse failed (%s): %w", path, err)
	}
	return value, nil
}

// LoadBase is Find followed by Load.
func LoadBase(l Loader, base string) (string, any, error) {
	path, err := l.Find(base)
	if err != nil {
		return "", nil, err
	}
	value, err := l.Load(path)
	return path, value, err
}

// Decode picks a decoder from the extension of name. Data made only of
// whitespace decodes to nil in every format.
func Decode(name string, data []byte) (any, error) {
	if !Supported(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return decodeYAML(data)
	case ".json":
		return decodeJSON(data)
	case ".toml":
		return decodeTOML(data)
	case ".hcl":
		return decodeHCL(name, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Supported reports whether name has a decodable extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// TableRooted reports whether the format of name always decodes to a mapping
// at the top level, as TOML and HCL do.
func TableRooted(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml", ".hcl":
		return true
	default:
		return false
	}
}

// TrimExt strips the extension from a file name.
func TrimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Convert maps a normalized manifest value onto a typed struct using its json tags.
func Convert(value any, out any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode manifest value: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode manifest value: %w", err)
	}
	return nil
}

// AsSequence returns value as a slice when it is one.
func AsSequence(value any) ([]any, bool) {
	seq, ok := value.([]any)
	return seq, ok
}

// AsMapping returns value as a string-keyed map when it is one.
func AsMapping(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok
}

// Describe names the shape of a decoded value for error messages.
func Describe(value any) string {
	switch value.(type) {
	case nil:
		return "nothing"
	case map[string]any:
		return "a mapping"
	case []any:
		return "a list"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case int, int64, float64:
		return "a number"
	default:
		return fmt.Sprintf("%T", value)
	}
}
