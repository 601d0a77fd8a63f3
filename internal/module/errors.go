package module

import (
	"errors"
	"fmt"
)

// ConfigError reports a module manifest with the wrong shape.
type ConfigError struct {
	Module   string
	Manifest string
	Expected string
	Got      string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("module %s: %s must be %s, got %s", e.Module, e.Manifest, e.Expected, e.Got)
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
