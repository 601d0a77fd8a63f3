package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all host configuration for the application.
type Config struct {
	ModulesPath string `validate:"required"`
	Addr        string `validate:"required"`
	LogFormat   string `validate:"oneof=text json"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	Watch       bool

	DBUrl  string `validate:"omitempty,url"`
	DBNs   string
	DBDb   string
	DBUser string
	DBPass string
}

// Defaults applied when the environment leaves a value empty.
const (
	DefaultModulesPath = "app/Modules"
	DefaultAddr        = ":8080"
)

// Load reads configuration from a .env file (if any) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config using the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		ModulesPath: withDefault(getenv("MODULES_PATH"), DefaultModulesPath),
		Addr:        withDefault(getenv("APP_ADDR"), DefaultAddr),
		LogFormat:   withDefault(getenv("LOG_FORMAT"), "text"),
		LogLevel:    withDefault(getenv("LOG_LEVEL"), "debug"),
		DBUrl:       getenv("SURREAL_URL"),
		DBNs:        getenv("SURREAL_NS"),
		DBDb:        getenv("SURREAL_DB"),
		DBUser:      getenv("SURREAL_USER"),
		DBPass:      getenv("SURREAL_PASS"),
	}

	if raw := getenv("APP_WATCH"); raw != "" {
		watch, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("APP_WATCH must be a boolean: %w", err)
		}
		cfg.Watch = watch
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireDatabase reports an error when the SurrealDB settings are incomplete.
func (c *Config) RequireDatabase() error {
	if c.DBUrl == "" || c.DBNs == "" || c.DBDb == "" {
		return fmt.Errorf("required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set")
	}
	return nil
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
