package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/nfrund/modfinder/internal/config"
	"github.com/nfrund/modfinder/internal/logging"
	"github.com/nfrund/modfinder/internal/server"
	"github.com/spf13/afero"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.New(cfg.LogFormat, cfg.LogLevel)

	s := server.New(cfg, afero.NewOsFs())

	ctx := context.Background()
	if err := s.LoadModules(ctx); err != nil {
		slog.Error("Failed to load modules", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "addr", cfg.Addr)
	if err := s.Start(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}
