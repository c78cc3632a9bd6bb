package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/marben/mandel_atlas/internal/config"
)

// logFile receives the logs while the terminal ui owns the screen.
const logFile = "atlas.log"

func newLogger(cfg config.Config, stderr io.Writer) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if !cfg.TUI {
		return slog.New(slog.NewTextHandler(stderr, opts)), func() error { return nil }, nil
	}

	path := filepath.Join(cfg.OutDir, logFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, opts)), f.Close, nil
}
