package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/kstaniek/go-siyi-gimbal/internal/logging"
)

// setupLogger returns the process logger. The closer is nil unless a log
// file was requested.
func setupLogger(cfg *appConfig) (*slog.Logger, io.Closer) {
	lvl := logging.ParseLevel(cfg.logLevel)
	if cfg.logFile == "" {
		return logging.New(cfg.logFormat, lvl, os.Stderr).With("app", "gimbal-bridge"), nil
	}
	l, c := logging.NewRotating(cfg.logFormat, lvl, logging.RotateConfig{
		Path:       cfg.logFile,
		MaxSizeMB:  cfg.logMaxSizeMB,
		MaxBackups: cfg.logMaxBackups,
		Compress:   true,
	})
	return l.With("app", "gimbal-bridge"), c
}
