package config

import (
    "log/slog"
    "os"
    "strings"
)

// NewLogger builds the process logger: JSON in prod, text elsewhere.  It
// also becomes the slog default.
func NewLogger(cfg Config) *slog.Logger {
    var level slog.Level
    switch strings.ToLower(cfg.Log.Level) {
    case "debug":
        level = slog.LevelDebug
    case "warn":
        level = slog.LevelWarn
    case "error":
        level = slog.LevelError
    default:
        level = slog.LevelInfo
    }
    opts := &slog.HandlerOptions{Level: level}

    var h slog.Handler
    if cfg.Env == "prod" {
        h = slog.NewJSONHandler(os.Stdout, opts)
    } else {
        h = slog.NewTextHandler(os.Stdout, opts)
    }
    logger := slog.New(h).With("env", cfg.Env)
    slog.SetDefault(logger)
    return logger
}
