// Package logging builds the application slog logger from the environment.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/lumberjack"
)

type Config struct {
	Level      slog.Level // default: Info
	Format     string     // "text" or "json" (default "text")
	File       string     // rotated log file; empty = stderr only
	MaxSizeMB  int        // default 50
	MaxBackups int        // default 3
	AlsoStderr bool       // default true
}

func DefaultConfig() Config {
	return Config{
		Level:      slog.LevelInfo,
		Format:     "text",
		MaxSizeMB:  50,
		MaxBackups: 3,
		AlsoStderr: true,
	}
}

// NewConfigFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_FILE, LOG_MAX_SIZE_MB,
// LOG_MAX_BACKUPS and LOG_STDERR.
func NewConfigFromEnv() Config {
	cfg := DefaultConfig()

	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		cfg.Level = slog.LevelDebug
	case "warn", "warning":
		cfg.Level = slog.LevelWarn
	case "error":
		cfg.Level = slog.LevelError
	}

	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json") {
		cfg.Format = "json"
	}

	cfg.File = strings.TrimSpace(os.Getenv("LOG_FILE"))
	cfg.MaxSizeMB = envInt(os.Getenv("LOG_MAX_SIZE_MB"), cfg.MaxSizeMB)
	cfg.MaxBackups = envInt(os.Getenv("LOG_MAX_BACKUPS"), cfg.MaxBackups)
	cfg.AlsoStderr = envBool(os.Getenv("LOG_STDERR"), true)
	return cfg
}

func envBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true
	case "0", "false", "f", "no", "n":
		return false
	default:
		return def
	}
}

func envInt(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v > 0 {
		return v
	}
	return def
}

// New builds a logger; the returned closer releases the log file, if any.
func New(cfg Config) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	handlers := make([]slog.Handler, 0, 2)

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		closer = file
		handlers = append(handlers, newHandler(file, cfg.Format, opts))
	}
	if cfg.AlsoStderr || len(handlers) == 0 {
		handlers = append(handlers, newHandler(os.Stderr, cfg.Format, opts))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer
	}
	return slog.New(MultiHandler{hs: handlers}), closer
}

func NewFromEnv() (*slog.Logger, io.Closer) {
	return New(NewConfigFromEnv())
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MultiHandler fans out to multiple slog.Handlers
type MultiHandler struct{ hs []slog.Handler }

func (m MultiHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return MultiHandler{hs: out}
}

func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithGroup(name)
	}
	return MultiHandler{hs: out}
}
