package logx

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"appshots/internal/config"
)

// Config via env or code
type Config struct {
	Service        string // "api" or "worker"
	Level          string // debug|info|warn|error
	Format         string // json|console
	FilePath       string // "" = disabled
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
	FileCompress   bool
}

// FromConfig takes the LOG_* settings already loaded into cfg.
func FromConfig(service string, cfg config.Config) Config {
	return Config{
		Service:        service,
		Level:          cfg.LogLevel,
		Format:         cfg.LogFormat,
		FilePath:       cfg.LogFile,
		FileMaxSizeMB:  cfg.LogFileMaxSizeMB,
		FileMaxBackups: cfg.LogFileMaxBackups,
		FileMaxAgeDays: cfg.LogFileMaxAgeDays,
		FileCompress:   cfg.LogFileCompress,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(c Config) zerolog.Logger {
	logger := New(c, os.Stdout)
	log.Logger = logger
	return logger
}

// New builds a logger writing to out plus the optional rotating file.
func New(c Config, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		lvl = zerolog.InfoLevel
	}

	var writers []io.Writer
	if c.Format == "console" {
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, out)
	}
	if c.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.FileMaxSizeMB,
			MaxBackups: c.FileMaxBackups,
			MaxAge:     c.FileMaxAgeDays,
			Compress:   c.FileCompress,
		})
	}

	return zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().
		Timestamp().
		Str("svc", c.Service).
		Logger()
}

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keySessionID
	keyJobID
)

// WithRequestID stores the request id for FromCtx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// WithSessionID stores the caller session for FromCtx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keySessionID, id)
}

// WithJobID stores the export job id for FromCtx.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyJobID, id)
}

// FromCtx attaches standard fields (if present) to base.
func FromCtx(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return base
	}
	l := base.With()
	if v, ok := ctx.Value(keyRequestID).(string); ok && v != "" {
		l = l.Str("req_id", v)
	}
	if v, ok := ctx.Value(keySessionID).(string); ok && v != "" {
		l = l.Str("sid", v)
	}
	if v, ok := ctx.Value(keyJobID).(string); ok && v != "" {
		l = l.Str("job_id", v)
	}
	return l.Logger()
}
