package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/baibhavbaidya/researchmind-backend/internal/config"
)

var Logger *slog.Logger

type ctxKey struct{}

// InitLogger installs the JSON logger. Debug gin mode turns on debug records
// with source locations.
func InitLogger(cfg *config.Config) {
	debug := cfg.GinMode == "debug"
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: debug}))
	slog.SetDefault(Logger)

	Logger.Info("Structured logging initialized", "level", level.String())
}

func get() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}

// With returns a logger carrying args on every record.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// NewContext returns ctx carrying l for FromContext.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request scoped logger stored in ctx, or the
// package logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return get()
}

func Info(msg string, args ...any)  { get().Info(msg, args...) }
func Error(msg string, args ...any) { get().Error(msg, args...) }
func Debug(msg string, args ...any) { get().Debug(msg, args...) }
func Warn(msg string, args ...any)  { get().Warn(msg, args...) }
