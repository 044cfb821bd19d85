// Package log configures the process logger and offers context-scoped
// logging helpers that report their caller's source position.
package log

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/chainguard-dev/clog"
)

func Debug(ctx context.Context, msg string, args ...any) { emit(ctx, slog.LevelDebug, msg, args) }

func Info(ctx context.Context, msg string, args ...any) { emit(ctx, slog.LevelInfo, msg, args) }

func Warn(ctx context.Context, msg string, args ...any) { emit(ctx, slog.LevelWarn, msg, args) }

// With returns a context whose logger carries args on every record.
func With(ctx context.Context, args ...any) context.Context {
	return clog.WithLogger(ctx, clog.FromContext(ctx).With(args...))
}

// emit must be called directly by an exported helper so the recorded source
// is the helper's caller.
func emit(ctx context.Context, level slog.Level, msg string, args []any) {
	logger := clog.FromContext(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}

	// runtime.Callers, emit, the helper
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = logger.Handler().Handle(ctx, record)
}
