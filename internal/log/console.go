package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/chainguard-dev/clog"
	slogmulti "github.com/samber/slog-multi"
)

// Options configures the process logger.
type Options struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string
	// Format is one of text, json, logfmt. Default: text.
	Format string
}

// NewConsoleHandler returns the human readable progress log handler written
// to w.
func NewConsoleHandler(w io.Writer, opts Options) (slog.Handler, error) {
	level, err := charmlog.ParseLevel(strings.ToLower(cmpOr(opts.Level, "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	var formatter charmlog.Formatter
	switch strings.ToLower(cmpOr(opts.Format, "text")) {
	case "text":
		formatter = charmlog.TextFormatter
	case "json":
		formatter = charmlog.JSONFormatter
	case "logfmt":
		formatter = charmlog.LogfmtFormatter
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
	}), nil
}

// Setup installs a logger fanning out to the console handler and any extra
// handlers (e.g. an OpenTelemetry bridge) both in ctx and as the slog
// default.
func Setup(ctx context.Context, w io.Writer, opts Options, extra ...slog.Handler) (context.Context, error) {
	console, err := NewConsoleHandler(w, opts)
	if err != nil {
		return ctx, err
	}

	logger := clog.New(slogmulti.Fanout(append([]slog.Handler{console}, extra...)...))
	ctx = clog.WithLogger(ctx, logger)
	slog.SetDefault(&logger.Logger)
	return ctx, nil
}

func cmpOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
