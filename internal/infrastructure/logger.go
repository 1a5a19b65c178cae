// Package infrastructure wires process-level concerns shared by the command
// binaries, currently the structured logger and the run-id context plumbing.
package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/least106/MomentTransfer/internal/config"
	apperrors "github.com/least106/MomentTransfer/internal/errors"
)

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID tags the context with the batch run ID so every log record
// emitted under it carries the ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run ID stored in the context, or "".
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// NewLogger builds the application logger from the logging configuration:
// JSON or text format, stderr plus an optional log file. The returned close
// function releases the log file and must be called on shutdown.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	closeFn := func() error { return nil }

	var output io.Writer = os.Stderr
	if cfg.FilePath != "" {
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		output = io.MultiWriter(os.Stderr, file)
		closeFn = file.Close
	}

	return newLogger(cfg, output), closeFn, nil
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&runIDHandler{Handler: handler})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runIDHandler injects the run ID from the record's context, so worker
// goroutines do not need to thread the ID through every call site.
type runIDHandler struct {
	slog.Handler
}

func (h *runIDHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := RunIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String("run_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *runIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runIDHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *runIDHandler) WithGroup(name string) slog.Handler {
	return &runIDHandler{Handler: h.Handler.WithGroup(name)}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.CodePath, err,
				"cannot create log directory %q", dir)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePath, err, "cannot open log file %q", path)
	}
	return file, nil
}
