package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type ctxLoggerKey struct{}
type ctxAttrsKey struct{}

var (
	defaultLogger     *slog.Logger
	defaultLoggerOnce sync.Once
)

func baseLogger() *slog.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = New("info", "text", os.Stderr)
	})
	return defaultLogger
}

// New builds a logger for the configured level ("debug", "info", "warn", "error")
// and format ("text" or "json").
func New(level string, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handlerLevel := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		handlerLevel = slog.LevelDebug
	case "warn", "warning":
		handlerLevel = slog.LevelWarn
	case "error":
		handlerLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: handlerLevel}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		return ctx
	}

	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(attrs) == 0 {
		return ctx
	}

	next := mergeAttrs(Attrs(ctx), attrs)
	return context.WithValue(ctx, ctxAttrsKey{}, next)
}

// WithRequest tags request-scoped logs with the request id and the session user.
func WithRequest(ctx context.Context, requestID string, user string) context.Context {
	attrs := make([]slog.Attr, 0, 2)
	if requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if user != "" {
		attrs = append(attrs, slog.String("user", user))
	}

	return WithAttrs(ctx, attrs...)
}

func Logger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}

	return baseLogger()
}

func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	attrs, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	if !ok || len(attrs) == 0 {
		return nil
	}

	cloned := make([]slog.Attr, len(attrs))
	copy(cloned, attrs)
	return cloned
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelError, msg, attrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := Logger(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, msg, mergeAttrs(Attrs(ctx), attrs)...)
}

func mergeAttrs(base []slog.Attr, extra []slog.Attr) []slog.Attr {
	if len(base) == 0 {
		cloned := make([]slog.Attr, len(extra))
		copy(cloned, extra)
		return cloned
	}
	if len(extra) == 0 {
		cloned := make([]slog.Attr, len(base))
		copy(cloned, base)
		return cloned
	}

	merged := make([]slog.Attr, 0, len(base)+len(extra))
	indexByKey := make(map[string]int, len(base)+len(extra))

	for _, attr := range base {
		merged = append(merged, attr)
		if attr.Key != "" {
			indexByKey[attr.Key] = len(merged) - 1
		}
	}

	for _, attr := range extra {
		if attr.Key != "" {
			if idx, ok := indexByKey[attr.Key]; ok {
				merged[idx] = attr
				continue
			}
		}

		merged = append(merged, attr)
		if attr.Key != "" {
			indexByKey[attr.Key] = len(merged) - 1
		}
	}

	return merged
}
