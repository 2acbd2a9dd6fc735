package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/darrellrafa/Nutribot/internal/utils/id"
)

// LogConfig selects level, encoding and sink for the process logger.
type LogConfig struct {
	Level  string
	Format string
	Output io.Writer
}

// Logger is a slog logger that knows how to pull NutriBot's correlation
// fields (request, chat session and user) out of a context.
type Logger struct {
	logger *slog.Logger
}

// NewLogger builds a text or JSON logger. JSON is used only when Format
// says so; anything else gets the human-readable text handler.
func NewLogger(cfg LogConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &Logger{logger: slog.New(handler)}
}

// ParseLevel accepts debug, info, warn or warning, and error in any case.
// Anything else logs at info.
func ParseLevel(raw string) slog.Level {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return level
}

// contextAttrs collects the correlation fields present on ctx.
func contextAttrs(ctx context.Context) []any {
	var attrs []any
	if v := RequestIDFromContext(ctx); v != "" {
		attrs = append(attrs, "request_id", v)
	}
	if v := SessionIDFromContext(ctx); v != "" {
		attrs = append(attrs, "session_id", v)
	}
	if v, ok := id.UserIDFromContext(ctx); ok {
		attrs = append(attrs, "user_id", v)
	}
	return attrs
}

// WithContext returns l with the correlation fields of ctx attached.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// Slog exposes the underlying logger for libraries that want one.
func (l *Logger) Slog() *slog.Logger { return l.logger }

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Info(msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Warn(msg, args...)
}

// SanitizeAPIKey keeps the first eight and last four characters of an
// OpenAI-compatible key so it can be logged.
func SanitizeAPIKey(key string) string {
	const head, tail = 8, 4
	if len(key) <= head+tail {
		return "***"
	}
	return key[:head] + "..." + key[len(key)-tail:]
}

type (
	requestIDKey struct{}
	sessionIDKey struct{}
)

// ContextWithRequestID tags ctx with the HTTP request id.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns "" when ctx carries no request id.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// ContextWithSessionID tags ctx with the chat session being answered.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext returns "" when ctx carries no session id.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(sessionIDKey{}).(string)
	return v
}
