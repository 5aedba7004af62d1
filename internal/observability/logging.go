package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string

	// Format is "json" (default) or "text".
	Format string

	// Output defaults to os.Stdout.
	Output io.Writer

	// AddSource includes file:line in records.
	AddSource bool

	// RedactPatterns are extra regexes applied on top of the defaults.
	RedactPatterns []string
}

// defaultRedactPatterns covers the secrets this process actually
// handles: LLM provider keys, bearer tokens, the media services' API
// keys and tokens, and generic key=value secrets.
var defaultRedactPatterns = []string{
	`sk-ant-[A-Za-z0-9_-]{20,}`,
	`sk-[A-Za-z0-9]{20,}`,
	`(?i)bearer\s+[A-Za-z0-9._-]{16,}`,
	`(?i)x-plex-token[=:\s]+[A-Za-z0-9]{8,}`,
	`(?i)x-api-key[=:\s]+[A-Za-z0-9]{8,}`,
	`(?i)api_key=[A-Za-z0-9]{8,}`,
	`(?i)(apikey|api[_-]key|token|secret|password)[\s:=]+["']?[^\s"']{8,}["']?`,
}

// sensitiveKeys are attr keys whose values are always masked whatever
// their content.
var sensitiveKeys = map[string]bool{
	"password": true, "secret": true, "token": true,
	"api_key": true, "apikey": true, "authorization": true, "auth": true,
}

const redactedPlaceholder = "[REDACTED]"

// Logger is the process logger: slog with secret redaction applied at
// the handler layer, so loggers derived via Raw() redact too.
type Logger struct {
	slog *slog.Logger
}

// NewLogger builds a Logger. Zero-value config means info-level JSON to
// stdout with the default redaction set.
func NewLogger(cfg LogConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}
	var base slog.Handler
	if cfg.Format == "text" {
		base = slog.NewTextHandler(out, opts)
	} else {
		base = slog.NewJSONHandler(out, opts)
	}

	patterns := make([]*regexp.Regexp, 0, len(defaultRedactPatterns)+len(cfg.RedactPatterns))
	for _, p := range append(append([]string{}, defaultRedactPatterns...), cfg.RedactPatterns...) {
		if re, err := regexp.Compile(p); err == nil {
			patterns = append(patterns, re)
		}
	}

	return &Logger{slog: slog.New(&redactHandler{next: base, patterns: patterns})}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// Raw returns the underlying *slog.Logger for collaborators that take
// one directly (engine.NewRuntime, progress.NewBroadcaster). Redaction
// still applies: it lives in the handler, not this wrapper.
func (l *Logger) Raw() *slog.Logger {
	return l.slog
}

// With returns a Logger carrying extra key-value pairs on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// redactHandler masks secrets in messages and attr values before the
// wrapped handler formats them.
type redactHandler struct {
	next     slog.Handler
	patterns []*regexp.Regexp
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, h.redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cleaned := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		cleaned[i] = h.redactAttr(a)
	}
	return &redactHandler{next: h.next.WithAttrs(cleaned), patterns: h.patterns}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name), patterns: h.patterns}
}

func (h *redactHandler) redactAttr(a slog.Attr) slog.Attr {
	key := strings.ToLower(strings.ReplaceAll(a.Key, "-", "_"))
	if sensitiveKeys[key] {
		return slog.String(a.Key, redactedPlaceholder)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redact(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		cleaned := make([]any, 0, len(members))
		for _, m := range members {
			cleaned = append(cleaned, h.redactAttr(m))
		}
		return slog.Group(a.Key, cleaned...)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, h.redact(err.Error()))
		}
		return a
	default:
		return a
	}
}

func (h *redactHandler) redact(s string) string {
	for _, re := range h.patterns {
		s = re.ReplaceAllString(s, redactedPlaceholder)
	}
	return s
}
