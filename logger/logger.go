// Package logger provides structured logging with automatic secret redaction.
//
// It wraps log/slog with a process-wide DefaultLogger, helpers for logging
// vendor API traffic, and a handler that copies request-scoped fields
// (provider, model, request ID) from the context onto every record.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
)

// Log format constants.
const (
	FormatJSON = "json"
	FormatText = "text"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is initialized at info level, or at LOG_LEVEL when set.
	DefaultLogger *slog.Logger

	mu        sync.Mutex
	logOutput io.Writer = os.Stderr
	logFormat           = FormatText
	logLevel            = slog.LevelInfo
)

func init() {
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		logLevel = ParseLevel(envLevel)
	}
	rebuild()
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// rebuild replaces DefaultLogger from the current settings. Callers hold mu
// or run during init.
func rebuild() {
	opts := &slog.HandlerOptions{Level: logLevel}
	var inner slog.Handler
	if logFormat == FormatJSON {
		inner = slog.NewJSONHandler(logOutput, opts)
	} else {
		inner = slog.NewTextHandler(logOutput, opts)
	}
	DefaultLogger = slog.New(NewContextHandler(inner))
}

// SetLevel changes the logging level for all subsequent log operations.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
	rebuild()
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetFormat switches between FormatText and FormatJSON output.
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	if format == FormatJSON {
		logFormat = FormatJSON
	} else {
		logFormat = FormatText
	}
	rebuild()
}

// SetOutput redirects log output. Tests use it to capture records.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logOutput = w
	rebuild()
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context fields.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context fields.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context fields.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context fields.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

var (
	// apiKeyPatterns match credentials for the vendors this module talks to.
	// Anthropic keys are listed before the generic OpenAI form so they are
	// consumed whole.
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),       // Anthropic API keys
		regexp.MustCompile(`sk-(?:proj-)?[a-zA-Z0-9_-]{32,}`), // OpenAI API keys
		regexp.MustCompile(`sk_[a-f0-9]{40,}`),                // ElevenLabs API keys
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),        // Bearer tokens
	}
)

// RedactSensitiveData removes API keys and bearer tokens from s, keeping
// the first four characters of keys for debugging.
func RedactSensitiveData(s string) string {
	result := s
	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return result
}

// secretHeaders are dropped entirely rather than pattern-redacted.
var secretHeaders = map[string]bool{
	"authorization": true,
	"xi-api-key":    true,
	"x-api-key":     true,
}

// APIRequest logs an outgoing vendor request at debug level. Header values
// for credential headers are replaced; everything else is pattern-redacted.
// Binary bodies should be summarized by the caller, not passed here.
func APIRequest(ctx context.Context, provider, method, url string, headers map[string]string, body any) {
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []any{
		"provider", provider,
		"method", method,
		"url", RedactSensitiveData(url),
	}

	if len(headers) > 0 {
		redacted := make(map[string]string, len(headers))
		for k, v := range headers {
			if secretHeaders[strings.ToLower(k)] {
				redacted[k] = "[REDACTED]"
				continue
			}
			redacted[k] = RedactSensitiveData(v)
		}
		attrs = append(attrs, "headers", redacted)
	}

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			attrs = append(attrs, "body_error", err.Error())
		} else {
			attrs = append(attrs, "body", RedactSensitiveData(string(b)))
		}
	}

	DebugContext(ctx, "API request", attrs...)
}

// maxLoggedBody caps how much of a response body is logged.
const maxLoggedBody = 2048

// APIResponse logs a vendor response when debug logging is enabled. Errors
// are logged at error level, everything else at debug level.
func APIResponse(ctx context.Context, provider string, statusCode int, body string, err error) {
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := []any{
		"provider", provider,
		"status_code", statusCode,
	}
	if err != nil {
		attrs = append(attrs, "error", RedactSensitiveData(err.Error()))
		ErrorContext(ctx, "API response error", attrs...)
		return
	}
	if len(body) > maxLoggedBody {
		body = body[:maxLoggedBody] + "...(truncated)"
	}
	if body != "" {
		attrs = append(attrs, "body", RedactSensitiveData(body))
	}
	DebugContext(ctx, "API response", attrs...)
}
