// Package logger provides structured logging with automatic credential redaction.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Transport and session lifecycle logging
//   - REST collaborator request/response logging
//   - Automatic bearer-token redaction
//   - Contextual logging with session and device tracing
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
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

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	outputMu  sync.Mutex
	logOutput io.Writer = os.Stderr
)

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	initLogger(level, nil, false)
}

// ParseLevel converts a textual level ("debug", "info", "warn", "error") into a slog.Level.
// Unknown values map to info.
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

// SetOutput redirects log output. Primarily used by tests to capture records.
func SetOutput(w io.Writer, level slog.Level) {
	outputMu.Lock()
	logOutput = w
	outputMu.Unlock()
	initLogger(level, nil, false)
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	initLogger(level, nil, false)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
// This is a convenience wrapper around SetLevel for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

func initLogger(level slog.Level, commonFields []slog.Attr, useJSON bool) {
	outputMu.Lock()
	out := logOutput
	outputMu.Unlock()

	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	if useJSON {
		base = slog.NewJSONHandler(out, opts)
	} else {
		base = slog.NewTextHandler(out, opts)
	}
	DefaultLogger = slog.New(NewContextHandler(base, commonFields...))
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
// Debug messages are only output when the log level is set to LevelDebug or lower.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// SessionTransition logs a training-session state change.
func SessionTransition(ctx context.Context, from, to string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs, "from", from, "to", to)
	allAttrs = append(allAttrs, attrs...)
	InfoContext(ctx, "session transition", allAttrs...)
}

var (
	// sensitivePatterns matches credentials that must never reach log output.
	sensitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._~+/=-]+`),
		regexp.MustCompile(`("(?:access_)?token"\s*:\s*")[^"]+(")`),
	}
)

// RedactSensitiveData removes bearer tokens and token fields from strings.
//
// This function is safe for concurrent use as it only reads from the compiled patterns.
func RedactSensitiveData(input string) string {
	result := sensitivePatterns[0].ReplaceAllString(input, "Bearer [REDACTED]")
	return sensitivePatterns[1].ReplaceAllString(result, "${1}[REDACTED]${2}")
}

// APIRequest logs REST request details at debug level with automatic redaction.
// This function is a no-op when debug logging is disabled.
func APIRequest(ctx context.Context, method, url string, headers map[string]string, body any) {
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 8)
	attrs = append(attrs, "method", method, "url", RedactSensitiveData(url))

	if len(headers) > 0 {
		redacted := make(map[string]string, len(headers))
		for key, value := range headers {
			redacted[key] = RedactSensitiveData(value)
		}
		attrs = append(attrs, "headers", redacted)
	}

	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			attrs = append(attrs, "body_error", err.Error())
		} else {
			attrs = append(attrs, "body", RedactSensitiveData(string(bodyJSON)))
		}
	}

	DebugContext(ctx, "api request", attrs...)
}

// APIResponse logs REST response details at debug level, or at error level when err is set.
func APIResponse(ctx context.Context, statusCode int, body string, err error) {
	if err != nil {
		ErrorContext(ctx, "api response error", "status_code", statusCode, "error", err.Error())
		return
	}
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	DebugContext(ctx, "api response", "status_code", statusCode, "body", RedactSensitiveData(body))
}
