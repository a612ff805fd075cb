// Package logger wraps log/slog with the field-map API used across repokit.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// OutputFormat selects the slog handler.
type OutputFormat string

const (
	// FormatText renders key=value lines.
	FormatText OutputFormat = "text"
	// FormatJSON renders one JSON object per line.
	FormatJSON OutputFormat = "json"
)

// Fields is a set of structured attributes attached to a log line.
type Fields map[string]interface{}

var (
	mu      sync.Mutex
	logger  *slog.Logger
	level   = new(slog.LevelVar)
	format  = FormatText
	testOut io.Writer
)

// SetTestOutput redirects all log output to w until UnsetTestOutput is called.
func SetTestOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	testOut = w
}

// UnsetTestOutput restores output to stderr.
func UnsetTestOutput() {
	mu.Lock()
	defer mu.Unlock()
	testOut = nil
}

func output() io.Writer {
	if testOut != nil {
		return testOut
	}
	return os.Stderr
}

// ParseLevel maps a config log level onto slog. Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
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

// InitLogger (re)creates the global logger.
func InitLogger(logLevel string, outputFormat OutputFormat) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(ParseLevel(logLevel))
	format = outputFormat
	logger = slog.New(newHandler())
}

// SetOutputFormat switches the handler while keeping the current level.
func SetOutputFormat(outputFormat OutputFormat) {
	mu.Lock()
	defer mu.Unlock()
	format = outputFormat
	logger = slog.New(newHandler())
}

func newHandler() slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(output(), opts)
	}
	return slog.NewTextHandler(output(), opts)
}

// GetLogger returns the global logger, initializing it at info level if needed.
func GetLogger() *slog.Logger {
	mu.Lock()
	initialized := logger != nil
	mu.Unlock()
	if !initialized {
		InitLogger("info", FormatText)
	}
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Debug logs at debug level.
func Debug(msg string, fields ...Fields) {
	GetLogger().Debug(msg, mergeFields(fields...)...)
}

// Info logs at info level.
func Info(msg string, fields ...Fields) {
	GetLogger().Info(msg, mergeFields(fields...)...)
}

// Warn logs at warn level.
func Warn(msg string, fields ...Fields) {
	GetLogger().Warn(msg, mergeFields(fields...)...)
}

// Error logs at error level.
func Error(msg string, fields ...Fields) {
	GetLogger().Error(msg, mergeFields(fields...)...)
}

// Debugf logs a formatted debug message.
func Debugf(f string, args ...interface{}) {
	GetLogger().Debug(fmt.Sprintf(f, args...))
}

// Infof logs a formatted info message.
func Infof(f string, args ...interface{}) {
	GetLogger().Info(fmt.Sprintf(f, args...))
}

// Warnf logs a formatted warning.
func Warnf(f string, args ...interface{}) {
	GetLogger().Warn(fmt.Sprintf(f, args...))
}

// Success logs an info line tagged status=success.
func Success(msg string, fields ...Fields) {
	attrs := append(mergeFields(fields...), "status", "success")
	GetLogger().Info(msg, attrs...)
}

// mergeFields flattens field maps into slog key/value pairs; later maps win.
func mergeFields(fields ...Fields) []interface{} {
	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	out := make([]interface{}, 0, len(merged)*2)
	for k, v := range merged {
		out = append(out, k, v)
	}
	return out
}
