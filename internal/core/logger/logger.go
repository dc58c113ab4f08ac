// Package logger sets up the global structured logger.
//
// Initialize once at startup from the logging configuration section, then
// either use the package-level helpers or pass Get() to components that take
// a *slog.Logger.
//
//	logFile, err := logger.Initialize(cfg.Logging)
//	if err != nil {
//		return err
//	}
//	if logFile != nil {
//		defer logFile.Close()
//	}
//	logger.Info("rules loaded", "count", store.Len())
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/solatis/mailscore/internal/core/config"
)

var globalLogger = slog.Default()

// Initialize sets up the global logger. Output is "stdout", "stderr" or a
// file path; the returned file is non-nil only for file output and must be
// closed by the caller.
func Initialize(cfg config.LoggingConfig) (*os.File, error) {
	var logFile *os.File
	var w io.Writer

	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		logFile = f
		w = f
	}

	globalLogger = New(w, cfg.Level, cfg.Format)
	slog.SetDefault(globalLogger)
	return logFile, nil
}

// New builds a logger writing to w without touching the global one.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLogLevel converts string level to slog.Level
func parseLogLevel(level string) slog.Level {
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

// Get returns the global logger.
func Get() *slog.Logger {
	return globalLogger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { globalLogger.Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { globalLogger.Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { globalLogger.Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { globalLogger.Error(msg, args...) }
