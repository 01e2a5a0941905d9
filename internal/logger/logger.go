// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

var logLevel = new(slog.LevelVar)

// New creates a logger with the supplied level and format ("text" or
// "json") writing to w, and installs it as the slog default.
func New(level, format string, w io.Writer) *slog.Logger {
	logLevel.Set(parseLogLevel(level))
	logger := slog.New(newHandler(format, w))
	slog.SetDefault(logger)
	return logger
}

// LogLevel returns the level the process-wide logger was configured with.
func LogLevel() slog.Level {
	return logLevel.Level()
}

func newHandler(format string, w io.Writer) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		})

	case "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:       logLevel,
			AddSource:   true,
			ReplaceAttr: shortenSourcePath,
		})

	default:
		panic("unsupported log format: " + format)
	}
}

// shortenSourcePath trims source file paths to their last 3 segments so
// text logs stay readable.
func shortenSourcePath(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	source, ok := a.Value.Any().(*slog.Source)
	if !ok || source == nil {
		return a
	}
	parts := strings.Split(source.File, "/")
	if len(parts) > 3 {
		source.File = filepath.Join(parts[len(parts)-3:]...)
	}
	return a
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
