package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm/logger"
)

// ParseLevel maps LOG_LEVEL values to slog levels; unknown values mean info.
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

// Setup installs the default slog logger: JSON in release mode, text otherwise.
func Setup(w io.Writer, level string, release bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if release {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}

// GormLevel picks the gorm logger verbosity that matches level.
func GormLevel(level string) logger.LogLevel {
	switch ParseLevel(level) {
	case slog.LevelDebug:
		return logger.Info
	case slog.LevelError:
		return logger.Error
	default:
		return logger.Warn
	}
}

// GormLogger writes gorm's output through slog.
func GormLogger(level string) logger.Interface {
	return logger.New(slogWriter{}, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  GormLevel(level),
		IgnoreRecordNotFoundError: true,
	})
}

type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Default().Info("gorm", "detail", strings.TrimSpace(fmt.Sprintf(format, args...)))
}
