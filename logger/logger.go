package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"stagnant-channel-notifier-bot/config"
)

// New builds the process logger. Output goes to stderr, and additionally to
// a rotated file when one is configured.
func New(c config.LogConfig) zerolog.Logger {
	var out io.Writer = os.Stderr
	if c.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	if c.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
		})
	}
	return zerolog.New(out).
		Level(parseLevel(c.Level)).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
