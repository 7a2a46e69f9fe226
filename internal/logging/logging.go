package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/microdrop/internal/config"
)

// New creates a zerolog logger writing to the console and the log file at
// the given level. If the log file cannot be opened, it logs to the console
// only and says so.
func New(level string) zerolog.Logger {
	return newLogger(os.Stderr, config.LogPath(), level)
}

func newLogger(console io.Writer, logPath string, level string) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}

	var (
		writer  io.Writer = consoleWriter
		fileErr error
	)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		fileErr = err
	} else if logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err != nil {
		fileErr = err
	} else {
		// Multi-writer: console + file
		writer = zerolog.MultiLevelWriter(consoleWriter, logFile)
	}

	logger := zerolog.New(writer).Level(ParseLevel(level)).With().Timestamp().Logger()
	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("path", logPath).Msg("Logging to console only")
	}
	return logger
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
