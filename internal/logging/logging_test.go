package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoggerWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "state", "microdrop.log")

	log := newLogger(&console, logPath, "debug")
	log.Debug().Str("device", "USB Audio").Msg("Selected input device")

	if !strings.Contains(console.String(), "Selected input device") {
		t.Errorf("expected console output, got %q", console.String())
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"device":"USB Audio"`) {
		t.Errorf("expected JSON line in log file, got %q", data)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var console bytes.Buffer
	log := newLogger(&console, filepath.Join(t.TempDir(), "microdrop.log"), "warn")
	log.Info().Msg("hidden")

	if console.Len() != 0 {
		t.Errorf("expected info to be filtered, got %q", console.String())
	}
}

func TestLoggerFallsBackToConsole(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var console bytes.Buffer
	// The log directory cannot be created beneath a regular file.
	log := newLogger(&console, filepath.Join(blocker, "sub", "microdrop.log"), "info")
	log.Info().Msg("still logging")

	if !strings.Contains(console.String(), "Logging to console only") {
		t.Errorf("expected fallback warning, got %q", console.String())
	}
	if !strings.Contains(console.String(), "still logging") {
		t.Errorf("expected message on console, got %q", console.String())
	}
}
