package output

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/petems/microdrop/internal/inject"
	"github.com/petems/microdrop/internal/transcript"
)

// Options selects the sinks for one transcript.
type Options struct {
	Clipboard  bool
	Paste      bool
	AppendFile string
	Timestamps TimestampFormat
	Notify     string
}

// Manager fans a transcript out to stdout and the enabled sinks.
type Manager struct {
	stdout    io.Writer
	clipboard inject.Clipboard
	injector  inject.Injector
	notifier  func(command string) Notifier
	log       zerolog.Logger
}

func NewManager(injector inject.Injector, log zerolog.Logger) *Manager {
	return &Manager{
		stdout:    os.Stdout,
		clipboard: inject.SystemClipboard(),
		injector:  injector,
		notifier:  NewNotifier,
		log:       log,
	}
}

// Deliver prints the plain transcript to stdout, then feeds the formatted
// transcript to each enabled sink. Sink failures are logged and do not stop
// the others; only a stdout failure is returned.
func (m *Manager) Deliver(ctx context.Context, r *transcript.Result, opts Options) error {
	// stdout stays plain so it can be piped.
	if _, err := fmt.Fprintln(m.stdout, r.Text); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	formatted := Format(r, opts.Timestamps)

	if opts.Clipboard {
		if err := m.clipboard.WriteAll(formatted); err != nil {
			m.log.Warn().Err(err).Msg("Failed to copy to clipboard")
		} else {
			m.log.Info().Msg("Text copied to clipboard")
		}
	}

	if opts.Paste && m.injector != nil {
		if err := m.injector.PasteOrType(ctx, formatted); err != nil {
			m.log.Warn().Err(err).Msg("Failed to insert text into the active app")
		} else {
			m.log.Info().Msg("Simulated paste")
		}
	}

	if opts.AppendFile != "" {
		if err := appendToFile(opts.AppendFile, formatted); err != nil {
			m.log.Warn().Err(err).Str("path", opts.AppendFile).Msg("Failed to append to file")
		} else {
			m.log.Info().Str("path", opts.AppendFile).Msg("Text appended to file")
		}
	}

	if opts.Notify != "" {
		if err := m.notifier(opts.Notify).Notify(ctx, r.Text); err != nil {
			m.log.Warn().Err(err).Msg("Failed to send notification")
		}
	}

	return nil
}

func appendToFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	if _, err := fmt.Fprintln(f, text); err != nil {
		f.Close()
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return f.Close()
}
