package inject

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
)

// Clipboard is the system clipboard; tests replace it.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// SystemClipboard returns the platform clipboard.
func SystemClipboard() Clipboard { return systemClipboard{} }

type pasteInjector struct {
	opts      Options
	clip      Clipboard
	sendChord func(shift bool) error
	typeText  func(ctx context.Context, text string) error
	settle    time.Duration
}

// New creates a new text injector
func New(opts Options) Injector {
	return &pasteInjector{
		opts:      opts,
		clip:      SystemClipboard(),
		sendChord: sendPasteChord,
		typeText:  platformType,
		settle:    50 * time.Millisecond,
	}
}

// Paste places text on the clipboard and sends the platform paste chord
// (Cmd+V on macOS, Ctrl+V or Ctrl+Shift+V elsewhere).
func (p *pasteInjector) Paste(ctx context.Context, text string) error {
	var previous string
	if p.opts.RestoreClipboard {
		// If clipboard read fails, proceed anyway
		previous, _ = p.clip.ReadAll()
	}

	if err := p.clip.WriteAll(text); err != nil {
		return fmt.Errorf("%w: %v", ErrClipboard, err)
	}

	if err := sleepCtx(ctx, p.settle); err != nil {
		return err
	}
	if err := p.sendChord(p.opts.TerminalChord); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyEvents, err)
	}

	if p.opts.RestoreClipboard {
		if err := sleepCtx(ctx, 2*p.settle); err != nil {
			return err
		}
		// Only restore if the user hasn't changed it in the meantime
		if current, _ := p.clip.ReadAll(); current == text {
			p.clip.WriteAll(previous)
		}
	}
	return nil
}

// Type injects text using keyboard simulation
func (p *pasteInjector) Type(ctx context.Context, text string) error {
	return p.typeText(ctx, text)
}

// PasteOrType tries paste first, falls back to type if needed
func (p *pasteInjector) PasteOrType(ctx context.Context, text string) error {
	if p.opts.PreferPaste {
		err := p.Paste(ctx, text)
		if err == nil {
			return nil
		}
		if typeErr := p.Type(ctx, text); typeErr != nil {
			return fmt.Errorf("paste failed (%v), type failed: %w", err, typeErr)
		}
		return nil
	}
	return p.Type(ctx, text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
