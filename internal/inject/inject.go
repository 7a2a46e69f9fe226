// Package inject delivers text into the focused application.
package inject

import (
	"context"
	"errors"
)

var (
	ErrClipboard       = errors.New("clipboard unavailable")
	ErrKeyEvents       = errors.New("keyboard simulation unavailable")
	ErrTypeUnsupported = errors.New("typing is not supported on this platform")
)

// Injector defines the interface for text injection.
//
// Type is only implemented on macOS. Linux and Windows are paste-only:
// Type returns ErrTypeUnsupported there, so PasteOrType cannot recover from
// a failed paste.
type Injector interface {
	Paste(ctx context.Context, text string) error
	Type(ctx context.Context, text string) error
	PasteOrType(ctx context.Context, text string) error
}

// Options tunes how text is injected.
type Options struct {
	// PreferPaste tries the clipboard + paste chord before typing.
	PreferPaste bool
	// TerminalChord adds Shift to the paste chord (Ctrl+Shift+V), which most
	// Linux terminals require. Ignored on macOS.
	TerminalChord bool
	// RestoreClipboard puts the previous clipboard text back after pasting.
	RestoreClipboard bool
}
