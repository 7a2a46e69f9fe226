package inject

import (
	"context"
	"errors"
	"testing"
)

type fakeClipboard struct {
	text     string
	writeErr error
	writes   []string
}

func (c *fakeClipboard) ReadAll() (string, error) { return c.text, nil }

func (c *fakeClipboard) WriteAll(text string) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.text = text
	c.writes = append(c.writes, text)
	return nil
}

func newTestInjector(opts Options, clip *fakeClipboard) (*pasteInjector, *[]bool, *[]string) {
	var chords []bool
	var typed []string
	return &pasteInjector{
		opts: opts,
		clip: clip,
		sendChord: func(shift bool) error {
			chords = append(chords, shift)
			return nil
		},
		typeText: func(ctx context.Context, text string) error {
			typed = append(typed, text)
			return nil
		},
	}, &chords, &typed
}

func TestPasteSetsClipboardAndSendsChord(t *testing.T) {
	clip := &fakeClipboard{text: "old"}
	inj, chords, _ := newTestInjector(Options{TerminalChord: true}, clip)

	if err := inj.Paste(context.Background(), "hello world"); err != nil {
		t.Fatalf("Paste: %v", err)
	}
	if clip.text != "hello world" {
		t.Errorf("expected clipboard to hold transcript, got %q", clip.text)
	}
	if len(*chords) != 1 || !(*chords)[0] {
		t.Errorf("expected one Ctrl+Shift+V chord, got %v", *chords)
	}
}

func TestPasteRestoresClipboard(t *testing.T) {
	clip := &fakeClipboard{text: "old"}
	inj, _, _ := newTestInjector(Options{RestoreClipboard: true}, clip)

	if err := inj.Paste(context.Background(), "hello"); err != nil {
		t.Fatalf("Paste: %v", err)
	}
	if clip.text != "old" {
		t.Errorf("expected clipboard restored to %q, got %q", "old", clip.text)
	}
}

func TestPasteClipboardFailure(t *testing.T) {
	clip := &fakeClipboard{writeErr: errors.New("no display")}
	inj, chords, _ := newTestInjector(Options{}, clip)

	if err := inj.Paste(context.Background(), "hello"); !errors.Is(err, ErrClipboard) {
		t.Fatalf("expected ErrClipboard, got %v", err)
	}
	if len(*chords) != 0 {
		t.Error("expected no key events after clipboard failure")
	}
}

func TestPasteOrTypeFallsBack(t *testing.T) {
	clip := &fakeClipboard{writeErr: errors.New("no display")}
	inj, _, typed := newTestInjector(Options{PreferPaste: true}, clip)

	if err := inj.PasteOrType(context.Background(), "hello"); err != nil {
		t.Fatalf("PasteOrType: %v", err)
	}
	if len(*typed) != 1 || (*typed)[0] != "hello" {
		t.Errorf("expected fallback to typing, got %v", *typed)
	}
}

func TestPasteOrTypeWithoutPreferPasteTypes(t *testing.T) {
	clip := &fakeClipboard{}
	inj, chords, typed := newTestInjector(Options{}, clip)

	if err := inj.PasteOrType(context.Background(), "hi"); err != nil {
		t.Fatalf("PasteOrType: %v", err)
	}
	if len(*chords) != 0 || len(*typed) != 1 {
		t.Errorf("expected typing only, got chords=%v typed=%v", *chords, *typed)
	}
}

func TestPasteHonoursCancellation(t *testing.T) {
	clip := &fakeClipboard{}
	inj, chords, _ := newTestInjector(Options{}, clip)
	inj.settle = 1 << 40

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := inj.Paste(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(*chords) != 0 {
		t.Error("expected no chord after cancellation")
	}
}

func TestPasteOrTypeReportsUnsupportedTyping(t *testing.T) {
	inj, _, _ := newTestInjector(Options{PreferPaste: true}, &fakeClipboard{})
	inj.sendChord = func(bool) error { return errors.New("no uinput") }
	inj.typeText = func(context.Context, string) error { return ErrTypeUnsupported }

	err := inj.PasteOrType(context.Background(), "hello")
	if !errors.Is(err, ErrTypeUnsupported) {
		t.Fatalf("expected ErrTypeUnsupported, got %v", err)
	}
}
