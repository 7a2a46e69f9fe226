package output

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/microdrop/internal/transcript"
)

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) ReadAll() (string, error) { return c.text, nil }
func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

type fakeInjector struct {
	pasted []string
	err    error
}

func (f *fakeInjector) Paste(context.Context, string) error { return nil }
func (f *fakeInjector) Type(context.Context, string) error  { return nil }

func (f *fakeInjector) PasteOrType(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.pasted = append(f.pasted, text)
	return nil
}

type fakeNotifier struct {
	command string
	texts   []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func sampleResult() *transcript.Result {
	return &transcript.Result{
		Text: "Hello world. Second line.",
		Segments: []transcript.Segment{
			{Start: 0, End: 1500 * time.Millisecond, Text: "Hello world."},
			{Start: 1500 * time.Millisecond, End: 3200 * time.Millisecond, Text: "Second line."},
		},
	}
}

func newTestManager(stdout *bytes.Buffer, clip *fakeClipboard, inj *fakeInjector, n *fakeNotifier) *Manager {
	m := NewManager(inj, zerolog.Nop())
	m.stdout = stdout
	m.clipboard = clip
	m.notifier = func(command string) Notifier {
		n.command = command
		return n
	}
	return m
}

func TestParseTimestampFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    TimestampFormat
		wantErr bool
	}{
		{"", TimestampsNone, false},
		{"none", TimestampsNone, false},
		{"Simple", TimestampsSimple, false},
		{" detailed ", TimestampsDetailed, false},
		{"verbose", TimestampsNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestampFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownTimestampFormat) {
					t.Fatalf("expected ErrUnknownTimestampFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if back, _ := ParseTimestampFormat(got.String()); back != got {
				t.Errorf("String() %q does not parse back", got.String())
			}
		})
	}
}

func TestFormat(t *testing.T) {
	r := sampleResult()

	tests := []struct {
		name   string
		format TimestampFormat
		want   string
	}{
		{"none", TimestampsNone, "Hello world. Second line."},
		{"simple", TimestampsSimple, "[0.0s] Hello world.\n[1.5s] Second line."},
		{"detailed", TimestampsDetailed, "[0.0s - 1.5s] Hello world.\n[1.5s - 3.2s] Second line."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(r, tt.format); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatWithoutSegments(t *testing.T) {
	r := &transcript.Result{Text: "just text"}
	if got := Format(r, TimestampsDetailed); got != "just text" {
		t.Errorf("expected plain text fallback, got %q", got)
	}
}

func TestDeliverAllSinks(t *testing.T) {
	var stdout bytes.Buffer
	clip := &fakeClipboard{}
	inj := &fakeInjector{}
	n := &fakeNotifier{}
	m := newTestManager(&stdout, clip, inj, n)

	appendPath := filepath.Join(t.TempDir(), "notes.txt")
	opts := Options{
		Clipboard:  true,
		Paste:      true,
		AppendFile: appendPath,
		Timestamps: TimestampsSimple,
		Notify:     "notify-send microdrop",
	}

	if err := m.Deliver(context.Background(), sampleResult(), opts); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if stdout.String() != "Hello world. Second line.\n" {
		t.Errorf("stdout should carry plain text, got %q", stdout.String())
	}

	formatted := "[0.0s] Hello world.\n[1.5s] Second line."
	if clip.text != formatted {
		t.Errorf("clipboard got %q", clip.text)
	}
	if len(inj.pasted) != 1 || inj.pasted[0] != formatted {
		t.Errorf("paste got %v", inj.pasted)
	}

	data, err := os.ReadFile(appendPath)
	if err != nil {
		t.Fatalf("append file missing: %v", err)
	}
	if string(data) != formatted+"\n" {
		t.Errorf("append file got %q", string(data))
	}

	if n.command != "notify-send microdrop" {
		t.Errorf("notifier built for %q", n.command)
	}
	if len(n.texts) != 1 || n.texts[0] != "Hello world. Second line." {
		t.Errorf("notifier got %v", n.texts)
	}
}

func TestDeliverAppendsAcrossCalls(t *testing.T) {
	var stdout bytes.Buffer
	m := newTestManager(&stdout, &fakeClipboard{}, &fakeInjector{}, &fakeNotifier{})

	path := filepath.Join(t.TempDir(), "log.txt")
	opts := Options{AppendFile: path}
	for _, text := range []string{"first", "second"} {
		if err := m.Deliver(context.Background(), &transcript.Result{Text: text}, opts); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
	}

	data, _ := os.ReadFile(path)
	if string(data) != "first\nsecond\n" {
		t.Errorf("got %q", string(data))
	}
}

func TestDeliverStdoutOnly(t *testing.T) {
	var stdout bytes.Buffer
	clip := &fakeClipboard{}
	inj := &fakeInjector{}
	n := &fakeNotifier{}
	m := newTestManager(&stdout, clip, inj, n)

	if err := m.Deliver(context.Background(), sampleResult(), Options{}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if clip.text != "" || len(inj.pasted) != 0 || len(n.texts) != 0 {
		t.Error("disabled sinks must not be touched")
	}
	if !strings.HasPrefix(stdout.String(), "Hello world.") {
		t.Errorf("unexpected stdout %q", stdout.String())
	}
}

func TestDeliverSinkFailuresAreNotFatal(t *testing.T) {
	var stdout bytes.Buffer
	clip := &fakeClipboard{err: errors.New("no display")}
	inj := &fakeInjector{err: errors.New("no accessibility")}
	n := &fakeNotifier{}
	m := newTestManager(&stdout, clip, inj, n)

	opts := Options{
		Clipboard:  true,
		Paste:      true,
		AppendFile: filepath.Join(t.TempDir(), "missing", "dir", "out.txt"),
		Notify:     DesktopNotify,
	}
	if err := m.Deliver(context.Background(), sampleResult(), opts); err != nil {
		t.Fatalf("sink failures should be logged, got %v", err)
	}
	if len(n.texts) != 1 {
		t.Error("notifier should still run after earlier sinks fail")
	}
}

func TestDeliverStdoutFailure(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())
	m.stdout = failingWriter{}

	if err := m.Deliver(context.Background(), sampleResult(), Options{}); err == nil {
		t.Fatal("expected stdout failure to be returned")
	}
}

func TestNewNotifier(t *testing.T) {
	if _, ok := NewNotifier(DesktopNotify).(desktopNotifier); !ok {
		t.Error("desktop should select the native notifier")
	}
	n, ok := NewNotifier("cat > /dev/null").(commandNotifier)
	if !ok || n.command != "cat > /dev/null" {
		t.Errorf("expected command notifier, got %#v", n)
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := preview("abcdefghij", 5); got != "abcd…" {
		t.Errorf("got %q", got)
	}
}
