package output

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/gen2brain/beeep"
)

// DesktopNotify selects the native notification center instead of a command.
const DesktopNotify = "desktop"

const notifyTitle = "microdrop"

// Notifier announces a finished transcript.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NewNotifier returns a notifier for a notify_command value: "desktop" for
// the native notification center, anything else is run through the shell
// with the transcript on stdin.
func NewNotifier(command string) Notifier {
	if command == DesktopNotify {
		return desktopNotifier{}
	}
	return commandNotifier{command: command}
}

type desktopNotifier struct{}

func (desktopNotifier) Notify(_ context.Context, text string) error {
	return beeep.Notify(notifyTitle, preview(text, 200), "")
}

type commandNotifier struct {
	command string
}

func (n commandNotifier) Notify(ctx context.Context, text string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", n.command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", n.command)
	}
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify command %q failed: %w: %s", n.command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Cue plays a short beep; used for start/stop audio cues.
func Cue() error {
	return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
}

func preview(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max-1]) + "…"
}
