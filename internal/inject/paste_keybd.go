//go:build linux || windows

package inject

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

var (
	kbOnce sync.Once
	kb     keybd_event.KeyBonding
	kbErr  error
)

func keyBonding() (*keybd_event.KeyBonding, error) {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
		if kbErr == nil && runtime.GOOS == "linux" {
			// uinput needs a moment before the new virtual device is
			// picked up by the compositor.
			time.Sleep(2 * time.Second)
		}
	})
	return &kb, kbErr
}

// sendPasteChord sends Ctrl+V, or Ctrl+Shift+V when shift is set.
func sendPasteChord(shift bool) error {
	k, err := keyBonding()
	if err != nil {
		return err
	}
	k.Clear()
	k.SetKeys(keybd_event.VK_V)
	k.HasCTRL(true)
	k.HasSHIFT(shift)
	return k.Launching()
}

// platformType is unsupported: keybd_event sends layout-dependent key codes,
// not characters.
func platformType(ctx context.Context, text string) error {
	return ErrTypeUnsupported
}
