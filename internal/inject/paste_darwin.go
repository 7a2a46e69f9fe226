//go:build darwin

package inject

/*
#cgo LDFLAGS: -framework ApplicationServices -framework Carbon
#include <ApplicationServices/ApplicationServices.h>
#include <Carbon/Carbon.h>

static int postCommandV() {
    CGEventSourceRef source = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
    if (source == NULL) {
        return -1;
    }

    CGEventRef down = CGEventCreateKeyboardEvent(source, (CGKeyCode)kVK_ANSI_V, true);
    CGEventRef up = CGEventCreateKeyboardEvent(source, (CGKeyCode)kVK_ANSI_V, false);
    CGEventSetFlags(down, kCGEventFlagMaskCommand);
    CGEventSetFlags(up, kCGEventFlagMaskCommand);

    CGEventPost(kCGHIDEventTap, down);
    CGEventPost(kCGHIDEventTap, up);

    CFRelease(down);
    CFRelease(up);
    CFRelease(source);
    return 0;
}

static int postUnichar(UniChar ch) {
    CGEventSourceRef source = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
    if (source == NULL) {
        return -1;
    }
    CGEventRef event = CGEventCreateKeyboardEvent(source, 0, true);
    if (event == NULL) {
        CFRelease(source);
        return -1;
    }
    CGEventKeyboardSetUnicodeString(event, 1, &ch);
    CGEventPost(kCGHIDEventTap, event);
    CGEventSetType(event, kCGEventKeyUp);
    CGEventPost(kCGHIDEventTap, event);

    CFRelease(event);
    CFRelease(source);
    return 0;
}
*/
import "C"

import (
	"context"
	"errors"
	"time"
	"unicode/utf16"
)

// sendPasteChord posts Cmd+V. Shift is never needed on macOS.
func sendPasteChord(bool) error {
	if C.postCommandV() != 0 {
		return errors.New("failed to create CGEvent source")
	}
	return nil
}

// platformType posts one unicode keyboard event per UTF-16 unit.
func platformType(ctx context.Context, text string) error {
	units := utf16.Encode([]rune(text))
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if C.postUnichar(C.UniChar(u)) != 0 {
			return errors.New("failed to post keyboard event")
		}
		if i < len(units)-1 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	return nil
}
