// Package permissions checks the OS privacy permissions microdrop needs:
// microphone access to record and accessibility access to paste.
package permissions

import "errors"

var (
	ErrMicrophoneDenied    = errors.New("microphone permission not granted")
	ErrAccessibilityDenied = errors.New("accessibility permission not granted")
)

// Status mirrors the platform authorization states.
type Status int

const (
	NotDetermined Status = iota
	Restricted
	Denied
	Authorized
)

func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	}
	return "unknown"
}

// Check verifies microphone access, and accessibility access when paste is
// wanted. A missing permission triggers the system prompt where one exists.
func Check(wantPaste bool) error {
	if s := Microphone(); s != Authorized {
		if s == NotDetermined {
			RequestMicrophone()
		}
		return ErrMicrophoneDenied
	}
	if wantPaste && !Accessibility(true) {
		return ErrAccessibilityDenied
	}
	return nil
}
