//go:build !darwin

package permissions

// Microphone is always authorized outside macOS; access problems surface
// when the stream is opened.
func Microphone() Status { return Authorized }

func RequestMicrophone() {}

func Accessibility(bool) bool { return true }
