//go:build darwin

package permissions

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework AVFoundation -framework Cocoa -framework ApplicationServices
#import <AVFoundation/AVFoundation.h>
#import <Cocoa/Cocoa.h>

int microphoneStatus() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophone() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}

int accessibilityTrusted(int prompt) {
    NSDictionary *options = @{(__bridge id)kAXTrustedCheckOptionPrompt: prompt ? @YES : @NO};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options) ? 1 : 0;
}
*/
import "C"

// Microphone returns the AVFoundation authorization status for audio capture.
func Microphone() Status {
	return Status(C.microphoneStatus())
}

// RequestMicrophone shows the system microphone dialog; the answer arrives
// asynchronously.
func RequestMicrophone() {
	C.requestMicrophone()
}

// Accessibility reports whether the process may post keyboard events. With
// prompt set macOS opens the Privacy & Security pane when it may not.
func Accessibility(prompt bool) bool {
	p := C.int(0)
	if prompt {
		p = 1
	}
	return C.accessibilityTrusted(p) == 1
}
