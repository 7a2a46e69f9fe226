package audio

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDeviceEnumeration      = errors.New("failed to enumerate audio devices")
	ErrDeviceNotFound         = errors.New("audio device not found")
	ErrNoDefaultDevice        = errors.New("no default input device available")
	ErrNoSuitableConfig       = errors.New("no input configuration supports at least 16 kHz")
	ErrStreamBuildFailed      = errors.New("failed to build input stream")
	ErrStreamStartFailed      = errors.New("failed to start input stream")
	ErrInvalidStateTransition = errors.New("invalid capture state transition")

	// ErrInputOverflow is reported through the stream error callback when the
	// platform dropped input before it reached us.
	ErrInputOverflow = errors.New("input overflow")
)

// MinSampleRate is the lowest capture rate usable for speech recognition.
const MinSampleRate = 16000

// Device represents an audio input device
type Device struct {
	// Index is the provider's device index.
	Index             int
	Name              string
	Default           bool
	MaxInputChannels  int
	DefaultSampleRate float64
}

// SampleFormat is the in-memory encoding of captured samples.
type SampleFormat int

const (
	FormatF32 SampleFormat = iota
	FormatI16
	FormatI32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatI16:
		return "i16"
	case FormatI32:
		return "i32"
	default:
		return "unknown"
	}
}

// StreamConfiguration is one rate/channel/format combination a device can
// capture with.
type StreamConfiguration struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

func (c StreamConfiguration) String() string {
	return fmt.Sprintf("%d Hz x %d ch %s", c.SampleRate, c.Channels, c.Format)
}

// Stats describes a finished or in-progress capture.
type Stats struct {
	SessionID      string
	Duration       time.Duration
	SampleCount    int
	SampleRate     int
	Channels       int
	Format         SampleFormat
	DroppedSamples uint64
	StreamErrors   uint64
}

// InputStream is an opened hardware stream. After Stop returns the data
// callback is never invoked again.
type InputStream interface {
	Start() error
	Stop() error
	Close() error
}

// Provider is the platform audio layer.
//
// onData is called on the realtime audio thread: it must not block or
// allocate. onError may be called from the same thread.
type Provider interface {
	InputDevices() ([]Device, error)
	DefaultInputDevice() (Device, error)
	SupportedConfigs(dev Device) ([]StreamConfiguration, error)
	OpenInputStream(dev Device, cfg StreamConfiguration, onData func([]float32), onError func(error)) (InputStream, error)
	Close() error
}
