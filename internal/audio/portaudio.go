package audio

import (
	"fmt"
	"sort"

	"github.com/gordonklaus/portaudio"
)

// Rates probed when listing a device's configurations.
var standardSampleRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 192000}

// maxProbeChannels caps channel probing on devices that advertise dozens of
// inputs (aggregate and pro-audio interfaces).
const maxProbeChannels = 8

const framesPerBuffer = 512

type PortAudioProvider struct{}

// NewPortAudio initializes PortAudio. Close must be called to release it.
func NewPortAudio() (*PortAudioProvider, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudioProvider{}, nil
}

func (p *PortAudioProvider) Close() error {
	return portaudio.Terminate()
}

func (p *PortAudioProvider) InputDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceEnumeration, err)
	}

	defaultDevice, _ := portaudio.DefaultInputDevice()

	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, toDevice(d, defaultDevice))
		}
	}
	return result, nil
}

func (p *PortAudioProvider) DefaultInputDevice() (Device, error) {
	d, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("%w: %v", ErrNoDefaultDevice, err)
	}
	if d == nil || d.MaxInputChannels == 0 {
		return Device{}, ErrNoDefaultDevice
	}
	return toDevice(d, d), nil
}

// SupportedConfigs probes channel counts from mono upwards and, for each,
// the standard rates plus the device's default rate in ascending order.
func (p *PortAudioProvider) SupportedConfigs(dev Device) ([]StreamConfiguration, error) {
	info, err := lookupDevice(dev)
	if err != nil {
		return nil, err
	}

	rates := append([]int(nil), standardSampleRates...)
	if def := int(info.DefaultSampleRate); def > 0 && !containsInt(rates, def) {
		rates = append(rates, def)
		sort.Ints(rates)
	}

	maxChannels := min(info.MaxInputChannels, maxProbeChannels)
	probe := func([]float32) {}

	var configs []StreamConfiguration
	for ch := 1; ch <= maxChannels; ch++ {
		for _, rate := range rates {
			params := portaudio.StreamParameters{
				Input: portaudio.StreamDeviceParameters{
					Device:   info,
					Channels: ch,
					Latency:  info.DefaultLowInputLatency,
				},
				SampleRate: float64(rate),
			}
			if portaudio.IsFormatSupported(params, probe) == nil {
				configs = append(configs, StreamConfiguration{SampleRate: rate, Channels: ch, Format: FormatF32})
			}
		}
	}
	return configs, nil
}

// OpenInputStream opens a callback stream delivering interleaved float32
// samples. The callback forwards PortAudio's buffer directly; onData must
// copy what it keeps.
func (p *PortAudioProvider) OpenInputStream(dev Device, cfg StreamConfiguration, onData func([]float32), onError func(error)) (InputStream, error) {
	if cfg.Format != FormatF32 {
		return nil, fmt.Errorf("unsupported sample format %s", cfg.Format)
	}
	info, err := lookupDevice(dev)
	if err != nil {
		return nil, err
	}

	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if flags&portaudio.InputOverflow != 0 {
			onError(ErrInputOverflow)
		}
		onData(in)
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: cfg.Channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	return stream, nil
}

func lookupDevice(dev Device) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceEnumeration, err)
	}
	if dev.Index >= 0 && dev.Index < len(devices) && devices[dev.Index].Name == dev.Name {
		return devices[dev.Index], nil
	}
	// Indices shift when devices come and go; fall back to the name.
	for _, d := range devices {
		if d.Name == dev.Name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, dev.Name)
}

func toDevice(d, defaultDevice *portaudio.DeviceInfo) Device {
	return Device{
		Index:             d.Index,
		Name:              d.Name,
		Default:           defaultDevice != nil && d.Index == defaultDevice.Index,
		MaxInputChannels:  d.MaxInputChannels,
		DefaultSampleRate: d.DefaultSampleRate,
	}
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
