package audio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Capture session states. Each state carries only the fields valid in it.
type sessionState interface {
	name() string
}

type idleState struct{}

type deviceSelectedState struct {
	device Device
}

type configuredState struct {
	device Device
	config StreamConfiguration
}

type capturingState struct {
	device  Device
	config  StreamConfiguration
	stream  InputStream
	buffer  *CaptureBuffer
	faults  *streamFaults
	started time.Time
	id      uuid.UUID
}

type stoppedState struct {
	device   Device
	config   StreamConfiguration
	id       uuid.UUID
	captured int
	elapsed  time.Duration
	dropped  uint64
	faults   uint64
}

func (idleState) name() string           { return "idle" }
func (deviceSelectedState) name() string { return "device_selected" }
func (configuredState) name() string     { return "configured" }
func (capturingState) name() string      { return "capturing" }
func (stoppedState) name() string        { return "stopped" }

// streamFaults records errors raised on the audio thread. The thread only
// does an atomic add and a non-blocking channel send; the control goroutine
// reads both after the stream is stopped.
type streamFaults struct {
	count  atomic.Uint64
	recent chan error
}

func newStreamFaults() *streamFaults {
	return &streamFaults{recent: make(chan error, 16)}
}

func (f *streamFaults) record(err error) {
	f.count.Add(1)
	select {
	case f.recent <- err:
	default:
	}
}

func (f *streamFaults) drain() []error {
	var errs []error
	for {
		select {
		case err := <-f.recent:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

// StreamManager walks one capture through device selection, configuration
// negotiation, capture and teardown:
//
//	Idle -> SelectDevice -> DeviceSelected -> NegotiateConfig -> Configured
//	     -> StartCapture -> Capturing -> StopCapture -> Stopped
//
// A failed call leaves the manager in the state it was in. StreamManager is
// owned by a single goroutine; callers that share it must serialize access.
type StreamManager struct {
	provider Provider
	capacity int
	log      zerolog.Logger
	state    sessionState
}

// NewStreamManager creates an idle manager. capacity sizes each capture's
// buffer in samples; zero selects DefaultCaptureCapacity.
func NewStreamManager(provider Provider, capacity int, log zerolog.Logger) *StreamManager {
	return &StreamManager{
		provider: provider,
		capacity: capacity,
		log:      log,
		state:    idleState{},
	}
}

// State returns the name of the current state.
func (m *StreamManager) State() string { return m.state.name() }

// ListDevices returns the names of all input devices in provider order.
func (m *StreamManager) ListDevices() ([]string, error) {
	devices, err := m.provider.InputDevices()
	if err != nil {
		return nil, wrapOnce(ErrDeviceEnumeration, err)
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names, nil
}

// SelectDevice picks the input device with exactly the given name, or the
// system default when name is empty. Selecting again from any state other
// than Capturing starts the chain over with the new device.
func (m *StreamManager) SelectDevice(name string) error {
	if _, ok := m.state.(capturingState); ok {
		return m.invalid("select device")
	}

	var device Device
	if name == "" {
		d, err := m.provider.DefaultInputDevice()
		if err != nil {
			return wrapOnce(ErrNoDefaultDevice, err)
		}
		device = d
	} else {
		devices, err := m.provider.InputDevices()
		if err != nil {
			return wrapOnce(ErrDeviceEnumeration, err)
		}
		found := false
		for _, d := range devices {
			if d.Name == name {
				device, found = d, true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
		}
	}

	m.log.Info().Str("device", device.Name).Bool("default", device.Default).Msg("Selected input device")
	m.state = deviceSelectedState{device: device}
	return nil
}

// NegotiateConfig chooses the supported configuration with the highest
// sample rate of at least 16 kHz. Ties go to the first one listed.
func (m *StreamManager) NegotiateConfig() error {
	st, ok := m.state.(deviceSelectedState)
	if !ok {
		return m.invalid("negotiate config")
	}

	configs, err := m.provider.SupportedConfigs(st.device)
	if err != nil {
		return wrapOnce(ErrDeviceEnumeration, err)
	}

	best, found := pickConfig(configs)
	if !found {
		return fmt.Errorf("%w: device %q offers %d configurations", ErrNoSuitableConfig, st.device.Name, len(configs))
	}

	m.log.Info().
		Str("device", st.device.Name).
		Int("sample_rate", best.SampleRate).
		Int("channels", best.Channels).
		Stringer("format", best.Format).
		Msg("Negotiated stream configuration")
	m.state = configuredState{device: st.device, config: best}
	return nil
}

func pickConfig(configs []StreamConfiguration) (StreamConfiguration, bool) {
	var best StreamConfiguration
	found := false
	for _, c := range configs {
		if c.SampleRate < MinSampleRate || c.Channels < 1 {
			continue
		}
		if !found || c.SampleRate > best.SampleRate {
			best, found = c, true
		}
	}
	return best, found
}

// StartCapture opens and starts the input stream into a fresh buffer.
func (m *StreamManager) StartCapture() error {
	st, ok := m.state.(configuredState)
	if !ok {
		return m.invalid("start capture")
	}

	buffer := NewCaptureBuffer(m.capacity)
	faults := newStreamFaults()
	onData := func(samples []float32) { buffer.Push(samples) }

	stream, err := m.provider.OpenInputStream(st.device, st.config, onData, faults.record)
	if err != nil {
		return wrapOnce(ErrStreamBuildFailed, err)
	}
	if err := stream.Start(); err != nil {
		if cerr := stream.Close(); cerr != nil {
			m.log.Warn().Err(cerr).Msg("Failed to close stream after start failure")
		}
		return wrapOnce(ErrStreamStartFailed, err)
	}

	id := uuid.New()
	m.log.Info().
		Str("session", id.String()).
		Str("device", st.device.Name).
		Stringer("config", st.config).
		Int("buffer_capacity", buffer.Cap()).
		Msg("Capture started")

	m.state = capturingState{
		device:  st.device,
		config:  st.config,
		stream:  stream,
		buffer:  buffer,
		faults:  faults,
		started: time.Now(),
		id:      id,
	}
	return nil
}

// StopCapture tears down the stream and returns everything captured, in
// order. The result may be empty. Stream teardown problems are logged; the
// only error is calling StopCapture outside Capturing.
func (m *StreamManager) StopCapture() ([]float32, error) {
	st, ok := m.state.(capturingState)
	if !ok {
		return nil, m.invalid("stop capture")
	}

	if err := errors.Join(st.stream.Stop(), st.stream.Close()); err != nil {
		m.log.Warn().Err(err).Str("session", st.id.String()).Msg("Stream teardown reported errors")
	}

	samples := st.buffer.Drain()
	dropped := st.buffer.Dropped()
	faults := st.faults.count.Load()

	for _, err := range st.faults.drain() {
		m.log.Warn().Err(err).Str("session", st.id.String()).Msg("Stream error during capture")
	}
	if dropped > 0 {
		m.log.Warn().
			Str("session", st.id.String()).
			Uint64("dropped_samples", dropped).
			Int("capacity", st.buffer.Cap()).
			Msg("Capture buffer overflowed; recording is incomplete")
	}

	elapsed := time.Since(st.started)
	m.log.Info().
		Str("session", st.id.String()).
		Int("samples", len(samples)).
		Dur("elapsed", elapsed).
		Uint64("stream_errors", faults).
		Msg("Capture stopped")

	m.state = stoppedState{
		device:   st.device,
		config:   st.config,
		id:       st.id,
		captured: len(samples),
		elapsed:  elapsed,
		dropped:  dropped,
		faults:   faults,
	}
	return samples, nil
}

// Close aborts an active capture, discarding its samples, and returns the
// manager to Idle.
func (m *StreamManager) Close() error {
	var err error
	if st, ok := m.state.(capturingState); ok {
		err = errors.Join(st.stream.Stop(), st.stream.Close())
		m.log.Info().Str("session", st.id.String()).Msg("Capture aborted")
	}
	m.state = idleState{}
	return err
}

// Device returns the selected device, if any.
func (m *StreamManager) Device() (Device, bool) {
	switch st := m.state.(type) {
	case deviceSelectedState:
		return st.device, true
	case configuredState:
		return st.device, true
	case capturingState:
		return st.device, true
	case stoppedState:
		return st.device, true
	}
	return Device{}, false
}

// Config returns the negotiated configuration, if any.
func (m *StreamManager) Config() (StreamConfiguration, bool) {
	switch st := m.state.(type) {
	case configuredState:
		return st.config, true
	case capturingState:
		return st.config, true
	case stoppedState:
		return st.config, true
	}
	return StreamConfiguration{}, false
}

// Stats derives capture statistics for sampleCount interleaved samples at
// the negotiated configuration. Overflow and stream error counts are filled
// in while capturing and after stop.
func (m *StreamManager) Stats(sampleCount int) (Stats, error) {
	cfg, ok := m.Config()
	if !ok {
		return Stats{}, m.invalid("stats")
	}

	stats := Stats{
		Duration:    sampleDuration(sampleCount, cfg),
		SampleCount: sampleCount,
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
		Format:      cfg.Format,
	}
	switch st := m.state.(type) {
	case capturingState:
		stats.SessionID = st.id.String()
		stats.DroppedSamples = st.buffer.Dropped()
		stats.StreamErrors = st.faults.count.Load()
	case stoppedState:
		stats.SessionID = st.id.String()
		stats.DroppedSamples = st.dropped
		stats.StreamErrors = st.faults
	}
	return stats, nil
}

func sampleDuration(samples int, cfg StreamConfiguration) time.Duration {
	perSecond := float64(cfg.SampleRate) * float64(cfg.Channels)
	if perSecond <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / perSecond * float64(time.Second))
}

func (m *StreamManager) invalid(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidStateTransition, op, m.state.name())
}

// wrapOnce tags err with kind unless it already carries it.
func wrapOnce(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}
