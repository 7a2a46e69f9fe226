package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/microdrop/internal/audio"
	"github.com/petems/microdrop/internal/dsp"
	"github.com/petems/microdrop/internal/metrics"
	"github.com/petems/microdrop/internal/output"
	"github.com/petems/microdrop/internal/transcript"
	"github.com/petems/microdrop/internal/wavfile"
)

// MinRecording is the shortest capture worth transcribing.
const MinRecording = 100 * time.Millisecond

var (
	ErrBusy    = errors.New("a dictation session is already running")
	ErrNoAudio = errors.New("no audio captured")
	ErrSilent  = errors.New("recording is below the silence threshold")
	ErrNoModel = errors.New("no transcription model loaded")
	ErrClosed  = errors.New("app is shut down")
)

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
}

// Transcriber turns mono 16 kHz samples into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (*transcript.Result, error)
	Close() error
}

// Deliverer hands a finished transcript to the user.
type Deliverer interface {
	Deliver(ctx context.Context, r *transcript.Result, opts output.Options) error
}

// Options tunes a dictation session.
type Options struct {
	Device           string
	MaxDuration      time.Duration // 0 = until stopped
	SilenceThreshold float64       // RMS, 0 = off
	SaveWAV          string        // writes the processed 16 kHz mono audio
	AudioCues        bool
	Output           output.Options
}

type Config struct {
	Capture       *audio.StreamManager
	Transcriber   Transcriber // may be nil until SetModel
	Model         string      // name of Transcriber's model, for display
	LoadModel     func(name string) (Transcriber, error)
	Output        Deliverer
	Metrics       *metrics.Metrics // optional
	Options       Options
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

type phase int

const (
	phaseIdle phase = iota
	phaseRecording
	phaseProcessing
)

type App struct {
	capture   *audio.StreamManager
	loadModel func(name string) (Transcriber, error)
	out       Deliverer
	metrics   *metrics.Metrics
	log       zerolog.Logger
	status    StatusUpdater
	cue       func() error

	mu     sync.Mutex
	phase  phase
	stt    Transcriber
	model  string
	opts   Options
	stopCh chan struct{}
	closed bool
	done   chan struct{} // closed by Shutdown
}

func New(cfg Config) *App {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Nop()
	}
	return &App{
		capture:   cfg.Capture,
		loadModel: cfg.LoadModel,
		out:       cfg.Output,
		metrics:   m,
		log:       cfg.Logger,
		status:    cfg.StatusUpdater,
		cue:       output.Cue,
		stt:       cfg.Transcriber,
		model:     cfg.Model,
		opts:      cfg.Options,
		done:      make(chan struct{}),
	}
}

// Run records until stop is closed, the maximum duration elapses or ctx is
// cancelled, then transcribes and delivers the result. Cancelling ctx while
// recording discards the audio. Shutdown ends a running session with
// ErrClosed and nothing is delivered.
func (a *App) Run(ctx context.Context, stop <-chan struct{}) (*transcript.Result, error) {
	opts, err := a.start()
	if err != nil {
		a.setStatus(StatusUpdater.SetError)
		a.metrics.Session(ctx, metrics.StatusError)
		return nil, err
	}
	a.setStatus(StatusUpdater.SetRecording)
	a.playCue(opts)

	var limit <-chan time.Time
	if opts.MaxDuration > 0 {
		t := time.NewTimer(opts.MaxDuration)
		defer t.Stop()
		limit = t.C
	}

	select {
	case <-stop:
	case <-limit:
		a.log.Info().Dur("max_duration", opts.MaxDuration).Msg("Maximum recording duration reached")
	case <-ctx.Done():
		a.abort()
		a.metrics.Session(context.Background(), metrics.StatusCancelled)
		return nil, ctx.Err()
	case <-a.done:
		a.metrics.Session(context.Background(), metrics.StatusCancelled)
		return nil, ErrClosed
	}

	return a.finish(ctx, opts)
}

func (a *App) start() (Options, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Options{}, ErrClosed
	}
	if a.phase != phaseIdle {
		return Options{}, ErrBusy
	}
	opts := a.opts

	if err := a.capture.SelectDevice(opts.Device); err != nil {
		return opts, err
	}
	if err := a.capture.NegotiateConfig(); err != nil {
		return opts, err
	}
	if err := a.capture.StartCapture(); err != nil {
		return opts, err
	}

	a.phase = phaseRecording
	a.log.Info().Msg("Starting dictation")
	return opts, nil
}

func (a *App) abort() {
	a.mu.Lock()
	if err := a.capture.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to abort capture")
	}
	a.phase = phaseIdle
	a.stopCh = nil
	a.mu.Unlock()

	a.log.Info().Msg("Dictation cancelled")
	a.setStatus(StatusUpdater.SetIdle)
}

func (a *App) finish(ctx context.Context, opts Options) (*transcript.Result, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.metrics.Session(context.Background(), metrics.StatusCancelled)
		return nil, ErrClosed
	}
	raw, err := a.capture.StopCapture()
	if err != nil {
		a.phase = phaseIdle
		a.mu.Unlock()
		return nil, a.fail(ctx, err)
	}
	stats, err := a.capture.Stats(len(raw))
	stt := a.stt
	a.phase = phaseProcessing
	a.stopCh = nil
	a.mu.Unlock()

	defer a.setPhase(phaseIdle)
	defer a.releaseIfClosed()

	if err != nil {
		return nil, a.fail(ctx, err)
	}

	a.log.Info().Msg("Stopping dictation")
	a.setStatus(StatusUpdater.SetProcessing)
	a.playCue(opts)
	a.metrics.Capture(ctx, stats.Duration, stats.SampleCount, stats.DroppedSamples, stats.StreamErrors)

	if len(raw) == 0 || stats.Duration < MinRecording {
		a.log.Info().Dur("duration", stats.Duration).Msg("Recording too short, skipping transcription")
		return nil, a.skip(ctx, ErrNoAudio, metrics.StatusTooShort)
	}

	samples, err := a.process(ctx, raw, stats)
	if err != nil {
		return nil, a.fail(ctx, err)
	}
	if len(samples) == 0 {
		return nil, a.skip(ctx, ErrNoAudio, metrics.StatusTooShort)
	}

	if opts.SaveWAV != "" {
		clip := wavfile.Clip{Samples: samples, SampleRate: dsp.TargetSampleRate, Channels: dsp.TargetChannels}
		if err := wavfile.Write(opts.SaveWAV, clip); err != nil {
			a.log.Warn().Err(err).Str("path", opts.SaveWAV).Msg("Failed to save recording")
		} else {
			a.log.Info().Str("path", opts.SaveWAV).Msg("Recording saved")
		}
	}

	if opts.SilenceThreshold > 0 {
		if level := dsp.RMS(samples); level < opts.SilenceThreshold {
			a.log.Info().Float64("rms", level).Float64("threshold", opts.SilenceThreshold).Msg("Recording is silent, skipping transcription")
			return nil, a.skip(ctx, ErrSilent, metrics.StatusSilent)
		}
	}

	if stt == nil {
		return nil, a.fail(ctx, ErrNoModel)
	}

	start := time.Now()
	result, err := stt.Transcribe(ctx, samples)
	a.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if a.isClosed() {
		a.log.Info().Msg("Shut down during transcription, discarding transcript")
		a.metrics.Session(context.Background(), metrics.StatusCancelled)
		return nil, ErrClosed
	}
	if err != nil {
		if ctx.Err() != nil {
			a.setStatus(StatusUpdater.SetIdle)
			a.metrics.Session(context.Background(), metrics.StatusCancelled)
			return nil, ctx.Err()
		}
		return nil, a.fail(ctx, err)
	}

	if result.Text == "" {
		a.log.Info().Msg("No speech detected")
	} else if err := a.out.Deliver(ctx, result, opts.Output); err != nil {
		return nil, a.fail(ctx, err)
	}

	a.metrics.Session(ctx, metrics.StatusOK)
	a.setStatus(StatusUpdater.SetIdle)
	return result, nil
}

func (a *App) process(ctx context.Context, raw []float32, stats audio.Stats) ([]float32, error) {
	start := time.Now()
	proc, err := dsp.NewProcessor(stats.SampleRate, stats.Channels)
	if err != nil {
		return nil, err
	}
	samples, err := proc.ProcessAll(raw)
	if err != nil {
		return nil, err
	}
	a.metrics.ProcessDuration.Record(ctx, time.Since(start).Seconds())
	a.log.Debug().
		Int("input_samples", len(raw)).
		Int("output_samples", len(samples)).
		Bool("resampled", proc.Resampling()).
		Msg("Audio processed")
	return samples, nil
}

func (a *App) skip(ctx context.Context, err error, status string) error {
	a.metrics.Session(ctx, status)
	a.setStatus(StatusUpdater.SetIdle)
	return err
}

func (a *App) fail(ctx context.Context, err error) error {
	a.log.Error().Err(err).Msg("Dictation failed")
	a.metrics.Session(ctx, metrics.StatusError)
	a.setStatus(StatusUpdater.SetError)
	return err
}

// Toggle starts a background session, or stops the running one. Errors of
// background sessions are logged.
func (a *App) Toggle(ctx context.Context) {
	a.mu.Lock()
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
		a.mu.Unlock()
		return
	}
	if a.phase != phaseIdle {
		a.mu.Unlock()
		a.log.Warn().Msg("Still processing the previous recording")
		return
	}
	stop := make(chan struct{})
	a.stopCh = stop
	a.mu.Unlock()

	go func() {
		if _, err := a.Run(ctx, stop); err != nil && !errors.Is(err, ErrNoAudio) && !errors.Is(err, ErrSilent) && !errors.Is(err, ErrClosed) {
			a.log.Error().Err(err).Msg("Dictation session ended with error")
		}
		a.mu.Lock()
		if a.stopCh == stop {
			a.stopCh = nil
		}
		a.mu.Unlock()
	}()
}

// Shutdown aborts a running capture, wakes its session and releases the
// model. A transcription in flight keeps the model until it returns; its
// result is discarded. Later sessions fail with ErrClosed.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.done)
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}

	if a.phase == phaseRecording {
		a.log.Info().Msg("Discarding active recording on shutdown")
		a.phase = phaseIdle
	}
	errs := []error{a.capture.Close()}

	var stt Transcriber
	if a.phase != phaseProcessing {
		stt, a.stt = a.stt, nil
	}
	a.mu.Unlock()

	if stt != nil {
		errs = append(errs, stt.Close())
	}
	return errors.Join(errs...)
}

func (a *App) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// releaseIfClosed closes the model left behind by a Shutdown that happened
// while processing.
func (a *App) releaseIfClosed() {
	a.mu.Lock()
	if !a.closed {
		a.mu.Unlock()
		return
	}
	stt := a.stt
	a.stt = nil
	a.mu.Unlock()

	if stt != nil {
		if err := stt.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to release model")
		}
	}
}

// Tray actions

func (a *App) IsDictating() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase == phaseRecording
}

func (a *App) IsProcessing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase == phaseProcessing
}

func (a *App) ListDevices() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capture.ListDevices()
}

// Device returns the configured device name; empty means the system default.
func (a *App) Device() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opts.Device
}

func (a *App) SetDevice(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.phase != phaseIdle {
		return fmt.Errorf("cannot change device: %w", ErrBusy)
	}
	a.opts.Device = name
	a.log.Info().Str("device", name).Msg("Input device changed")
	return nil
}

func (a *App) Paste() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opts.Output.Paste
}

// SetPaste applies from the next session on.
func (a *App) SetPaste(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opts.Output.Paste = enabled
}

func (a *App) Model() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model
}

// SetModel loads the named model and swaps it in.
func (a *App) SetModel(name string) error {
	if a.loadModel == nil {
		return ErrNoModel
	}
	if a.IsDictating() || a.IsProcessing() {
		return fmt.Errorf("cannot change model: %w", ErrBusy)
	}

	stt, err := a.loadModel(name)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		stt.Close()
		return ErrClosed
	}
	if a.phase != phaseIdle {
		a.mu.Unlock()
		stt.Close()
		return fmt.Errorf("cannot change model: %w", ErrBusy)
	}
	old := a.stt
	a.stt = stt
	a.model = name
	a.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to release previous model")
		}
	}
	a.log.Info().Str("model", name).Msg("Model changed")
	return nil
}

func (a *App) setPhase(p phase) {
	a.mu.Lock()
	a.phase = p
	a.mu.Unlock()
}

func (a *App) setStatus(fn func(StatusUpdater)) {
	if a.status != nil {
		fn(a.status)
	}
}

func (a *App) playCue(opts Options) {
	if !opts.AudioCues || a.cue == nil {
		return
	}
	if err := a.cue(); err != nil {
		a.log.Debug().Err(err).Msg("Audio cue failed")
	}
}
