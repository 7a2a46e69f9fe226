// Package dsp normalizes captured PCM into the mono 16 kHz float stream the
// transcriber expects.
package dsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/petems/microdrop/internal/resample"
)

const (
	// TargetSampleRate is the only output rate the processor produces.
	TargetSampleRate = 16000
	// TargetChannels is the only output channel count the processor produces.
	TargetChannels = 1

	chunkSize        = 1024
	maxRelativeRatio = 2.0
)

var (
	ErrResamplerInit = errors.New("failed to initialize resampler")
	ErrProcessing    = errors.New("audio processing failed")
)

// Processor downmixes interleaved PCM to mono and resamples it to 16 kHz.
//
// A Processor carries filter history between Process calls: chunks of one
// continuous stream must be passed in order, and a Processor must not be
// shared between unrelated sources or goroutines.
type Processor struct {
	inputRate     int
	inputChannels int

	// nil when the input is already at the target rate.
	resampler *resample.SincFixedIn
	pending   []float32
	in        [][]float32

	framesIn  int64
	framesOut int64
	flushed   bool
}

// NewProcessor builds a processor for audio at inputRate Hz with
// inputChannels interleaved channels.
func NewProcessor(inputRate, inputChannels int) (*Processor, error) {
	if inputRate < 1 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrResamplerInit, inputRate)
	}
	if inputChannels < 1 {
		return nil, fmt.Errorf("%w: channel count %d", ErrResamplerInit, inputChannels)
	}

	p := &Processor{
		inputRate:     inputRate,
		inputChannels: inputChannels,
	}
	if inputRate == TargetSampleRate {
		return p, nil
	}

	ratio := float64(TargetSampleRate) / float64(inputRate)
	r, err := resample.New(ratio, maxRelativeRatio, resample.DefaultSincParams(), chunkSize, TargetChannels)
	if err != nil {
		return nil, fmt.Errorf("%w: %d Hz -> %d Hz: %v", ErrResamplerInit, inputRate, TargetSampleRate, err)
	}
	p.resampler = r
	p.pending = make([]float32, 0, chunkSize)
	p.in = make([][]float32, 1)
	return p, nil
}

// InputSampleRate returns the rate the processor was built for.
func (p *Processor) InputSampleRate() int { return p.inputRate }

// InputChannels returns the interleaved channel count the processor was built for.
func (p *Processor) InputChannels() int { return p.inputChannels }

// OutputSampleRate is always 16000.
func (p *Processor) OutputSampleRate() int { return TargetSampleRate }

// OutputChannels is always 1.
func (p *Processor) OutputChannels() int { return TargetChannels }

// Resampling reports whether a rate conversion stage is present.
func (p *Processor) Resampling() bool { return p.resampler != nil }

// Process converts one block of interleaved samples. When resampling, frames
// that do not fill a whole internal chunk are held until the next call or
// Flush.
func (p *Processor) Process(samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return []float32{}, nil
	}
	if p.flushed {
		return nil, fmt.Errorf("%w: processor already flushed", ErrProcessing)
	}

	mono := samples
	if p.inputChannels > 1 {
		mono = Downmix(samples, p.inputChannels)
	}

	if p.resampler == nil {
		if p.inputChannels > 1 {
			return mono, nil
		}
		return Downmix(samples, 1), nil
	}

	p.framesIn += int64(len(mono))
	p.pending = append(p.pending, mono...)
	return p.drainChunks()
}

// Flush pads the held-back tail with silence and returns the remaining
// output. The total output length over the processor's lifetime is exactly
// ceil(inputFrames * 16000 / inputRate). The processor cannot be used after
// Flush.
func (p *Processor) Flush() ([]float32, error) {
	if p.flushed {
		return []float32{}, nil
	}
	p.flushed = true
	if p.resampler == nil || p.framesIn == 0 {
		return []float32{}, nil
	}

	expected := (p.framesIn*TargetSampleRate + int64(p.inputRate) - 1) / int64(p.inputRate)

	out, err := p.drainChunks()
	if err != nil {
		return nil, err
	}
	for p.framesOut < expected {
		for len(p.pending) < chunkSize {
			p.pending = append(p.pending, 0)
		}
		more, err := p.drainChunks()
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}

	if extra := p.framesOut - expected; extra > 0 {
		out = out[:int64(len(out))-extra]
		p.framesOut = expected
	}
	p.pending = p.pending[:0]
	return out, nil
}

// ProcessAll converts a complete recording in one step.
func (p *Processor) ProcessAll(samples []float32) ([]float32, error) {
	out, err := p.Process(samples)
	if err != nil {
		return nil, err
	}
	tail, err := p.Flush()
	if err != nil {
		return nil, err
	}
	return append(out, tail...), nil
}

func (p *Processor) drainChunks() ([]float32, error) {
	out := make([]float32, 0, (len(p.pending)/chunkSize)*p.resampler.OutputFramesMax())
	consumed := 0
	for len(p.pending)-consumed >= chunkSize {
		p.in[0] = p.pending[consumed : consumed+chunkSize]
		res, err := p.resampler.Process(p.in)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
		}
		for i, v := range res[0] {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, fmt.Errorf("%w: non-finite output at frame %d", ErrProcessing, p.framesOut+int64(i))
			}
		}
		out = append(out, res[0]...)
		p.framesOut += int64(len(res[0]))
		consumed += chunkSize
	}
	p.pending = append(p.pending[:0], p.pending[consumed:]...)
	return out, nil
}

// Downmix averages each complete interleaved frame into one mono sample. A
// trailing partial frame is dropped. Mono input is returned as a copy.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	frames := len(samples) / channels
	out := make([]float32, frames)
	n := float32(channels)
	for i := range out {
		var sum float32
		for _, v := range samples[i*channels : (i+1)*channels] {
			sum += v
		}
		out[i] = sum / n
	}
	return out
}

// RMS returns the root mean square level of samples, 0 for empty input.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
