package resample

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrConfig is returned when a resampler cannot be built from its parameters.
	ErrConfig = errors.New("invalid resampler configuration")
	// ErrInput is returned when a Process call receives buffers of the wrong shape.
	ErrInput = errors.New("invalid resampler input")
	// ErrRatio is returned when SetRatio leaves the allowed range.
	ErrRatio = errors.New("resample ratio out of range")
)

// SincFixedIn resamples a fixed number of input frames per call using
// band-limited sinc interpolation.
//
// A SincFixedIn keeps filter history between calls and is not safe for
// concurrent use.
type SincFixedIn struct {
	params    SincParams
	phases    [][]float64
	chunk     int
	channels  int
	baseRatio float64
	maxRel    float64
	ratio     float64

	// buffers[ch] holds Length history frames followed by one chunk.
	buffers [][]float64
	// index is the position of the next output frame, in input frames
	// relative to the start of the next chunk.
	index float64
}

// New builds a resampler converting by ratio (output rate / input rate).
// maxRelativeRatio bounds later SetRatio calls to [ratio/max, ratio*max].
func New(ratio, maxRelativeRatio float64, params SincParams, chunkSize, channels int) (*SincFixedIn, error) {
	switch {
	case math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0:
		return nil, fmt.Errorf("%w: ratio %v", ErrConfig, ratio)
	case math.IsNaN(maxRelativeRatio) || maxRelativeRatio < 1:
		return nil, fmt.Errorf("%w: max relative ratio %v must be >= 1", ErrConfig, maxRelativeRatio)
	case channels < 1:
		return nil, fmt.Errorf("%w: %d channels", ErrConfig, channels)
	case params.Length <= 0 || params.Length%8 != 0:
		return nil, fmt.Errorf("%w: sinc length %d must be a positive multiple of 8", ErrConfig, params.Length)
	case params.Oversampling < 1:
		return nil, fmt.Errorf("%w: oversampling factor %d", ErrConfig, params.Oversampling)
	case !(params.Cutoff > 0 && params.Cutoff <= 1):
		return nil, fmt.Errorf("%w: cutoff %v must be in (0, 1]", ErrConfig, params.Cutoff)
	case chunkSize <= params.Length/2:
		return nil, fmt.Errorf("%w: chunk size %d must exceed half the sinc length", ErrConfig, chunkSize)
	}

	cutoff := params.Cutoff
	if ratio < 1 {
		cutoff *= ratio
	}

	r := &SincFixedIn{
		params:    params,
		phases:    makePhases(params, cutoff),
		chunk:     chunkSize,
		channels:  channels,
		baseRatio: ratio,
		maxRel:    maxRelativeRatio,
		ratio:     ratio,
		buffers:   make([][]float64, channels),
	}
	for ch := range r.buffers {
		r.buffers[ch] = make([]float64, params.Length+chunkSize)
	}
	return r, nil
}

// Ratio returns the current conversion ratio.
func (r *SincFixedIn) Ratio() float64 { return r.ratio }

// SetRatio changes the conversion ratio for subsequent chunks. The kernel
// cutoff stays as built.
func (r *SincFixedIn) SetRatio(ratio float64) error {
	lo, hi := r.baseRatio/r.maxRel, r.baseRatio*r.maxRel
	if math.IsNaN(ratio) || ratio < lo || ratio > hi {
		return fmt.Errorf("%w: %v not within [%v, %v]", ErrRatio, ratio, lo, hi)
	}
	r.ratio = ratio
	return nil
}

// InputFramesNext is the exact number of frames per channel the next
// Process call expects.
func (r *SincFixedIn) InputFramesNext() int { return r.chunk }

// OutputFramesMax is an upper bound on frames returned by one Process call
// at any ratio allowed by SetRatio.
func (r *SincFixedIn) OutputFramesMax() int {
	return int(math.Ceil(float64(r.chunk)*r.baseRatio*r.maxRel)) + 2
}

// Channels reports the channel count the resampler was built for.
func (r *SincFixedIn) Channels() int { return r.channels }

// Reset clears the filter history and output position.
func (r *SincFixedIn) Reset() {
	for _, b := range r.buffers {
		clear(b)
	}
	r.index = 0
}

// Process consumes one chunk per channel and returns the resampled frames.
func (r *SincFixedIn) Process(in [][]float32) ([][]float32, error) {
	if len(in) != r.channels {
		return nil, fmt.Errorf("%w: got %d channels, want %d", ErrInput, len(in), r.channels)
	}
	for ch, data := range in {
		if len(data) != r.chunk {
			return nil, fmt.Errorf("%w: channel %d has %d frames, want %d", ErrInput, ch, len(data), r.chunk)
		}
	}

	L := r.params.Length
	for ch, data := range in {
		buf := r.buffers[ch]
		for n, v := range data {
			buf[L+n] = float64(v)
		}
	}

	step := 1 / r.ratio
	limit := float64(r.chunk - L/2)
	out := make([][]float32, r.channels)
	for ch := range out {
		out[ch] = make([]float32, 0, r.OutputFramesMax())
	}

	index := r.index
	for index < limit {
		i := math.Floor(index)
		base := int(i) - L/2 + 1 + L
		frac := index - i
		for ch, buf := range r.buffers {
			out[ch] = append(out[ch], float32(r.interpolate(buf[base:base+L], frac)))
		}
		index += step
	}
	r.index = index - float64(r.chunk)

	for _, buf := range r.buffers {
		copy(buf[:L], buf[r.chunk:r.chunk+L])
	}
	return out, nil
}

func (r *SincFixedIn) interpolate(window []float64, frac float64) float64 {
	pf := frac * float64(r.params.Oversampling)
	switch r.params.Interpolation {
	case Nearest:
		return dot(r.phases[int(math.Round(pf))], window)
	default:
		p := int(pf)
		a := pf - float64(p)
		y := dot(r.phases[p], window)
		if a == 0 {
			return y
		}
		return (1-a)*y + a*dot(r.phases[p+1], window)
	}
}

func dot(taps, x []float64) float64 {
	var acc float64
	for k, t := range taps {
		acc += t * x[k]
	}
	return acc
}
