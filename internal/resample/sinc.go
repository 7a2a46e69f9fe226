// Package resample implements a streaming, fixed-input-chunk sinc resampler.
//
// The resampler consumes a fixed number of frames per call and produces a
// variable number of output frames. Output is time-aligned with the input:
// output frame n sits at input position n/ratio, using zeros as history before
// the first input frame. The lookahead needed by the kernel is held back
// inside the resampler, so the final sinc-length/2 input frames only produce
// output once more input (or zero padding) arrives.
package resample

import (
	"math"
)

// Interpolation selects how the kernel is evaluated between oversampled
// table entries.
type Interpolation int

const (
	// Nearest picks the closest precomputed kernel phase.
	Nearest Interpolation = iota
	// Linear blends the two neighbouring kernel phases.
	Linear
)

func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// Window selects the taper applied to the sinc kernel.
type Window int

const (
	// BlackmanHarris is the 4-term Blackman-Harris window.
	BlackmanHarris Window = iota
	// BlackmanHarris2 is the 4-term Blackman-Harris window squared.
	BlackmanHarris2
)

func (w Window) String() string {
	switch w {
	case BlackmanHarris:
		return "blackman-harris"
	case BlackmanHarris2:
		return "blackman-harris2"
	default:
		return "unknown"
	}
}

// SincParams describes the interpolation kernel.
type SincParams struct {
	// Length is the number of input taps per output sample. Must be a
	// positive multiple of 8.
	Length int
	// Cutoff is the relative cutoff frequency in (0, 1], as a fraction of
	// the lower of the two Nyquist frequencies.
	Cutoff float64
	// Oversampling is the number of kernel phases between two input samples.
	Oversampling  int
	Interpolation Interpolation
	Window        Window
}

// DefaultSincParams returns the kernel used for speech preprocessing.
func DefaultSincParams() SincParams {
	return SincParams{
		Length:        256,
		Cutoff:        0.95,
		Oversampling:  256,
		Interpolation: Linear,
		Window:        BlackmanHarris2,
	}
}

func blackmanHarris(m, n int) float64 {
	x := 2 * math.Pi * float64(m) / float64(n)
	return 0.35875 - 0.48829*math.Cos(x) + 0.14128*math.Cos(2*x) - 0.01168*math.Cos(3*x)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// makePhases builds the oversampled kernel table and slices it into
// Oversampling+1 phases of Length taps each. Phase p, tap k is the kernel
// value for input frame (i - Length/2 + 1 + k) when the output lies p/Oversampling
// of a frame past input frame i.
func makePhases(p SincParams, cutoff float64) [][]float64 {
	total := p.Length * p.Oversampling
	table := make([]float64, total+1)
	half := float64(total) / 2
	factor := float64(p.Oversampling)

	var sum float64
	for m := range table {
		w := blackmanHarris(m, total)
		if p.Window == BlackmanHarris2 {
			w *= w
		}
		v := w * sinc(cutoff*(float64(m)-half)/factor)
		table[m] = v
		sum += v
	}

	// Each phase sums to ~1 after this, so DC passes with unit gain.
	norm := sum / factor
	for m := range table {
		table[m] /= norm
	}

	phases := make([][]float64, p.Oversampling+1)
	for ph := range phases {
		taps := make([]float64, p.Length)
		for k := range taps {
			taps[k] = table[ph+(p.Length-1-k)*p.Oversampling]
		}
		phases[ph] = taps
	}
	return phases
}
