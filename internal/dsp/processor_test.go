package dsp

import (
	"errors"
	"math"
	"testing"
)

func TestDownmix(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		input    []float32
		expected []float32
	}{
		{
			name:     "stereo",
			channels: 2,
			input:    []float32{1.0, -1.0, 0.5, 0.5, 2.0, 0.0},
			expected: []float32{0.0, 0.5, 1.0},
		},
		{
			name:     "quad",
			channels: 4,
			input:    []float32{1.0, -1.0, 0.5, -0.5, 2.0, 0.0, 1.0, -1.0},
			expected: []float32{0.0, 0.5},
		},
		{
			name:     "incomplete trailing frame",
			channels: 2,
			input:    []float32{1.0, -1.0, 0.5},
			expected: []float32{0.0},
		},
		{
			name:     "stereo balanced",
			channels: 2,
			input:    []float32{0.0, 1.0, 0.5, 0.5, 1.0, 0.0, -0.5, 0.5},
			expected: []float32{0.5, 0.5, 0.5, 0.0},
		},
		{
			name:     "three channels",
			channels: 3,
			input:    []float32{1, 3, 5, 2, 4, 6},
			expected: []float32{3, 4},
		},
		{
			name:     "only a partial frame",
			channels: 3,
			input:    []float32{1.0, 2.0},
			expected: []float32{},
		},
		{
			name:     "mono",
			channels: 1,
			input:    []float32{0.25, -0.75},
			expected: []float32{0.25, -0.75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downmix(tt.input, tt.channels)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d samples, got %d", len(tt.expected), len(got))
			}
			for i := range tt.expected {
				if got[i] != tt.expected[i] {
					t.Errorf("sample %d: expected %f, got %f", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestDownmixIsFrameMean(t *testing.T) {
	for channels := 1; channels <= 8; channels++ {
		input := make([]float32, channels*16)
		for i := range input {
			input[i] = float32(math.Sin(float64(i)*0.37)) * 0.9
		}

		got := Downmix(input, channels)
		if len(got) != 16 {
			t.Fatalf("channels=%d: expected 16 frames, got %d", channels, len(got))
		}
		for f := range got {
			var sum float64
			for c := 0; c < channels; c++ {
				sum += float64(input[f*channels+c])
			}
			if math.Abs(float64(got[f])-sum/float64(channels)) > 1e-6 {
				t.Fatalf("channels=%d frame %d: expected %f, got %f", channels, f, sum/float64(channels), got[f])
			}
		}
	}
}

func TestNewProcessorRejectsInvalidInput(t *testing.T) {
	if _, err := NewProcessor(0, 1); !errors.Is(err, ErrResamplerInit) {
		t.Errorf("expected ErrResamplerInit for zero rate, got %v", err)
	}
	if _, err := NewProcessor(48000, 0); !errors.Is(err, ErrResamplerInit) {
		t.Errorf("expected ErrResamplerInit for zero channels, got %v", err)
	}
}

func TestResamplerPresentOnlyWhenRatesDiffer(t *testing.T) {
	tests := []struct {
		rate     int
		channels int
		want     bool
	}{
		{16000, 1, false},
		{16000, 2, false},
		{44100, 1, true},
		{48000, 2, true},
		{8000, 1, true},
	}
	for _, tt := range tests {
		p, err := NewProcessor(tt.rate, tt.channels)
		if err != nil {
			t.Fatalf("NewProcessor(%d, %d): %v", tt.rate, tt.channels, err)
		}
		if p.Resampling() != tt.want {
			t.Errorf("rate=%d: expected resampling=%v", tt.rate, tt.want)
		}
		if p.OutputSampleRate() != 16000 || p.OutputChannels() != 1 {
			t.Errorf("rate=%d: unexpected output format %d Hz x %d", tt.rate, p.OutputSampleRate(), p.OutputChannels())
		}
	}
}

func TestProcessIdentity(t *testing.T) {
	p, err := NewProcessor(16000, 1)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}

	input := []float32{0.1, -0.2, 0.3, 0.999, -1.0}
	got, err := p.Process(input)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(got))
	}
	for i := range input {
		if got[i] != input[i] {
			t.Errorf("sample %d: expected %f, got %f", i, input[i], got[i])
		}
	}
	if &got[0] == &input[0] {
		t.Error("expected identity output to be a copy")
	}
}

func TestProcessEmpty(t *testing.T) {
	for _, cfg := range [][2]int{{16000, 1}, {16000, 2}, {44100, 1}, {48000, 2}, {8000, 6}} {
		p, err := NewProcessor(cfg[0], cfg[1])
		if err != nil {
			t.Fatalf("NewProcessor(%d, %d): %v", cfg[0], cfg[1], err)
		}
		got, err := p.Process(nil)
		if err != nil {
			t.Fatalf("Process(nil): %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("config %v: expected empty non-nil output, got %v", cfg, got)
		}
	}
}

func TestProcessDownsamplesSine(t *testing.T) {
	p, err := NewProcessor(44100, 1)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}

	input := make([]float32, 100000)
	for i := range input {
		input[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
	}

	out, err := p.Process(input)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected output samples")
	}
	if len(out) >= len(input) {
		t.Fatalf("expected fewer samples after downsampling, got %d", len(out))
	}
	for i, v := range out {
		if math.Abs(float64(v)) > 2.0 {
			t.Fatalf("sample %d out of bounds: %f", i, v)
		}
	}

	tail, err := p.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	total := len(out) + len(tail)
	if total != 36282 {
		t.Errorf("expected 36282 samples in total, got %d", total)
	}
}

func TestProcessAllPreservesTone(t *testing.T) {
	tests := []struct {
		rate int
		freq float64
	}{
		{48000, 1000},
		{44100, 440},
		{22050, 300},
		{8000, 440},
	}

	for _, tt := range tests {
		p, err := NewProcessor(tt.rate, 1)
		if err != nil {
			t.Fatalf("NewProcessor(%d): %v", tt.rate, err)
		}

		input := make([]float32, tt.rate) // one second
		for i := range input {
			input[i] = float32(0.5 * math.Sin(2*math.Pi*tt.freq*float64(i)/float64(tt.rate)))
		}

		out, err := p.ProcessAll(input)
		if err != nil {
			t.Fatalf("ProcessAll(%d): %v", tt.rate, err)
		}
		if len(out) != 16000 {
			t.Fatalf("rate=%d: expected 16000 samples, got %d", tt.rate, len(out))
		}

		// Edges see zero history and zero padding.
		for n := 200; n < len(out)-200; n++ {
			want := 0.5 * math.Sin(2*math.Pi*tt.freq*float64(n)/16000)
			if math.Abs(float64(out[n])-want) > 1e-2 {
				t.Fatalf("rate=%d sample %d: expected %f, got %f", tt.rate, n, want, out[n])
			}
		}
	}
}

func TestResampledMagnitudeBounded(t *testing.T) {
	for _, rate := range []int{8000, 11025, 22050, 32000, 44100, 48000, 96000} {
		p, err := NewProcessor(rate, 2)
		if err != nil {
			t.Fatalf("NewProcessor(%d): %v", rate, err)
		}

		// Full-scale square wave, the worst case for ringing.
		input := make([]float32, rate/2*2)
		for i := 0; i < len(input); i += 2 {
			v := float32(1)
			if (i/2/37)%2 == 1 {
				v = -1
			}
			input[i], input[i+1] = v, v
		}

		out, err := p.ProcessAll(input)
		if err != nil {
			t.Fatalf("ProcessAll(%d): %v", rate, err)
		}
		for i, v := range out {
			if math.Abs(float64(v)) > 2.0 {
				t.Fatalf("rate=%d sample %d exceeds bound: %f", rate, i, v)
			}
		}
	}
}

func TestProcessDeterministic(t *testing.T) {
	chunks := [][]float32{
		make([]float32, 3000),
		make([]float32, 17),
		make([]float32, 4096),
		make([]float32, 999),
	}
	seed := 0.0
	for _, c := range chunks {
		for i := range c {
			seed += 0.013
			c[i] = float32(math.Sin(seed) * math.Cos(seed*3.1))
		}
	}

	run := func() []float32 {
		p, err := NewProcessor(48000, 2)
		if err != nil {
			t.Fatalf("NewProcessor: %v", err)
		}
		var all []float32
		for _, c := range chunks {
			out, err := p.Process(c)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			all = append(all, out...)
		}
		tail, err := p.Flush()
		if err != nil {
			t.Fatalf("Flush: %v", err)
		}
		return append(all, tail...)
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestChunkedMatchesOneShot(t *testing.T) {
	input := make([]float32, 20000)
	for i := range input {
		input[i] = float32(math.Sin(float64(i) * 0.01))
	}

	whole, err := NewProcessor(44100, 1)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	want, err := whole.ProcessAll(input)
	if err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}

	split, _ := NewProcessor(44100, 1)
	var got []float32
	for start := 0; start < len(input); start += 777 {
		end := min(start+777, len(input))
		out, err := split.Process(input[start:end])
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		got = append(got, out...)
	}
	tail, _ := split.Flush()
	got = append(got, tail...)

	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: chunked %v, one-shot %v", i, got[i], want[i])
		}
	}
}

func TestProcessAfterFlushFails(t *testing.T) {
	p, _ := NewProcessor(48000, 1)
	if _, err := p.ProcessAll(make([]float32, 2048)); err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if _, err := p.Process([]float32{0.1}); !errors.Is(err, ErrProcessing) {
		t.Errorf("expected ErrProcessing, got %v", err)
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
		want  float64
	}{
		{"empty", nil, 0},
		{"silence", make([]float32, 64), 0},
		{"constant", []float32{0.5, -0.5, 0.5, -0.5}, 0.5},
		{"full scale square", []float32{1, -1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.input); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS = %v, want %v", got, tt.want)
			}
		})
	}
}
