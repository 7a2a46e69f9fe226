// Package wavfile reads and writes PCM WAV files as normalized float samples.
package wavfile

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrInvalidWAV = errors.New("not a valid PCM WAV file")

// Clip is interleaved audio in [-1, 1].
type Clip struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration in seconds.
func (c Clip) Seconds() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Read decodes an integer PCM WAV file.
func Read(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if dec.BitDepth == 0 || dec.BitDepth > 32 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrInvalidWAV, dec.BitDepth)
	}

	scale := float32(math.Pow(2, float64(dec.BitDepth)-1))
	// 8-bit PCM is unsigned with silence at 128; wider depths are signed.
	var bias float32
	if dec.BitDepth == 8 {
		bias = 128
	}
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = (float32(v) - bias) / scale
	}

	return &Clip{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// Write encodes the clip as 16-bit PCM, clipping out-of-range samples.
func Write(path string, clip Clip) error {
	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return fmt.Errorf("invalid format %d Hz x %d ch", clip.SampleRate, clip.Channels)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, clip.SampleRate, 16, clip.Channels, 1)
	data := make([]int, len(clip.Samples))
	for i, s := range clip.Samples {
		data[i] = toInt16(s)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: clip.Channels,
			SampleRate:  clip.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return f.Close()
}

func toInt16(s float32) int {
	v := math.Round(float64(s) * 32767)
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	}
	return int(v)
}
