// Package models installs and locates whisper.cpp ggml model files.
package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownModel        = errors.New("unknown model")
	ErrUnknownQuantization = errors.New("unknown quantization")
	ErrModelNotInstalled   = errors.New("model not installed")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
)

// Quantization identifies a ggml weight format.
type Quantization string

const (
	QuantNone Quantization = "none"
	QuantQ4_0 Quantization = "q4_0"
	QuantQ5_1 Quantization = "q5_1"
	QuantQ8_0 Quantization = "q8_0"
)

// ParseQuantization accepts the canonical names, their short forms (q4, q5,
// q8) and the empty string for full precision.
func ParseQuantization(s string) (Quantization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "f16":
		return QuantNone, nil
	case "q4", "q4_0":
		return QuantQ4_0, nil
	case "q5", "q5_1":
		return QuantQ5_1, nil
	case "q8", "q8_0":
		return QuantQ8_0, nil
	}
	return "", fmt.Errorf("%w: %q (want none, q4_0, q5_1 or q8_0)", ErrUnknownQuantization, s)
}

func (q Quantization) String() string { return string(q) }

func (q Quantization) suffix() string {
	if q == QuantNone || q == "" {
		return ""
	}
	return "-" + string(q)
}

// ModelInfo describes a downloadable model.
type ModelInfo struct {
	Name         string
	Quantization Quantization
	SizeMB       int
	// SHA256 is the expected digest of the file; empty skips verification.
	SHA256 string
}

// FileName is the ggml file name used upstream and in the cache.
func (m ModelInfo) FileName() string {
	return "ggml-" + m.Name + m.Quantization.suffix() + ".bin"
}

const defaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

var registry = []ModelInfo{
	{Name: "tiny.en", Quantization: QuantNone, SizeMB: 39},
	{Name: "tiny.en", Quantization: QuantQ5_1, SizeMB: 31},
	{Name: "base.en", Quantization: QuantNone, SizeMB: 142},
	{Name: "base.en", Quantization: QuantQ5_1, SizeMB: 57},
	{Name: "small.en", Quantization: QuantNone, SizeMB: 466},
	{Name: "small.en", Quantization: QuantQ5_1, SizeMB: 185},
	{Name: "medium.en", Quantization: QuantNone, SizeMB: 1533},
	{Name: "large-v3", Quantization: QuantNone, SizeMB: 3095},
	{Name: "large-v3-turbo", Quantization: QuantNone, SizeMB: 1624},
}

// Available lists the models that can be installed.
func Available() []ModelInfo {
	out := make([]ModelInfo, len(registry))
	copy(out, registry)
	return out
}

// ModelNames lists distinct model names in registry order.
func ModelNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range registry {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	return names
}

// Lookup finds a registry entry.
func Lookup(name string, q Quantization) (ModelInfo, error) {
	known := false
	for _, m := range registry {
		if m.Name != name {
			continue
		}
		known = true
		if m.Quantization == q {
			return m, nil
		}
	}
	if known {
		return ModelInfo{}, fmt.Errorf("%w: %s is not published as %s", ErrUnknownModel, name, q)
	}
	return ModelInfo{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
}

// parseFileName recovers name and quantization from a ggml file name.
func parseFileName(file string) (string, Quantization, bool) {
	if !strings.HasPrefix(file, "ggml-") || !strings.HasSuffix(file, ".bin") {
		return "", "", false
	}
	stem := strings.TrimSuffix(strings.TrimPrefix(file, "ggml-"), ".bin")
	for _, q := range []Quantization{QuantQ4_0, QuantQ5_1, QuantQ8_0} {
		if name, ok := strings.CutSuffix(stem, q.suffix()); ok {
			return name, q, true
		}
	}
	return stem, QuantNone, true
}
