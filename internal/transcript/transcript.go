// Package transcript holds transcription results.
package transcript

import (
	"strings"
	"time"
)

// Segment is one timed piece of a transcript.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result is a finished transcription.
type Result struct {
	Text           string
	Segments       []Segment
	Language       string
	ProcessingTime time.Duration
}

// Build trims segment text, drops empty segments and joins the rest with
// single spaces.
func Build(segments []Segment, language string, elapsed time.Duration) *Result {
	kept := make([]Segment, 0, len(segments))
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		kept = append(kept, s)
		parts = append(parts, s.Text)
	}
	return &Result{
		Text:           strings.Join(parts, " "),
		Segments:       kept,
		Language:       language,
		ProcessingTime: elapsed,
	}
}
