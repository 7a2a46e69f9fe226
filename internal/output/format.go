// Package output delivers finished transcripts to the user.
package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/petems/microdrop/internal/transcript"
)

var ErrUnknownTimestampFormat = errors.New("unknown timestamp format")

// TimestampFormat controls how segment timings are rendered.
type TimestampFormat int

const (
	TimestampsNone TimestampFormat = iota
	TimestampsSimple
	TimestampsDetailed
)

func ParseTimestampFormat(s string) (TimestampFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TimestampsNone, nil
	case "simple":
		return TimestampsSimple, nil
	case "detailed":
		return TimestampsDetailed, nil
	}
	return TimestampsNone, fmt.Errorf("%w: %q", ErrUnknownTimestampFormat, s)
}

func (f TimestampFormat) String() string {
	switch f {
	case TimestampsSimple:
		return "simple"
	case TimestampsDetailed:
		return "detailed"
	default:
		return "none"
	}
}

// Format renders a transcript. Without segments every format falls back to
// the plain text.
func Format(r *transcript.Result, f TimestampFormat) string {
	if f == TimestampsNone || len(r.Segments) == 0 {
		return r.Text
	}

	lines := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if f == TimestampsDetailed {
			lines = append(lines, fmt.Sprintf("[%.1fs - %.1fs] %s", s.Start.Seconds(), s.End.Seconds(), s.Text))
		} else {
			lines = append(lines, fmt.Sprintf("[%.1fs] %s", s.Start.Seconds(), s.Text))
		}
	}
	return strings.Join(lines, "\n")
}
