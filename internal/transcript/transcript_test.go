package transcript

import (
	"testing"
	"time"
)

func TestBuild(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2 * time.Second, Text: " Hello there. "},
		{Start: 2 * time.Second, End: 3 * time.Second, Text: "   "},
		{Start: 3 * time.Second, End: 5 * time.Second, Text: "General Kenobi."},
	}

	r := Build(segments, "en", 1500*time.Millisecond)

	if r.Text != "Hello there. General Kenobi." {
		t.Errorf("unexpected text %q", r.Text)
	}
	if len(r.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(r.Segments))
	}
	if r.Segments[0].Text != "Hello there." {
		t.Errorf("expected trimmed segment, got %q", r.Segments[0].Text)
	}
	if r.Language != "en" || r.ProcessingTime != 1500*time.Millisecond {
		t.Errorf("unexpected metadata %+v", r)
	}
}

func TestBuildEmpty(t *testing.T) {
	r := Build(nil, "en", 0)
	if r.Text != "" || len(r.Segments) != 0 {
		t.Errorf("expected empty result, got %+v", r)
	}
}
