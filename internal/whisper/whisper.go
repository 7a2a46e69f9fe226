package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"github.com/petems/microdrop/internal/transcript"
)

// SampleRate is the only input rate whisper.cpp accepts.
const SampleRate = 16000

var (
	ErrModelLoad     = errors.New("failed to load model")
	ErrTranscription = errors.New("transcription failed")
)

// Transcriber interface for speech-to-text
type Transcriber interface {
	// Transcribe converts mono 16 kHz samples to text.
	Transcribe(ctx context.Context, samples []float32) (*transcript.Result, error)
	Close() error
}

// Options configures inference.
type Options struct {
	Language string // "auto" lets whisper detect it
	Threads  int    // 0 = whisper.cpp default
}

type whisperTranscriber struct {
	model     whisper.Model
	modelPath string
	opts      Options
	log       zerolog.Logger
	mu        sync.Mutex
}

// New loads the model at modelPath.
func New(modelPath string, opts Options, log zerolog.Logger) (Transcriber, error) {
	if opts.Language == "" {
		opts.Language = "en"
	}

	start := time.Now()
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, modelPath, err)
	}

	log.Info().
		Str("model", modelPath).
		Dur("load_time", time.Since(start)).
		Msg("Whisper model loaded")

	return &whisperTranscriber{
		model:     model,
		modelPath: modelPath,
		opts:      opts,
		log:       log,
	}, nil
}

func (w *whisperTranscriber) Transcribe(ctx context.Context, samples []float32) (*transcript.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil, fmt.Errorf("%w: transcriber closed", ErrTranscription)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create context: %v", ErrTranscription, err)
	}
	if w.opts.Threads > 0 {
		wctx.SetThreads(uint(w.opts.Threads))
	}
	if err := wctx.SetLanguage(w.opts.Language); err != nil {
		w.log.Warn().Err(err).Str("language", w.opts.Language).Msg("Failed to set language, using model default")
	}
	wctx.SetTranslate(false)

	// whisper.cpp aborts before the next encoder run when this returns false.
	proceed := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, proceed, nil, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var segments []transcript.Segment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read segment: %v", ErrTranscription, err)
		}
		segments = append(segments, transcript.Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  segment.Text,
		})
	}

	result := transcript.Build(segments, w.opts.Language, time.Since(start))
	w.log.Info().
		Int("segments", len(result.Segments)).
		Dur("processing_time", result.ProcessingTime).
		Float64("audio_seconds", float64(len(samples))/SampleRate).
		Msg("Transcription complete")
	return result, nil
}

func (w *whisperTranscriber) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		err := w.model.Close()
		w.model = nil
		return err
	}
	return nil
}
