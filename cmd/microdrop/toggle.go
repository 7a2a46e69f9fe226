package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/petems/microdrop/internal/app"
	"github.com/petems/microdrop/internal/audio"
	"github.com/petems/microdrop/internal/config"
	"github.com/petems/microdrop/internal/inject"
	"github.com/petems/microdrop/internal/models"
	"github.com/petems/microdrop/internal/output"
	"github.com/petems/microdrop/internal/permissions"
	"github.com/petems/microdrop/internal/whisper"
)

var toggleFlags struct {
	device      string
	duration    int
	paste       bool
	terminal    bool
	appendFile  string
	model       string
	quantized   string
	notify      string
	noClipboard bool
	timestamps  string
	saveWAV     string
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Record until Enter is pressed, then transcribe",
	Args:  cobra.NoArgs,
	RunE:  runToggle,
}

func init() {
	f := toggleCmd.Flags()
	f.StringVar(&toggleFlags.device, "device", "", "input device name (default: system default)")
	f.IntVar(&toggleFlags.duration, "duration", 0, "stop automatically after this many seconds")
	f.BoolVar(&toggleFlags.paste, "paste", false, "paste the transcript into the active application")
	f.BoolVar(&toggleFlags.terminal, "terminal-paste", false, "paste with Ctrl+Shift+V (terminals on Linux/Windows)")
	f.StringVar(&toggleFlags.appendFile, "append", "", "append the transcript to this file")
	f.StringVar(&toggleFlags.model, "model", "", "model name or path to a ggml model file")
	f.StringVar(&toggleFlags.quantized, "quantized", "", "model quantization: none, q4_0, q5_1, q8_0")
	f.StringVar(&toggleFlags.notify, "notify", "", `"desktop" or a command that receives the transcript on stdin`)
	f.BoolVar(&toggleFlags.noClipboard, "no-clipboard", false, "do not copy the transcript to the clipboard")
	f.StringVar(&toggleFlags.timestamps, "timestamps", "", "timestamp format: none, simple, detailed")
	f.StringVar(&toggleFlags.saveWAV, "save-wav", "", "save the processed 16 kHz recording to this file")
}

func runToggle(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(config.Overrides{
		Device:          toggleFlags.device,
		MaxDuration:     toggleFlags.duration,
		Model:           toggleFlags.model,
		Quantization:    toggleFlags.quantized,
		Paste:           toggleFlags.paste,
		TerminalPaste:   toggleFlags.terminal,
		NoClipboard:     toggleFlags.noClipboard,
		AppendFile:      toggleFlags.appendFile,
		TimestampFormat: toggleFlags.timestamps,
		NotifyCommand:   toggleFlags.notify,
	})
	if err != nil {
		return err
	}

	// macOS requires explicit microphone (and, for paste, accessibility) approval
	if err := permissions.Check(cfg.Output.EnablePaste); err != nil {
		return err
	}

	q, err := models.ParseQuantization(cfg.Model.DefaultQuantization)
	if err != nil {
		return err
	}
	mgr := models.NewManager(cfg.ModelsDir(), log)
	stt, err := loadTranscriber(mgr, cfg, cfg.Model.DefaultModel, q, log)
	if err != nil {
		return err
	}

	provider, err := audio.NewPortAudio()
	if err != nil {
		stt.Close()
		return err
	}
	defer provider.Close()

	a := app.New(app.Config{
		Capture:       audio.NewStreamManager(provider, cfg.Audio.CaptureCapacity, log),
		Transcriber:   stt,
		Model:         cfg.Model.DefaultModel,
		Output:        newDeliverer(cfg, log),
		Options:       sessionOptions(cfg, toggleFlags.saveWAV),
		Logger:        log,
		StatusUpdater: consoleStatus{w: os.Stderr},
	})
	defer a.Shutdown(cmd.Context())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = a.Run(ctx, waitForEnter(os.Stdin, log))
	switch {
	case errors.Is(err, app.ErrNoAudio):
		fmt.Fprintln(os.Stderr, "No audio captured")
		return nil
	case errors.Is(err, app.ErrSilent):
		fmt.Fprintln(os.Stderr, "Recording was silent, nothing to transcribe")
		return nil
	}
	return err
}

// sessionOptions maps the merged config onto a dictation session.
func sessionOptions(cfg *config.Config, saveWAV string) app.Options {
	// Validate has already vetted the format name.
	ts, _ := output.ParseTimestampFormat(cfg.Output.TimestampFormat)
	return app.Options{
		Device:           cfg.Audio.Device,
		MaxDuration:      time.Duration(cfg.Audio.MaxDuration) * time.Second,
		SilenceThreshold: cfg.Behavior.SilenceThreshold,
		SaveWAV:          saveWAV,
		AudioCues:        cfg.Behavior.AudioCues,
		Output: output.Options{
			Clipboard:  cfg.Output.EnableClipboard,
			Paste:      cfg.Output.EnablePaste,
			AppendFile: cfg.Output.AppendFile,
			Timestamps: ts,
			Notify:     cfg.Output.NotifyCommand,
		},
	}
}

// newDeliverer builds the output sinks.
func newDeliverer(cfg *config.Config, log zerolog.Logger) *output.Manager {
	return output.NewManager(inject.New(injectOptions(cfg)), log)
}

// injectOptions maps the output config onto the paste injector. Without the
// clipboard sink, paste puts the previous clipboard contents back afterwards.
func injectOptions(cfg *config.Config) inject.Options {
	return inject.Options{
		PreferPaste:      true,
		TerminalChord:    cfg.Output.TerminalPaste,
		RestoreClipboard: !cfg.Output.EnableClipboard,
	}
}

// loadTranscriber resolves a model name or path, falling back to the first
// cached model when nothing is configured.
func loadTranscriber(mgr *models.Manager, cfg *config.Config, name string, q models.Quantization, log zerolog.Logger) (app.Transcriber, error) {
	var (
		path string
		err  error
	)
	if name != "" {
		path, err = mgr.Resolve(name, q)
	} else {
		path, err = mgr.FindDefault()
	}
	if err != nil {
		return nil, err
	}
	return whisper.New(path, whisper.Options{
		Language: cfg.Model.Language,
		Threads:  cfg.Model.Threads,
	}, log)
}

// waitForEnter closes the returned channel when a line is read. A closed
// stdin never stops the recording; --duration or Ctrl+C must.
func waitForEnter(r io.Reader, log zerolog.Logger) <-chan struct{} {
	stop := make(chan struct{})
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && line == "" {
			log.Debug().Err(err).Msg("stdin closed; waiting for duration limit or interrupt")
			return
		}
		close(stop)
	}()
	return stop
}

// consoleStatus reports session progress on the terminal.
type consoleStatus struct {
	w io.Writer
}

func (s consoleStatus) SetIdle() {}

func (s consoleStatus) SetRecording() {
	fmt.Fprintln(s.w, "Audio capture started. Press Enter to stop...")
}

func (s consoleStatus) SetProcessing() {
	fmt.Fprintln(s.w, "Transcribing...")
}

func (s consoleStatus) SetError() {}
