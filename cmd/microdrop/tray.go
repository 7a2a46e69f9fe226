package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/petems/microdrop/internal/app"
	"github.com/petems/microdrop/internal/audio"
	"github.com/petems/microdrop/internal/config"
	"github.com/petems/microdrop/internal/metrics"
	"github.com/petems/microdrop/internal/models"
	"github.com/petems/microdrop/internal/permissions"
	"github.com/petems/microdrop/internal/tray"
)

var trayCmd = &cobra.Command{
	Use:   "tray",
	Short: "Run as a menu bar app",
	Args:  cobra.NoArgs,
	RunE:  runTray,
}

// systray needs the main OS thread on macOS.
func init() {
	runtime.LockOSThread()
}

func runTray(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(config.Overrides{})
	if err != nil {
		return err
	}

	// macOS requires explicit microphone + accessibility approval before capture or paste work
	if err := permissions.Check(cfg.Output.EnablePaste); err != nil {
		log.Warn().Err(err).Msg("Required permissions not granted")
	}

	q, err := models.ParseQuantization(cfg.Model.DefaultQuantization)
	if err != nil {
		return err
	}
	mgr := models.NewManager(cfg.ModelsDir(), log)

	// A missing model is not fatal here: one can be picked from the menu.
	modelName := cfg.Model.DefaultModel
	stt, err := loadTranscriber(mgr, cfg, modelName, q, log)
	if err != nil {
		log.Warn().Err(err).Msg("No model loaded")
		modelName = ""
	}

	provider, err := audio.NewPortAudio()
	if err != nil {
		return err
	}
	defer provider.Close()

	prom, err := metrics.NewPrometheusProvider(Version)
	if err != nil {
		return err
	}
	defer prom.Shutdown(context.Background())
	m, err := metrics.NewMetrics(prom)
	if err != nil {
		return err
	}

	// Create tray UI first (we'll pass it to app)
	trayUI := tray.New(log, Version, Commit)

	application := app.New(app.Config{
		Capture:     audio.NewStreamManager(provider, cfg.Audio.CaptureCapacity, log),
		Transcriber: stt,
		Model:       modelName,
		LoadModel: func(name string) (app.Transcriber, error) {
			return loadTranscriber(mgr, cfg, name, q, log)
		},
		Output:        newDeliverer(cfg, log),
		Metrics:       m,
		Options:       sessionOptions(cfg, ""),
		Logger:        log,
		StatusUpdater: trayUI,
	})

	// Set app reference in tray
	trayUI.SetApp(application)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The metrics server failing takes the tray down with it.
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.ListenAddr, prom.Handler(), log)
		})
	}

	log.Info().Str("version", Version).Msg("microdrop tray starting...")

	// Start tray UI - MUST run on main thread
	if err := trayUI.Run(gctx); err != nil {
		log.Error().Err(err).Msg("Tray error")
	}
	stop()
	return g.Wait()
}
