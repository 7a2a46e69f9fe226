package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/microdrop/internal/app"
	"github.com/petems/microdrop/internal/config"
	"github.com/petems/microdrop/internal/models"
	"github.com/petems/microdrop/internal/output"
)

const systemDefault = "System Default"

type UI struct {
	app     *app.App
	version string
	commit  string
	log     zerolog.Logger
	ctx     context.Context

	mu         sync.Mutex
	mStartStop *systray.MenuItem // guarded by mu
	mDevices   *systray.MenuItem
	mModels    *systray.MenuItem
	mPaste     *systray.MenuItem
}

type status int

const (
	statusIdle status = iota
	statusRecording
	statusProcessing
	statusError
)

var statusNames = [...]string{"idle", "recording", "processing", "error"}

func (s status) String() string { return statusNames[s] }

func (u *UI) SetIdle()       { u.updateStatus(statusIdle) }
func (u *UI) SetRecording()  { u.updateStatus(statusRecording) }
func (u *UI) SetProcessing() { u.updateStatus(statusProcessing) }
func (u *UI) SetError()      { u.updateStatus(statusError) }

func New(log zerolog.Logger, version, commit string) *UI {
	return &UI{
		version: version,
		commit:  commit,
		log:     log,
		ctx:     context.Background(),
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Run blocks until the tray quits or ctx is cancelled. systray must own the
// main thread on macOS, so call Run from main.
func (u *UI) Run(ctx context.Context) error {
	u.ctx = ctx
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	systray.SetTooltip("Local voice dictation")

	u.mu.Lock()
	u.mStartStop = systray.AddMenuItem(startStopTitle(statusIdle), "Start or stop recording")
	u.mu.Unlock()
	u.updateStatus(statusIdle)
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	u.mModels = systray.AddMenuItem("Model", "Select Whisper model")
	u.buildModelMenu()

	systray.AddSeparator()
	u.mPaste = systray.AddMenuItemCheckbox("Paste into Active App", "Simulate paste after transcription", u.app.Paste())

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About microdrop")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			u.app.Toggle(u.ctx)
		case <-u.mPaste.ClickedCh:
			u.togglePaste()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		case <-u.ctx.Done():
			return
		}
	}
}

func (u *UI) buildDeviceMenu() {
	// Get devices from app
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
	}
	names := append([]string{""}, devices...)

	current := u.app.Device()
	deviceItems := make(map[string]*systray.MenuItem)

	for _, name := range names {
		item := u.mDevices.AddSubMenuItem(deviceLabel(name), "")
		if name == current {
			item.Check()
		}
		deviceItems[name] = item

		go func() {
			for {
				select {
				case <-item.ClickedCh:
				case <-u.ctx.Done():
					return
				}
				if err := u.app.SetDevice(name); err != nil {
					u.log.Warn().Err(err).Msg("Cannot change audio device")
					continue
				}
				checkOnly(deviceItems, name)
			}
		}()
	}
}

func (u *UI) buildModelMenu() {
	current := u.app.Model()
	modelItems := make(map[string]*systray.MenuItem)

	for _, model := range models.ModelNames() {
		item := u.mModels.AddSubMenuItem(model, "")
		if model == current {
			item.Check()
		}
		modelItems[model] = item

		go func() {
			for {
				select {
				case <-item.ClickedCh:
				case <-u.ctx.Done():
					return
				}
				oldModel := u.app.Model()
				if err := u.app.SetModel(model); err != nil {
					u.log.Error().Err(err).Str("model", model).Msg("Failed to switch model")
					continue
				}
				checkOnly(modelItems, model)
				u.log.Info().Str("from", oldModel).Str("to", model).Msg("Changed Whisper model")
			}
		}()
	}
}

// checkOnly checks the item under key and unchecks the rest of the group.
func checkOnly(items map[string]*systray.MenuItem, key string) {
	for k, item := range items {
		if k == key {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (u *UI) togglePaste() {
	enabled := !u.app.Paste()
	u.app.SetPaste(enabled)
	if enabled {
		u.mPaste.Check()
		u.log.Info().Msg("Enabled paste into active app")
	} else {
		u.mPaste.Uncheck()
		u.log.Info().Msg("Disabled paste into active app")
	}
}

func (u *UI) openLogs() {
	name, args := openCommand(runtime.GOOS, config.LogPath())
	if err := exec.Command(name, args...).Start(); err != nil {
		u.log.Error().Err(err).Msg("Failed to open log file")
	}
}

func (u *UI) showAbout() {
	text := fmt.Sprintf("microdrop %s (%s)\nLocal voice dictation", u.version, u.commit)
	if err := output.NewNotifier(output.DesktopNotify).Notify(u.ctx, text); err != nil {
		u.log.Warn().Err(err).Msg("Failed to show about notification")
	}
}

func (u *UI) onExit() {
	if err := u.app.Shutdown(context.Background()); err != nil {
		u.log.Warn().Err(err).Msg("Shutdown reported errors")
	}
}

// updateStatus shows the state as a colored dot after the microphone.
func (u *UI) updateStatus(st status) {
	systray.SetTitle("🎤 " + emojiForStatus(st))

	u.mu.Lock()
	item := u.mStartStop
	u.mu.Unlock()
	if item == nil {
		return
	}
	item.SetTitle(startStopTitle(st))
	if st == statusProcessing {
		item.Disable()
	} else {
		item.Enable()
	}
}

func emojiForStatus(st status) string {
	switch st {
	case statusRecording:
		return "🔴"
	case statusProcessing:
		return "🟡"
	case statusError:
		return "⚪️"
	}
	return "🟢"
}

func startStopTitle(st status) string {
	switch st {
	case statusRecording:
		return "Stop Dictation"
	case statusProcessing:
		return "Transcribing..."
	}
	return "Start Dictation"
}

func deviceLabel(name string) string {
	if name == "" {
		return systemDefault
	}
	return name
}

// openCommand returns the command that opens path with the desktop's
// default application.
func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/C", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}
