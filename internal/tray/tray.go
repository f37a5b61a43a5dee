// Package tray shows dictation state in the system tray.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"voicekb/internal/capture"
	"voicekb/internal/logging"
)

// Controller is what the tray menu drives.
type Controller interface {
	Toggle() error
	TogglePause() error
	SwitchDevice(index int) error
}

const maxTextRunes = 48

// Tray is a system tray icon with a status menu. SetState and ShowText may be
// called from any goroutine, before or after the menu is built.
type Tray struct {
	log *zap.SugaredLogger

	mu       sync.Mutex
	ready    bool
	state    capture.State
	lastText string
	status   *systray.MenuItem
	last     *systray.MenuItem
	toggle   *systray.MenuItem
	pause    *systray.MenuItem
	mics     map[int]*systray.MenuItem
}

// New returns an idle tray; Run shows it.
func New(log *zap.SugaredLogger) *Tray {
	return &Tray{log: logging.OrNop(log).Named("tray"), state: capture.StateIdle}
}

// Run builds the menu and blocks until Quit is called or the Quit item is
// clicked. It must run on the main goroutine on macOS.
func (t *Tray) Run(ctl Controller, devices []capture.Device, current int, onQuit func()) {
	systray.Run(func() { t.onReady(ctl, devices, current) }, func() {
		t.log.Debugw("tray exited")
		if onQuit != nil {
			onQuit()
		}
	})
}

// Quit removes the icon and makes Run return.
func (t *Tray) Quit() { systray.Quit() }

// SetState updates the icon and menu for a recorder state.
func (t *Tray) SetState(s capture.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
	if t.ready {
		t.applyState()
	}
}

// ShowText shows the last recognized utterance.
func (t *Tray) ShowText(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastText = text
	if t.ready {
		t.last.SetTitle(lastLabel(text))
		systray.SetTooltip("voicekb: " + truncate(text, maxTextRunes))
	}
}

func (t *Tray) onReady(ctl Controller, devices []capture.Device, current int) {
	systray.SetTitle("voicekb")
	systray.SetTooltip("Dictation to the focused window")

	t.mu.Lock()
	t.status = systray.AddMenuItem("", "Recorder state")
	t.status.Disable()
	t.last = systray.AddMenuItem(lastLabel(t.lastText), "Last transcription")
	t.last.Disable()
	systray.AddSeparator()
	t.toggle = systray.AddMenuItem("", "Start or stop dictation")
	t.pause = systray.AddMenuItem("", "Pause or resume dictation")

	mic := systray.AddMenuItem("Microphone", "Input device")
	t.mics = make(map[int]*systray.MenuItem, len(devices))
	for _, d := range devices {
		item := mic.AddSubMenuItem(deviceLabel(d), d.HostAPI)
		if d.Index == current || (current == capture.DefaultDevice && d.Default) {
			item.Check()
		}
		t.mics[d.Index] = item
		go t.watchDevice(ctl, d.Index, item)
	}
	if len(devices) == 0 {
		mic.Disable()
	}

	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit voicekb")
	t.ready = true
	t.applyState()
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.toggle.ClickedCh:
				if err := ctl.Toggle(); err != nil {
					t.log.Warnw("toggle failed", "error", err)
				}
			case <-t.pause.ClickedCh:
				if err := ctl.TogglePause(); err != nil {
					t.log.Debugw("pause failed", "error", err)
				}
			case <-quit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) watchDevice(ctl Controller, index int, item *systray.MenuItem) {
	for range item.ClickedCh {
		if err := ctl.SwitchDevice(index); err != nil {
			t.log.Warnw("switch device failed", "device", index, "error", err)
			continue
		}
		t.mu.Lock()
		for i, m := range t.mics {
			if i == index {
				m.Check()
			} else {
				m.Uncheck()
			}
		}
		t.mu.Unlock()
	}
}

// applyState requires t.mu.
func (t *Tray) applyState() {
	systray.SetIcon(iconFor(t.state))
	t.status.SetTitle(statusLabel(t.state))
	t.toggle.SetTitle(toggleLabel(t.state))
	t.pause.SetTitle(pauseLabel(t.state))
	if t.state == capture.StateIdle {
		t.pause.Disable()
	} else {
		t.pause.Enable()
	}
}

func iconFor(s capture.State) []byte {
	switch s {
	case capture.StateRecording:
		return iconRecording
	case capture.StatePaused:
		return iconPaused
	}
	return iconIdle
}

func statusLabel(s capture.State) string {
	switch s {
	case capture.StateRecording:
		return "Status: listening"
	case capture.StatePaused:
		return "Status: paused"
	}
	return "Status: idle"
}

func toggleLabel(s capture.State) string {
	if s == capture.StateIdle {
		return "Start dictation"
	}
	return "Stop dictation"
}

func pauseLabel(s capture.State) string {
	if s == capture.StatePaused {
		return "Resume"
	}
	return "Pause"
}

func lastLabel(text string) string {
	if text == "" {
		return "Last: (nothing yet)"
	}
	return "Last: " + truncate(text, maxTextRunes)
}

func deviceLabel(d capture.Device) string {
	label := fmt.Sprintf("%d: %s", d.Index, d.Name)
	if d.Default {
		label += " (default)"
	}
	return label
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
