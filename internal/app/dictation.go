package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"voicekb/internal/asr"
	"voicekb/internal/cache"
	"voicekb/internal/capture"
	"voicekb/internal/config"
	"voicekb/internal/hotkey"
	"voicekb/internal/inject"
	"voicekb/internal/logging"
	"voicekb/internal/metrics"
	"voicekb/internal/notify"
	"voicekb/internal/segment"
	"voicekb/internal/tray"
)

// controller binds a session to the context of the running program for
// callers that have none of their own (tray menu, hotkeys).
type controller struct {
	ctx context.Context
	s   *Session
	log *zap.SugaredLogger
}

func (c controller) Toggle() error                { return c.s.Toggle(c.ctx) }
func (c controller) TogglePause() error           { return c.s.TogglePause() }
func (c controller) SwitchDevice(index int) error { return c.s.SwitchDevice(c.ctx, index) }

func (c controller) handleHotkey(a hotkey.Action) {
	var err error
	switch a {
	case hotkey.ActionToggle:
		err = c.Toggle()
	case hotkey.ActionPause:
		err = c.TogglePause()
	}
	if err != nil {
		c.log.Debugw("hotkey action failed", "action", a.String(), "error", err)
	}
}

// RunDictation captures from the microphone until the tray is quit or the
// process receives SIGINT/SIGTERM.
func RunDictation(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) error {
	log = logging.OrNop(log)
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config.InitCacheDir(&cfg, log)
	store := cache.New(config.TempDir(&cfg), cfg.KeepCache, log)
	store.CleanupOldTempFiles()

	rec, err := asr.New(cfg, asr.NewHTTPClient(cfg), store, log)
	if err != nil {
		return err
	}
	if c, ok := rec.(asr.Closer); ok {
		defer c.Close()
	}

	var obs segment.Observer
	if cfg.MetricsAddr != "" {
		m := metrics.New()
		obs = m
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	var (
		presenter Presenter
		tr        *tray.Tray
	)
	if cfg.Tray {
		tr = tray.New(log)
		presenter = tr
	}
	out := NewOutput(presenter, inject.New(cfg.Inject, cfg.TrailingSpace, log), notify.New(cfg.Notification, log), log)

	session, err := NewSession(cfg, capture.New(cfg.SamplingRate, cfg.FramesPerBuffer, log), rec, out, obs, log)
	if err != nil {
		return err
	}
	defer session.Stop()
	ctl := controller{ctx: ctx, s: session, log: log.Named("control")}

	hotkeysActive := false
	if cfg.Hotkeys {
		l, err := hotkey.Register([]hotkey.Binding{
			{Spec: cfg.ToggleKey, Action: hotkey.ActionToggle},
			{Spec: cfg.PauseKey, Action: hotkey.ActionPause},
		}, ctl.handleHotkey, log)
		switch {
		case errors.Is(err, hotkey.ErrUnsupported):
			log.Warnw("global hotkeys unavailable; use the tray menu or AUTO_START", "error", err)
		case err != nil:
			return err
		default:
			hotkeysActive = true
			defer l.Close()
			log.Infow("hotkeys registered", "toggle", cfg.ToggleKey, "pause", cfg.PauseKey)
		}
	}

	if cfg.AutoStart || (!cfg.Tray && !hotkeysActive) {
		if err := session.Start(ctx); err != nil {
			return err
		}
	}

	if tr == nil {
		log.Infow("ready; press Ctrl+C to quit")
		<-ctx.Done()
		return nil
	}

	devices, err := capture.Devices()
	if err != nil {
		log.Warnw("cannot list input devices", "error", err)
	}
	go func() {
		<-ctx.Done()
		tr.Quit()
	}()
	log.Infow("ready")
	tr.Run(ctl, devices, cfg.DeviceIndex, cancel)
	return nil
}
