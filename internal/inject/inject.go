// Package inject types recognized text into the focused window by pasting it.
package inject

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"voicekb/internal/logging"
)

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Injector pastes text through the clipboard and restores the previous
// clipboard content afterwards.
type Injector struct {
	enabled  bool
	trailing bool
	log      *zap.SugaredLogger

	clip Clipboard

	pasteOnce sync.Once
	paste     func() error
	pasteErr  error

	// writeSettle is the wait between writing the clipboard and pasting,
	// restoreSettle the wait before restoring it.
	writeSettle   time.Duration
	restoreSettle time.Duration

	mu sync.Mutex
}

// New returns an injector for mode "paste" or "none".
func New(mode string, trailingSpace bool, log *zap.SugaredLogger) *Injector {
	return &Injector{
		enabled:       strings.EqualFold(mode, "paste"),
		trailing:      trailingSpace,
		log:           logging.OrNop(log).Named("inject"),
		clip:          systemClipboard{},
		writeSettle:   80 * time.Millisecond,
		restoreSettle: 120 * time.Millisecond,
	}
}

// Enabled reports whether Type touches the clipboard at all.
func (i *Injector) Enabled() bool { return i.enabled }

// Type pastes text into the focused window.
func (i *Injector) Type(text string) error {
	if !i.enabled || text == "" {
		return nil
	}
	if i.trailing {
		text += " "
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.pasteOnce.Do(func() {
		if i.paste == nil {
			i.paste, i.pasteErr = newPaster()
		}
	})
	if i.pasteErr != nil {
		return fmt.Errorf("paste unavailable: %w", i.pasteErr)
	}

	orig, readErr := i.clip.ReadAll()
	if readErr != nil {
		i.log.Debugw("clipboard read failed, previous content will not be restored", "error", readErr)
	}
	if err := i.clip.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write failed: %w", err)
	}
	time.Sleep(i.writeSettle)

	pasteErr := i.paste()
	time.Sleep(i.restoreSettle)

	var restoreErr error
	if readErr == nil {
		if err := i.clip.WriteAll(orig); err != nil {
			restoreErr = fmt.Errorf("clipboard restore failed: %w", err)
		}
	}
	if pasteErr != nil {
		pasteErr = fmt.Errorf("paste keystroke failed: %w", pasteErr)
	}
	return errors.Join(pasteErr, restoreErr)
}
