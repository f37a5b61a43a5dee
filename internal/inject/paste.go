package inject

import (
	"runtime"
	"time"

	"github.com/micmonay/keybd_event"
)

// newPaster builds the platform paste chord.
func newPaster() (func() error, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	// uinput needs a moment before the virtual keyboard receives events.
	if runtime.GOOS == "linux" {
		time.Sleep(2 * time.Second)
	}
	pasteModifier(&kb)
	kb.SetKeys(keybd_event.VK_V)
	return kb.Launching, nil
}
