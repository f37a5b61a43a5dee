//go:build windows

package hotkey

import (
	"fmt"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"voicekb/internal/logging"
)

var (
	user32               = syscall.NewLazyDLL("user32.dll")
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
	procGetMessageW      = user32.NewProc("GetMessageW")
	procPostThreadMsgW   = user32.NewProc("PostThreadMessageW")
	procGetCurrentThread = kernel32.NewProc("GetCurrentThreadId")
)

const (
	wmHotkey    = 0x0312
	wmQuit      = 0x0012
	modNoRepeat = 0x4000
)

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

// Register installs bindings with RegisterHotKey on a locked OS thread and
// dispatches WM_HOTKEY messages to handler from that thread.
func Register(bindings []Binding, handler func(Action), log *zap.SugaredLogger) (*Listener, error) {
	log = logging.OrNop(log).Named("hotkey")
	combos, err := parseBindings(bindings)
	if err != nil {
		return nil, err
	}

	l := &Listener{done: make(chan struct{})}
	errCh := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(l.done)

		tid, _, _ := procGetCurrentThread.Call()
		l.threadID = uint32(tid)

		registered := 0
		defer func() {
			for id := 1; id <= registered; id++ {
				procUnregisterHotKey.Call(0, uintptr(id))
			}
		}()

		for i, c := range combos {
			id := i + 1
			r, _, callErr := procRegisterHotKey.Call(0, uintptr(id), uintptr(c.Mods|modNoRepeat), uintptr(c.Key))
			if r == 0 {
				errCh <- fmt.Errorf("RegisterHotKey failed for '%s': %v", bindings[i].Spec, callErr)
				return
			}
			registered++
			log.Debugw("hotkey registered", "spec", bindings[i].Spec, "action", bindings[i].Action, "mod", c.Mods, "vk", c.Key)
		}
		errCh <- nil

		var m msg
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			switch int32(ret) {
			case -1:
				log.Errorw("GetMessageW failed; hotkey loop exiting")
				return
			case 0:
				return
			}
			if m.Message != wmHotkey {
				continue
			}
			id := int(m.WParam)
			if id >= 1 && id <= len(bindings) {
				handler(bindings[id-1].Action)
			}
		}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			<-l.done
			return nil, err
		}
		return l, nil
	case <-time.After(2 * time.Second):
		return nil, fmt.Errorf("timeout registering hotkeys")
	}
}

func (l *Listener) quit() error {
	r, _, err := procPostThreadMsgW.Call(uintptr(l.threadID), wmQuit, 0, 0)
	if r == 0 {
		return fmt.Errorf("PostThreadMessageW failed: %v", err)
	}
	return nil
}
