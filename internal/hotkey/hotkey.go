// Package hotkey parses key combinations and installs global hotkeys.
package hotkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupported is returned by Register on platforms without global hotkeys.
var ErrUnsupported = errors.New("global hotkeys not supported on this platform")

// Action is what a hotkey does.
type Action int

const (
	ActionToggle Action = iota + 1
	ActionPause
)

func (a Action) String() string {
	switch a {
	case ActionToggle:
		return "toggle"
	case ActionPause:
		return "pause"
	}
	return "action(" + strconv.Itoa(int(a)) + ")"
}

// Modifier masks, matching the Win32 MOD_* values.
const (
	ModAlt   uint32 = 0x0001
	ModCtrl  uint32 = 0x0002
	ModShift uint32 = 0x0004
	ModWin   uint32 = 0x0008
)

// Combo is a parsed key combination: a modifier mask and a virtual-key code.
type Combo struct {
	Mods uint32
	Key  uint32
}

// Binding ties a combination string such as "alt+q" to an action.
type Binding struct {
	Spec   string
	Action Action
}

var namedKeys = map[string]uint32{
	"esc":        0x1B,
	"escape":     0x1B,
	"space":      0x20,
	"enter":      0x0D,
	"return":     0x0D,
	"tab":        0x09,
	"backspace":  0x08,
	"insert":     0x2D,
	"delete":     0x2E,
	"home":       0x24,
	"end":        0x23,
	"pageup":     0x21,
	"pagedown":   0x22,
	"left":       0x25,
	"up":         0x26,
	"right":      0x27,
	"down":       0x28,
	"add":        0x6B,
	"plus":       0x6B,
	"kpadd":      0x6B,
	"subtract":   0x6D,
	"minus":      0x6D,
	"kpsubtract": 0x6D,
}

// ParseCombo accepts strings like "alt+q", "ctrl+shift+F1" or "esc".
func ParseCombo(s string) (Combo, error) {
	if strings.TrimSpace(s) == "" {
		return Combo{}, errors.New("empty key")
	}
	parts := strings.Split(s, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(strings.ToLower(parts[i]))
	}

	var c Combo
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "alt", "menu":
			c.Mods |= ModAlt
		case "ctrl", "control":
			c.Mods |= ModCtrl
		case "shift":
			c.Mods |= ModShift
		case "win", "meta", "super", "cmd":
			c.Mods |= ModWin
		default:
			return Combo{}, fmt.Errorf("unknown modifier %q in %q", p, s)
		}
	}

	key := parts[len(parts)-1]
	vk, ok := keyCode(key)
	if !ok {
		return Combo{}, fmt.Errorf("unsupported key token: %s", s)
	}
	c.Key = vk
	return c, nil
}

func keyCode(tok string) (uint32, bool) {
	if len(tok) == 1 {
		ch := tok[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return uint32(ch - 'a' + 'A'), true
		case ch >= '0' && ch <= '9':
			return uint32(ch), true
		}
	}
	if v, ok := namedKeys[tok]; ok {
		return v, true
	}
	if n, ok := numberAfter(tok, "f"); ok && n >= 1 && n <= 24 {
		return 0x70 + uint32(n-1), true
	}
	for _, prefix := range []string{"numpad", "num", "kp"} {
		if n, ok := numberAfter(tok, prefix); ok && n >= 0 && n <= 9 {
			return 0x60 + uint32(n), true
		}
	}
	return 0, false
}

func numberAfter(tok, prefix string) (int, bool) {
	rest, found := strings.CutPrefix(tok, prefix)
	if !found || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

// parseBindings resolves every binding and rejects duplicates.
func parseBindings(bindings []Binding) ([]Combo, error) {
	combos := make([]Combo, len(bindings))
	seen := make(map[Combo]string, len(bindings))
	for i, b := range bindings {
		c, err := ParseCombo(b.Spec)
		if err != nil {
			return nil, fmt.Errorf("invalid hotkey '%s': %w", b.Spec, err)
		}
		if prev, dup := seen[c]; dup {
			return nil, fmt.Errorf("hotkey '%s' collides with '%s'", b.Spec, prev)
		}
		seen[c] = b.Spec
		combos[i] = c
	}
	return combos, nil
}

// Listener owns installed hotkeys until Close.
type Listener struct {
	threadID uint32
	done     chan struct{}
}

// Close unregisters the hotkeys and waits for the message loop to exit.
func (l *Listener) Close() error {
	if l == nil || l.done == nil {
		return nil
	}
	if err := l.quit(); err != nil {
		return err
	}
	<-l.done
	return nil
}
