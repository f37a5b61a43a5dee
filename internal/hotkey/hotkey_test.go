package hotkey

import (
	"strings"
	"testing"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in   string
		want Combo
	}{
		{"alt+q", Combo{Mods: ModAlt, Key: 'Q'}},
		{"Ctrl+Shift+F1", Combo{Mods: ModCtrl | ModShift, Key: 0x70}},
		{"esc", Combo{Key: 0x1B}},
		{"win+space", Combo{Mods: ModWin, Key: 0x20}},
		{"ctrl + 5", Combo{Mods: ModCtrl, Key: '5'}},
		{"alt+numpad7", Combo{Mods: ModAlt, Key: 0x67}},
		{"kp0", Combo{Key: 0x60}},
		{"f24", Combo{Key: 0x87}},
		{"control+pagedown", Combo{Mods: ModCtrl, Key: 0x22}},
		{"shift+minus", Combo{Mods: ModShift, Key: 0x6D}},
	}
	for _, tt := range tests {
		got, err := ParseCombo(tt.in)
		if err != nil {
			t.Errorf("ParseCombo(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCombo(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseComboErrors(t *testing.T) {
	for _, in := range []string{"", "  ", "alt+", "hyper+q", "f25", "f0", "numpad10", "ctrl+launch"} {
		if _, err := ParseCombo(in); err == nil {
			t.Errorf("ParseCombo(%q) expected error", in)
		}
	}
}

func TestParseBindingsRejectsDuplicates(t *testing.T) {
	_, err := parseBindings([]Binding{
		{Spec: "alt+q", Action: ActionToggle},
		{Spec: "ALT + Q", Action: ActionPause},
	})
	if err == nil || !strings.Contains(err.Error(), "collides") {
		t.Fatalf("err = %v", err)
	}
}

func TestActionString(t *testing.T) {
	if ActionToggle.String() != "toggle" || ActionPause.String() != "pause" || Action(9).String() != "action(9)" {
		t.Fatal("unexpected action names")
	}
}

func TestListenerCloseNil(t *testing.T) {
	var l *Listener
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
}
