//go:build !darwin

package inject

import "github.com/micmonay/keybd_event"

func pasteModifier(kb *keybd_event.KeyBonding) { kb.HasCTRL(true) }
