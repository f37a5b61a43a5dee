//go:build !windows

package hotkey

import "go.uber.org/zap"

// Register reports ErrUnsupported off Windows.
func Register(bindings []Binding, handler func(Action), log *zap.SugaredLogger) (*Listener, error) {
	if _, err := parseBindings(bindings); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}

func (l *Listener) quit() error { return nil }
