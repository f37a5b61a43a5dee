// Package notify shows desktop notifications.
package notify

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"voicekb/internal/logging"
)

// Title is used for every notification.
const Title = "voicekb"

// Notifier sends desktop notifications when enabled.
type Notifier struct {
	enabled bool
	log     *zap.SugaredLogger
	send    func(title, message, icon string) error
}

// New returns a notifier; a disabled notifier drops every message.
func New(enabled bool, log *zap.SugaredLogger) *Notifier {
	n := &Notifier{enabled: enabled, log: logging.OrNop(log).Named("notify")}
	n.send = func(title, message, icon string) error {
		return beeep.Notify(title, message, icon)
	}
	return n
}

// Notify shows message. Delivery failures are logged, not returned.
func (n *Notifier) Notify(message string) {
	if n == nil || !n.enabled || message == "" {
		return
	}
	if err := n.send(Title, message, ""); err != nil {
		n.log.Debugw("notification failed", "error", err)
	}
}
