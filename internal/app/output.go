package app

import (
	"sync"

	"go.uber.org/zap"

	"voicekb/internal/capture"
	"voicekb/internal/logging"
)

// Presenter shows recorder state and recognized text to the user.
type Presenter interface {
	SetState(capture.State)
	ShowText(text string)
}

// Typer types text into the focused window.
type Typer interface {
	Type(text string) error
}

// Notifier shows desktop notifications.
type Notifier interface {
	Notify(message string)
}

// Output fans recognized text out to the presenter and the typer.
type Output struct {
	mu        sync.Mutex
	presenter Presenter
	typer     Typer
	notifier  Notifier
	log       *zap.SugaredLogger
}

// NewOutput wires the collaborators. A nil presenter logs instead.
func NewOutput(p Presenter, t Typer, n Notifier, log *zap.SugaredLogger) *Output {
	log = logging.OrNop(log)
	if p == nil {
		p = NewLogPresenter(log)
	}
	return &Output{presenter: p, typer: t, notifier: n, log: log.Named("output")}
}

// Deliver handles one recognized utterance. It is called from the
// segmenter's poll goroutine, one utterance at a time.
func (o *Output) Deliver(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.log.Infow("transcribed", "text", text)
	o.presenter.ShowText(text)
	if o.typer == nil {
		return
	}
	if err := o.typer.Type(text); err != nil {
		o.log.Warnw("paste failed", "error", err)
		o.notify("Paste failed")
	}
}

// State forwards a recorder state change.
func (o *Output) State(s capture.State) {
	o.presenter.SetState(s)
	switch s {
	case capture.StateRecording:
		o.notify("Recording started")
	case capture.StatePaused:
		o.notify("Recording paused")
	case capture.StateIdle:
		o.notify("Recording stopped")
	}
}

func (o *Output) notify(msg string) {
	if o.notifier != nil {
		o.notifier.Notify(msg)
	}
}

type logPresenter struct {
	log *zap.SugaredLogger
}

// NewLogPresenter returns a Presenter that only logs.
func NewLogPresenter(log *zap.SugaredLogger) Presenter {
	return logPresenter{log: logging.OrNop(log).Named("status")}
}

func (p logPresenter) SetState(s capture.State) { p.log.Infow("state changed", "state", s.String()) }
func (p logPresenter) ShowText(string)          {}
