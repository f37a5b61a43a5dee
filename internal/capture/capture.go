// Package capture reads microphone frames and hands them to a sink.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"voicekb/internal/logging"
)

// State represents recorder state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrNotRunning is returned by Stop and TogglePause on an idle recorder.
var ErrNotRunning = errors.New("recorder not running")

// DefaultDevice selects the host's default input device.
const DefaultDevice = -1

type stream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// opener opens a mono input stream that fills buf on every Read.
type opener func(device, rate int, buf []float32) (stream, error)

// Recorder delivers fixed-size mono float32 frames from an input device.
type Recorder struct {
	mu      sync.Mutex
	state   State
	rate    int
	frames  int
	log     *zap.SugaredLogger
	open    opener
	cancel  context.CancelFunc
	done    chan error
	lastErr error
}

// New creates a recorder for the given sample rate and frame size.
func New(rate, framesPerBuffer int, log *zap.SugaredLogger) *Recorder {
	return &Recorder{
		state:  StateIdle,
		rate:   rate,
		frames: framesPerBuffer,
		log:    logging.OrNop(log).Named("capture"),
		open:   openPortAudio,
	}
}

// Start opens device and begins delivering frames to sink from a dedicated
// goroutine. Each frame passed to sink is a fresh slice the sink may keep.
func (r *Recorder) Start(ctx context.Context, device int, sink func([]float32)) error {
	if sink == nil {
		return errors.New("capture: sink is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return fmt.Errorf("recorder not idle (%s)", r.state)
	}

	buf := make([]float32, r.frames)
	st, err := r.open(device, r.rate, buf)
	if err != nil {
		return fmt.Errorf("open stream failed: %w", err)
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		return fmt.Errorf("start stream failed: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan error, 1)
	r.lastErr = nil
	r.state = StateRecording
	r.log.Debugw("recording started", "device", device, "rate", r.rate, "frames", r.frames)

	go r.recordLoop(loopCtx, st, buf, sink, r.done)
	return nil
}

// Stop ends recording, waits for the loop to close the stream and returns
// the error that terminated delivery, if any.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.done == nil {
		r.mu.Unlock()
		return ErrNotRunning
	}
	if r.state != StateIdle {
		r.state = StateStopping
	}
	cancel, done := r.cancel, r.done
	r.done = nil
	r.mu.Unlock()

	cancel()
	return <-done
}

// TogglePause toggles pause/resume. Paused recorders keep the device open
// and drop frames.
func (r *Recorder) TogglePause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StatePaused:
		r.state = StateRecording
	case StateRecording:
		r.state = StatePaused
	default:
		return ErrNotRunning
	}
	return nil
}

// State returns the current recorder state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error that ended the last recording, if it ended on its own.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Recorder) recordLoop(ctx context.Context, st stream, buf []float32, sink func([]float32), done chan<- error) {
	var loopErr error
	for ctx.Err() == nil {
		if err := st.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				r.log.Debugw("input overflowed, frame dropped")
				continue
			}
			loopErr = fmt.Errorf("stream read failed: %w", err)
			r.log.Errorw("recording terminated", "error", err)
			break
		}
		if r.isPaused() {
			continue
		}
		frame := make([]float32, len(buf))
		copy(frame, buf)
		sink(frame)
	}

	_ = st.Stop()
	if err := st.Close(); err != nil && loopErr == nil {
		loopErr = fmt.Errorf("close stream failed: %w", err)
	}
	r.finish(loopErr)
	done <- loopErr
}

func (r *Recorder) finish(err error) {
	r.mu.Lock()
	r.state = StateIdle
	r.lastErr = err
	r.mu.Unlock()
}

func (r *Recorder) isPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StatePaused
}
