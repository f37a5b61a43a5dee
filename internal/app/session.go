package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"voicekb/internal/capture"
	"voicekb/internal/config"
	"voicekb/internal/logging"
	"voicekb/internal/segment"
)

// Source delivers microphone frames; *capture.Recorder implements it.
type Source interface {
	Start(ctx context.Context, device int, sink func([]float32)) error
	Stop() error
	TogglePause() error
	State() capture.State
}

// Session owns one audio source and one segmenter and keeps them in step.
type Session struct {
	mu      sync.Mutex
	src     Source
	seg     *segment.Segmenter
	out     *Output
	device  int
	running bool
	log     *zap.SugaredLogger
}

// NewSession builds the segmenter from cfg and routes its text to out.
// obs may be nil.
func NewSession(cfg config.Config, src Source, rec segment.Recognizer, out *Output, obs segment.Observer, log *zap.SugaredLogger) (*Session, error) {
	log = logging.OrNop(log)
	opts := []segment.Option{segment.WithLogger(log)}
	if obs != nil {
		opts = append(opts, segment.WithObserver(obs))
	}
	seg, err := segment.New(cfg.Segment(), rec, out.Deliver, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{
		src:    src,
		seg:    seg,
		out:    out,
		device: cfg.DeviceIndex,
		log:    log.Named("session"),
	}, nil
}

// Start begins capturing from the current device and segmenting.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if err := s.seg.Start(ctx); err != nil {
		return err
	}
	if err := s.src.Start(ctx, s.device, s.seg.Append); err != nil {
		s.seg.Stop()
		return fmt.Errorf("start capture on device %d: %w", s.device, err)
	}
	s.running = true
	s.log.Infow("recording started", "device", s.device)
	s.out.State(capture.StateRecording)
	return nil
}

// Stop ends capture and discards audio that has not formed a segment yet.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.stopLocked()
	s.out.State(capture.StateIdle)
}

func (s *Session) stopLocked() {
	if err := s.src.Stop(); err != nil && !errors.Is(err, capture.ErrNotRunning) {
		s.log.Warnw("capture ended with error", "error", err)
	}
	s.seg.Stop()
	s.running = false
	s.log.Infow("recording stopped")
}

// Toggle starts an idle session or stops a running one.
func (s *Session) Toggle(ctx context.Context) error {
	if s.Recording() {
		s.Stop()
		return nil
	}
	return s.Start(ctx)
}

// TogglePause pauses or resumes frame delivery without closing the device.
func (s *Session) TogglePause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return capture.ErrNotRunning
	}
	if err := s.src.TogglePause(); err != nil {
		return err
	}
	st := s.src.State()
	s.log.Infow("pause toggled", "state", st.String())
	s.out.State(st)
	return nil
}

// SwitchDevice selects another input device, restarting capture on it when
// the session is recording. Buffered audio carries over.
func (s *Session) SwitchDevice(ctx context.Context, device int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.device
	s.device = device
	if !s.running {
		return nil
	}
	if err := s.src.Stop(); err != nil && !errors.Is(err, capture.ErrNotRunning) {
		s.log.Warnw("capture ended with error", "error", err)
	}
	if err := s.src.Start(ctx, device, s.seg.Append); err != nil {
		s.log.Errorw("switch device failed, restoring previous", "device", device, "error", err)
		s.device = prev
		if rerr := s.src.Start(ctx, prev, s.seg.Append); rerr != nil {
			s.seg.Stop()
			s.running = false
			s.out.State(capture.StateIdle)
			return errors.Join(err, rerr)
		}
		return err
	}
	s.log.Infow("switched device", "from", prev, "to", device)
	return nil
}

// Recording reports whether the session is capturing (paused counts).
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Device returns the selected input device index.
func (s *Session) Device() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}
