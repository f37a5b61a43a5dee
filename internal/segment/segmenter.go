// Package segment accumulates captured audio and cuts it into utterances once
// the speaker has been quiet for long enough.
//
// A Segmenter has exactly two entry points on the hot path: Append, called
// from the audio delivery goroutine for every frame, and Poll, called by the
// segmenter's own ticker loop. The sample buffer never leaves the type; a
// segment handed to the recognizer is a slice the buffer no longer references.
package segment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicekb/internal/logging"
)

var (
	// ErrSilentSegment is returned by Normalize for a segment whose peak is zero.
	ErrSilentSegment = errors.New("segment: silent segment (peak amplitude 0)")
	// ErrRunning is returned by Start when the poll loop is already active.
	ErrRunning = errors.New("segment: poll loop already running")
)

// Drop reasons reported to the Observer.
const (
	DropSilent    = "silent"
	DropInactive  = "inactive"
	DropRecognize = "recognize_error"
)

// Recognizer turns a finite segment of mono samples into text.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32, language string) (string, error)
}

// Observer receives counters from the segmenter. All methods must be cheap and
// safe for concurrent use.
type Observer interface {
	FrameAppended(samples int)
	Buffered(samples int)
	SegmentEmitted(samples int)
	SegmentDropped(reason string)
	RecognitionDone(elapsed time.Duration, err error)
}

// Config holds the segmentation thresholds. The minimum segment length is
// derived from SampleRate, never from SilenceDuration.
type Config struct {
	SampleRate      int
	SilenceDuration time.Duration
	MinSegment      time.Duration
	PollInterval    time.Duration
	Language        string

	// ActivityThreshold is the peak amplitude a frame needs to count as
	// speech. Quieter frames are buffered but do not reset the silence timer.
	// Zero treats every frame as activity.
	ActivityThreshold float32
	// MaxSegment forces an extraction once this much audio is buffered. Zero
	// means unbounded.
	MaxSegment time.Duration
}

// DefaultConfig returns 16 kHz, 0.5 s silence, 1 s minimum, 100 ms polling.
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		SilenceDuration: 500 * time.Millisecond,
		MinSegment:      time.Second,
		PollInterval:    100 * time.Millisecond,
	}
}

// Validate checks every threshold independently.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("segment: sample rate must be > 0, got %d", c.SampleRate)
	}
	if c.SilenceDuration < 0 {
		return fmt.Errorf("segment: silence duration must be >= 0, got %s", c.SilenceDuration)
	}
	if c.MinSegment < 0 {
		return fmt.Errorf("segment: min segment must be >= 0, got %s", c.MinSegment)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("segment: poll interval must be > 0, got %s", c.PollInterval)
	}
	if c.ActivityThreshold < 0 || c.ActivityThreshold >= 1 {
		return fmt.Errorf("segment: activity threshold must be in [0,1), got %v", c.ActivityThreshold)
	}
	if c.MaxSegment != 0 && c.MaxSegment < c.MinSegment {
		return fmt.Errorf("segment: max segment %s is shorter than min segment %s", c.MaxSegment, c.MinSegment)
	}
	return nil
}

// MinSamples is the sample count a buffer must exceed before it is emitted.
func (c Config) MinSamples() int {
	return int(float64(c.SampleRate) * c.MinSegment.Seconds())
}

func (c Config) maxSamples() int {
	return int(float64(c.SampleRate) * c.MaxSegment.Seconds())
}

// Option customises a Segmenter.
type Option func(*Segmenter)

// WithClock replaces time.Now for silence measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Segmenter) { s.log = logging.OrNop(log) }
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(s *Segmenter) {
		if o != nil {
			s.obs = o
		}
	}
}

// Segmenter is the silence-triggered segmentation buffer.
type Segmenter struct {
	cfg    Config
	rec    Recognizer
	onText func(string)
	log    *zap.SugaredLogger
	obs    Observer
	now    func() time.Time

	mu           sync.Mutex
	buf          []float32
	lastActivity time.Time
	heard        bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Segmenter. onText receives the trimmed, non-empty text of each
// recognized segment; it is called from the poll goroutine.
func New(cfg Config, rec Recognizer, onText func(string), opts ...Option) (*Segmenter, error) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("segment: recognizer is required")
	}
	s := &Segmenter{
		cfg:    cfg,
		rec:    rec,
		onText: onText,
		log:    zap.NewNop().Sugar(),
		obs:    nopObserver{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append adds a frame to the buffer and refreshes the activity timestamp.
func (s *Segmenter) Append(frame []float32) {
	if len(frame) == 0 {
		return
	}
	now := s.now()
	active := s.cfg.ActivityThreshold <= 0 || Peak(frame) >= s.cfg.ActivityThreshold

	s.mu.Lock()
	if len(s.buf) == 0 {
		s.lastActivity = now
	}
	s.buf = append(s.buf, frame...)
	if active {
		s.lastActivity = now
		s.heard = true
	}
	n := len(s.buf)
	s.mu.Unlock()

	s.obs.FrameAppended(len(frame))
	s.obs.Buffered(n)
}

// Len reports how many samples are buffered.
func (s *Segmenter) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Poll extracts the buffer as a segment when silence has lasted longer than
// SilenceDuration and more than MinSamples are buffered, then recognizes it.
// It reports whether a segment was extracted. Recognition failures are logged
// and never returned.
func (s *Segmenter) Poll(ctx context.Context) bool {
	seg, reason := s.take()
	if reason != "" {
		s.log.Debugw("discarded buffer without speech", "reason", reason)
		s.obs.SegmentDropped(reason)
	}
	if seg == nil {
		return false
	}
	s.obs.Buffered(0)
	s.obs.SegmentEmitted(len(seg))

	text, err := s.transcribe(ctx, seg)
	switch {
	case errors.Is(err, ErrSilentSegment):
		s.log.Warnw("dropped segment", "samples", len(seg), "error", err)
		s.obs.SegmentDropped(DropSilent)
	case err != nil:
		s.log.Errorw("transcription failed", "samples", len(seg), "error", err)
		s.obs.SegmentDropped(DropRecognize)
	case text != "" && s.onText != nil:
		s.onText(text)
	}
	return true
}

func (s *Segmenter) take() ([]float32, string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.buf)
	if n == 0 {
		return nil, ""
	}
	full := s.cfg.MaxSegment > 0 && n >= s.cfg.maxSamples()
	quiet := now.Sub(s.lastActivity) > s.cfg.SilenceDuration && n > s.cfg.MinSamples()
	if !full && !quiet {
		return nil, ""
	}
	heard := s.heard
	seg := s.buf
	s.buf = nil
	s.heard = false
	if !heard {
		return nil, DropInactive
	}
	return seg, ""
}

func (s *Segmenter) transcribe(ctx context.Context, seg []float32) (text string, err error) {
	if err := Normalize(seg); err != nil {
		return "", err
	}
	// Recognizer panics become errors.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recognizer panic: %v", r)
		}
	}()

	start := time.Now()
	text, err = s.rec.Recognize(ctx, seg, s.cfg.Language)
	s.obs.RecognitionDone(time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("recognize %d samples: %w", len(seg), err)
	}
	return strings.TrimSpace(text), nil
}

// Start launches the poll loop. The loop stops when ctx is done or Stop is
// called; Stop must be called before Start can succeed again.
func (s *Segmenter) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done != nil {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.loop(ctx, done)
	return nil
}

func (s *Segmenter) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Stop cancels the poll loop, waits for it to exit and discards buffered
// audio. It is safe to call when the loop is not running.
func (s *Segmenter) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.Reset()
}

// Reset discards buffered audio.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	s.buf = nil
	s.heard = false
	s.lastActivity = time.Time{}
	s.mu.Unlock()
	s.obs.Buffered(0)
}

type nopObserver struct{}

func (nopObserver) FrameAppended(int)                    {}
func (nopObserver) Buffered(int)                         {}
func (nopObserver) SegmentEmitted(int)                   {}
func (nopObserver) SegmentDropped(string)                {}
func (nopObserver) RecognitionDone(time.Duration, error) {}
