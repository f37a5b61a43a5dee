package segment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeRecognizer struct {
	mu       sync.Mutex
	segments [][]float32
	langs    []string
	text     string
	err      error
	panics   bool
}

func (r *fakeRecognizer) Recognize(_ context.Context, samples []float32, language string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panics {
		panic("boom")
	}
	cp := make([]float32, len(samples))
	copy(cp, samples)
	r.segments = append(r.segments, cp)
	r.langs = append(r.langs, language)
	return r.text, r.err
}

func (r *fakeRecognizer) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segments)
}

func (r *fakeRecognizer) totalSamples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.segments {
		n += len(s)
	}
	return n
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Language = "en"
	return cfg
}

func frame(n int, v float32) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = v
	}
	return f
}

func newTestSegmenter(t *testing.T, cfg Config, rec Recognizer, clock *fakeClock) (*Segmenter, *[]string) {
	t.Helper()
	var texts []string
	s, err := New(cfg, rec, func(text string) { texts = append(texts, text) }, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, &texts
}

func TestAppendAccumulatesUntilExtraction(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{text: "hello"}
	s, _ := newTestSegmenter(t, testConfig(), rec, clock)

	want := 0
	for _, n := range []int{1024, 1024, 512, 7, 20000} {
		s.Append(frame(n, 0.2))
		want += n
		if got := s.Len(); got != want {
			t.Fatalf("after appending %d samples: Len = %d, want %d", n, got, want)
		}
	}

	clock.Advance(600 * time.Millisecond)
	if !s.Poll(context.Background()) {
		t.Fatalf("expected extraction")
	}
	if got := s.Len(); got != 0 {
		t.Fatalf("Len after extraction = %d, want 0", got)
	}
}

func TestPollEmitsOneSegmentAfterSilence(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{text: "  hello world \n"}
	s, texts := newTestSegmenter(t, testConfig(), rec, clock)

	samples := frame(20000, 0)
	samples[100] = 0.25
	s.Append(samples)

	clock.Advance(600 * time.Millisecond)
	if !s.Poll(context.Background()) {
		t.Fatalf("expected a segment to be emitted")
	}
	if rec.calls() != 1 {
		t.Fatalf("recognizer calls = %d, want 1", rec.calls())
	}
	if got := len(rec.segments[0]); got != 20000 {
		t.Fatalf("segment length = %d, want 20000", got)
	}
	if rec.segments[0][100] != 1 {
		t.Fatalf("segment not normalized: peak sample = %v", rec.segments[0][100])
	}
	if rec.langs[0] != "en" {
		t.Fatalf("language = %q, want en", rec.langs[0])
	}
	if s.Len() != 0 {
		t.Fatalf("buffer length = %d, want 0", s.Len())
	}
	if len(*texts) != 1 || (*texts)[0] != "hello world" {
		t.Fatalf("delivered texts = %q", *texts)
	}

	if s.Poll(context.Background()) {
		t.Fatalf("second poll must not emit")
	}
	if rec.calls() != 1 {
		t.Fatalf("recognizer calls after second poll = %d, want 1", rec.calls())
	}
}

func TestPollKeepsShortBuffer(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{text: "x"}
	s, _ := newTestSegmenter(t, testConfig(), rec, clock)

	s.Append(frame(8000, 0.5))
	clock.Advance(600 * time.Millisecond)
	if s.Poll(context.Background()) {
		t.Fatalf("short buffer must not be emitted")
	}
	if rec.calls() != 0 {
		t.Fatalf("recognizer called %d times", rec.calls())
	}
	if s.Len() != 8000 {
		t.Fatalf("buffer length = %d, want 8000", s.Len())
	}
}

func TestPollWaitsForSilence(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{text: "x"}
	s, _ := newTestSegmenter(t, testConfig(), rec, clock)

	s.Append(frame(20000, 0.5))
	clock.Advance(400 * time.Millisecond)
	if s.Poll(context.Background()) {
		t.Fatalf("emitted before silence elapsed")
	}
	s.Append(frame(1024, 0.5))
	clock.Advance(400 * time.Millisecond)
	if s.Poll(context.Background()) {
		t.Fatalf("new frame must restart the silence timer")
	}
	clock.Advance(200 * time.Millisecond)
	if !s.Poll(context.Background()) {
		t.Fatalf("expected extraction after silence")
	}
	if got := len(rec.segments[0]); got != 21024 {
		t.Fatalf("segment length = %d, want 21024", got)
	}
}

func TestMinimumUsesSampleRateNotSilence(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{text: "x"}
	cfg := testConfig()
	cfg.SampleRate = 8000
	cfg.SilenceDuration = 2 * time.Second
	s, _ := newTestSegmenter(t, cfg, rec, clock)

	s.Append(frame(8001, 0.5))
	clock.Advance(2100 * time.Millisecond)
	if !s.Poll(context.Background()) {
		t.Fatalf("8001 samples at 8 kHz exceed one second and should be emitted")
	}
	if cfg.MinSamples() != 8000 {
		t.Fatalf("MinSamples = %d, want 8000", cfg.MinSamples())
	}
}

func TestSilentSegmentIsDropped(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{text: "should not appear"}
	s, texts := newTestSegmenter(t, testConfig(), rec, clock)

	s.Append(frame(20000, 0))
	clock.Advance(time.Second)
	if !s.Poll(context.Background()) {
		t.Fatalf("silent buffer is still extracted")
	}
	if rec.calls() != 0 {
		t.Fatalf("recognizer must not see a zero-peak segment")
	}
	if len(*texts) != 0 {
		t.Fatalf("unexpected text %q", *texts)
	}
	if s.Len() != 0 {
		t.Fatalf("buffer length = %d, want 0", s.Len())
	}

	s.Append(frame(20000, 0.3))
	clock.Advance(time.Second)
	if !s.Poll(context.Background()) || rec.calls() != 1 {
		t.Fatalf("segmenter must keep working after a silent segment")
	}
}

func TestRecognizerFailureIsNotFatal(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{err: errors.New("model exploded")}
	s, texts := newTestSegmenter(t, testConfig(), rec, clock)

	s.Append(frame(20000, 0.3))
	clock.Advance(time.Second)
	if !s.Poll(context.Background()) {
		t.Fatalf("expected extraction")
	}
	if len(*texts) != 0 {
		t.Fatalf("no text expected on failure, got %q", *texts)
	}
	if s.Len() != 0 {
		t.Fatalf("buffer must be reset regardless of outcome, Len = %d", s.Len())
	}

	rec.mu.Lock()
	rec.err, rec.text = nil, "recovered"
	rec.mu.Unlock()
	s.Append(frame(20000, 0.3))
	clock.Advance(time.Second)
	s.Poll(context.Background())
	if len(*texts) != 1 || (*texts)[0] != "recovered" {
		t.Fatalf("texts = %q", *texts)
	}
}

func TestRecognizerPanicIsRecovered(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{panics: true}
	s, texts := newTestSegmenter(t, testConfig(), rec, clock)

	s.Append(frame(20000, 0.3))
	clock.Advance(time.Second)
	if !s.Poll(context.Background()) {
		t.Fatalf("expected extraction")
	}
	if len(*texts) != 0 {
		t.Fatalf("unexpected text %q", *texts)
	}
}

func TestEmptyTextIsNotDelivered(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{text: "   "}
	s, texts := newTestSegmenter(t, testConfig(), rec, clock)

	s.Append(frame(20000, 0.3))
	clock.Advance(time.Second)
	s.Poll(context.Background())
	if rec.calls() != 1 {
		t.Fatalf("recognizer calls = %d, want 1", rec.calls())
	}
	if len(*texts) != 0 {
		t.Fatalf("blank text must not be delivered, got %q", *texts)
	}
}

func TestActivityThreshold(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{text: "speech"}
	cfg := testConfig()
	cfg.ActivityThreshold = 0.05
	s, texts := newTestSegmenter(t, cfg, rec, clock)

	s.Append(frame(16000, 0.4))
	for i := 0; i < 6; i++ {
		clock.Advance(100 * time.Millisecond)
		s.Append(frame(1600, 0.01))
	}
	if !s.Poll(context.Background()) {
		t.Fatalf("room noise below the threshold must count as silence")
	}
	if len(rec.segments[0]) != 16000+6*1600 {
		t.Fatalf("segment length = %d", len(rec.segments[0]))
	}
	if len(*texts) != 1 {
		t.Fatalf("texts = %q", *texts)
	}

	s.Append(frame(20000, 0.01))
	clock.Advance(time.Second)
	if s.Poll(context.Background()) {
		t.Fatalf("a buffer of pure noise must not reach the recognizer")
	}
	if s.Len() != 0 || rec.calls() != 1 {
		t.Fatalf("noise buffer not discarded: Len=%d calls=%d", s.Len(), rec.calls())
	}
}

func TestMaxSegmentForcesExtraction(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecognizer{text: "long"}
	cfg := testConfig()
	cfg.MaxSegment = 2 * time.Second
	s, _ := newTestSegmenter(t, cfg, rec, clock)

	s.Append(frame(31999, 0.3))
	if s.Poll(context.Background()) {
		t.Fatalf("below max and no silence: nothing to emit")
	}
	s.Append(frame(1, 0.3))
	if !s.Poll(context.Background()) {
		t.Fatalf("expected forced extraction at max segment length")
	}
	if len(rec.segments[0]) != 32000 {
		t.Fatalf("segment length = %d, want 32000", len(rec.segments[0]))
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rate", func(c *Config) { c.SampleRate = 0 }},
		{"negative silence", func(c *Config) { c.SilenceDuration = -time.Second }},
		{"negative min", func(c *Config) { c.MinSegment = -time.Second }},
		{"threshold too high", func(c *Config) { c.ActivityThreshold = 1 }},
		{"max below min", func(c *Config) { c.MaxSegment = 500 * time.Millisecond }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if _, err := New(DefaultConfig(), nil, nil); err == nil {
		t.Fatalf("expected error for nil recognizer")
	}
}

func TestConcurrentAppendAndPoll(t *testing.T) {
	rec := &fakeRecognizer{text: "x"}
	cfg := testConfig()
	cfg.SilenceDuration = 0
	cfg.MinSegment = 0
	s, err := New(cfg, rec, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	const (
		writers   = 2
		perWriter = 2000
		frameLen  = 37
	)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Append(frame(frameLen, 0.5))
			}
		}()
	}

	stop := make(chan struct{})
	var pollers sync.WaitGroup
	for p := 0; p < 2; p++ {
		pollers.Add(1)
		go func() {
			defer pollers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					s.Poll(context.Background())
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	pollers.Wait()

	want := writers * perWriter * frameLen
	if got := rec.totalSamples() + s.Len(); got != want {
		t.Fatalf("samples recognized+buffered = %d, want %d", got, want)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	rec := &fakeRecognizer{text: "from loop"}
	cfg := testConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.SilenceDuration = 20 * time.Millisecond
	cfg.MinSegment = 10 * time.Millisecond

	got := make(chan string, 1)
	s, err := New(cfg, rec, func(text string) { got <- text })
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrRunning) {
		t.Fatalf("second Start = %v, want ErrRunning", err)
	}

	s.Append(frame(1000, 0.5))
	select {
	case text := <-got:
		if text != "from loop" {
			t.Fatalf("text = %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poll loop never emitted a segment")
	}

	s.Append(frame(50, 0.5))
	s.Stop()
	if s.Len() != 0 {
		t.Fatalf("Stop must discard buffered audio, Len = %d", s.Len())
	}
	s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	s.Stop()
}

func TestNormalize(t *testing.T) {
	samples := []float32{0.1, -0.5, 0.25}
	if err := Normalize(samples); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	want := []float32{0.2, -1, 0.5}
	for i := range want {
		if d := samples[i] - want[i]; d > 1e-6 || d < -1e-6 {
			t.Fatalf("sample %d = %v, want %v", i, samples[i], want[i])
		}
	}
	if err := Normalize(make([]float32, 10)); !errors.Is(err, ErrSilentSegment) {
		t.Fatalf("expected ErrSilentSegment, got %v", err)
	}
}
