// ABOUTME: Tests for streaming and event channels
// ABOUTME: Covers the state machine, seeking, completion and hit-sound scheduling
package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/beatmix/beatmix/internal/audiotest"
	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/beatmix/beatmix/pkg/audio/mixer"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type fakeSamples map[string]*audio.PCMBuffer

func (f fakeSamples) Sample(ctx context.Context, folder, name string) (*audio.PCMBuffer, error) {
	if buf, ok := f[name]; ok {
		return buf, nil
	}
	return nil, errors.New("not found")
}

type failingDecoder struct{}

func (failingDecoder) DecodeFile(ctx context.Context, path string) (*audio.PCMBuffer, error) {
	return nil, errors.New("broken file")
}

func frames(d time.Duration) int {
	return audio.Canonical.DurationToFrames(d)
}

// step runs one scan of the event clock
func step(c *EventChannel) bool {
	c.mu.Lock()
	gen := c.loopGen
	c.mu.Unlock()
	return c.tick(gen)
}

func newEventChannel(t *testing.T, m *mixer.Mixer, clock *fakeClock, elements []SoundElement, samples fakeSamples) *EventChannel {
	t.Helper()
	c := NewEventChannel(EventConfig{
		Mixer:    m,
		Samples:  samples,
		Elements: elements,
		Volume:   1,
		Tick:     time.Hour,
		Now:      clock.Now,
	})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func newStreamChannel(t *testing.T, m *mixer.Mixer, d time.Duration) *StreamChannel {
	t.Helper()
	c := NewStreamChannel(StreamConfig{
		Mixer:  m,
		Buffer: audiotest.Buffer(frames(d), audiotest.Constant(0.25)),
		Volume: 1,
	})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusUninitialized, "uninitialized"},
		{StatusReady, "ready"},
		{StatusPlaying, "playing"},
		{StatusPaused, "paused"},
		{StatusStopped, "stopped"},
		{StatusFinished, "finished"},
		{StatusReposition, "reposition"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestClampPosition(t *testing.T) {
	frame := time.Millisecond
	tests := []struct {
		name     string
		pos      time.Duration
		duration time.Duration
		want     time.Duration
	}{
		{"negative", -time.Second, 10 * time.Second, 0},
		{"inside", 3 * time.Second, 10 * time.Second, 3 * time.Second},
		{"at end", 10 * time.Second, 10 * time.Second, 10*time.Second - frame},
		{"past end", 11 * time.Second, 10 * time.Second, 10*time.Second - frame},
		{"empty", time.Second, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampPosition(tt.pos, tt.duration, frame); got != tt.want {
				t.Errorf("clampPosition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStreamUninitializedOperations(t *testing.T) {
	c := NewStreamChannel(StreamConfig{Mixer: mixer.New(mixer.Config{})})

	if err := c.Play(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Play before Initialize = %v, want ErrInvalidState", err)
	}
	if err := c.SkipTo(time.Second); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SkipTo before Initialize = %v, want ErrInvalidState", err)
	}
	if c.Position() != 0 || c.Duration() != 0 {
		t.Error("uninitialized channel should report zero position and duration")
	}

	c.Close()
	if err := c.Play(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Play after Close = %v, want ErrDisposed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestStreamInitializeDecodeError(t *testing.T) {
	c := NewStreamChannel(StreamConfig{
		Mixer:   mixer.New(mixer.Config{}),
		Path:    "/songs/missing.mp3",
		Decoder: failingDecoder{},
	})
	defer c.Close()

	if err := c.Initialize(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
	if c.Status() != StatusUninitialized {
		t.Errorf("status = %v, want uninitialized", c.Status())
	}
}

func TestStreamPlayTwiceSingleInput(t *testing.T) {
	m := mixer.New(mixer.Config{})
	c := newStreamChannel(t, m, time.Second)

	if err := c.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := c.Play(); err != nil {
		t.Fatalf("second Play failed: %v", err)
	}
	if got := m.Len(); got != 1 {
		t.Errorf("mixer inputs = %d, want 1", got)
	}

	c.Pause()
	if got := m.Len(); got != 0 {
		t.Errorf("mixer inputs after pause = %d, want 0", got)
	}
	if c.Status() != StatusPaused {
		t.Errorf("status = %v, want paused", c.Status())
	}
}

func TestStreamSkipToClamps(t *testing.T) {
	m := mixer.New(mixer.Config{})
	c := newStreamChannel(t, m, 10*time.Second)

	if err := c.SkipTo(4 * time.Second); err != nil {
		t.Fatalf("SkipTo failed: %v", err)
	}
	if got := c.Position(); got < 4*time.Second-time.Millisecond || got > 4*time.Second {
		t.Errorf("position = %v, want 4s", got)
	}
	if c.Status() != StatusReady {
		t.Errorf("status = %v, want ready", c.Status())
	}

	c.SkipTo(c.Duration() + time.Second)
	want := audio.Canonical.FramesToDuration(frames(10*time.Second) - 1)
	if got := c.Position(); got < want-time.Microsecond || got > want+time.Microsecond {
		t.Errorf("position = %v, want %v", got, want)
	}

	c.SkipTo(-time.Second)
	if got := c.Position(); got != 0 {
		t.Errorf("position = %v, want 0", got)
	}
}

func TestStreamStopRewinds(t *testing.T) {
	m := mixer.New(mixer.Config{})
	c := newStreamChannel(t, m, time.Second)

	c.Play()
	c.SkipTo(500 * time.Millisecond)
	if c.Status() != StatusPlaying {
		t.Errorf("status after seek while playing = %v, want playing", c.Status())
	}

	c.Stop()
	if c.Status() != StatusStopped {
		t.Errorf("status = %v, want stopped", c.Status())
	}
	if c.Position() != 0 {
		t.Errorf("position = %v, want 0", c.Position())
	}
	if m.Len() != 0 {
		t.Errorf("mixer inputs = %d, want 0", m.Len())
	}
}

func TestStreamFinishesOnce(t *testing.T) {
	m := mixer.New(mixer.Config{})
	c := newStreamChannel(t, m, 100*time.Millisecond)

	if err := c.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	dst := make([]float32, 512)
	deadline := time.After(5 * time.Second)
	finished := false
	for !finished {
		select {
		case <-c.Finished():
			finished = true
		case <-deadline:
			t.Fatal("channel never finished")
		default:
			m.Mix(dst)
			time.Sleep(time.Millisecond)
		}
	}

	if c.Status() != StatusFinished {
		t.Errorf("status = %v, want finished", c.Status())
	}
	if m.Len() != 0 {
		t.Errorf("mixer inputs = %d, want 0", m.Len())
	}

	for i := 0; i < 20; i++ {
		m.Mix(dst)
	}
	select {
	case <-c.Finished():
		t.Error("finished delivered twice")
	case <-time.After(20 * time.Millisecond):
	}

	// Play after the end restarts
	if err := c.Play(); err != nil {
		t.Fatalf("Play after finish failed: %v", err)
	}
	if c.Status() != StatusPlaying {
		t.Errorf("status = %v, want playing", c.Status())
	}
}

func TestStreamIgnoresEndNotificationAfterSkip(t *testing.T) {
	m := mixer.New(mixer.Config{})
	c := newStreamChannel(t, m, 100*time.Millisecond)

	if err := c.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	dst := make([]float32, 512)
	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case <-c.Finished():
			done = true
		case <-deadline:
			t.Fatal("channel never finished")
		default:
			m.Mix(dst)
			time.Sleep(time.Millisecond)
		}
	}

	if err := c.Play(); err != nil {
		t.Fatalf("Play after finish failed: %v", err)
	}
	if err := c.SkipTo(20 * time.Millisecond); err != nil {
		t.Fatalf("SkipTo failed: %v", err)
	}

	// An end notification from before the skip arrives late
	c.finish(c.proc)

	if c.Status() != StatusPlaying {
		t.Errorf("status = %v, want playing", c.Status())
	}
	if m.Len() != 1 {
		t.Errorf("mixer inputs = %d, want 1", m.Len())
	}
	select {
	case <-c.Finished():
		t.Error("stale end notification finished the channel")
	default:
	}
}

func TestEventForceTrackCutsPrevious(t *testing.T) {
	long := audiotest.Buffer(frames(200*time.Millisecond), audiotest.Constant(0.1))
	samples := fakeSamples{"drum-hitnormal.wav": long}

	tests := []struct {
		name  string
		track int
		want  int
	}{
		{"shared track", 1, 1},
		{"free voices", 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mixer.New(mixer.Config{})
			clock := newFakeClock()
			c := newEventChannel(t, m, clock, []SoundElement{
				{Offset: 100 * time.Millisecond, Sample: "drum-hitnormal.wav", Volume: 1, Track: tt.track},
				{Offset: 150 * time.Millisecond, Sample: "drum-hitnormal.wav", Volume: 1, Track: tt.track},
			}, samples)

			c.Play()
			clock.Advance(120 * time.Millisecond)
			step(c)
			if got := m.Len(); got != 1 {
				t.Fatalf("voices after first element = %d, want 1", got)
			}

			clock.Advance(40 * time.Millisecond)
			step(c)
			if got := m.Len(); got != tt.want {
				t.Errorf("voices after second element = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEventBackwardSeekRefires(t *testing.T) {
	short := audiotest.Buffer(frames(100*time.Millisecond), audiotest.Constant(0.1))
	m := mixer.New(mixer.Config{})
	clock := newFakeClock()
	c := newEventChannel(t, m, clock, []SoundElement{
		{Offset: 200 * time.Millisecond, Sample: "soft-hitclap.wav", Volume: 1},
		{Offset: 100 * time.Millisecond, Sample: "soft-hitclap.wav", Volume: 1},
	}, fakeSamples{"soft-hitclap.wav": short})

	c.Play()
	clock.Advance(250 * time.Millisecond)
	step(c)
	if got := m.Len(); got != 2 {
		t.Fatalf("fired = %d, want 2", got)
	}

	// Stepping again must not refire
	step(c)
	if got := m.Len(); got != 2 {
		t.Fatalf("fired after rescan = %d, want 2", got)
	}

	if err := c.SkipTo(50 * time.Millisecond); err != nil {
		t.Fatalf("SkipTo failed: %v", err)
	}
	if got := m.Len(); got != 0 {
		t.Fatalf("voices after seek = %d, want 0", got)
	}

	clock.Advance(200 * time.Millisecond)
	step(c)
	if got := m.Len(); got != 2 {
		t.Errorf("refired = %d, want 2", got)
	}
}

func TestEventForwardSeekSkipsEarlier(t *testing.T) {
	short := audiotest.Buffer(frames(10*time.Millisecond), audiotest.Constant(0.1))
	m := mixer.New(mixer.Config{})
	clock := newFakeClock()
	c := newEventChannel(t, m, clock, []SoundElement{
		{Offset: 100 * time.Millisecond, Sample: "s.wav", Volume: 1},
		{Offset: 300 * time.Millisecond, Sample: "s.wav", Volume: 1},
	}, fakeSamples{"s.wav": short})

	c.SkipTo(200 * time.Millisecond)
	c.Play()
	clock.Advance(50 * time.Millisecond)
	step(c)
	if got := m.Len(); got != 0 {
		t.Errorf("fired = %d, want 0", got)
	}
	clock.Advance(60 * time.Millisecond)
	step(c)
	if got := m.Len(); got != 1 {
		t.Errorf("fired = %d, want 1", got)
	}
}

func TestEventFinishesOnce(t *testing.T) {
	sample := audiotest.Buffer(frames(100*time.Millisecond), audiotest.Constant(0.1))
	m := mixer.New(mixer.Config{})
	clock := newFakeClock()
	c := newEventChannel(t, m, clock, []SoundElement{
		{Offset: 0, Sample: "s.wav", Volume: 1},
	}, fakeSamples{"s.wav": sample})

	if got := c.Duration(); got != sample.Duration() {
		t.Errorf("duration = %v, want %v", got, sample.Duration())
	}

	c.Play()
	clock.Advance(150 * time.Millisecond)
	if step(c) {
		t.Error("tick should stop at the end")
	}
	if c.Status() != StatusFinished {
		t.Errorf("status = %v, want finished", c.Status())
	}

	select {
	case <-c.Finished():
	default:
		t.Fatal("expected finished notification")
	}

	clock.Advance(time.Second)
	step(c)
	select {
	case <-c.Finished():
		t.Error("finished delivered twice")
	default:
	}
}

func TestEventClockFollowsRateAndPause(t *testing.T) {
	m := mixer.New(mixer.Config{})
	clock := newFakeClock()
	c := NewEventChannel(EventConfig{
		Mixer:       m,
		Samples:     fakeSamples{},
		MinDuration: 10 * time.Second,
		Tick:        time.Hour,
		Now:         clock.Now,
	})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer c.Close()

	c.Play()
	clock.Advance(100 * time.Millisecond)
	if got := c.Position(); got != 100*time.Millisecond {
		t.Errorf("position = %v, want 100ms", got)
	}

	c.SetPlaybackRate(2, true)
	clock.Advance(100 * time.Millisecond)
	if got := c.Position(); got != 300*time.Millisecond {
		t.Errorf("position at 2x = %v, want 300ms", got)
	}

	c.Pause()
	clock.Advance(time.Second)
	if got := c.Position(); got != 300*time.Millisecond {
		t.Errorf("position while paused = %v, want 300ms", got)
	}

	c.Stop()
	if got := c.Position(); got != 0 {
		t.Errorf("position after stop = %v, want 0", got)
	}
}

func TestEventMissingSampleSkipped(t *testing.T) {
	m := mixer.New(mixer.Config{})
	clock := newFakeClock()
	c := newEventChannel(t, m, clock, []SoundElement{
		{Offset: 10 * time.Millisecond, Sample: "missing.wav", Volume: 1},
	}, fakeSamples{})

	c.Play()
	clock.Advance(20 * time.Millisecond)
	step(c)
	if got := m.Len(); got != 0 {
		t.Errorf("voices = %d, want 0", got)
	}
}

func TestEventDisposed(t *testing.T) {
	m := mixer.New(mixer.Config{})
	c := newEventChannel(t, m, newFakeClock(), nil, fakeSamples{})
	c.Close()

	if err := c.Play(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Play after Close = %v, want ErrDisposed", err)
	}
	if err := c.Initialize(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("Initialize after Close = %v, want ErrDisposed", err)
	}
}
