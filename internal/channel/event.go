// ABOUTME: Event channel firing one-shot samples on a timeline
// ABOUTME: Scans sound elements against a rate-scaled clock and mixes voices
package channel

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/beatmix/beatmix/pkg/audio/mixer"
	"github.com/beatmix/beatmix/pkg/audio/stretch"
)

// SoundElement is one sample triggered at an offset. Elements sharing a
// non-zero Track never overlap: a new one cuts the previous one off.
type SoundElement struct {
	Offset  time.Duration
	Sample  string
	Volume  float32
	Balance float32
	Track   int
}

// SampleSource resolves a sample name for a folder
type SampleSource interface {
	Sample(ctx context.Context, folder, name string) (*audio.PCMBuffer, error)
}

// Clock returns the current time
type Clock func() time.Time

// EventConfig holds event channel configuration
type EventConfig struct {
	ID       string
	Mixer    *mixer.Mixer
	Samples  SampleSource
	Folder   string
	Elements []SoundElement

	Volume float32

	// BalanceFactor scales every element's balance; zero centers all voices
	BalanceFactor float32

	// MinDuration extends the channel past its last sample
	MinDuration time.Duration

	// Tick is the scan interval; zero means 5ms
	Tick time.Duration

	// Now is the clock; nil means time.Now
	Now Clock
}

type activeVoice struct {
	voice  *mixer.Voice
	handle *mixer.Handle
}

// EventChannel fires sound elements as its clock passes their offsets
type EventChannel struct {
	config   EventConfig
	elements []SoundElement
	gain     *mixer.Gain

	mu       sync.Mutex
	status   Status
	samples  map[string]*audio.PCMBuffer
	duration time.Duration
	cursor   int
	tracks   map[int]*activeVoice
	voices   []*activeVoice
	disposed bool

	// Position is anchorPos plus wall time since anchorTime scaled by speed
	anchorPos  time.Duration
	anchorTime time.Time
	speed      float64
	loopGen    uint64

	finished chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

var _ Channel = (*EventChannel)(nil)

// NewEventChannel creates an uninitialized event channel
func NewEventChannel(config EventConfig) *EventChannel {
	if config.ID == "" {
		config.ID = "hitsounds"
	}
	if config.Tick <= 0 {
		config.Tick = 5 * time.Millisecond
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	elements := make([]SoundElement, len(config.Elements))
	copy(elements, config.Elements)
	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].Offset < elements[j].Offset
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &EventChannel{
		config:   config,
		elements: elements,
		gain:     mixer.NewGain(config.Volume),
		status:   StatusUninitialized,
		tracks:   make(map[int]*activeVoice),
		speed:    1,
		finished: make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the channel id
func (c *EventChannel) ID() string {
	return c.config.ID
}

// Initialize resolves every referenced sample. Unplayable samples are
// logged and skipped at fire time.
func (c *EventChannel) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.status != StatusUninitialized {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	samples := make(map[string]*audio.PCMBuffer)
	for _, e := range c.elements {
		if _, seen := samples[e.Sample]; seen {
			continue
		}
		buf, err := c.config.Samples.Sample(ctx, c.config.Folder, e.Sample)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("failed to load samples for %s: %w", c.config.ID, ctxErr)
		}
		if err != nil {
			log.Printf("Channel %s: sample %s unplayable: %v", c.config.ID, e.Sample, err)
		}
		samples[e.Sample] = buf
	}

	duration := c.config.MinDuration
	for _, e := range c.elements {
		end := e.Offset
		if buf := samples[e.Sample]; buf != nil {
			end += buf.Duration()
		}
		if end > duration {
			duration = end
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.samples = samples
	c.duration = duration
	c.status = StatusReady

	log.Printf("Channel %s ready: %d elements, %d samples, %v", c.config.ID, len(c.elements), len(samples), duration)
	return nil
}

func (c *EventChannel) check() error {
	if c.disposed {
		return ErrDisposed
	}
	if c.status == StatusUninitialized {
		return fmt.Errorf("%w: %s not initialized", ErrInvalidState, c.config.ID)
	}
	return nil
}

// positionLocked computes the clock position
func (c *EventChannel) positionLocked() time.Duration {
	pos := c.anchorPos
	if c.status == StatusPlaying {
		elapsed := c.config.Now().Sub(c.anchorTime)
		pos += time.Duration(float64(elapsed) * c.speed)
	}
	if pos > c.duration {
		pos = c.duration
	}
	return pos
}

// reanchor freezes the current position as the new anchor
func (c *EventChannel) reanchor() {
	c.anchorPos = c.positionLocked()
	c.anchorTime = c.config.Now()
}

// Play starts the clock. Playing again is a no-op; playing after the end
// restarts from the beginning.
func (c *EventChannel) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return err
	}
	if c.status == StatusPlaying {
		return nil
	}
	if c.status == StatusFinished {
		c.seekLocked(0)
		drain(c.finished)
	}

	c.anchorTime = c.config.Now()
	c.status = StatusPlaying
	c.loopGen++
	go c.loop(c.loopGen)
	return nil
}

// Pause freezes the clock and silences ringing voices
func (c *EventChannel) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return err
	}
	if c.status != StatusPlaying {
		return nil
	}
	c.reanchor()
	c.status = StatusPaused
	c.loopGen++
	c.silence()
	return nil
}

// Stop rewinds to zero
func (c *EventChannel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return err
	}
	c.loopGen++
	c.silence()
	c.seekLocked(0)
	drain(c.finished)
	c.status = StatusStopped
	return nil
}

// SkipTo moves the clock. Elements at or after pos fire again, so a
// backward seek replays earlier elements.
func (c *EventChannel) SkipTo(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return err
	}

	prior := c.status
	c.status = StatusReposition
	c.silence()
	c.seekLocked(clampPosition(pos, c.duration, audio.Canonical.FramesToDuration(1)))
	drain(c.finished)

	switch prior {
	case StatusFinished:
		c.status = StatusPaused
	case StatusPlaying:
		c.status = StatusPlaying
		c.loopGen++
		go c.loop(c.loopGen)
	default:
		c.status = prior
	}
	return nil
}

func (c *EventChannel) seekLocked(pos time.Duration) {
	c.anchorPos = pos
	c.anchorTime = c.config.Now()
	c.cursor = sort.Search(len(c.elements), func(i int) bool {
		return c.elements[i].Offset >= pos
	})
}

// silence stops every ringing voice
func (c *EventChannel) silence() {
	for _, v := range c.voices {
		v.voice.Stop()
		c.config.Mixer.RemoveInput(v.handle)
	}
	c.voices = c.voices[:0]
	clear(c.tracks)
}

func (c *EventChannel) loop(gen uint64) {
	ticker := time.NewTicker(c.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.tick(gen) {
				return
			}
		}
	}
}

// tick fires due elements and detects the end. It returns false once the
// loop generation is stale.
func (c *EventChannel) tick(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.loopGen || c.status != StatusPlaying {
		return false
	}

	pos := c.positionLocked()
	c.fireUntil(pos)

	if pos >= c.duration {
		c.reanchor()
		c.status = StatusFinished
		c.loopGen++
		notify(c.finished)
		return false
	}
	return true
}

// fireUntil triggers every element with an offset at or before pos
func (c *EventChannel) fireUntil(pos time.Duration) {
	for c.cursor < len(c.elements) && c.elements[c.cursor].Offset <= pos {
		c.fire(c.elements[c.cursor])
		c.cursor++
	}
}

func (c *EventChannel) fire(e SoundElement) {
	buf := c.samples[e.Sample]
	if buf == nil {
		return
	}

	// Drop finished voices
	live := c.voices[:0]
	for _, v := range c.voices {
		if v.handle.Active() {
			live = append(live, v)
		}
	}
	c.voices = live

	if e.Track != 0 {
		if prev := c.tracks[e.Track]; prev != nil {
			prev.voice.Stop()
			c.config.Mixer.RemoveInput(prev.handle)
		}
	}

	v := mixer.NewVoice(buf)
	h, err := c.config.Mixer.AddInput(v, mixer.Controls{
		Volume:  e.Volume,
		Balance: e.Balance * c.config.BalanceFactor,
		Group:   c.gain,
	})
	if err != nil {
		log.Printf("Channel %s: failed to fire %s: %v", c.config.ID, e.Sample, err)
		return
	}

	av := &activeVoice{voice: v, handle: h}
	c.voices = append(c.voices, av)
	if e.Track != 0 {
		c.tracks[e.Track] = av
	}
}

// Status returns the playback state
func (c *EventChannel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Duration returns the end of the last sample
func (c *EventChannel) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Position returns the clock position
func (c *EventChannel) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

// SetPlaybackRate scales the clock. Samples themselves play unmodified.
func (c *EventChannel) SetPlaybackRate(rate float64, useTempo bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reanchor()
	c.speed = stretch.ForPlaybackRate(rate, useTempo).Speed()
}

// SetVolume sets the volume shared by all voices of this channel
func (c *EventChannel) SetVolume(volume float32) {
	c.gain.SetVolume(volume)
}

// SetBalance sets the factor applied to element balances
func (c *EventChannel) SetBalance(balance float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.BalanceFactor = balance
}

// Finished delivers one value when the clock passes the last sample
func (c *EventChannel) Finished() <-chan struct{} {
	return c.finished
}

// Close silences the channel and stops its clock
func (c *EventChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return nil
	}
	c.disposed = true
	c.loopGen++
	c.silence()
	c.cancel()
	return nil
}
