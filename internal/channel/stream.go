// ABOUTME: Streaming channel for the main music track
// ABOUTME: Runs decoded audio through the stretch processor into the mixer
package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/beatmix/beatmix/pkg/audio/mixer"
	"github.com/beatmix/beatmix/pkg/audio/stretch"
)

// FileDecoder decodes a file into canonical PCM
type FileDecoder interface {
	DecodeFile(ctx context.Context, path string) (*audio.PCMBuffer, error)
}

// StreamConfig holds streaming channel configuration
type StreamConfig struct {
	ID    string
	Mixer *mixer.Mixer

	// Path is decoded on Initialize unless Buffer is set
	Path    string
	Decoder FileDecoder
	Buffer  *audio.PCMBuffer

	Volume  float32
	Balance float32

	// BufferFrames is the stretch ring capacity; zero uses the default
	BufferFrames int
}

// StreamChannel plays one continuous track
type StreamChannel struct {
	config StreamConfig

	mu       sync.Mutex
	status   Status
	buf      *audio.PCMBuffer
	proc     *stretch.Processor
	handle   *mixer.Handle
	volume   float32
	balance  float32
	settings stretch.Settings
	disposed bool

	finished chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

var _ Channel = (*StreamChannel)(nil)

// NewStreamChannel creates an uninitialized streaming channel
func NewStreamChannel(config StreamConfig) *StreamChannel {
	if config.ID == "" {
		config.ID = "music"
	}
	return &StreamChannel{
		config:   config,
		status:   StatusUninitialized,
		volume:   config.Volume,
		balance:  config.Balance,
		settings: stretch.Unity,
		finished: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// ID returns the channel id
func (c *StreamChannel) ID() string {
	return c.config.ID
}

// Initialize decodes the track and starts the stretch worker
func (c *StreamChannel) Initialize(ctx context.Context) error {
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

	buf := c.config.Buffer
	if buf == nil {
		if c.config.Decoder == nil {
			return fmt.Errorf("%w: no decoder for %s", ErrInvalidState, c.config.Path)
		}
		var err error
		buf, err = c.config.Decoder.DecodeFile(ctx, c.config.Path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", c.config.Path, err)
		}
	}

	format := buf.Format()
	proc := stretch.NewProcessor(audio.NewCursor(buf), stretch.Config{
		Channels:     format.Channels,
		BufferFrames: c.config.BufferFrames,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}

	c.buf = buf
	c.proc = proc
	proc.SetSettings(c.settings)
	proc.Start()
	c.status = StatusReady

	c.wg.Add(1)
	go c.watch(proc)

	log.Printf("Channel %s ready: %v", c.config.ID, buf.Duration())
	return nil
}

// watch marks the channel finished when the processor plays out
func (c *StreamChannel) watch(proc *stretch.Processor) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case <-proc.Finished():
			c.finish(proc)
		}
	}
}

// finish marks a playing channel finished if proc is still at its end. A
// notification raced by SkipTo finds the processor repositioned and is
// dropped.
func (c *StreamChannel) finish(proc *stretch.Processor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusPlaying || c.proc != proc || !proc.AtEnd() {
		return
	}
	c.config.Mixer.RemoveInput(c.handle)
	c.handle = nil
	c.status = StatusFinished
	notify(c.finished)
}

func (c *StreamChannel) check() error {
	if c.disposed {
		return ErrDisposed
	}
	if c.status == StatusUninitialized {
		return fmt.Errorf("%w: %s not initialized", ErrInvalidState, c.config.ID)
	}
	return nil
}

// Play attaches the channel to the mixer. Playing again is a no-op; playing
// after the end restarts from the beginning.
func (c *StreamChannel) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return err
	}
	if c.status == StatusPlaying {
		return nil
	}
	if c.status == StatusFinished {
		c.proc.Seek(0)
		drain(c.finished)
	}

	h, err := c.config.Mixer.AddInput(c.proc, mixer.Controls{Volume: c.volume, Balance: c.balance})
	if err != nil && !errors.Is(err, mixer.ErrDuplicateInput) {
		return fmt.Errorf("failed to attach %s: %w", c.config.ID, err)
	}
	if h != nil {
		c.handle = h
	}
	c.status = StatusPlaying
	return nil
}

// Pause detaches the channel and keeps its position
func (c *StreamChannel) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return err
	}
	if c.status != StatusPlaying {
		return nil
	}
	c.config.Mixer.RemoveInput(c.handle)
	c.handle = nil
	c.status = StatusPaused
	return nil
}

// Stop detaches the channel and rewinds to zero
func (c *StreamChannel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return err
	}
	c.config.Mixer.RemoveInput(c.handle)
	c.handle = nil
	c.proc.Seek(0)
	drain(c.finished)
	c.status = StatusStopped
	return nil
}

// SkipTo moves playback to pos. The prior state is kept; a finished
// channel becomes paused at the new position.
func (c *StreamChannel) SkipTo(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return err
	}

	format := c.buf.Format()
	pos = clampPosition(pos, c.buf.Duration(), format.FramesToDuration(1))

	prior := c.status
	c.status = StatusReposition
	c.proc.Seek(format.DurationToFrames(pos))
	drain(c.finished)

	switch prior {
	case StatusFinished:
		c.status = StatusPaused
	default:
		c.status = prior
	}
	return nil
}

// Status returns the playback state
func (c *StreamChannel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Duration returns the track length
func (c *StreamChannel) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf == nil {
		return 0
	}
	return c.buf.Duration()
}

// Position returns the source position currently heard
func (c *StreamChannel) Position() time.Duration {
	c.mu.Lock()
	proc, buf := c.proc, c.buf
	c.mu.Unlock()

	if proc == nil {
		return 0
	}
	frames := proc.Position()
	return time.Duration(frames * float64(time.Second) / float64(buf.Format().SampleRate))
}

// SetPlaybackRate queues a speed change on the stretch processor
func (c *StreamChannel) SetPlaybackRate(rate float64, useTempo bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings = stretch.ForPlaybackRate(rate, useTempo)
	if c.proc != nil {
		c.proc.SetSettings(c.settings)
	}
}

// SetVolume sets the track volume
func (c *StreamChannel) SetVolume(volume float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = volume
	if c.handle != nil {
		c.handle.SetVolume(volume)
	}
}

// SetBalance sets the track balance
func (c *StreamChannel) SetBalance(balance float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.balance = balance
	if c.handle != nil {
		c.handle.SetBalance(balance)
	}
}

// Finished delivers one value when the track plays out
func (c *StreamChannel) Finished() <-chan struct{} {
	return c.finished
}

// Close detaches the channel and stops its worker
func (c *StreamChannel) Close() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.config.Mixer.RemoveInput(c.handle)
	c.handle = nil
	proc := c.proc
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
	if proc != nil {
		proc.Close()
	}
	return nil
}
