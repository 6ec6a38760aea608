// ABOUTME: Oto-based audio output implementation
// ABOUTME: Pulls float32 PCM from a reader into the system device via oto
package output

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/beatmix/beatmix/pkg/audio"
)

// errPollInterval is how often the player is checked for write errors
const errPollInterval = 100 * time.Millisecond

// Oto output implementation using oto library
type Oto struct {
	config Config

	mu     sync.Mutex
	otoCtx *oto.Context
	player *oto.Player
	format audio.Format
	paused bool
	ready  bool

	errs chan error
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewOto creates a new Oto output
func NewOto(config Config) *Oto {
	return &Oto{
		config: config,
		errs:   make(chan error, errorBuffer),
	}
}

// Open initializes the output device and starts pulling from src
func (o *Oto) Open(format audio.Format, src io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !format.IsValid() {
		return fmt.Errorf("invalid output format %+v", format)
	}

	// oto allows one context per process; reuse it for the same format
	if o.otoCtx != nil && o.format != format {
		log.Printf("Warning: format change (%dHz %dch -> %dHz %dch) not supported by oto, keeping existing context",
			o.format.SampleRate, o.format.Channels, format.SampleRate, format.Channels)
	}

	if o.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   o.config.bufferDuration(),
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		<-readyChan

		o.otoCtx = ctx
		o.format = format
	}

	o.stopWatch()
	if o.player != nil {
		o.player.Close()
	}

	o.player = o.otoCtx.NewPlayer(src)
	bytesPerFrame := 4 * o.format.Channels
	o.player.SetBufferSize(o.format.DurationToFrames(o.config.bufferDuration()) * bytesPerFrame)
	o.player.Play()
	o.ready = true
	o.paused = false

	o.stop = make(chan struct{})
	o.wg.Add(1)
	go o.watch(o.player, o.stop)

	log.Printf("Audio output initialized: %dHz, %d channels, buffer %v",
		o.format.SampleRate, o.format.Channels, o.config.bufferDuration())

	return nil
}

// Pause stops the device from pulling
func (o *Oto) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return ErrNotOpen
	}
	if o.paused {
		return nil
	}
	o.player.Pause()
	o.paused = true
	return nil
}

// Resume continues pulling after Pause
func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return ErrNotOpen
	}
	if !o.paused {
		return nil
	}
	o.player.Play()
	o.paused = false
	return nil
}

// Errors reports device write failures
func (o *Oto) Errors() <-chan error {
	return o.errs
}

// watch reports the first error the player records. oto keeps the error
// and stops pulling, so one report per player is enough.
func (o *Oto) watch(player *oto.Player, stop chan struct{}) {
	defer o.wg.Done()

	ticker := time.NewTicker(errPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := player.Err(); err != nil {
				log.Printf("Audio device error: %v", err)
				report(o.errs, fmt.Errorf("audio device: %w", err))
				return
			}
		}
	}
}

// stopWatch ends the error watcher; o.mu must be held
func (o *Oto) stopWatch() {
	if o.stop == nil {
		return
	}
	close(o.stop)
	o.stop = nil
	o.wg.Wait()
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopWatch()

	var err error
	if o.player != nil {
		err = o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		if serr := o.otoCtx.Suspend(); serr != nil && err == nil {
			err = serr
		}
	}
	o.ready = false
	return err
}
