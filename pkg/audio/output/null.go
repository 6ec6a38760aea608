// ABOUTME: Headless output that consumes audio in real time
// ABOUTME: Drives the pull source from a ticker when no device is available
package output

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/beatmix/beatmix/pkg/audio"
)

// Null pulls audio at the format's real-time rate and discards it
type Null struct {
	config Config

	mu     sync.Mutex
	src    io.Reader
	format audio.Format
	paused bool
	pulled int64

	errs chan error
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewNull creates a headless output
func NewNull(config Config) *Null {
	return &Null{config: config, errs: make(chan error, errorBuffer)}
}

// Open starts the pull loop
func (n *Null) Open(format audio.Format, src io.Reader) error {
	n.mu.Lock()
	if n.stop != nil {
		n.mu.Unlock()
		n.Close()
		n.mu.Lock()
	}
	n.src = src
	n.format = format
	n.paused = false
	n.stop = make(chan struct{})
	stop := n.stop
	n.mu.Unlock()

	n.wg.Add(1)
	go n.loop(stop)

	log.Printf("Headless output started: %dHz, %d channels", format.SampleRate, format.Channels)
	return nil
}

func (n *Null) loop(stop chan struct{}) {
	defer n.wg.Done()

	period := n.config.bufferDuration() / 4
	if period < time.Millisecond {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	n.mu.Lock()
	chunk := make([]byte, n.format.DurationToFrames(period)*4*n.format.Channels)
	n.mu.Unlock()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.mu.Lock()
			paused := n.paused
			src := n.src
			n.mu.Unlock()
			if paused {
				continue
			}

			read, err := src.Read(chunk)
			n.mu.Lock()
			n.pulled += int64(read)
			n.mu.Unlock()
			if err != nil {
				log.Printf("Headless output source error: %v", err)
				report(n.errs, fmt.Errorf("headless output source: %w", err))
				return
			}
		}
	}
}

// Pause stops pulling
func (n *Null) Pause() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop == nil {
		return ErrNotOpen
	}
	n.paused = true
	return nil
}

// Resume continues pulling
func (n *Null) Resume() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop == nil {
		return ErrNotOpen
	}
	n.paused = false
	return nil
}

// Errors reports a failing source
func (n *Null) Errors() <-chan error {
	return n.errs
}

// BytesPulled returns how many bytes were consumed from the source
func (n *Null) BytesPulled() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pulled
}

// Close stops the pull loop
func (n *Null) Close() error {
	n.mu.Lock()
	stop := n.stop
	n.stop = nil
	n.mu.Unlock()

	if stop != nil {
		close(stop)
		n.wg.Wait()
	}
	return nil
}
