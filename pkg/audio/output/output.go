// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for device and headless playback backends
package output

import (
	"errors"
	"io"
	"time"

	"github.com/beatmix/beatmix/pkg/audio"
)

// ErrDeviceUnavailable is returned when no audio device could be opened
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// ErrNotOpen is returned by transport calls before Open
var ErrNotOpen = errors.New("output not open")

// Output represents an audio output device
type Output interface {
	// Open starts pulling float32 LE frames in format from src
	Open(format audio.Format, src io.Reader) error

	// Pause suspends pulling without releasing the device
	Pause() error

	// Resume continues pulling after Pause
	Resume() error

	// Errors reports faults raised after Open, such as a failed device write
	// or a failing source. Reports are dropped when nobody drains them.
	Errors() <-chan error

	// Close releases output resources
	Close() error
}

// Config holds output configuration
type Config struct {
	// BufferDuration is the device-side buffer; smaller means lower latency
	BufferDuration time.Duration
}

func (c Config) bufferDuration() time.Duration {
	if c.BufferDuration <= 0 {
		return 40 * time.Millisecond
	}
	return c.BufferDuration
}

// errorBuffer is the capacity of an output's error channel
const errorBuffer = 4

// report sends err without blocking
func report(errs chan error, err error) {
	select {
	case errs <- err:
	default:
	}
}
