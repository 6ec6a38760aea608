// ABOUTME: Channel playback status and the channel interface
// ABOUTME: Defines the state machine shared by every channel variant
package channel

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidState is returned for an operation the current state forbids
	ErrInvalidState = errors.New("invalid channel state")

	// ErrDisposed is returned for any operation after Close
	ErrDisposed = errors.New("channel disposed")
)

// Status is a channel's playback state
type Status int

const (
	StatusUninitialized Status = iota
	StatusReady
	StatusPlaying
	StatusPaused
	StatusStopped
	StatusFinished
	StatusReposition
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusFinished:
		return "finished"
	case StatusReposition:
		return "reposition"
	default:
		return "unknown"
	}
}

// Channel is a playable unit driven by the player
type Channel interface {
	// ID identifies the channel in logs and events
	ID() string

	// Initialize prepares audio and moves the channel to Ready
	Initialize(ctx context.Context) error

	Play() error
	Pause() error
	Stop() error

	// SkipTo moves playback to pos, clamped to [0, duration)
	SkipTo(pos time.Duration) error

	Status() Status
	Duration() time.Duration
	Position() time.Duration

	// SetPlaybackRate changes speed; useTempo keeps pitch
	SetPlaybackRate(rate float64, useTempo bool)
	SetVolume(volume float32)
	SetBalance(balance float32)

	// Finished delivers one value each time the channel reaches its end
	Finished() <-chan struct{}

	// Close detaches and releases the channel
	Close() error
}

// clampPosition bounds pos to [0, duration - one frame]
func clampPosition(pos, duration, frame time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	last := duration - frame
	if last < 0 {
		last = 0
	}
	if pos > last {
		return last
	}
	return pos
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
