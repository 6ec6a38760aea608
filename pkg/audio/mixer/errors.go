// ABOUTME: Mixer error values
// ABOUTME: Sentinel errors for graph mutations and realtime faults
package mixer

import "errors"

var (
	// ErrDuplicateInput is returned when a source is already being mixed
	ErrDuplicateInput = errors.New("source already in mixer")

	// ErrClosed is returned for mutations after Close
	ErrClosed = errors.New("mixer closed")

	// ErrSourcePanic wraps a panic recovered while reading a source
	ErrSourcePanic = errors.New("source panicked during mix")
)
