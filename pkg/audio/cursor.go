// ABOUTME: Sequential reader over an immutable PCM buffer
// ABOUTME: Provides frame-accurate seeking for streaming channels
package audio

import "io"

// Cursor reads a PCMBuffer from a movable frame position. A Cursor is not
// safe for concurrent use; the buffer it reads is.
type Cursor struct {
	buf *PCMBuffer
	pos int
}

// NewCursor starts reading buf at frame 0
func NewCursor(buf *PCMBuffer) *Cursor {
	return &Cursor{buf: buf}
}

// Read copies interleaved samples into dst and returns the sample count.
// It returns io.EOF once the end is reached and nothing was copied.
func (c *Cursor) Read(dst []float32) (int, error) {
	ch := c.buf.format.Channels
	start := c.pos * ch
	if start >= len(c.buf.samples) {
		return 0, io.EOF
	}

	n := copy(dst[:len(dst)-len(dst)%ch], c.buf.samples[start:])
	c.pos += n / ch
	return n, nil
}

// Seek moves to frame, clamped to [0, Frames()]
func (c *Cursor) Seek(frame int) error {
	if frame < 0 {
		frame = 0
	}
	if end := c.buf.Frames(); frame > end {
		frame = end
	}
	c.pos = frame
	return nil
}

// Position returns the next frame to be read
func (c *Cursor) Position() int {
	return c.pos
}

// Frames returns the total frame count
func (c *Cursor) Frames() int {
	return c.buf.Frames()
}

// Format returns the underlying buffer format
func (c *Cursor) Format() Format {
	return c.buf.format
}
