// ABOUTME: One-shot voice over a decoded buffer
// ABOUTME: Plays a sample once and reports when it has ended
package mixer

import (
	"sync/atomic"

	"github.com/beatmix/beatmix/pkg/audio"
)

// Voice plays a PCM buffer once. It is safe to Stop from any goroutine
// while the mixer reads it.
type Voice struct {
	samples []float32
	pos     atomic.Int64
	stopped atomic.Bool
}

// NewVoice creates a voice over buf. The buffer is shared, not copied.
func NewVoice(buf *audio.PCMBuffer) *Voice {
	v := &Voice{}
	if buf != nil {
		v.samples = buf.Samples()
	}
	return v
}

// Read implements Source
func (v *Voice) Read(dst []float32) int {
	if v.stopped.Load() {
		return 0
	}
	pos := v.pos.Load()
	if pos >= int64(len(v.samples)) {
		return 0
	}
	n := copy(dst, v.samples[pos:])
	v.pos.Store(pos + int64(n))
	return n
}

// Ended implements Ender
func (v *Voice) Ended() bool {
	return v.stopped.Load() || v.pos.Load() >= int64(len(v.samples))
}

// Stop silences the voice immediately
func (v *Voice) Stop() {
	v.stopped.Store(true)
}
