// ABOUTME: Bounded ring buffer between the stretch worker and the audio callback
// ABOUTME: Writers block for space; readers never block and zero-fill on underrun
package stretch

import (
	"errors"
	"sync"
)

var (
	// ErrRingReset is returned to a writer whose data was invalidated by Reset
	ErrRingReset = errors.New("ring buffer reset")

	// ErrRingClosed is returned once the ring is closed
	ErrRingClosed = errors.New("ring buffer closed")
)

// Ring is a fixed-capacity FIFO of float32 samples
type Ring struct {
	mu     sync.Mutex
	space  *sync.Cond
	buffer []float32
	read   int
	write  int
	count  int
	epoch  uint64
	closed bool

	// consumed counts samples read since the last Reset
	consumed int64
}

// NewRing creates a ring with the given capacity in samples
func NewRing(capacity int) *Ring {
	r := &Ring{buffer: make([]float32, capacity)}
	r.space = sync.NewCond(&r.mu)
	return r
}

// Epoch identifies the current generation of ring contents
func (r *Ring) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// Write appends all of p, waiting for space as needed. It fails without
// writing anything further if the ring moves past epoch or closes.
func (r *Ring) Write(p []float32, epoch uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(p) > 0 {
		for r.count == len(r.buffer) && !r.closed && r.epoch == epoch {
			r.space.Wait()
		}
		if r.closed {
			return ErrRingClosed
		}
		if r.epoch != epoch {
			return ErrRingReset
		}

		n := len(r.buffer) - r.count
		if n > len(p) {
			n = len(p)
		}
		for i := 0; i < n; i++ {
			r.buffer[r.write] = p[i]
			r.write = (r.write + 1) % len(r.buffer)
		}
		r.count += n
		p = p[n:]
	}
	return nil
}

// Read copies up to len(p) samples without blocking and returns the count
func (r *Ring) Read(p []float32) int {
	r.mu.Lock()
	n := r.count
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		p[i] = r.buffer[r.read]
		r.read = (r.read + 1) % len(r.buffer)
	}
	r.count -= n
	r.consumed += int64(n)
	r.mu.Unlock()

	if n > 0 {
		r.space.Signal()
	}
	return n
}

// Available returns the number of buffered samples
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Consumed returns how many samples were read since the last Reset
func (r *Ring) Consumed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumed
}

// Reset discards contents, starts a new epoch and wakes blocked writers
func (r *Ring) Reset() uint64 {
	r.mu.Lock()
	r.read, r.write, r.count = 0, 0, 0
	r.consumed = 0
	r.epoch++
	epoch := r.epoch
	r.mu.Unlock()

	r.space.Broadcast()
	return epoch
}

// Close wakes blocked writers and rejects further writes
func (r *Ring) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.space.Broadcast()
}
