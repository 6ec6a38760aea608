// ABOUTME: Lock-free gain and balance controls
// ABOUTME: Float values stored as atomic bits so the audio callback can read them
package mixer

import (
	"math"
	"sync/atomic"
)

// atomicFloat is a float32 safe for concurrent load and store
type atomicFloat struct {
	bits atomic.Uint32
}

func (f *atomicFloat) Load() float32 {
	return math.Float32frombits(f.bits.Load())
}

func (f *atomicFloat) Store(v float32) {
	f.bits.Store(math.Float32bits(v))
}

// Gain is a volume shared by several inputs, such as every hit-sound voice
// of one channel
type Gain struct {
	volume atomicFloat
}

// NewGain creates a gain at the given volume
func NewGain(volume float32) *Gain {
	g := &Gain{}
	g.SetVolume(volume)
	return g
}

// SetVolume sets the shared volume, clamped to [0, 1]
func (g *Gain) SetVolume(v float32) {
	g.volume.Store(clampUnit(v))
}

// Volume returns the shared volume
func (g *Gain) Volume() float32 {
	if g == nil {
		return 1
	}
	return g.volume.Load()
}

func clampUnit(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampBalance(b float32) float32 {
	if b != b {
		return 0
	}
	if b < -1 {
		return -1
	}
	if b > 1 {
		return 1
	}
	return b
}

// balanceGains returns left and right multipliers for b in [-1, 1]. The
// side opposite the pan direction is attenuated; the near side stays at unity.
func balanceGains(b float32) (left, right float32) {
	left, right = 1, 1
	if b > 0 {
		left = 1 - b
	} else if b < 0 {
		right = 1 + b
	}
	return left, right
}
