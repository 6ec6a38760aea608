// ABOUTME: Copy-on-write mixer driven by the realtime audio callback
// ABOUTME: Applies per-input volume and balance, sums, limits and emits float32 PCM
package mixer

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/beatmix/beatmix/pkg/audio"
)

// Source produces canonical interleaved samples. Read must not block; it
// returns the number of samples written to dst, and anything not written is
// treated as silence.
type Source interface {
	Read(dst []float32) int
}

// Ender is implemented by sources that finish by themselves
type Ender interface {
	Ended() bool
}

// Controls are the initial mix settings for an input
type Controls struct {
	Volume  float32 // 0..1
	Balance float32 // -1 (left) .. 1 (right)
	Group   *Gain   // optional shared volume
}

// Config holds mixer configuration
type Config struct {
	Format    audio.Format
	MaxFrames int // largest callback size served without allocating
}

// Handle identifies one active input and adjusts its controls
type Handle struct {
	src     Source
	group   *Gain
	volume  atomicFloat
	balance atomicFloat
	ended   atomic.Bool
	removed atomic.Bool
}

// SetVolume changes the input volume, clamped to [0, 1]
func (h *Handle) SetVolume(v float32) {
	h.volume.Store(clampUnit(v))
}

// SetBalance changes the input balance, clamped to [-1, 1]
func (h *Handle) SetBalance(b float32) {
	h.balance.Store(clampBalance(b))
}

// Volume returns the input volume
func (h *Handle) Volume() float32 {
	return h.volume.Load()
}

// Balance returns the input balance
func (h *Handle) Balance() float32 {
	return h.balance.Load()
}

// Active reports whether the input is still part of the mix
func (h *Handle) Active() bool {
	return !h.removed.Load() && !h.ended.Load()
}

// Mixer sums inputs into a single stream
type Mixer struct {
	config Config

	mu     sync.Mutex
	inputs atomic.Pointer[[]*Handle]
	closed bool

	master  atomicFloat
	balance atomicFloat
	frames  atomic.Int64

	// Owned by the realtime reader
	scratch []float32
	mixBuf  []float32

	reap    chan struct{}
	errChan chan error
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a mixer
func New(config Config) *Mixer {
	if !config.Format.IsValid() {
		config.Format = audio.Canonical
	}
	if config.MaxFrames <= 0 {
		config.MaxFrames = 8192
	}

	m := &Mixer{
		config:  config,
		scratch: make([]float32, config.MaxFrames*config.Format.Channels),
		mixBuf:  make([]float32, config.MaxFrames*config.Format.Channels),
		reap:    make(chan struct{}, 1),
		errChan: make(chan error, 16),
		stop:    make(chan struct{}),
	}
	empty := []*Handle{}
	m.inputs.Store(&empty)
	m.master.Store(1)
	return m
}

// Start runs the reaper that removes finished inputs
func (m *Mixer) Start() {
	m.wg.Add(1)
	go m.reapLoop()
}

// Close stops the reaper and rejects further inputs
func (m *Mixer) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	m.wg.Wait()
}

// Format returns the output format
func (m *Mixer) Format() audio.Format {
	return m.config.Format
}

// AddInput starts mixing src. A source already present is rejected with
// ErrDuplicateInput.
func (m *Mixer) AddInput(src Source, c Controls) (*Handle, error) {
	if src == nil {
		return nil, fmt.Errorf("nil source")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	current := *m.inputs.Load()
	for _, h := range current {
		if h.src == src && !h.ended.Load() {
			return nil, ErrDuplicateInput
		}
	}

	h := &Handle{src: src, group: c.Group}
	h.SetVolume(c.Volume)
	h.SetBalance(c.Balance)

	next := make([]*Handle, 0, len(current)+1)
	for _, existing := range current {
		if !existing.ended.Load() {
			next = append(next, existing)
		}
	}
	next = append(next, h)
	m.inputs.Store(&next)

	return h, nil
}

// RemoveInput stops mixing h. Removing an absent or nil handle does nothing.
func (m *Mixer) RemoveInput(h *Handle) {
	if h == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := *m.inputs.Load()
	idx := -1
	for i, existing := range current {
		if existing == h {
			idx = i
			break
		}
	}
	h.removed.Store(true)
	if idx < 0 {
		return
	}

	next := make([]*Handle, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	m.inputs.Store(&next)
}

// Contains reports whether src is currently an active input
func (m *Mixer) Contains(src Source) bool {
	for _, h := range *m.inputs.Load() {
		if h.src == src && h.Active() {
			return true
		}
	}
	return false
}

// Len returns the number of inputs in the published list
func (m *Mixer) Len() int {
	return len(*m.inputs.Load())
}

// SetMasterVolume sets the output volume, clamped to [0, 1]
func (m *Mixer) SetMasterVolume(v float32) {
	m.master.Store(clampUnit(v))
}

// MasterVolume returns the output volume
func (m *Mixer) MasterVolume() float32 {
	return m.master.Load()
}

// SetBalance sets the output stereo balance, clamped to [-1, 1]
func (m *Mixer) SetBalance(b float32) {
	m.balance.Store(clampBalance(b))
}

// Balance returns the output stereo balance
func (m *Mixer) Balance() float32 {
	return m.balance.Load()
}

// FramesMixed returns the total frames produced since creation
func (m *Mixer) FramesMixed() int64 {
	return m.frames.Load()
}

// Errors delivers faults from the realtime path. Errors are dropped when
// nobody is reading.
func (m *Mixer) Errors() <-chan error {
	return m.errChan
}

// Mix fills dst with the sum of all inputs. It must only be called from one
// goroutine at a time (the audio callback).
func (m *Mixer) Mix(dst []float32) {
	clear(dst)

	channels := m.config.Format.Channels
	dst = dst[:len(dst)-len(dst)%channels]

	for off := 0; off < len(dst); off += len(m.mixBuf) {
		end := off + len(m.mixBuf)
		if end > len(dst) {
			end = len(dst)
		}
		m.mixBlock(dst[off:end])
	}

	m.frames.Add(int64(len(dst) / channels))
}

func (m *Mixer) mixBlock(dst []float32) {
	channels := m.config.Format.Channels
	inputs := *m.inputs.Load()
	sawEnded := false

	for _, h := range inputs {
		if !h.Active() {
			continue
		}

		buf := m.scratch[:len(dst)]
		n := m.readSource(h, buf)

		vol := h.volume.Load() * h.group.Volume()
		left, right := balanceGains(h.balance.Load())
		for i := 0; i < n; i++ {
			g := vol
			if channels == 2 {
				if i%2 == 0 {
					g *= left
				} else {
					g *= right
				}
			}
			dst[i] += buf[i] * g
		}

		if n < len(buf) {
			if e, ok := h.src.(Ender); ok && e.Ended() {
				h.ended.Store(true)
				sawEnded = true
			}
		}
	}

	master := m.master.Load()
	left, right := balanceGains(m.balance.Load())
	for i := range dst {
		g := master
		if channels == 2 {
			if i%2 == 0 {
				g *= left
			} else {
				g *= right
			}
		}
		dst[i] = softLimit(dst[i] * g)
	}

	if sawEnded {
		select {
		case m.reap <- struct{}{}:
		default:
		}
	}
}

// readSource reads one input, converting a panic into a reported error
// and retiring the input
func (m *Mixer) readSource(h *Handle, buf []float32) (n int) {
	defer func() {
		if r := recover(); r != nil {
			h.ended.Store(true)
			m.report(fmt.Errorf("%w: %v", ErrSourcePanic, r))
			n = 0
		}
	}()

	n = h.src.Read(buf)
	if n < 0 {
		n = 0
	}
	if n > len(buf) {
		n = len(buf)
	}
	return n
}

func (m *Mixer) report(err error) {
	select {
	case m.errChan <- err:
	default:
	}
}

// Read implements io.Reader with float32 little-endian samples for the
// output device. It always fills p with whole frames.
func (m *Mixer) Read(p []byte) (int, error) {
	const bytesPerSample = 4
	frameBytes := bytesPerSample * m.config.Format.Channels
	p = p[:len(p)-len(p)%frameBytes]
	samples := len(p) / bytesPerSample
	if samples == 0 {
		return 0, nil
	}

	for off := 0; off < samples; off += len(m.mixBuf) {
		end := off + len(m.mixBuf)
		if end > samples {
			end = samples
		}
		block := m.mixBuf[:end-off]
		m.Mix(block)
		for i, s := range block {
			binary.LittleEndian.PutUint32(p[(off+i)*bytesPerSample:], math.Float32bits(s))
		}
	}
	return len(p), nil
}

func (m *Mixer) reapLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stop:
			return
		case <-m.reap:
			m.removeEnded()
		}
	}
}

func (m *Mixer) removeEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := *m.inputs.Load()
	next := make([]*Handle, 0, len(current))
	for _, h := range current {
		if !h.ended.Load() {
			next = append(next, h)
		}
	}
	if len(next) == len(current) {
		return
	}
	m.inputs.Store(&next)
	if len(current)-len(next) > 64 {
		log.Printf("Mixer reaped %d finished inputs", len(current)-len(next))
	}
}

// softLimit passes samples below the knee unchanged and compresses peaks
// smoothly toward full scale
func softLimit(x float32) float32 {
	const knee = 0.9
	if x != x {
		return 0
	}
	ax := x
	if ax < 0 {
		ax = -ax
	}
	if ax <= knee {
		return x
	}
	over := float64((ax - knee) / (1 - knee))
	y := knee + (1-knee)*float32(math.Tanh(over))
	if x < 0 {
		return -y
	}
	return y
}
