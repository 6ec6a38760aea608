// ABOUTME: Background stretch worker feeding a bounded ring buffer
// ABOUTME: Applies queued control changes per quantum and resynchronizes on seek
package stretch

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
)

// Source is a seekable stream of interleaved samples
type Source interface {
	Read(dst []float32) (int, error)
	Seek(frame int) error
	Position() int
	Frames() int
}

// Config holds processor configuration
type Config struct {
	Channels      int
	QuantumFrames int // frames read from the source per iteration
	BufferFrames  int // ring capacity in frames
}

// mark maps a point in the ring's output back to a source frame
type mark struct {
	end   int64   // consumed-sample count at which this chunk ends
	src   float64 // source frame at that point
	speed float64 // source frames per output frame within the chunk
}

// Processor runs the stretch Engine on its own goroutine and hands results
// to the realtime reader through a Ring. Read never blocks.
type Processor struct {
	config Config
	src    Source
	ring   *Ring
	engine *Engine

	mu       sync.Mutex
	pending  *Settings
	settings Settings
	seekTo   int
	seeking  bool
	base     float64
	marks    []mark
	written  int64
	atEOF    bool
	epoch    uint64

	drained  atomic.Bool
	notified atomic.Bool
	finished chan struct{}
	wake     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor wraps src. Call Start to begin filling the buffer.
func NewProcessor(src Source, config Config) *Processor {
	if config.Channels <= 0 {
		config.Channels = 2
	}
	if config.QuantumFrames <= 0 {
		config.QuantumFrames = 1024
	}
	if config.BufferFrames <= 0 {
		config.BufferFrames = 4096
	}

	ctx, cancel := context.WithCancel(context.Background())
	ring := NewRing(config.BufferFrames * config.Channels)

	return &Processor{
		config:   config,
		src:      src,
		ring:     ring,
		engine:   NewEngine(config.Channels),
		settings: Unity,
		base:     float64(src.Position()),
		epoch:    ring.Epoch(),
		finished: make(chan struct{}, 1),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutine
func (p *Processor) Start() {
	p.wg.Add(1)
	go p.run()
}

// Close stops the worker and waits for it to exit
func (p *Processor) Close() {
	p.cancel()
	p.ring.Close()
	p.wg.Wait()
}

// SetSettings queues a control change for the next processing quantum
func (p *Processor) SetSettings(s Settings) {
	s = s.Normalize()
	p.mu.Lock()
	p.pending = &s
	p.mu.Unlock()
	p.signal()
}

// Settings returns the most recently requested settings
func (p *Processor) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		return *p.pending
	}
	return p.settings
}

// Seek discards buffered output and restarts processing at frame. The
// engine state is reset before any audio from the new position is produced.
func (p *Processor) Seek(frame int) {
	if frame < 0 {
		frame = 0
	}

	p.mu.Lock()
	p.seekTo = frame
	p.seeking = true
	p.base = float64(frame)
	p.marks = p.marks[:0]
	p.written = 0
	p.atEOF = false
	p.epoch = p.ring.Reset()
	p.drained.Store(false)
	p.notified.Store(false)
	p.mu.Unlock()

	// Drop a stale end-of-stream notification
	select {
	case <-p.finished:
	default:
	}
	p.signal()
}

// Read fills dst from the ring and returns the number of samples written.
// Safe to call from the realtime callback.
func (p *Processor) Read(dst []float32) int {
	n := p.ring.Read(dst)
	if n < len(dst) && p.drained.Load() && p.ring.Available() == 0 {
		if p.notified.CompareAndSwap(false, true) {
			select {
			case p.finished <- struct{}{}:
			default:
			}
		}
	}
	return n
}

// Finished delivers one value each time the stream plays out to its end.
// A value may outlive a concurrent Seek; confirm with AtEnd.
func (p *Processor) Finished() <-chan struct{} {
	return p.finished
}

// AtEnd reports whether the source is exhausted and every processed sample
// has been read. It is ordered with Seek.
func (p *Processor) AtEnd() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.atEOF && p.drained.Load() && p.ring.Available() == 0
}

// Position estimates the source frame currently being heard
func (p *Processor) Position() float64 {
	consumed := p.ring.Consumed()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Marks describe samples written in the current epoch only
	i := 0
	for i < len(p.marks)-1 && p.marks[i].end < consumed {
		i++
	}
	p.marks = p.marks[i:]

	if len(p.marks) == 0 {
		return p.base
	}
	m := p.marks[0]
	frames := float64(m.end-consumed) / float64(p.config.Channels)
	if frames < 0 {
		frames = 0
	}
	pos := m.src - frames*m.speed
	if pos < p.base {
		pos = p.base
	}
	return pos
}

func (p *Processor) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) run() {
	defer p.wg.Done()

	in := make([]float32, p.config.QuantumFrames*p.config.Channels)
	var out []float32

	for {
		if p.ctx.Err() != nil {
			return
		}

		epoch, atEOF, reset := p.applyControls(&out)
		if reset {
			p.engine.Reset()
		}

		if atEOF {
			select {
			case <-p.ctx.Done():
				return
			case <-p.wake:
			}
			continue
		}

		n, err := p.src.Read(in)
		if err != nil && !errors.Is(err, io.EOF) {
			log.Printf("Stretch source read error: %v", err)
		}
		out = p.engine.Process(out, in[:n])
		eof := n == 0 || err != nil
		if eof {
			out = p.engine.Flush(out)
		}

		srcEnd := float64(p.src.Position() - p.engine.Pending())
		speed := p.engine.Settings().Speed()

		if err := p.ring.Write(out, epoch); err != nil {
			if errors.Is(err, ErrRingClosed) {
				return
			}
			out = out[:0]
			continue
		}

		p.commit(epoch, len(out), srcEnd, speed, eof)
		out = out[:0]
	}
}

// applyControls consumes a pending seek and settings change. Output
// drained by a settings change is appended to out.
func (p *Processor) applyControls(out *[]float32) (epoch uint64, atEOF bool, reset bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seeking {
		p.seeking = false
		if err := p.src.Seek(p.seekTo); err != nil {
			log.Printf("Stretch source seek failed: %v", err)
		}
		*out = (*out)[:0]
		reset = true
	}
	if p.pending != nil {
		if reset {
			p.engine.Reset()
		}
		*out = p.engine.Apply(*p.pending, *out)
		p.settings = p.engine.Settings()
		p.pending = nil
	}
	return p.epoch, p.atEOF, reset
}

// commit records position marks for a chunk written in epoch
func (p *Processor) commit(epoch uint64, samples int, srcEnd, speed float64, eof bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if epoch != p.epoch {
		return
	}
	p.written += int64(samples)
	if samples > 0 {
		p.marks = append(p.marks, mark{end: p.written, src: srcEnd, speed: speed})
	}
	if eof {
		p.atEOF = true
		p.drained.Store(true)
	}
}
