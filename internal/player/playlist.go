// ABOUTME: Ordered list of beatmaps to play
// ABOUTME: Tracks the current item for next/previous and mode-driven auto-advance
package player

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// PlaylistMode chooses the order items play in and what happens when one
// finishes
type PlaylistMode int

const (
	PlaylistNormal PlaylistMode = iota
	PlaylistRandom
	PlaylistLoop
	PlaylistLoopRandom
	PlaylistSingle
	PlaylistSingleLoop
)

func (m PlaylistMode) String() string {
	switch m {
	case PlaylistRandom:
		return "random"
	case PlaylistLoop:
		return "loop"
	case PlaylistLoopRandom:
		return "loop_random"
	case PlaylistSingle:
		return "single"
	case PlaylistSingleLoop:
		return "single_loop"
	default:
		return "normal"
	}
}

func (m PlaylistMode) shuffled() bool {
	return m == PlaylistRandom || m == PlaylistLoopRandom
}

func (m PlaylistMode) wraps() bool {
	return m == PlaylistLoop || m == PlaylistLoopRandom
}

// ParsePlaylistMode accepts the names String returns, case-insensitive.
// Dashes and spaces may replace underscores.
func ParsePlaylistMode(s string) (PlaylistMode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "", "normal":
		return PlaylistNormal, nil
	case "random":
		return PlaylistRandom, nil
	case "loop":
		return PlaylistLoop, nil
	case "loop_random", "looprandom":
		return PlaylistLoopRandom, nil
	case "single":
		return PlaylistSingle, nil
	case "single_loop", "singleloop":
		return PlaylistSingleLoop, nil
	default:
		return PlaylistNormal, fmt.Errorf("unknown playlist mode %q", s)
	}
}

// Playlist is a thread-safe ordered list of beatmap paths. Random modes
// walk a shuffled order over the same items.
type Playlist struct {
	mu    sync.Mutex
	items []string
	mode  PlaylistMode
	rng   *rand.Rand

	// order maps play position to item index; pos is the current position
	order []int
	pos   int
}

// NewPlaylist creates a playlist positioned before the first item
func NewPlaylist(items ...string) *Playlist {
	now := uint64(time.Now().UnixNano())
	p := &Playlist{rng: rand.New(rand.NewPCG(now, now>>1))}
	p.Set(items)
	return p
}

// Set replaces the items and rewinds
func (p *Playlist) Set(items []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append([]string(nil), items...)
	p.pos = -1
	p.reorder(-1)
}

// Mode returns the current mode
func (p *Playlist) Mode() PlaylistMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetMode changes the mode, keeping the current item current
func (p *Playlist) SetMode(mode PlaylistMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mode == p.mode {
		return
	}
	cur := p.current()
	p.mode = mode
	p.reorder(cur)
}

// reorder rebuilds the play order. A current item cur >= 0 keeps its place
// as the current position.
func (p *Playlist) reorder(cur int) {
	p.order = make([]int, len(p.items))
	for i := range p.order {
		p.order[i] = i
	}
	if !p.mode.shuffled() {
		p.pos = cur
		return
	}

	p.rng.Shuffle(len(p.order), func(i, j int) {
		p.order[i], p.order[j] = p.order[j], p.order[i]
	})
	if cur < 0 {
		p.pos = -1
		return
	}
	for i, idx := range p.order {
		if idx == cur {
			p.order[0], p.order[i] = p.order[i], p.order[0]
			break
		}
	}
	p.pos = 0
}

func (p *Playlist) current() int {
	if p.pos < 0 || p.pos >= len(p.order) {
		return -1
	}
	return p.order[p.pos]
}

// Len returns the number of items
func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Index returns the current item index, -1 before the first item
func (p *Playlist) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current()
}

// Current returns the current item
func (p *Playlist) Current() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.current()
	if i < 0 {
		return "", false
	}
	return p.items[i], true
}

// Next moves to the following item in play order. Loop modes wrap, and
// LoopRandom reshuffles on each wrap.
func (p *Playlist) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next()
}

func (p *Playlist) next() (string, bool) {
	if len(p.items) == 0 {
		return "", false
	}
	if p.pos+1 >= len(p.order) {
		if !p.mode.wraps() {
			return "", false
		}
		if p.mode.shuffled() {
			p.reorder(-1)
		}
		p.pos = -1
	}
	p.pos++
	return p.items[p.order[p.pos]], true
}

// Advance picks the item to play after the current one finished. Single
// stops, SingleLoop repeats the current item and other modes act as Next.
func (p *Playlist) Advance() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.mode {
	case PlaylistSingle:
		return "", false
	case PlaylistSingleLoop:
		if i := p.current(); i >= 0 {
			return p.items[i], true
		}
	}
	return p.next()
}

// Previous steps back in play order. Loop modes wrap to the last item.
func (p *Playlist) Previous() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) == 0 {
		return "", false
	}
	if p.pos <= 0 {
		if !p.mode.wraps() {
			return "", false
		}
		p.pos = len(p.order)
	}
	p.pos--
	return p.items[p.order[p.pos]], true
}

// IndexOf returns the index of the first item equal to ref, or -1
func (p *Playlist) IndexOf(ref string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, item := range p.items {
		if item == ref {
			return i
		}
	}
	return -1
}

// Select moves to item i
func (p *Playlist) Select(i int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.items) {
		return "", false
	}
	for pos, idx := range p.order {
		if idx == i {
			p.pos = pos
			break
		}
	}
	return p.items[i], true
}
