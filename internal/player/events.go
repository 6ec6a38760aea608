// ABOUTME: Typed player events and subscriber fan-out
// ABOUTME: Delivers lifecycle, status and position updates without blocking producers
package player

import (
	"log"
	"sync"
	"time"

	"github.com/beatmix/beatmix/internal/channel"
)

// EventType identifies a player event
type EventType int

const (
	EventPreLoadStarted EventType = iota
	EventLoadStarted
	EventMetaLoaded
	EventMusicLoaded
	EventLoadFinished
	EventPlayStatusChanged
	EventPositionUpdated
	EventPlayerFinished
	EventRateChanged
	EventVolumeChanged
	EventError
	EventDeviceError
)

func (t EventType) String() string {
	switch t {
	case EventPreLoadStarted:
		return "pre_load_started"
	case EventLoadStarted:
		return "load_started"
	case EventMetaLoaded:
		return "meta_loaded"
	case EventMusicLoaded:
		return "music_loaded"
	case EventLoadFinished:
		return "load_finished"
	case EventPlayStatusChanged:
		return "play_status_changed"
	case EventPositionUpdated:
		return "position_updated"
	case EventPlayerFinished:
		return "player_finished"
	case EventRateChanged:
		return "rate_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventError:
		return "error"
	case EventDeviceError:
		return "device_error"
	default:
		return "unknown"
	}
}

// Event is one notification to subscribers. Fields not relevant to Type
// are zero.
type Event struct {
	Type     EventType
	LoadID   string
	Ref      string
	Title    string
	Status   channel.Status
	Position time.Duration
	Duration time.Duration
	Rate     float64
	UseTempo bool
	Err      error
}

// broadcaster fans events out to subscribers. Slow subscribers lose events
// rather than stall the player.
type broadcaster struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	next    int
	dropped int64
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped++
			if e.Type != EventPositionUpdated {
				log.Printf("Dropped %s event for slow subscriber", e.Type)
			}
		}
	}
}
