// ABOUTME: Tests for play modifiers and the playlist
// ABOUTME: Table-driven checks of parsing, rates and navigation
package player

import "testing"

func TestParsePlayMod(t *testing.T) {
	tests := []struct {
		in       string
		want     PlayMod
		rate     float64
		useTempo bool
		wantErr  bool
	}{
		{"", ModNone, 1, true, false},
		{"DT", ModDoubleTime, 1.5, true, false},
		{"nightcore", ModNightCore, 1.5, false, false},
		{"ht", ModHalfTime, 0.75, true, false},
		{"DayCore", ModDayCore, 0.75, false, false},
		{"hr", ModNone, 1, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePlayMod(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlayMod(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePlayMod(%q) = %v, want %v", tt.in, got, tt.want)
			}
			rate, useTempo := got.Playback()
			if rate != tt.rate || useTempo != tt.useTempo {
				t.Errorf("%v.Playback() = %v, %v", got, rate, useTempo)
			}
		})
	}
}

func TestPlayModCycle(t *testing.T) {
	m := ModNone
	seen := map[PlayMod]bool{}
	for range AllMods {
		seen[m] = true
		m = m.Next()
	}
	if m != ModNone || len(seen) != len(AllMods) {
		t.Errorf("cycle visited %d mods, ended at %v", len(seen), m)
	}
}

func TestPlaylistNavigation(t *testing.T) {
	p := NewPlaylist("a", "b", "c")

	if _, ok := p.Current(); ok {
		t.Error("new playlist should have no current item")
	}
	if _, ok := p.Previous(); ok {
		t.Error("Previous before start should fail")
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := p.Next()
		if !ok || got != want {
			t.Fatalf("Next = %q, %v, want %q", got, ok, want)
		}
	}
	if _, ok := p.Next(); ok {
		t.Error("Next past end should fail")
	}

	if got, ok := p.Previous(); !ok || got != "b" {
		t.Errorf("Previous = %q, %v, want b", got, ok)
	}
	if got, ok := p.Select(0); !ok || got != "a" || p.Index() != 0 {
		t.Errorf("Select(0) = %q, %v", got, ok)
	}
	if _, ok := p.Select(5); ok {
		t.Error("Select out of range should fail")
	}
}

func TestEventTypeString(t *testing.T) {
	if EventPlayerFinished.String() != "player_finished" {
		t.Errorf("got %q", EventPlayerFinished.String())
	}
	if EventType(99).String() != "unknown" {
		t.Errorf("got %q", EventType(99).String())
	}
}

func TestBroadcasterDropsForSlowSubscriber(t *testing.T) {
	b := newBroadcaster()
	events, cancel := b.subscribe(1)

	b.publish(Event{Type: EventPositionUpdated})
	b.publish(Event{Type: EventPositionUpdated})

	if len(events) != 1 {
		t.Errorf("buffered = %d, want 1", len(events))
	}
	if b.dropped != 1 {
		t.Errorf("dropped = %d, want 1", b.dropped)
	}

	cancel()
	cancel()
	b.publish(Event{Type: EventError})
}
