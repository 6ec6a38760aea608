// ABOUTME: Tests for TUI model and key handling
// ABOUTME: Runs the returned commands against a fake controller
package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beatmix/beatmix/internal/channel"
	"github.com/beatmix/beatmix/internal/config"
	"github.com/beatmix/beatmix/internal/player"
)

type fakeControls struct {
	calls   []string
	state   player.State
	skipped time.Duration
	volume  float32
	balance float32
	mod     player.PlayMod
	nextErr error
}

func (f *fakeControls) Play() error   { f.calls = append(f.calls, "play"); return nil }
func (f *fakeControls) Pause() error  { f.calls = append(f.calls, "pause"); return nil }
func (f *fakeControls) Stop() error   { f.calls = append(f.calls, "stop"); return nil }
func (f *fakeControls) Replay() error { f.calls = append(f.calls, "replay"); return nil }

func (f *fakeControls) SkipTo(pos time.Duration) error {
	f.calls = append(f.calls, "seek")
	f.skipped = pos
	return nil
}

func (f *fakeControls) SetPlayMod(mod player.PlayMod) { f.mod = mod }

func (f *fakeControls) SetVolume(kind player.VolumeKind, v float32) error {
	f.volume = v
	return nil
}

func (f *fakeControls) SetBalance(b float32) { f.balance = b }

func (f *fakeControls) Next(context.Context) error { return f.nextErr }

func (f *fakeControls) Previous(context.Context) error { return nil }

func (f *fakeControls) State() player.State { return f.state }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends key and runs the resulting command once
func press(t *testing.T, m Model, key tea.KeyMsg) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(key)
	var msg tea.Msg
	if cmd != nil {
		msg = cmd()
	}
	return next.(Model), msg
}

func TestNewModelReadsState(t *testing.T) {
	fc := &fakeControls{state: player.State{Title: "Song", Status: channel.StatusReady}}
	m := NewModel(fc, nil)

	if m.state.Title != "Song" {
		t.Errorf("title = %q", m.state.Title)
	}
	if NewModel(nil, nil).state.Title != "" {
		t.Error("nil controls should give empty state")
	}
}

func TestKeyBindings(t *testing.T) {
	tests := []struct {
		name   string
		status channel.Status
		key    tea.KeyMsg
		want   string
	}{
		{"space plays when paused", channel.StatusPaused, tea.KeyMsg{Type: tea.KeySpace}, "play"},
		{"space pauses when playing", channel.StatusPlaying, tea.KeyMsg{Type: tea.KeySpace}, "pause"},
		{"s stops", channel.StatusPlaying, runes("s"), "stop"},
		{"r replays", channel.StatusFinished, runes("r"), "replay"},
		{"left seeks", channel.StatusPlaying, tea.KeyMsg{Type: tea.KeyLeft}, "seek"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeControls{state: player.State{Status: tt.status}}
			m := NewModel(fc, nil)

			_, msg := press(t, m, tt.key)
			if len(fc.calls) != 1 || fc.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", fc.calls, tt.want)
			}
			if _, ok := msg.(StateMsg); !ok {
				t.Errorf("command returned %T, want StateMsg", msg)
			}
		})
	}
}

func TestSeekKeys(t *testing.T) {
	fc := &fakeControls{state: player.State{Position: 3 * time.Second}}
	m := NewModel(fc, nil)

	press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if fc.skipped != 0 {
		t.Errorf("left from 3s skipped to %v, want 0", fc.skipped)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if fc.skipped != 8*time.Second {
		t.Errorf("right from 3s skipped to %v, want 8s", fc.skipped)
	}
}

func TestVolumeBalanceAndModKeys(t *testing.T) {
	fc := &fakeControls{state: player.State{
		Volume:  config.Volume{Main: 0.5},
		Balance: 0.95,
		Mod:     player.ModDoubleTime,
	}}
	m := NewModel(fc, nil)

	press(t, m, runes("+"))
	if fc.volume < 0.549 || fc.volume > 0.551 {
		t.Errorf("volume = %v, want 0.55", fc.volume)
	}

	press(t, m, runes("]"))
	if fc.balance != 1 {
		t.Errorf("balance = %v, want clamped to 1", fc.balance)
	}

	press(t, m, runes("m"))
	if fc.mod != player.ModNightCore {
		t.Errorf("mod = %v, want nc", fc.mod)
	}
}

func TestCommandErrorShown(t *testing.T) {
	fc := &fakeControls{nextErr: player.ErrPlaylistEnd}
	m := NewModel(fc, nil)

	m, msg := press(t, m, runes("n"))
	errMsg, ok := msg.(ErrMsg)
	if !ok {
		t.Fatalf("command returned %T, want ErrMsg", msg)
	}

	next, _ := m.Update(errMsg)
	m = next.(Model)
	m.width = 80
	if !strings.Contains(m.View(), "end of playlist") {
		t.Error("view does not show the error")
	}
}

func TestQuitSignals(t *testing.T) {
	quit := make(chan struct{}, 1)
	m := NewModel(&fakeControls{}, quit)

	next, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !next.(Model).quitting {
		t.Error("model not quitting")
	}
	select {
	case <-quit:
	default:
		t.Error("quit channel not signalled")
	}
}

func TestApplyDeviceError(t *testing.T) {
	m := NewModel(nil, nil)
	m.applyEvent(player.Event{Type: player.EventDeviceError, Err: errors.New("no sound card")})

	if !strings.Contains(m.View(), "device: no sound card") {
		t.Errorf("view missing device error:\n%s", m.View())
	}
}

func TestApplyEvents(t *testing.T) {
	m := NewModel(nil, nil)

	m.applyEvent(player.Event{Type: player.EventLoadFinished, Title: "A - B [C]", Duration: time.Minute})
	m.applyEvent(player.Event{Type: player.EventPlayStatusChanged, Status: channel.StatusPlaying})
	m.applyEvent(player.Event{Type: player.EventPositionUpdated, Position: 30 * time.Second, Duration: time.Minute})
	m.applyEvent(player.Event{Type: player.EventRateChanged, Rate: 1.5})
	m.applyEvent(player.Event{Type: player.EventError, Err: errors.New("decode failed")})

	if m.state.Title != "A - B [C]" || m.state.Status != channel.StatusPlaying {
		t.Errorf("state = %+v", m.state)
	}
	if m.state.Position != 30*time.Second || m.state.Rate != 1.5 || m.state.UseTempo {
		t.Errorf("state = %+v", m.state)
	}

	view := m.View()
	for _, want := range []string{"A - B [C]", "playing", "0:30 / 1:00", "1.50x shift pitch", "decode failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max float64
		want       string
	}{
		{0, 0, "░░░░"},
		{1, 2, "██░░"},
		{5, 2, "████"},
		{-1, 2, "░░░░"},
	}
	for _, tt := range tests {
		if got := renderBar(tt.value, tt.max, 4); got != tt.want {
			t.Errorf("renderBar(%v, %v) = %q, want %q", tt.value, tt.max, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(83 * time.Second); got != "1:23" {
		t.Errorf("formatTime = %q", got)
	}
}
