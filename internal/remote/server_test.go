// ABOUTME: Tests for the remote control server and client
// ABOUTME: Runs both ends over an httptest server with a fake player
package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatmix/beatmix/internal/channel"
	"github.com/beatmix/beatmix/internal/player"
)

type fakePlayer struct {
	mu    sync.Mutex
	calls []string
	subs  []chan player.Event
	state player.State

	// loadGate blocks Open until closed, when set
	loadGate chan struct{}
}

func (f *fakePlayer) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePlayer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlayer) Play() error   { f.record("play"); return nil }
func (f *fakePlayer) Pause() error  { f.record("pause"); return nil }
func (f *fakePlayer) Stop() error   { f.record("stop"); return nil }
func (f *fakePlayer) Replay() error { f.record("replay"); return nil }

func (f *fakePlayer) SkipTo(pos time.Duration) error {
	f.record("seek " + pos.String())
	return nil
}

func (f *fakePlayer) SetPlaybackRate(rate float64, useTempo bool) {
	f.record("rate")
	f.mu.Lock()
	f.state.Rate, f.state.UseTempo = rate, useTempo
	f.mu.Unlock()
}

func (f *fakePlayer) SetPlayMod(mod player.PlayMod) { f.record("mod " + mod.String()) }

func (f *fakePlayer) SetVolume(kind player.VolumeKind, value float32) error {
	if kind != player.VolumeMusic {
		return errors.New("unknown volume")
	}
	f.record("volume")
	return nil
}

func (f *fakePlayer) SetBalance(float32) { f.record("balance") }

func (f *fakePlayer) Next(context.Context) error { return player.ErrPlaylistEnd }

func (f *fakePlayer) Previous(context.Context) error { f.record("previous"); return nil }

func (f *fakePlayer) SetPlaylistMode(mode player.PlaylistMode) {
	f.record("playlist " + mode.String())
}

func (f *fakePlayer) Open(ctx context.Context, ref string, _ bool) error {
	f.mu.Lock()
	gate := f.loadGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.record("load " + ref)
	return nil
}

func (f *fakePlayer) State() player.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakePlayer) Subscribe(buffer int) (<-chan player.Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan player.Event, buffer)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakePlayer) publish(e player.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- e
	}
}

func startServer(t *testing.T) (*fakePlayer, string) {
	t.Helper()

	fp := &fakePlayer{state: player.State{Title: "Artist - Song [Hard]", Status: channel.StatusReady, Rate: 1}}
	srv := New(Config{Name: "test-player", Player: fp})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Stop()
		ts.Close()
	})
	return fp, strings.TrimPrefix(ts.URL, "http://")
}

func connect(t *testing.T, addr, id string) *Client {
	t.Helper()

	c := NewClient(ClientConfig{ServerAddr: addr, ClientID: id, Name: "ctl"})
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func nextState(t *testing.T, c *Client) PlayerState {
	t.Helper()
	select {
	case s := <-c.States:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state")
		return PlayerState{}
	}
}

func TestHandshakeSendsState(t *testing.T) {
	_, addr := startServer(t)
	c := connect(t, addr, "ctl-1")

	assert.Equal(t, "test-player", c.Server().Name)
	assert.Equal(t, ProtocolVersion, c.Server().Version)

	s := nextState(t, c)
	assert.Equal(t, "Artist - Song [Hard]", s.Title)
	assert.Equal(t, "ready", s.Status)
}

func TestCommandsReachPlayer(t *testing.T) {
	fp, addr := startServer(t)
	c := connect(t, addr, "ctl-1")
	nextState(t, c)

	cmds := []Command{
		{Command: CommandPause},
		{Command: CommandSeek, PositionMs: 1500},
		{Command: CommandRate, Rate: 1.5, UseTempo: true},
		{Command: CommandMod, Mod: "nc"},
		{Command: CommandVolume, Kind: "music", Value: 0.5},
		{Command: CommandPlaylistMode, Mode: "loop_random"},
		{Command: CommandLoad, Ref: "song.osu"},
	}
	for _, cmd := range cmds {
		require.NoError(t, c.Send(cmd))
	}

	// The load replies with state once it completes
	s := nextState(t, c)
	assert.Equal(t, 1.5, s.Rate)
	assert.True(t, s.UseTempo)
	assert.Equal(t, []string{"pause", "seek 1.5s", "rate", "mod nc", "volume", "playlist loop_random", "load song.osu"}, fp.Calls())
}

func TestSlowLoadDoesNotBlockCommands(t *testing.T) {
	fp, addr := startServer(t)
	gate := make(chan struct{})
	fp.mu.Lock()
	fp.loadGate = gate
	fp.mu.Unlock()

	c := connect(t, addr, "ctl-1")
	nextState(t, c)

	require.NoError(t, c.Send(Command{Command: CommandLoad, Ref: "slow.osu"}))
	require.NoError(t, c.Send(Command{Command: CommandPause}))

	require.Eventually(t, func() bool {
		calls := fp.Calls()
		return len(calls) == 1 && calls[0] == "pause"
	}, 2*time.Second, 5*time.Millisecond, "pause waited behind the load")

	close(gate)
	nextState(t, c)
	assert.Equal(t, []string{"pause", "load slow.osu"}, fp.Calls())
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"unknown", Command{Command: "eject"}},
		{"bad volume", Command{Command: CommandVolume, Kind: "bass", Value: 1}},
		{"bad mod", Command{Command: CommandMod, Mod: "hr"}},
		{"zero rate", Command{Command: CommandRate}},
		{"load without ref", Command{Command: CommandLoad}},
		{"bad playlist mode", Command{Command: CommandPlaylistMode, Mode: "shuffle"}},
		{"playlist end", Command{Command: CommandNext}},
	}

	_, addr := startServer(t)
	c := connect(t, addr, "ctl-1")
	nextState(t, c)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.Send(tt.cmd))
			select {
			case e := <-c.Errors:
				assert.Equal(t, "command_failed", e.Error)
				assert.Equal(t, tt.cmd.Command, e.Command)
			case <-time.After(2 * time.Second):
				t.Fatal("no error reported")
			}
		})
	}
}

func TestEventsForwarded(t *testing.T) {
	fp, addr := startServer(t)
	c := connect(t, addr, "ctl-1")
	nextState(t, c)

	fp.publish(player.Event{Type: player.EventPlayStatusChanged, Status: channel.StatusPlaying})
	fp.publish(player.Event{Type: player.EventPositionUpdated, Position: 2500 * time.Millisecond})

	var got []PlayerEvent
	for len(got) < 2 {
		select {
		case e := <-c.Events:
			got = append(got, e)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d events, want 2", len(got))
		}
	}

	assert.Equal(t, "play_status_changed", got[0].Event)
	assert.Equal(t, "playing", got[0].Status)
	assert.Equal(t, "position_updated", got[1].Event)
	assert.Equal(t, 2500*time.Millisecond, got[1].Position())
}

func TestDuplicateClientRejected(t *testing.T) {
	_, addr := startServer(t)
	connect(t, addr, "same")

	dup := NewClient(ClientConfig{ServerAddr: addr, ClientID: "same", Name: "dup"})
	err := dup.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")
}

func TestNewPlayerEventCarriesError(t *testing.T) {
	e := NewPlayerEvent(player.Event{Type: player.EventError, Err: errors.New("boom")})
	assert.Equal(t, "error", e.Event)
	assert.Equal(t, "boom", e.Error)
	assert.Empty(t, e.Status)
}
