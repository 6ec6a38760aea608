// ABOUTME: Remote control message type definitions
// ABOUTME: JSON envelopes exchanged between the player and control clients
package remote

import (
	"encoding/json"
	"time"

	"github.com/beatmix/beatmix/internal/player"
)

// ProtocolVersion is sent in both hellos
const ProtocolVersion = 1

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeClientCommand = "client/command"
	TypeServerHello   = "server/hello"
	TypeServerError   = "server/error"
	TypePlayerState   = "player/state"
	TypePlayerEvent   = "player/event"
)

// Command names accepted in client/command
const (
	CommandPlay     = "play"
	CommandPause    = "pause"
	CommandStop     = "stop"
	CommandReplay   = "replay"
	CommandSeek     = "seek"
	CommandRate     = "rate"
	CommandMod      = "mod"
	CommandVolume   = "volume"
	CommandBalance  = "balance"
	CommandNext     = "next"
	CommandPrevious = "previous"
	CommandLoad     = "load"
	CommandState    = "state"

	CommandPlaylistMode = "playlist_mode"
)

// Message is the top-level wrapper for all messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello starts a session
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello answers ClientHello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Software string `json:"software_version,omitempty"`
}

// Command asks the player to do something. Only the fields the command
// uses are read.
type Command struct {
	Command    string  `json:"command"`
	PositionMs int64   `json:"position_ms,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
	UseTempo   bool    `json:"use_tempo,omitempty"`
	Mod        string  `json:"mod,omitempty"`
	Mode       string  `json:"mode,omitempty"`
	Kind       string  `json:"kind,omitempty"`
	Value      float32 `json:"value,omitempty"`
	Ref        string  `json:"ref,omitempty"`
	AutoPlay   bool    `json:"autoplay,omitempty"`
}

// ServerError reports a rejected command or session
type ServerError struct {
	Command string `json:"command,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// PlayerState is a full snapshot of the controller
type PlayerState struct {
	LoadID        string  `json:"load_id,omitempty"`
	Ref           string  `json:"ref,omitempty"`
	Title         string  `json:"title,omitempty"`
	Status        string  `json:"status"`
	PositionMs    int64   `json:"position_ms"`
	DurationMs    int64   `json:"duration_ms"`
	Rate          float64 `json:"rate"`
	UseTempo      bool    `json:"use_tempo"`
	Mod           string  `json:"mod"`
	MainVolume    float32 `json:"main_volume"`
	MusicVolume   float32 `json:"music_volume"`
	HitVolume     float32 `json:"hitsound_volume"`
	SampleVolume  float32 `json:"sample_volume"`
	Balance       float32 `json:"balance"`
	PlaylistIndex int     `json:"playlist_index"`
	PlaylistLen   int     `json:"playlist_len"`
	PlaylistMode  string  `json:"playlist_mode"`
	DeviceError   string  `json:"device_error,omitempty"`
}

// PlayerEvent mirrors one controller event
type PlayerEvent struct {
	Event      string  `json:"event"`
	LoadID     string  `json:"load_id,omitempty"`
	Ref        string  `json:"ref,omitempty"`
	Title      string  `json:"title,omitempty"`
	Status     string  `json:"status,omitempty"`
	PositionMs int64   `json:"position_ms,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
	UseTempo   bool    `json:"use_tempo,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// NewPlayerState converts a controller snapshot
func NewPlayerState(s player.State) PlayerState {
	ps := PlayerState{
		LoadID:        s.LoadID,
		Ref:           s.Ref,
		Title:         s.Title,
		Status:        s.Status.String(),
		PositionMs:    s.Position.Milliseconds(),
		DurationMs:    s.Duration.Milliseconds(),
		Rate:          s.Rate,
		UseTempo:      s.UseTempo,
		Mod:           s.Mod.String(),
		MainVolume:    s.Volume.Main,
		MusicVolume:   s.Volume.Music,
		HitVolume:     s.Volume.Hitsound,
		SampleVolume:  s.Volume.Sample,
		Balance:       s.Balance,
		PlaylistIndex: s.PlaylistIndex,
		PlaylistLen:   s.PlaylistLen,
		PlaylistMode:  s.PlaylistMode.String(),
	}
	if s.DeviceError != nil {
		ps.DeviceError = s.DeviceError.Error()
	}
	return ps
}

// NewPlayerEvent converts a controller event
func NewPlayerEvent(e player.Event) PlayerEvent {
	pe := PlayerEvent{
		Event:      e.Type.String(),
		LoadID:     e.LoadID,
		Ref:        e.Ref,
		Title:      e.Title,
		PositionMs: e.Position.Milliseconds(),
		DurationMs: e.Duration.Milliseconds(),
		Rate:       e.Rate,
		UseTempo:   e.UseTempo,
	}
	if e.Type == player.EventPlayStatusChanged {
		pe.Status = e.Status.String()
	}
	if e.Err != nil {
		pe.Error = e.Err.Error()
	}
	return pe
}

// Position returns the event position as a duration
func (e PlayerEvent) Position() time.Duration {
	return time.Duration(e.PositionMs) * time.Millisecond
}

// decodePayload re-reads a generic payload into v
func decodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
