// ABOUTME: Bubbletea model for the now-playing TUI
// ABOUTME: Renders player state and maps keys to transport commands
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/beatmix/beatmix/internal/channel"
	"github.com/beatmix/beatmix/internal/player"
)

const (
	seekStep    = 5 * time.Second
	volumeStep  = 0.05
	balanceStep = 0.1
	refresh     = 250 * time.Millisecond
)

// Controls is the player surface the TUI drives
type Controls interface {
	Play() error
	Pause() error
	Stop() error
	Replay() error
	SkipTo(pos time.Duration) error
	SetPlayMod(mod player.PlayMod)
	SetVolume(kind player.VolumeKind, value float32) error
	SetBalance(value float32)
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	State() player.State
}

// StateMsg carries a fresh controller snapshot
type StateMsg player.State

// EventMsg carries a controller event
type EventMsg player.Event

// ErrMsg reports a failed command
type ErrMsg struct{ Err error }

type tickMsg time.Time

// Model represents the TUI state
type Model struct {
	ctl      Controls
	quitChan chan struct{}

	state   player.State
	lastErr string
	remotes int

	quitting bool
	width    int
	height   int
}

// NewModel creates a model over ctl
func NewModel(ctl Controls, quitChan chan struct{}) Model {
	m := Model{ctl: ctl, quitChan: quitChan}
	if ctl != nil {
		m.state = ctl.State()
	}
	return m
}

// Init starts the refresh tick
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tea.Batch(m.fetchState(), tickEvery())
	case StateMsg:
		m.state = player.State(msg)
	case EventMsg:
		m.applyEvent(player.Event(msg))
	case RemoteMsg:
		m.remotes = int(msg)
	case ErrMsg:
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		}
	}
	return m, nil
}

func (m *Model) applyEvent(e player.Event) {
	switch e.Type {
	case player.EventPositionUpdated:
		m.state.Position = e.Position
		m.state.Duration = e.Duration
	case player.EventPlayStatusChanged:
		m.state.Status = e.Status
	case player.EventLoadFinished:
		m.state.Title = e.Title
		m.state.Duration = e.Duration
		m.lastErr = ""
	case player.EventRateChanged:
		m.state.Rate = e.Rate
		m.state.UseTempo = e.UseTempo
	case player.EventError:
		if e.Err != nil {
			m.lastErr = e.Err.Error()
		}
	case player.EventDeviceError:
		if e.Err != nil {
			m.lastErr = "device: " + e.Err.Error()
		}
	}
}

// fetchState reads a snapshot off the update loop
func (m Model) fetchState() tea.Cmd {
	if m.ctl == nil {
		return nil
	}
	ctl := m.ctl
	return func() tea.Msg {
		return StateMsg(ctl.State())
	}
}

// run wraps a controller call as a command
func (m Model) run(fn func() error) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		if err := fn(); err != nil {
			return ErrMsg{Err: err}
		}
		return StateMsg(ctl.State())
	}
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "q" || key == "ctrl+c" {
		m.quitting = true
		select {
		case m.quitChan <- struct{}{}:
		default:
		}
		return m, tea.Quit
	}
	if m.ctl == nil {
		return m, nil
	}

	ctl := m.ctl
	switch key {
	case " ", "space":
		if m.state.Status == channel.StatusPlaying {
			return m, m.run(ctl.Pause)
		}
		return m, m.run(ctl.Play)
	case "s":
		return m, m.run(ctl.Stop)
	case "r":
		return m, m.run(ctl.Replay)
	case "left":
		target := m.state.Position - seekStep
		if target < 0 {
			target = 0
		}
		return m, m.run(func() error { return ctl.SkipTo(target) })
	case "right":
		target := m.state.Position + seekStep
		return m, m.run(func() error { return ctl.SkipTo(target) })
	case "+", "=", "up":
		v := m.state.Volume.Main + volumeStep
		return m, m.run(func() error { return ctl.SetVolume(player.VolumeMain, v) })
	case "-", "down":
		v := m.state.Volume.Main - volumeStep
		return m, m.run(func() error { return ctl.SetVolume(player.VolumeMain, v) })
	case "[":
		b := clampBalance(m.state.Balance - balanceStep)
		return m, m.run(func() error { ctl.SetBalance(b); return nil })
	case "]":
		b := clampBalance(m.state.Balance + balanceStep)
		return m, m.run(func() error { ctl.SetBalance(b); return nil })
	case "m":
		mod := m.state.Mod.Next()
		return m, m.run(func() error { ctl.SetPlayMod(mod); return nil })
	case "n":
		return m, m.run(func() error { return ctl.Next(context.Background()) })
	case "p":
		return m, m.run(func() error { return ctl.Previous(context.Background()) })
	}
	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping player...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	errStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("beatmix"))
	b.WriteString("\n\n")

	title := m.state.Title
	if title == "" {
		title = "Nothing loaded"
	}
	b.WriteString(headerStyle.Render("Track:  "))
	b.WriteString(valueStyle.Render(truncate(title, 60)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Status: "))
	b.WriteString(valueStyle.Render(m.state.Status.String()))
	if m.state.PlaylistLen > 0 {
		b.WriteString(valueStyle.Render(fmt.Sprintf("  (%d/%d)", m.state.PlaylistIndex+1, m.state.PlaylistLen)))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %s / %s\n\n",
		renderBar(float64(m.state.Position), float64(m.state.Duration), 40),
		formatTime(m.state.Position), formatTime(m.state.Duration)))

	pitch := "keep pitch"
	if !m.state.UseTempo {
		pitch = "shift pitch"
	}
	b.WriteString(headerStyle.Render("Speed:  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.2fx %s  mod:%s", m.state.Rate, pitch, m.state.Mod)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Volume: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("[%s] %d%%  balance %+.1f",
		renderBar(float64(m.state.Volume.Main), 1, 10), int(m.state.Volume.Main*100+0.5), m.state.Balance)))
	b.WriteString("\n")

	if m.remotes > 0 {
		b.WriteString(headerStyle.Render("Remote: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d connected", m.remotes)))
		b.WriteString("\n")
	}

	if m.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(truncate(m.lastErr, 70)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render(
		"space:Play/Pause  s:Stop  r:Replay  ←/→:Seek  +/-:Volume  [/]:Balance  m:Mod  n/p:Next/Prev  q:Quit"))

	return b.String()
}

func renderBar(value, max float64, width int) string {
	filled := 0
	if max > 0 {
		filled = int(value / max * float64(width))
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatTime(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func clampBalance(b float32) float32 {
	if b < -1 {
		return -1
	}
	if b > 1 {
		return 1
	}
	return b
}
