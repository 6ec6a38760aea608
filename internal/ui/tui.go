// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it controller events
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/beatmix/beatmix/internal/player"
)

// RemoteMsg reports the number of connected remote clients
type RemoteMsg int

// TUI runs the now-playing screen
type TUI struct {
	program  *tea.Program
	quitChan chan struct{}
	done     chan struct{}
}

// New creates a TUI over ctl
func New(ctl Controls) *TUI {
	quit := make(chan struct{}, 1)
	return &TUI{
		program:  tea.NewProgram(NewModel(ctl, quit), tea.WithAltScreen()),
		quitChan: quit,
		done:     make(chan struct{}),
	}
}

// Run blocks until the program exits. Events are forwarded until then.
func (t *TUI) Run(events <-chan player.Event) error {
	go func() {
		for {
			select {
			case <-t.done:
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				t.program.Send(EventMsg(e))
			}
		}
	}()

	_, err := t.program.Run()
	close(t.done)
	return err
}

// SetRemotes updates the connected remote count
func (t *TUI) SetRemotes(n int) {
	t.program.Send(RemoteMsg(n))
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}

// QuitChan signals when the user asked to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
