// ABOUTME: Background loops of the controller
// ABOUTME: Publishes advisory position and surfaces mixer faults
package player

import (
	"log"
	"time"

	"github.com/beatmix/beatmix/internal/channel"
)

// pollPosition publishes the position while playing
func (c *Controller) pollPosition() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			pc := c.current
			playing := c.status == channel.StatusPlaying
			c.mu.Unlock()

			if pc == nil || !playing {
				continue
			}
			c.publish(Event{
				Type:     EventPositionUpdated,
				LoadID:   pc.id,
				Position: pc.music.Position(),
				Duration: pc.music.Duration(),
			})
		}
	}
}

// drainMixerErrors logs faults reported from the audio callback
func (c *Controller) drainMixerErrors() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case err := <-c.config.Mixer.Errors():
			log.Printf("Mixer error: %v", err)
			c.publish(Event{Type: EventError, Err: err})
		}
	}
}
