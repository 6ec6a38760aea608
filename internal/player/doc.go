// ABOUTME: Playback orchestration package
// ABOUTME: Loads beatmaps into channels and drives them as one transport
// Package player owns the playback context: the music stream channel, the
// hit-sound event channel and the storyboard sample channel of the loaded
// beatmap. A Controller fans transport commands out to every channel,
// reports position on a poll interval and raises PlayerFinished once all
// channels have reached their end.
//
// Consumers observe the controller through Subscribe, which delivers typed
// events on a channel. The audio goroutines never call consumers directly.
//
// Example:
//
//	c := player.New(player.Config{Mixer: m, Decoder: svc, Library: lib})
//	c.Start()
//	events, cancel := c.Subscribe(32)
//	defer cancel()
//	err := c.LoadAndPlay(ctx, "/songs/1/map.osu", true)
package player
