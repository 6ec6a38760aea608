// ABOUTME: Mixing engine package
// ABOUTME: Sums a dynamic set of sources into one canonical output stream
// Package mixer sums audio sources for the output device.
//
// The input list is copy-on-write: AddInput and RemoveInput build a new
// slice under a mutex and publish it atomically, and the realtime callback
// only ever loads the latest published slice. The callback therefore never
// waits for a writer and never sees a half-updated list.
//
// Sources that end on their own (one-shot voices) are detected by the
// callback and removed later by a reaper goroutine, so the callback itself
// never allocates.
//
// Example:
//
//	m := mixer.New(mixer.Config{})
//	m.Start()
//	h, err := m.AddInput(voice, mixer.Controls{Volume: 0.8, Balance: -0.2})
//	...
//	m.RemoveInput(h)
package mixer
