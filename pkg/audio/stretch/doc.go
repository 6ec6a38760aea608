// ABOUTME: Time-stretch package for tempo and pitch control
// ABOUTME: Phase vocoder, varispeed engine and the background processor that feeds playback
// Package stretch changes playback speed of streaming audio.
//
// Two independent factors are supported:
//   - Tempo: phase-vocoder time stretch, pitch preserved
//   - Rate: linear-interpolation varispeed, pitch follows speed
//
// Processor runs the Engine on its own goroutine and hands the result to the
// realtime audio callback through a bounded Ring. Control changes queue up
// and apply at the next processing quantum; Seek resets the algorithm state
// so no audio from before the jump leaks into the output.
//
// Example:
//
//	p := stretch.NewProcessor(audio.NewCursor(buf), stretch.Config{})
//	p.Start()
//	defer p.Close()
//	p.SetSettings(stretch.ForPlaybackRate(1.5, true))
//	n := p.Read(out) // from the audio callback
package stretch
