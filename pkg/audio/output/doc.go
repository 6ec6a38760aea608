// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface with oto and headless implementations
// Package output drives an audio device from a pull source.
//
// The device calls back into the source (normally the mixer) for float32
// little-endian frames whenever it needs more audio. Null paces the same
// pull loop with a ticker and is used headless and in tests.
//
// Example:
//
//	out := output.NewOto(output.Config{})
//	err := out.Open(audio.Canonical, mixer)
//	...
//	out.Close()
package output
