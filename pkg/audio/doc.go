// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the canonical Format, PCMBuffer and sample conversion functions
// Package audio provides the fundamental audio types shared by every stage of
// the playback engine.
//
// All audio inside the engine uses one canonical representation:
//   - Format: sample rate and channel count (44.1kHz stereo by default)
//   - PCMBuffer: immutable interleaved float32 samples in [-1, 1]
//
// Decoders convert whatever they read into this representation so the mixer
// can sum inputs without per-mix resampling.
//
// Example:
//
//	buf := audio.NewPCMBuffer(samples, audio.Canonical)
//	fmt.Println(buf.Duration())
//
//	// Convert a 16-bit PCM sample to float
//	f := audio.SampleFromInt16(s16)
package audio
