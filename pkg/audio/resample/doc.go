// ABOUTME: Sample rate conversion package
// ABOUTME: Streaming polyphase conversion to the canonical rate plus variable-speed interpolation
// Package resample provides the two rate-changing transforms the engine needs.
//
// Converter wraps a band-limited polyphase resampler and turns decoded audio
// at any source rate into the canonical rate. It is a streaming transform:
// feed blocks in order and call Flush once at the end, and the output is
// identical to converting the whole signal at once.
//
// Varispeed is a lightweight linear interpolator whose ratio may change
// between calls. It carries its fractional read position and the last input
// frame across calls, so a block boundary never produces a gap or a click.
// The time-stretch engine uses it for pitch-coupled rate changes.
//
// Example:
//
//	conv, err := resample.NewConverter(48000, 44100, 2, resample.QualityMedium)
//	out, err := conv.Process(block)
//	tail, err := conv.Flush()
package resample
