// ABOUTME: Audio type definitions
// ABOUTME: Defines the canonical format, immutable PCM buffers and sample conversions
package audio

import (
	"math"
	"time"
)

const (
	// CanonicalSampleRate is the process-wide output rate
	CanonicalSampleRate = 44100
	// CanonicalChannels is the process-wide output channel count
	CanonicalChannels = 2
)

// Canonical is the format every decoded buffer and mixer input uses
var Canonical = Format{SampleRate: CanonicalSampleRate, Channels: CanonicalChannels}

// Format describes an audio stream format
type Format struct {
	SampleRate int
	Channels   int
}

// IsValid reports whether the format can carry audio
func (f Format) IsValid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// FramesToDuration converts a frame count to wall time at this format's rate
func (f Format) FramesToDuration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(f.SampleRate))
}

// DurationToFrames converts wall time to a frame count, rounding down
func (f Format) DurationToFrames(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(int64(d) * int64(f.SampleRate) / int64(time.Second))
}

// PCMBuffer is decoded interleaved float32 audio. It is never modified after
// construction, so it can be shared freely between goroutines.
type PCMBuffer struct {
	samples []float32
	format  Format
}

// NewPCMBuffer wraps samples. The caller must not modify samples afterwards.
func NewPCMBuffer(samples []float32, format Format) *PCMBuffer {
	if format.Channels > 0 {
		// Drop a trailing partial frame
		samples = samples[:len(samples)-len(samples)%format.Channels]
	}
	return &PCMBuffer{samples: samples, format: format}
}

// Silence returns a zeroed buffer of the given length
func Silence(d time.Duration, format Format) *PCMBuffer {
	frames := format.DurationToFrames(d)
	return NewPCMBuffer(make([]float32, frames*format.Channels), format)
}

// Samples returns the interleaved samples. The slice must be treated as read-only.
func (b *PCMBuffer) Samples() []float32 {
	return b.samples
}

// Format returns the buffer format
func (b *PCMBuffer) Format() Format {
	return b.format
}

// Frames returns the number of sample frames
func (b *PCMBuffer) Frames() int {
	if b.format.Channels == 0 {
		return 0
	}
	return len(b.samples) / b.format.Channels
}

// Duration returns the playback length at the buffer's own rate
func (b *PCMBuffer) Duration() time.Duration {
	return b.format.FramesToDuration(b.Frames())
}

// SampleFromInt16 converts a 16-bit PCM sample to float in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// SampleFromInt converts a signed integer sample of the given bit depth to float
func SampleFromInt(sample int, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	scale := float32(int64(1) << uint(bitDepth-1))
	return float32(sample) / scale
}

// SampleToInt16 converts a float sample to 16-bit PCM with clipping
func SampleToInt16(sample float32) int16 {
	s := Clamp(sample) * 32767.0
	return int16(math.Round(float64(s)))
}

// Clamp limits a sample to [-1, 1]; NaN becomes silence
func Clamp(sample float32) float32 {
	if sample != sample {
		return 0
	}
	if sample > 1 {
		return 1
	}
	if sample < -1 {
		return -1
	}
	return sample
}

// Remix converts interleaved samples between channel counts. Mono is
// duplicated to every output channel; extra input channels are folded into
// the first outputs by averaging.
func Remix(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}
	frames := len(samples) / from
	out := make([]float32, frames*to)
	for f := 0; f < frames; f++ {
		in := samples[f*from : f*from+from]
		dst := out[f*to : f*to+to]
		if from == 1 {
			for ch := range dst {
				dst[ch] = in[0]
			}
			continue
		}
		if from < to {
			for ch := range dst {
				dst[ch] = in[ch%from]
			}
			continue
		}
		// Fold: output channel ch averages input channels ch, ch+to, ...
		for ch := range dst {
			var sum float32
			n := 0
			for src := ch; src < from; src += to {
				sum += in[src]
				n++
			}
			dst[ch] = sum / float32(n)
		}
	}
	return out
}
