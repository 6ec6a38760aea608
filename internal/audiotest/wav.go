// ABOUTME: Test fixtures for audio packages
// ABOUTME: Writes generated WAV files and builds PCM buffers for tests
package audiotest

import (
	"math"
	"os"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/beatmix/beatmix/pkg/audio"
)

// Waveform returns the sample value in [-1, 1] for a frame and channel
type Waveform func(frame, channel int) float64

// Sine returns a sine waveform at freq for the given sample rate
func Sine(freq float64, rate int, amplitude float64) Waveform {
	return func(frame, _ int) float64 {
		return amplitude * math.Sin(2*math.Pi*freq*float64(frame)/float64(rate))
	}
}

// Constant returns a DC waveform
func Constant(v float64) Waveform {
	return func(int, int) float64 { return v }
}

// WriteWAV writes a 16-bit PCM WAV file and fails the test on error
func WriteWAV(tb testing.TB, path string, rate, channels, frames int, wave Waveform) {
	tb.Helper()

	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	data := make([]int, frames*channels)
	for fr := 0; fr < frames; fr++ {
		for ch := 0; ch < channels; ch++ {
			v := wave(fr, ch)
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			data[fr*channels+ch] = int(math.Round(v * 32767))
		}
	}

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		tb.Fatalf("close %s: %v", path, err)
	}
}

// Buffer builds a canonical PCM buffer from a waveform
func Buffer(frames int, wave Waveform) *audio.PCMBuffer {
	ch := audio.CanonicalChannels
	samples := make([]float32, frames*ch)
	for fr := 0; fr < frames; fr++ {
		for c := 0; c < ch; c++ {
			samples[fr*ch+c] = float32(wave(fr, c))
		}
	}
	return audio.NewPCMBuffer(samples, audio.Canonical)
}
