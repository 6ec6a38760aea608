// ABOUTME: Tests for the streaming sample rate converter
// ABOUTME: Checks passthrough, output length and finite output
package resample

import (
	"math"
	"testing"
)

func sine(frames, channels, rate int, freq float64) []float32 {
	out := make([]float32, frames*channels)
	for f := 0; f < frames; f++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(f)/float64(rate)))
		for ch := 0; ch < channels; ch++ {
			out[f*channels+ch] = v
		}
	}
	return out
}

func TestConverterPassthrough(t *testing.T) {
	c, err := NewConverter(44100, 44100, 2, QualityMedium)
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	if !c.Passthrough() {
		t.Fatal("expected passthrough for equal rates")
	}

	in := sine(100, 2, 44100, 440)
	out, err := c.Process(in)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(out) != len(in) {
		t.Errorf("expected %d samples, got %d", len(in), len(out))
	}
}

func TestConverterInvalidFormat(t *testing.T) {
	if _, err := NewConverter(0, 44100, 2, QualityMedium); err == nil {
		t.Error("expected error for zero input rate")
	}
	if _, err := NewConverter(44100, 44100, 0, QualityMedium); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestConverterStreamingLength(t *testing.T) {
	c, err := NewConverter(48000, 44100, 2, QualityQuick)
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}

	in := sine(48000, 2, 48000, 440)
	var total int
	const block = 4800 * 2
	for off := 0; off < len(in); off += block {
		out, err := c.Process(in[off : off+block])
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		for _, s := range out {
			if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				t.Fatal("converter produced non-finite sample")
			}
		}
		total += len(out) / 2
	}
	tail, err := c.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	total += len(tail) / 2

	expected := 44100
	if diff := math.Abs(float64(total - expected)); diff > float64(expected)*0.05 {
		t.Errorf("expected ~%d frames, got %d", expected, total)
	}
}

func TestParseQuality(t *testing.T) {
	tests := []struct {
		input    string
		expected Quality
	}{
		{"high", QualityHigh},
		{" QUICK ", QualityQuick},
		{"", QualityMedium},
		{"bogus", QualityMedium},
	}

	for _, tt := range tests {
		if got := ParseQuality(tt.input); got != tt.expected {
			t.Errorf("ParseQuality(%q): expected %s, got %s", tt.input, tt.expected, got)
		}
	}
}
