// ABOUTME: Streaming sample rate converter built on go-audio-resampler
// ABOUTME: Runs one polyphase engine per channel and re-interleaves the output
package resample

import (
	"fmt"
	"strings"

	resampler "github.com/tphakala/go-audio-resampler"
)

// Quality selects the filter design used by Converter
type Quality string

const (
	QualityQuick    Quality = "quick"
	QualityLow      Quality = "low"
	QualityMedium   Quality = "medium"
	QualityHigh     Quality = "high"
	QualityVeryHigh Quality = "veryhigh"
)

// ParseQuality maps a settings string to a Quality, defaulting to medium
func ParseQuality(s string) Quality {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityQuick, QualityLow, QualityMedium, QualityHigh, QualityVeryHigh:
		return q
	default:
		return QualityMedium
	}
}

func (q Quality) preset() resampler.QualityPreset {
	switch q {
	case QualityQuick:
		return resampler.QualityQuick
	case QualityLow:
		return resampler.QualityLow
	case QualityHigh:
		return resampler.QualityHigh
	case QualityVeryHigh:
		return resampler.QualityVeryHigh
	default:
		return resampler.QualityMedium
	}
}

// Converter converts interleaved float32 audio between sample rates
type Converter struct {
	inputRate  int
	outputRate int
	channels   int
	engines    []*resampler.SimpleResampler
	planar     [][]float64
}

// NewConverter creates a streaming converter for the given channel layout
func NewConverter(inputRate, outputRate, channels int, quality Quality) (*Converter, error) {
	if inputRate <= 0 || outputRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid converter format: %dHz -> %dHz, %d channels", inputRate, outputRate, channels)
	}

	c := &Converter{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		planar:     make([][]float64, channels),
	}

	if inputRate == outputRate {
		return c, nil
	}

	c.engines = make([]*resampler.SimpleResampler, channels)
	for ch := 0; ch < channels; ch++ {
		engine, err := resampler.NewEngine(float64(inputRate), float64(outputRate), quality.preset())
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler engine: %w", err)
		}
		c.engines[ch] = engine
	}

	return c, nil
}

// Passthrough reports whether the converter leaves audio untouched
func (c *Converter) Passthrough() bool {
	return c.engines == nil
}

// Process converts one block of interleaved input
func (c *Converter) Process(input []float32) ([]float32, error) {
	if c.Passthrough() {
		return input, nil
	}

	frames := len(input) / c.channels
	for ch := 0; ch < c.channels; ch++ {
		if cap(c.planar[ch]) < frames {
			c.planar[ch] = make([]float64, frames)
		}
		c.planar[ch] = c.planar[ch][:frames]
	}
	for f := 0; f < frames; f++ {
		for ch := 0; ch < c.channels; ch++ {
			c.planar[ch][f] = float64(input[f*c.channels+ch])
		}
	}

	outs := make([][]float64, c.channels)
	for ch, engine := range c.engines {
		out, err := engine.Process(c.planar[ch])
		if err != nil {
			return nil, fmt.Errorf("resample channel %d: %w", ch, err)
		}
		outs[ch] = out
	}

	return interleave(outs), nil
}

// Flush drains the filter delay line at end of stream
func (c *Converter) Flush() ([]float32, error) {
	if c.Passthrough() {
		return nil, nil
	}

	outs := make([][]float64, c.channels)
	for ch, engine := range c.engines {
		out, err := engine.Flush()
		if err != nil {
			return nil, fmt.Errorf("flush channel %d: %w", ch, err)
		}
		outs[ch] = out
	}

	return interleave(outs), nil
}

// Reset clears internal filter state
func (c *Converter) Reset() {
	for _, engine := range c.engines {
		engine.Reset()
	}
}

// interleave merges planar channels, truncating to the shortest channel
func interleave(planar [][]float64) []float32 {
	if len(planar) == 0 {
		return nil
	}
	frames := len(planar[0])
	for _, p := range planar[1:] {
		if len(p) < frames {
			frames = len(p)
		}
	}

	channels := len(planar)
	out := make([]float32, frames*channels)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			out[f*channels+ch] = float32(planar[ch][f])
		}
	}
	return out
}
