// ABOUTME: Tests for the vocoder and stretch engine
// ABOUTME: Verifies duration scaling, pitch behavior per mode, bypass and clamping
package stretch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 44100

func stereoSine(frames int, freq float64) []float32 {
	out := make([]float32, frames*2)
	for f := 0; f < frames; f++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(f)/testRate))
		out[f*2] = v
		out[f*2+1] = v
	}
	return out
}

// dominantFrequency estimates frequency from rising zero crossings of the
// left channel, skipping the edges where windows fade in and out
func dominantFrequency(samples []float32) float64 {
	frames := len(samples) / 2
	from, to := frames/4, frames*3/4
	crossings := 0
	first, last := -1, -1
	for f := from + 1; f < to; f++ {
		if samples[(f-1)*2] < 0 && samples[f*2] >= 0 {
			if first < 0 {
				first = f
			}
			last = f
			crossings++
		}
	}
	if crossings < 2 {
		return 0
	}
	return float64(crossings-1) * testRate / float64(last-first)
}

func runEngine(e *Engine, input []float32) []float32 {
	var out []float32
	const block = 1024 * 2
	for off := 0; off < len(input); off += block {
		end := off + block
		if end > len(input) {
			end = len(input)
		}
		out = e.Process(out, input[off:end])
	}
	return e.Flush(out)
}

func TestEngineUnityIsPassthrough(t *testing.T) {
	e := NewEngine(2)
	in := stereoSine(5000, 440)

	out := runEngine(e, in)

	require.Len(t, out, len(in))
	assert.Equal(t, in, out)
}

func TestTempoPreservesPitch(t *testing.T) {
	e := NewEngine(2)
	e.Apply(ForPlaybackRate(1.5, true), nil)

	in := stereoSine(testRate*2, 440)
	out := runEngine(e, in)

	expectedFrames := float64(testRate*2) / 1.5
	assert.InDelta(t, expectedFrames, float64(len(out)/2), expectedFrames*0.02)
	assert.InDelta(t, 440, dominantFrequency(out), 440*0.03)
}

func TestRateShiftsPitch(t *testing.T) {
	e := NewEngine(2)
	e.Apply(ForPlaybackRate(1.5, false), nil)

	in := stereoSine(testRate*2, 440)
	out := runEngine(e, in)

	expectedFrames := float64(testRate*2) / 1.5
	assert.InDelta(t, expectedFrames, float64(len(out)/2), expectedFrames*0.02)
	assert.InDelta(t, 660, dominantFrequency(out), 660*0.03)
}

func TestPitchOnlyKeepsDuration(t *testing.T) {
	e := NewEngine(2)
	e.Apply(ForPitch(1.25), nil)

	in := stereoSine(testRate*2, 400)
	out := runEngine(e, in)

	assert.InDelta(t, float64(testRate*2), float64(len(out)/2), float64(testRate*2)*0.02)
	assert.InDelta(t, 500, dominantFrequency(out), 500*0.03)
}

func TestSettingsClamp(t *testing.T) {
	tests := []struct {
		name     string
		input    Settings
		expected Settings
	}{
		{"too fast", Settings{Tempo: 10, Rate: 1}, Settings{Tempo: MaxFactor, Rate: 1}},
		{"too slow", Settings{Tempo: 1, Rate: 0.01}, Settings{Tempo: 1, Rate: MinFactor}},
		{"nan", Settings{Tempo: math.NaN(), Rate: 1}, Unity},
		{"negative", Settings{Tempo: -2, Rate: math.Inf(1)}, Unity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.input.Normalize())
		})
	}
}

func TestExtremeTempoStaysFinite(t *testing.T) {
	for _, s := range []Settings{{Tempo: 100, Rate: 1}, {Tempo: 0.0001, Rate: 50}} {
		e := NewEngine(2)
		e.Apply(s, nil)
		out := runEngine(e, stereoSine(20000, 1000))

		require.NotEmpty(t, out)
		for i, v := range out {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("sample %d is not finite", i)
			}
		}
	}
}

func TestApplyMidStreamDrainsVocoder(t *testing.T) {
	e := NewEngine(2)
	e.Apply(ForPlaybackRate(1.5, true), nil)

	in := stereoSine(testRate, 440)
	out := e.Process(nil, in[:len(in)/2])
	out = e.Apply(Unity, out)
	out = e.Process(out, in[len(in)/2:])

	// First half shortened by 1/1.5, second half untouched
	expected := float64(testRate/2)/1.5 + float64(testRate/2)
	assert.InDelta(t, expected, float64(len(out)/2), expected*0.03)
	assert.Equal(t, Unity, e.Settings())
}

func TestVocoderUnityReconstructs(t *testing.T) {
	v := NewVocoder(2)
	in := stereoSine(testRate/2, 440)

	out := v.Process(nil, in)
	out = v.Flush(out)

	require.Len(t, out, len(in))
	// Past the first window the overlap-add is transparent
	for f := DefaultFrameSize; f < len(in)/2-DefaultFrameSize; f++ {
		if math.Abs(float64(out[f*2]-in[f*2])) > 1e-3 {
			t.Fatalf("frame %d: expected %f, got %f", f, in[f*2], out[f*2])
		}
	}
}
