// ABOUTME: Tempo and rate control combining the phase vocoder with varispeed
// ABOUTME: Clamps settings to stable bounds and bypasses processing at unity
package stretch

import (
	"math"

	"github.com/beatmix/beatmix/pkg/audio/resample"
)

const (
	// MinFactor and MaxFactor bound tempo and rate
	MinFactor = 0.25
	MaxFactor = 4.0
)

// Settings selects how playback speed is changed. Tempo stretches time with
// pitch preserved; Rate resamples so pitch follows speed. Both multiply:
// overall speed is Tempo*Rate and pitch scales by Rate. A pitch-only shift
// of p is Tempo 1/p with Rate p.
type Settings struct {
	Tempo float64
	Rate  float64
}

// Unity is normal playback
var Unity = Settings{Tempo: 1, Rate: 1}

// ForPlaybackRate maps a rate multiplier to settings. With useTempo the
// pitch is kept; otherwise pitch moves with speed.
func ForPlaybackRate(rate float64, useTempo bool) Settings {
	if useTempo {
		return Settings{Tempo: rate, Rate: 1}.Normalize()
	}
	return Settings{Tempo: 1, Rate: rate}.Normalize()
}

// ForPitch shifts pitch by factor without changing duration
func ForPitch(factor float64) Settings {
	f := clampFactor(factor)
	return Settings{Tempo: 1 / f, Rate: f}.Normalize()
}

// Normalize clamps both factors to [MinFactor, MaxFactor]
func (s Settings) Normalize() Settings {
	return Settings{Tempo: clampFactor(s.Tempo), Rate: clampFactor(s.Rate)}
}

// Speed is source frames consumed per output frame
func (s Settings) Speed() float64 {
	return s.Tempo * s.Rate
}

// IsUnity reports whether the settings leave audio untouched
func (s Settings) IsUnity() bool {
	return s.Tempo == 1 && s.Rate == 1
}

func clampFactor(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 1
	}
	return math.Max(MinFactor, math.Min(MaxFactor, f))
}

// Engine applies Settings to a stream. It is owned by a single goroutine.
type Engine struct {
	channels int
	settings Settings
	vocoder  *Vocoder
	vari     *resample.Varispeed
	scratch  []float32
}

// NewEngine creates an engine at unity
func NewEngine(channels int) *Engine {
	return &Engine{
		channels: channels,
		settings: Unity,
		vocoder:  NewVocoder(channels),
		vari:     resample.NewVarispeed(channels),
	}
}

// Settings returns the active settings
func (e *Engine) Settings() Settings {
	return e.settings
}

// Apply switches to s. Audio still held by a stage that is being switched
// off is drained into dst so nothing is lost.
func (e *Engine) Apply(s Settings, dst []float32) []float32 {
	s = s.Normalize()
	prev := e.settings
	if s == prev {
		return dst
	}

	if prev.Tempo != 1 && s.Tempo == 1 {
		drained := e.vocoder.Flush(e.scratch[:0])
		dst = e.rateStage(dst, drained, prev.Rate)
	}
	if prev.Tempo == 1 && s.Tempo != 1 {
		e.vocoder.Reset()
	}
	if prev.Rate == 1 && s.Rate != 1 {
		e.vari.Reset()
	}

	e.vocoder.SetTempo(s.Tempo)
	e.vari.SetRatio(s.Rate)
	e.settings = s
	return dst
}

// Process transforms input and appends the result to dst
func (e *Engine) Process(dst, input []float32) []float32 {
	if e.settings.IsUnity() {
		return append(dst, input...)
	}

	x := input
	if e.settings.Tempo != 1 {
		e.scratch = e.vocoder.Process(e.scratch[:0], input)
		x = e.scratch
	}
	return e.rateStage(dst, x, e.settings.Rate)
}

// Flush drains internal buffers at end of stream
func (e *Engine) Flush(dst []float32) []float32 {
	if e.settings.Tempo == 1 {
		return dst
	}
	e.scratch = e.vocoder.Flush(e.scratch[:0])
	return e.rateStage(dst, e.scratch, e.settings.Rate)
}

// Reset discards all internal state, used when the source position jumps
func (e *Engine) Reset() {
	e.vocoder.Reset()
	e.vari.Reset()
}

// Pending returns source frames accepted but not yet output
func (e *Engine) Pending() int {
	if e.settings.Tempo == 1 {
		return 0
	}
	return e.vocoder.Pending()
}

func (e *Engine) rateStage(dst, x []float32, rate float64) []float32 {
	if rate == 1 {
		return append(dst, x...)
	}
	return e.vari.Process(dst, x)
}
