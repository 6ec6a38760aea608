// ABOUTME: Phase vocoder for tempo change with pitch preserved
// ABOUTME: Streaming STFT analysis/resynthesis using gonum's real FFT
package stretch

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// DefaultFrameSize is the STFT window length (about 46ms at 44.1kHz)
	DefaultFrameSize = 2048

	// overlap is the number of synthesis hops per window
	overlap = 4

	// hannOverlapGain is the summed squared Hann window at 75% overlap
	hannOverlapGain = 1.5
)

// Vocoder time-stretches interleaved audio by a tempo factor without
// changing pitch. Tempo 1.5 produces output 1/1.5 as long.
type Vocoder struct {
	channels  int
	frameSize int
	hop       int
	tempo     float64

	fft    *fourier.FFT
	window []float64
	chans  []*vocoderChannel

	// position is the next analysis frame start within each channel's input
	position  float64
	lastStart int
	primed    bool

	// owed is output frames still due for input already accepted
	owed float64

	frame  []float64
	coeffs []complex128
}

type vocoderChannel struct {
	in        []float64
	acc       []float64
	lastPhase []float64
	sumPhase  []float64
}

// NewVocoder creates a vocoder with the default frame size at tempo 1
func NewVocoder(channels int) *Vocoder {
	return NewVocoderSize(channels, DefaultFrameSize)
}

// NewVocoderSize creates a vocoder with a custom power-of-two frame size
func NewVocoderSize(channels, frameSize int) *Vocoder {
	v := &Vocoder{
		channels:  channels,
		frameSize: frameSize,
		hop:       frameSize / overlap,
		tempo:     1.0,
		fft:       fourier.NewFFT(frameSize),
		window:    make([]float64, frameSize),
		chans:     make([]*vocoderChannel, channels),
		frame:     make([]float64, frameSize),
		coeffs:    make([]complex128, frameSize/2+1),
	}

	// Periodic Hann
	for i := range v.window {
		v.window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(frameSize))
	}
	for ch := range v.chans {
		v.chans[ch] = &vocoderChannel{
			acc:       make([]float64, frameSize),
			lastPhase: make([]float64, frameSize/2+1),
			sumPhase:  make([]float64, frameSize/2+1),
		}
	}
	return v
}

// SetTempo changes the stretch factor from the next analysis frame on
func (v *Vocoder) SetTempo(tempo float64) {
	if tempo > 0 {
		v.tempo = tempo
	}
}

// Tempo returns the current stretch factor
func (v *Vocoder) Tempo() float64 {
	return v.tempo
}

// Pending returns input frames accepted but not yet represented in output
func (v *Vocoder) Pending() int {
	if len(v.chans) == 0 {
		return 0
	}
	p := len(v.chans[0].in) - int(v.position)
	if p < 0 {
		return 0
	}
	return p
}

// Latency returns the algorithmic delay in frames
func (v *Vocoder) Latency() int {
	return v.frameSize
}

// Process accepts interleaved input and appends any completed output to dst
func (v *Vocoder) Process(dst, input []float32) []float32 {
	frames := len(input) / v.channels
	for ch, c := range v.chans {
		for f := 0; f < frames; f++ {
			c.in = append(c.in, float64(input[f*v.channels+ch]))
		}
	}
	v.owed += float64(frames) / v.tempo

	return v.run(dst, false)
}

// Flush pushes out everything still buffered and resets the vocoder
func (v *Vocoder) Flush(dst []float32) []float32 {
	for _, c := range v.chans {
		c.in = append(c.in, make([]float64, v.frameSize)...)
	}
	dst = v.run(dst, true)

	// Remaining overlap-add tail
	for i := 0; i < v.frameSize && v.owed >= 1; i++ {
		for _, c := range v.chans {
			dst = append(dst, float32(c.acc[i]/hannOverlapGain))
		}
		v.owed--
	}

	v.Reset()
	return dst
}

// Reset drops all buffered audio and phase state
func (v *Vocoder) Reset() {
	for _, c := range v.chans {
		c.in = c.in[:0]
		clear(c.acc)
		clear(c.lastPhase)
		clear(c.sumPhase)
	}
	v.position = 0
	v.lastStart = 0
	v.primed = false
	v.owed = 0
}

func (v *Vocoder) run(dst []float32, flushing bool) []float32 {
	n := v.frameSize
	for {
		start := int(v.position)
		if start+n > len(v.chans[0].in) {
			break
		}
		if flushing && v.owed < 1 {
			break
		}

		analysisHop := float64(start - v.lastStart)
		for _, c := range v.chans {
			v.processFrame(c, start, analysisHop)
		}
		v.primed = true
		v.lastStart = start

		emit := v.hop
		if flushing && float64(emit) > v.owed {
			emit = int(v.owed)
		}
		for i := 0; i < emit; i++ {
			for _, c := range v.chans {
				dst = append(dst, float32(c.acc[i]/hannOverlapGain))
			}
		}
		v.owed -= float64(emit)

		for _, c := range v.chans {
			copy(c.acc, c.acc[v.hop:])
			clear(c.acc[n-v.hop:])
		}

		v.position += float64(v.hop) * v.tempo
	}

	// Drop input no future frame can reach
	if drop := int(v.position); drop > 0 && drop <= len(v.chans[0].in) {
		for _, c := range v.chans {
			c.in = append(c.in[:0], c.in[drop:]...)
		}
		v.position -= float64(drop)
		v.lastStart -= drop
	}

	return dst
}

func (v *Vocoder) processFrame(c *vocoderChannel, start int, analysisHop float64) {
	n := v.frameSize
	for i := 0; i < n; i++ {
		v.frame[i] = c.in[start+i] * v.window[i]
	}
	v.fft.Coefficients(v.coeffs, v.frame)

	for k, coeff := range v.coeffs {
		mag := cmplx.Abs(coeff)
		phase := cmplx.Phase(coeff)

		if !v.primed || analysisHop <= 0 {
			c.sumPhase[k] = phase
		} else {
			omega := 2 * math.Pi * float64(k) / float64(n)
			delta := wrapPhase(phase - c.lastPhase[k] - omega*analysisHop)
			trueFreq := omega + delta/analysisHop
			c.sumPhase[k] = wrapPhase(c.sumPhase[k] + trueFreq*float64(v.hop))
		}
		c.lastPhase[k] = phase
		v.coeffs[k] = cmplx.Rect(mag, c.sumPhase[k])
	}

	v.fft.Sequence(v.frame, v.coeffs)
	scale := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		c.acc[i] += v.frame[i] * scale * v.window[i]
	}
}

// wrapPhase maps an angle into [-pi, pi]
func wrapPhase(p float64) float64 {
	return p - 2*math.Pi*math.Round(p/(2*math.Pi))
}
