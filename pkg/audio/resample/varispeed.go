// ABOUTME: Variable-ratio linear interpolating resampler
// ABOUTME: Keeps fractional position and the previous frame so blocks join seamlessly
package resample

// Varispeed plays audio faster or slower by linear interpolation. A ratio of
// 1.5 consumes 1.5 input frames per output frame, raising pitch by the same
// factor.
type Varispeed struct {
	channels int
	ratio    float64
	// position is the read offset into [prev, input...], in frames
	position float64
	prev     []float32
}

// NewVarispeed creates an interpolator at ratio 1
func NewVarispeed(channels int) *Varispeed {
	return &Varispeed{
		channels: channels,
		ratio:    1.0,
		position: 1.0,
		prev:     make([]float32, channels),
	}
}

// SetRatio changes the speed from the next output frame on
func (v *Varispeed) SetRatio(ratio float64) {
	if ratio <= 0 {
		return
	}
	v.ratio = ratio
}

// Ratio returns the current input/output frame ratio
func (v *Varispeed) Ratio() float64 {
	return v.ratio
}

// Process appends the interpolated output for input to dst and returns it
func (v *Varispeed) Process(dst, input []float32) []float32 {
	ch := v.channels
	frames := len(input) / ch
	if frames == 0 {
		return dst
	}

	frame := func(i int) []float32 {
		if i == 0 {
			return v.prev
		}
		return input[(i-1)*ch : i*ch]
	}

	for {
		idx := int(v.position)
		if idx+1 > frames {
			break
		}
		frac := float32(v.position - float64(idx))
		a := frame(idx)
		b := frame(idx + 1)
		for c := 0; c < ch; c++ {
			dst = append(dst, a[c]+(b[c]-a[c])*frac)
		}
		v.position += v.ratio
	}

	// Shift so the last input frame becomes prev
	v.position -= float64(frames)
	copy(v.prev, input[(frames-1)*ch:frames*ch])

	return dst
}

// Reset forgets the carried frame and position, used after a seek
func (v *Varispeed) Reset() {
	v.position = 1.0
	for i := range v.prev {
		v.prev[i] = 0
	}
}

// OutputFramesFor estimates output frames produced by inputFrames
func (v *Varispeed) OutputFramesFor(inputFrames int) int {
	return int(float64(inputFrames) / v.ratio)
}
