// ABOUTME: WAV decoder
// ABOUTME: Decodes RIFF/WAVE integer and IEEE float PCM using go-audio/wav
package decode

import (
	"fmt"
	"io"
	"math"

	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/go-audio/wav"
)

const wavFormatIEEEFloat = 3

type wavCodec struct{}

func (wavCodec) Name() string { return "wav" }

func (wavCodec) Decode(r io.ReadSeeker) (*audio.PCMBuffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return nil, fmt.Errorf("invalid wav file: %w", err)
		}
		return nil, fmt.Errorf("invalid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav pcm: %w", err)
	}

	format := audio.Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}
	bitDepth := int(dec.BitDepth)
	isFloat := dec.WavAudioFormat == wavFormatIEEEFloat

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case isFloat && bitDepth == 32:
			samples[i] = math.Float32frombits(uint32(int32(v)))
		case bitDepth == 8:
			// 8-bit WAV is unsigned
			samples[i] = audio.SampleFromInt(v-128, 8)
		default:
			samples[i] = audio.SampleFromInt(v, bitDepth)
		}
	}

	return audio.NewPCMBuffer(samples, format), nil
}
