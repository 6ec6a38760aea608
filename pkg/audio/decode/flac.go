// ABOUTME: FLAC decoder
// ABOUTME: Decodes FLAC frames of any bit depth to float samples using mewkiz/flac
package decode

import (
	"fmt"
	"io"

	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/mewkiz/flac"
)

type flacCodec struct{}

func (flacCodec) Name() string { return "flac" }

func (flacCodec) Decode(r io.ReadSeeker) (*audio.PCMBuffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open flac stream: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	if channels == 0 {
		return nil, fmt.Errorf("flac stream has no channels")
	}

	var samples []float32
	if info.NSamples > 0 {
		samples = make([]float32, 0, int(info.NSamples)*channels)
	}

	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame error: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, audio.SampleFromInt(int(frame.Subframes[ch].Samples[i]), bitDepth))
			}
		}
	}

	return audio.NewPCMBuffer(samples, audio.Format{
		SampleRate: int(info.SampleRate),
		Channels:   channels,
	}), nil
}
