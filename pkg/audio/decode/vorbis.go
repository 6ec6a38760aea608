// ABOUTME: Ogg Vorbis decoder
// ABOUTME: Decodes Vorbis streams to float samples using oggvorbis
package decode

import (
	"fmt"
	"io"

	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

type vorbisCodec struct{}

func (vorbisCodec) Name() string { return "ogg" }

func (vorbisCodec) Decode(r io.ReadSeeker) (*audio.PCMBuffer, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create vorbis decoder: %w", err)
	}

	channels := dec.Channels()
	var samples []float32
	if n := dec.Length(); n > 0 {
		samples = make([]float32, 0, n*int64(channels))
	}

	// Read returns values (frames * channels), always a multiple of channels
	buf := make([]float32, 4096*channels)
	for {
		n, err := dec.Read(buf)
		samples = append(samples, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vorbis decode error: %w", err)
		}
	}

	return audio.NewPCMBuffer(samples, audio.Format{
		SampleRate: dec.SampleRate(),
		Channels:   channels,
	}), nil
}
