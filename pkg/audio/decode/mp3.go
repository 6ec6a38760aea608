// ABOUTME: MP3 decoder
// ABOUTME: Decodes MPEG-1/2 layer III audio to float samples using go-mp3
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit little-endian stereo
const mp3Channels = 2

type mp3Codec struct{}

func (mp3Codec) Name() string { return "mp3" }

func (mp3Codec) Decode(r io.ReadSeeker) (*audio.PCMBuffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	var samples []float32
	if n := decoder.Length(); n > 0 {
		samples = make([]float32, 0, n/2)
	}

	buf := make([]byte, 16384)
	for {
		n, err := decoder.Read(buf)
		// Convert bytes to int16 then to float
		for i := 0; i+1 < n; i += 2 {
			s := int16(binary.LittleEndian.Uint16(buf[i:]))
			samples = append(samples, audio.SampleFromInt16(s))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mp3 decode error: %w", err)
		}
	}

	return audio.NewPCMBuffer(samples, audio.Format{
		SampleRate: decoder.SampleRate(),
		Channels:   mp3Channels,
	}), nil
}
