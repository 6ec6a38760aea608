// ABOUTME: Ogg Opus decoder
// ABOUTME: Decodes .opus files with libopusfile through hraban/opus
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/beatmix/beatmix/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// Opus always decodes at 48kHz
const opusSampleRate = 48000

type opusCodec struct{}

func (opusCodec) Name() string { return "opus" }

func (opusCodec) Decode(r io.ReadSeeker) (*audio.PCMBuffer, error) {
	header := make([]byte, 512)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read opus header: %w", err)
	}
	channels, err := opusChannels(header[:n])
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind opus stream: %w", err)
	}

	stream, err := opus.NewStream(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	var samples []float32
	buf := make([]float32, 5760*channels) // 120ms max frame
	for {
		// Read returns samples per channel
		n, err := stream.ReadFloat32(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		if n == 0 {
			break
		}
		samples = append(samples, buf[:n*channels]...)
	}

	return audio.NewPCMBuffer(samples, audio.Format{
		SampleRate: opusSampleRate,
		Channels:   channels,
	}), nil
}

// opusChannels reads the channel count from the OpusHead identification packet
func opusChannels(header []byte) (int, error) {
	idx := bytes.Index(header, []byte("OpusHead"))
	if idx < 0 || idx+9 >= len(header) {
		return 0, fmt.Errorf("missing OpusHead packet")
	}
	channels := int(header[idx+9])
	if channels == 0 {
		return 0, fmt.Errorf("invalid opus channel count")
	}
	return channels, nil
}
