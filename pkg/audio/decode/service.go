// ABOUTME: Decode service producing canonical PCM buffers from files
// ABOUTME: Resolves paths by extension probing and converts format with a streaming resampler
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/beatmix/beatmix/pkg/audio/resample"
)

// ProbeExtensions are tried in order when a referenced file has no exact match
var ProbeExtensions = []string{".wav", ".ogg", ".mp3"}

// Config holds decode service configuration
type Config struct {
	// Target is the output format; zero means audio.Canonical
	Target audio.Format

	// Quality selects the resampler filter
	Quality resample.Quality

	// BlockFrames is the conversion block size; zero means 8192
	BlockFrames int
}

// Service decodes files into the target format. It holds no per-file
// state and is safe for concurrent use.
type Service struct {
	config Config
}

// NewService creates a decode service
func NewService(config Config) *Service {
	if !config.Target.IsValid() {
		config.Target = audio.Canonical
	}
	if config.Quality == "" {
		config.Quality = resample.QualityMedium
	}
	if config.BlockFrames <= 0 {
		config.BlockFrames = 8192
	}
	return &Service{config: config}
}

// Target returns the output format
func (s *Service) Target() audio.Format {
	return s.config.Target
}

// Resolve finds the file a reference points to. It tries the path as given,
// then with each probe extension appended, then with its own extension
// replaced by each probe extension.
func Resolve(path string) (string, error) {
	candidates := []string{path}
	for _, ext := range ProbeExtensions {
		candidates = append(candidates, path+ext)
	}
	if ext := filepath.Ext(path); ext != "" {
		base := strings.TrimSuffix(path, ext)
		candidates = append(candidates, base)
		for _, probe := range ProbeExtensions {
			if !strings.EqualFold(probe, ext) {
				candidates = append(candidates, base+probe)
			}
		}
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s: %w", path, ErrNotFound)
}

// DecodeFile resolves and decodes path into the target format
func (s *Service) DecodeFile(ctx context.Context, path string) (*audio.PCMBuffer, error) {
	resolved, err := Resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", resolved, ErrNotFound)
		}
		return nil, &DecodeError{Path: resolved, Err: err}
	}
	defer f.Close()

	return s.Decode(ctx, resolved, f)
}

// Decode reads an already opened stream; name is used for codec fallback and errors
func (s *Service) Decode(ctx context.Context, name string, r io.ReadSeeker) (*audio.PCMBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, &DecodeError{Path: name, Err: err}
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, &DecodeError{Path: name, Err: err}
	}

	codec, ok := CodecFor(name, header[:n])
	if !ok {
		return nil, &DecodeError{Path: name, Err: ErrUnsupportedFormat}
	}

	native, err := decodeSafely(codec, r)
	if err != nil {
		return nil, &DecodeError{Path: name, Codec: codec.Name(), Err: err}
	}
	if !native.Format().IsValid() {
		return nil, &DecodeError{Path: name, Codec: codec.Name(), Err: fmt.Errorf("invalid format %+v", native.Format())}
	}

	out, err := s.Convert(ctx, native)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &DecodeError{Path: name, Codec: codec.Name(), Err: err}
	}
	return out, nil
}

// Convert remixes and resamples buf into the target format block by block,
// checking ctx between blocks
func (s *Service) Convert(ctx context.Context, buf *audio.PCMBuffer) (*audio.PCMBuffer, error) {
	target := s.config.Target
	src := buf.Format()

	samples := audio.Remix(buf.Samples(), src.Channels, target.Channels)
	if src.SampleRate == target.SampleRate {
		return audio.NewPCMBuffer(samples, target), nil
	}

	conv, err := resample.NewConverter(src.SampleRate, target.SampleRate, target.Channels, s.config.Quality)
	if err != nil {
		return nil, err
	}

	expected := int(int64(len(samples)) * int64(target.SampleRate) / int64(src.SampleRate))
	out := make([]float32, 0, expected+target.Channels*64)
	block := s.config.BlockFrames * target.Channels

	for off := 0; off < len(samples); off += block {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := off + block
		if end > len(samples) {
			end = len(samples)
		}
		converted, err := conv.Process(samples[off:end])
		if err != nil {
			return nil, err
		}
		out = append(out, converted...)
	}

	tail, err := conv.Flush()
	if err != nil {
		return nil, err
	}
	out = append(out, tail...)

	return audio.NewPCMBuffer(out, target), nil
}

// decodeSafely converts codec panics on corrupt input into errors
func decodeSafely(codec Codec, r io.ReadSeeker) (buf *audio.PCMBuffer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("codec panic: %v", rec)
		}
	}()
	return codec.Decode(r)
}
