// ABOUTME: Codec interface and registry
// ABOUTME: Selects a codec by sniffing file headers with extension fallback
package decode

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/beatmix/beatmix/pkg/audio"
)

// Codec decodes one container format to PCM at the file's native format
type Codec interface {
	// Name identifies the codec in logs and errors
	Name() string

	// Decode reads the whole stream into memory
	Decode(r io.ReadSeeker) (*audio.PCMBuffer, error)
}

var codecs = map[string]Codec{
	"wav":  wavCodec{},
	"mp3":  mp3Codec{},
	"ogg":  vorbisCodec{},
	"flac": flacCodec{},
	"opus": opusCodec{},
}

var extensions = map[string]string{
	".wav":  "wav",
	".wave": "wav",
	".mp3":  "mp3",
	".ogg":  "ogg",
	".oga":  "ogg",
	".flac": "flac",
	".opus": "opus",
}

// sniffLen is enough to see an Ogg page header plus the first packet magic
const sniffLen = 64

// CodecFor picks a codec from the file header, then from the extension
func CodecFor(path string, header []byte) (Codec, bool) {
	if name := sniff(header); name != "" {
		return codecs[name], true
	}
	if name, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return codecs[name], true
	}
	return nil, false
}

// sniff identifies well-known magic numbers
func sniff(header []byte) string {
	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(header, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(header, []byte("OggS")):
		if bytes.Contains(header, []byte("OpusHead")) {
			return "opus"
		}
		return "ogg"
	case bytes.HasPrefix(header, []byte("ID3")):
		return "mp3"
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return "mp3"
	}
	return ""
}
