// ABOUTME: Audio decode package for multiple codec support
// ABOUTME: Provides the Codec interface, file probing and canonical conversion
// Package decode turns audio files into canonical PCM buffers.
//
// Supports: WAV (8/16/24/32-bit int and 32-bit float), MP3, Ogg Vorbis, FLAC, Opus
//
// The codec is chosen by sniffing the file header, falling back to the file
// extension, because beatmap folders often ship files whose extension does
// not match their content. Every decoded buffer is converted to the
// service's target format (44.1kHz stereo by default) with a streaming
// resampler.
//
// Failures are typed: errors.Is(err, ErrNotFound) for missing files and
// errors.As(err, *DecodeError) for anything the codecs rejected.
//
// Example:
//
//	svc := decode.NewService(decode.Config{})
//	buf, err := svc.DecodeFile(ctx, "/songs/1234/audio.mp3")
package decode
