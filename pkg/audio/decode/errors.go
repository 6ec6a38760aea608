// ABOUTME: Decode error types
// ABOUTME: Distinguishes missing files from files the codecs could not read
package decode

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no file exists for a path after probing
	ErrNotFound = errors.New("audio file not found")

	// ErrUnsupportedFormat is returned when no codec recognizes the content
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// DecodeError reports a file that exists but could not be decoded
type DecodeError struct {
	Path  string
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Codec == "" {
		return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("decode %s (%s): %v", e.Path, e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsUnplayable reports whether err means the file should be skipped
func IsUnplayable(err error) bool {
	var de *DecodeError
	return errors.Is(err, ErrNotFound) || errors.As(err, &de)
}
