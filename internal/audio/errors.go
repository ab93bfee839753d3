package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable is returned when a local path is missing or unreadable,
	// or when a remote buffer is empty or could not be fetched.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrUnsupportedFormat is returned when no decoder accepts the byte stream.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrTruncated is returned when decoding runs past the end of an in-memory buffer.
	ErrTruncated = errors.New("audio data truncated")

	// ErrSeekOutOfRange is returned for seek targets outside the stream.
	ErrSeekOutOfRange = errors.New("seek out of range")

	// ErrDevice is returned when the output device cannot be initialized or started.
	ErrDevice = errors.New("audio device error")
)

// Error annotates an engine failure with the operation and source that caused it.
type Error struct {
	Op     string // open, decode, seek, device
	Source string
	Err    error
}

func (e *Error) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds an *Error around err. A nil err yields nil.
func Wrap(op, source string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Source: source, Err: err}
}
