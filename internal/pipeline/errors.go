package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunkLength is returned by New for a non-positive chunk length.
	ErrInvalidChunkLength = errors.New("chunk length must be positive")

	// ErrNoSampleRate is returned when decoded audio cannot be divided into
	// segments because its sample rate is unknown.
	ErrNoSampleRate = errors.New("decoded audio has no sample rate")
)

// DecodeError reports that the source media could not be decoded. It ends
// the run.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
