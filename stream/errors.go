package stream

import (
	"errors"
	"fmt"
)

// Sentinel errors for stream decoding.
var (
	// ErrMalformed is returned when too many consecutive frames fail to
	// parse and the sequence is aborted.
	ErrMalformed = errors.New("stream: malformed event stream")

	// ErrFrameTooLarge is returned when a single frame exceeds the
	// configured size bound without a delimiter.
	ErrFrameTooLarge = errors.New("stream: frame exceeds size limit")

	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("stream: decoder closed")
)

// MalformedError reports a stream aborted after consecutive parse failures.
type MalformedError struct {
	// Consecutive is the number of malformed frames in a row.
	Consecutive int

	// Frame is a truncated copy of the last offending payload.
	Frame string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("stream: aborted after %d consecutive malformed frames: %q", e.Consecutive, e.Frame)
}

// Is allows MalformedError to match ErrMalformed.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}
