package providers

import (
	"errors"
	"fmt"
)

// ErrGenerationUnavailable marks a failed language-model call. It is
// recoverable: the caller skips the cycle and tries again on the next poll.
var ErrGenerationUnavailable = errors.New("generation unavailable")

type ErrorKind string

const (
	// KindRejected means the API answered with an error status.
	KindRejected ErrorKind = "rejected"
	// KindTransport covers network, timeout and decoding failures.
	KindTransport ErrorKind = "transport"
)

type GenerationError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Kind == KindRejected && e.StatusCode != 0 {
		return fmt.Sprintf("%s request rejected (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationUnavailable, e.Err}
}

// IsRejected reports whether err is a GenerationError of kind rejected.
func IsRejected(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Kind == KindRejected
}
