package playback

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Play when the slot is occupied by a playback of
// higher priority (or equal ambient priority). Rejected requests are not
// queued.
var ErrBusy = errors.New("playback: slot busy")

// transientError wraps failures worth retrying, such as a decoder process
// dying mid-stream. Permanent failures (missing file, bad filter string) are
// returned unwrapped and consume the whole attempt budget at once.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("playback: transient: %v", e.err)
}

func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
