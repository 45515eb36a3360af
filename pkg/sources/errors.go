package sources

import (
	"errors"
	"fmt"
)

// Reasons a source can fail to contribute certificates to a pass. A failed source
// is isolated: the caller logs it and merges whatever the other sources returned.
var (
	ErrCredentialUnavailable = errors.New("credential unavailable")
	ErrUnreachable           = errors.New("cluster unreachable")
	ErrSourceMissing         = errors.New("trust-bundle source missing")
	ErrMalformedPEM          = errors.New("malformed PEM payload")
)

// ReadError wraps one of the sentinel reasons with the identity of the source
// that failed, so alerts can name the offender.
type ReadError struct {
	SourceID string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read source %s: %v", e.SourceID, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func newReadError(sourceID string, reason error, cause error) *ReadError {
	if cause != nil {
		return &ReadError{SourceID: sourceID, Err: fmt.Errorf("%w: %v", reason, cause)}
	}
	return &ReadError{SourceID: sourceID, Err: reason}
}
