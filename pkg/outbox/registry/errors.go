package registry

import "errors"

// NonRetryableError marks a row the publisher must stop retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewNonRetryableError wraps err as permanent.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err, or anything it wraps, is permanent.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}
