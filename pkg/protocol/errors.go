package protocol

import "errors"

// HandlerError classifies a handler failure for the executor's retry policy.
// Transient failures (network, timeout, 5xx) are retried up to the node's
// budget; permanent failures (4xx, validation) are not.
type HandlerError struct {
	Permanent bool
	Err       error
}

func (e *HandlerError) Error() string {
	return e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as retryable.
func NewTransientError(err error) *HandlerError {
	return &HandlerError{Err: err}
}

// NewPermanentError wraps an error as non-retryable.
func NewPermanentError(err error) *HandlerError {
	return &HandlerError{Permanent: true, Err: err}
}

// IsPermanent reports whether err is a non-retryable handler failure.
// Unclassified errors are treated as transient so collaborator hiccups get
// the node's retry budget.
func IsPermanent(err error) bool {
	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return handlerErr.Permanent
	}

	return false
}
