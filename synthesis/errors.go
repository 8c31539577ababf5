package synthesis

import "errors"

var (
	// ErrCompleterRequired indicates a nil completion client.
	ErrCompleterRequired = errors.New("completer required")
	// ErrInvalidMaxAttempts indicates an invalid retry configuration.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")
)
