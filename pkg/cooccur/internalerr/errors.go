package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNotFitted     = errors.New("corpus not fitted")

	// ErrInvalidDictionary is returned when a supplied dictionary's ids are
	// not the dense range [0, len).
	ErrInvalidDictionary = errors.New("invalid dictionary")

	// ErrMissingToken is returned when a corpus token is absent from a
	// supplied dictionary and missing tokens are not ignored.
	ErrMissingToken = errors.New("token missing from dictionary")
)
