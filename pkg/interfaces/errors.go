package interfaces

import "errors"

// Errors shared across component boundaries.
var (
	ErrUnauthorized = errors.New("unauthorized")
)
