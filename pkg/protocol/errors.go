package protocol

import "errors"

var (
	// ErrMalformedEnvelope means the raw input was not a parseable envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrInvalidCommand means the envelope parsed but does not describe one
	// of the recognized commands: unknown type/resource pair, missing id,
	// or a required data field that is absent or empty after trimming.
	ErrInvalidCommand = errors.New("invalid command")
)
