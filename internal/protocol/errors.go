package protocol

import "errors"

// Decode and encode errors.
var (
	// ErrNoDigits is returned when an integer field holds no digits.
	ErrNoDigits = errors.New("protocol: integer field has no digits")

	// ErrTokenLength is returned when a token is longer than allowed or does
	// not have the exact required length.
	ErrTokenLength = errors.New("protocol: bad token length")

	// ErrEmpty is returned when a field is requested past the end of a frame.
	ErrEmpty = errors.New("protocol: no more fields")

	// ErrOverflow is returned when a write would exceed the encoder capacity.
	ErrOverflow = errors.New("protocol: frame exceeds capacity")
)
