package serial

import "errors"

// Sentinel errors for serial link operations.
var (
	// ErrClosed is returned when writing to a closed link.
	ErrClosed = errors.New("serial: link closed")

	// ErrOpenFailed is returned when the port cannot be opened or configured.
	ErrOpenFailed = errors.New("serial: open failed")

	// ErrInvalidBaudrate is returned for rates outside StandardBaudrates.
	ErrInvalidBaudrate = errors.New("serial: unsupported baudrate")

	// ErrShortWrite is returned when the port accepts zero bytes without error.
	ErrShortWrite = errors.New("serial: write made no progress")
)
