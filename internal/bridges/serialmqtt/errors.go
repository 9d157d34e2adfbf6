package serialmqtt

import "errors"

// Domain errors for the serial bridge package.
var (
	// ErrMissingPublisher is returned by NewBridge without an MQTT publisher.
	ErrMissingPublisher = errors.New("serialmqtt: MQTT publisher is required")

	// ErrSerialNotReady is returned when a serial write is attempted while the
	// link is down.
	ErrSerialNotReady = errors.New("serialmqtt: serial link not ready")

	// ErrFrameTooLong is returned when an outbound serial frame would not fit
	// the device receive buffer.
	ErrFrameTooLong = errors.New("serialmqtt: serial frame too long")

	// ErrNotConnected is returned when an MQTT publish is skipped because the
	// broker link is down.
	ErrNotConnected = errors.New("serialmqtt: MQTT not connected")

	// ErrReaderStopped reports a serial reader that exited without an error.
	ErrReaderStopped = errors.New("serialmqtt: serial reader stopped")

	// ErrScriptNotFound is reported by a ScriptRunner for a script that does
	// not exist. The requester gets MD_INV_OPTS instead of a failure code.
	ErrScriptNotFound = errors.New("serialmqtt: script not found")
)
