package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, registry.ErrDeviceNotFound) {
//	    // unknown device
//	}
var (
	// ErrInvalidDeviceID is returned when a device ID has the wrong length.
	ErrInvalidDeviceID = errors.New("registry: invalid device id")

	// ErrInvalidModuleID is returned when a module ID is malformed or its
	// type is outside the module type table.
	ErrInvalidModuleID = errors.New("registry: invalid module id")

	// ErrInvalidTopic is returned when a module topic is outside the length bounds.
	ErrInvalidTopic = errors.New("registry: invalid topic")

	// ErrInvalidSpecs is returned when module specs are outside the length bounds.
	ErrInvalidSpecs = errors.New("registry: invalid specs")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrModuleNotFound is returned when a module ID does not exist on a device.
	ErrModuleNotFound = errors.New("registry: module not found")

	// ErrModuleInUse is returned when removing a module some device depends on.
	ErrModuleInUse = errors.New("registry: module is a device dependency")

	// ErrBridgeDevice is returned when an operation would remove the bridge's
	// own device.
	ErrBridgeDevice = errors.New("registry: bridge device cannot be removed")
)
