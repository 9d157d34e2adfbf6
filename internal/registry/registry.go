package registry

import "fmt"

// Registry is the root of the device and module tree.
//
// It owns the bridge's own device plus the dynamic collection of devices
// discovered on the transports. Lookups are by ID; enumeration follows
// insertion order.
type Registry struct {
	bridge  *Device
	devices ordered[*Device]

	// serialDevice aliases the device most recently heard on the serial
	// link. Cleared when that device is removed.
	serialDevice string
}

// New creates a registry whose bridge device has the given ID. The bridge
// device owns the bridge identity module and depends on it.
func New(bridgeID string) (*Registry, error) {
	if !ValidDeviceID(bridgeID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDeviceID, bridgeID)
	}

	dev := newDevice(bridgeID, ModuleBridge, 0)
	if _, err := dev.AddModule(ModuleBridge, true); err != nil {
		return nil, err
	}

	return &Registry{
		bridge:  dev,
		devices: newOrdered[*Device](),
	}, nil
}

// BridgeDevice returns the bridge's own device.
func (r *Registry) BridgeDevice() *Device {
	return r.bridge
}

// IsBridge reports whether dev is the bridge's own device.
func (r *Registry) IsBridge(dev *Device) bool {
	return dev == r.bridge
}

// AddDevice registers a device introduced by the bridge module dependsOn.
//
// The dependency must be a module hosted by the bridge device. Adding an
// existing ID returns the existing device unchanged.
//
// Returns:
//   - *Device: the new or existing device
//   - error: ErrInvalidDeviceID, ErrInvalidModuleID or ErrModuleNotFound
func (r *Registry) AddDevice(id, dependsOn string) (*Device, error) {
	if !ValidDeviceID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}
	if !ValidModuleID(dependsOn) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModuleID, dependsOn)
	}
	if _, err := r.bridge.GetModule(dependsOn); err != nil {
		return nil, err
	}

	if id == r.bridge.ID {
		return r.bridge, nil
	}
	if dev, ok := r.devices.get(id); ok {
		return dev, nil
	}

	dev := newDevice(id, dependsOn, DeviceAliveMax)
	r.devices.put(id, dev)
	return dev, nil
}

// GetDevice looks up a device by ID. The bridge device is found by its own ID.
func (r *Registry) GetDevice(id string) (*Device, error) {
	if !ValidDeviceID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}
	if id == r.bridge.ID {
		return r.bridge, nil
	}
	dev, ok := r.devices.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return dev, nil
}

// GetDeviceByNumericID returns the n-th device. Zero is the bridge device;
// discovered devices are numbered from one in insertion order.
func (r *Registry) GetDeviceByNumericID(n int) (*Device, error) {
	if n == 0 {
		return r.bridge, nil
	}
	dev, ok := r.devices.at(n - 1)
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ErrDeviceNotFound, n)
	}
	return dev, nil
}

// Devices returns the discovered devices in insertion order. The bridge
// device is not included.
func (r *Registry) Devices() []*Device {
	return r.devices.values()
}

// DeviceCount returns the number of discovered devices.
func (r *Registry) DeviceCount() int {
	return r.devices.len()
}

// RemoveDevice drops a discovered device and clears any alias pointing at it.
func (r *Registry) RemoveDevice(id string) error {
	if !ValidDeviceID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}
	if id == r.bridge.ID {
		return ErrBridgeDevice
	}
	if !r.devices.remove(id) {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if r.serialDevice == id {
		r.serialDevice = ""
	}
	return nil
}

// RemoveModule drops a module from dev.
//
// The removal is refused with ErrModuleInUse while any device, the bridge
// device included, depends on a module with that ID.
func (r *Registry) RemoveModule(dev *Device, id string) error {
	if deps := r.DependentsOf(id); len(deps) > 0 {
		return fmt.Errorf("%w: %s needed by %v", ErrModuleInUse, id, deps)
	}
	if !dev.modules.remove(id) {
		return fmt.Errorf("%w: %s/%s", ErrModuleNotFound, dev.ID, id)
	}
	return nil
}

// RemoveAllModules empties dev's module list. It stops at the first guarded
// removal and returns its error.
func (r *Registry) RemoveAllModules(dev *Device) error {
	for dev.modules.len() > 0 {
		md, _ := dev.modules.at(0)
		if err := r.RemoveModule(dev, md.ID); err != nil {
			return err
		}
	}
	return nil
}

// DependentsOf returns the IDs of devices whose dependency is moduleID.
func (r *Registry) DependentsOf(moduleID string) []string {
	var ids []string
	if r.bridge.DependsOn == moduleID {
		ids = append(ids, r.bridge.ID)
	}
	for _, dev := range r.devices.values() {
		if dev.DependsOn == moduleID {
			ids = append(ids, dev.ID)
		}
	}
	return ids
}

// SetSerialDevice records the device most recently heard on the serial link.
func (r *Registry) SetSerialDevice(id string) {
	r.serialDevice = id
}

// SerialDevice returns the device most recently heard on the serial link, or
// an empty string.
func (r *Registry) SerialDevice() string {
	return r.serialDevice
}
