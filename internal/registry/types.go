package registry

import "fmt"

// Identifier and topic constants shared by both transports.
const (
	// DeviceIDSize is the exact length of a device ID.
	DeviceIDSize = 4

	// ModuleIDSize is the exact length of a module ID. The first two hex
	// digits encode the module type.
	ModuleIDSize = 4

	// MinTopicLen and MaxTopicLen bound module topics.
	MinTopicLen = 3
	MaxTopicLen = 64

	// MinSpecsLen and MaxSpecsLen bound module specs.
	MinSpecsLen = 1
	MaxSpecsLen = 64

	// DeviceAliveMax is the liveness countdown, in seconds, given to a newly
	// added device before it has announced its own alive interval.
	DeviceAliveMax = 120

	// ConfigTopicPrefix and StatusTopicPrefix build the per-device topics.
	ConfigTopicPrefix = "config/"
	StatusTopicPrefix = "status/"

	// rawTopicPrefix builds the default module topic raw/<device>/<module>.
	rawTopicPrefix = "raw/"
)

// ModuleType is the decoded type of a module ID.
type ModuleType int

// Module types, in the order of the module type name table.
const (
	TypeDummy ModuleType = iota
	TypeTemp
	TypeLDR
	TypeHum
	TypeAlarmSys1
	TypeSMon
	TypeACPower
	TypeDCPower
	TypeAmps
	TypeVolts
	TypeWatts
	TypeRain
	TypeSonar
	TypeLED
	TypeLEDRGB
	TypeLCD
	TypeBTS
	TypeBTL
	TypeScript
	TypeBandwidth
	TypeSerial
	TypeMQTT
	TypeBridge

	// ModuleTypeCount is the size of the module type name table.
	ModuleTypeCount = int(TypeBridge) + 1
)

var moduleTypeNames = [ModuleTypeCount]string{
	"dummy", "temp", "ldr", "hum", "alarmsys1", "smon", "acpower", "dcpower",
	"amps", "volts", "watts", "rain", "sonar", "led", "ledrgb", "lcd", "bts",
	"btl", "script", "bandwidth", "serial", "mqtt", "bridge",
}

// String returns the name of the module type.
func (t ModuleType) String() string {
	if t < 0 || int(t) >= ModuleTypeCount {
		return fmt.Sprintf("ModuleType(%d)", int(t))
	}
	return moduleTypeNames[t]
}

// Module IDs of the modules hosted by the bridge itself.
const (
	ModuleScript    = "12FF"
	ModuleBandwidth = "13FF"
	ModuleSerial    = "14FF"
	ModuleMQTT      = "15FF"
	ModuleBridge    = "16FF"
)

// Module is a capability hosted by a device.
type Module struct {
	ID      string
	Type    ModuleType
	Enabled bool

	// Specs is free-form module metadata. Empty means absent.
	Specs string

	// Topic is where raw module data is published. Never empty.
	Topic string
}

// HasSpecs reports whether the module carries specs.
func (m *Module) HasSpecs() bool {
	return m.Specs != ""
}

// SetTopic replaces the module topic. Setting the current topic is a no-op.
func (m *Module) SetTopic(topic string) error {
	if !ValidTopic(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	m.Topic = topic
	return nil
}

// SetSpecs replaces the module specs.
func (m *Module) SetSpecs(specs string) error {
	if !ValidSpecs(specs) {
		return fmt.Errorf("%w: length %d", ErrInvalidSpecs, len(specs))
	}
	m.Specs = specs
	return nil
}

// ClearSpecs drops the module specs.
func (m *Module) ClearSpecs() {
	m.Specs = ""
}

// Device is a peer registered with the bridge.
type Device struct {
	ID string

	// Alive is the liveness countdown in seconds. The device is evicted
	// when it reaches zero.
	Alive int

	// DependsOn is the ID of the bridge module that introduced this device.
	DependsOn string

	ConfigTopic string
	StatusTopic string

	// ConfigSubscribed records that the config topic subscription has been
	// issued for this device.
	ConfigSubscribed bool

	modules ordered[*Module]
}

func newDevice(id, dependsOn string, alive int) *Device {
	return &Device{
		ID:          id,
		Alive:       alive,
		DependsOn:   dependsOn,
		ConfigTopic: ConfigTopicPrefix + id,
		StatusTopic: StatusTopicPrefix + id,
		modules:     newOrdered[*Module](),
	}
}

// ModuleCount returns the number of modules owned by the device.
func (d *Device) ModuleCount() int {
	return d.modules.len()
}

// Modules returns the device's modules in insertion order.
func (d *Device) Modules() []*Module {
	return d.modules.values()
}

// ModuleIDs returns the device's module IDs in insertion order.
func (d *Device) ModuleIDs() []string {
	return d.modules.keys()
}

// AddModule registers a module on the device. Adding an existing ID returns
// the existing module unchanged.
func (d *Device) AddModule(id string, enabled bool) (*Module, error) {
	if !ValidModuleID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModuleID, id)
	}
	if md, ok := d.modules.get(id); ok {
		return md, nil
	}

	t, _ := ModuleTypeOf(id)
	md := &Module{
		ID:      id,
		Type:    t,
		Enabled: enabled,
		Topic:   DefaultModuleTopic(d.ID, id),
	}
	d.modules.put(id, md)
	return md, nil
}

// GetModule looks up a module by ID.
func (d *Device) GetModule(id string) (*Module, error) {
	md, ok := d.modules.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrModuleNotFound, d.ID, id)
	}
	return md, nil
}

// DefaultModuleTopic returns the topic a module gets when it is created.
func DefaultModuleTopic(deviceID, moduleID string) string {
	return rawTopicPrefix + deviceID + "/" + moduleID
}

// ordered is a map that remembers insertion order.
type ordered[V any] struct {
	order []string
	items map[string]V
}

func newOrdered[V any]() ordered[V] {
	return ordered[V]{items: make(map[string]V)}
}

func (o *ordered[V]) get(key string) (V, bool) {
	v, ok := o.items[key]
	return v, ok
}

func (o *ordered[V]) put(key string, v V) {
	if _, ok := o.items[key]; !ok {
		o.order = append(o.order, key)
	}
	o.items[key] = v
}

func (o *ordered[V]) remove(key string) bool {
	if _, ok := o.items[key]; !ok {
		return false
	}
	delete(o.items, key)
	for i, k := range o.order {
		if k == key {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

func (o *ordered[V]) len() int {
	return len(o.order)
}

func (o *ordered[V]) keys() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

func (o *ordered[V]) values() []V {
	out := make([]V, 0, len(o.order))
	for _, k := range o.order {
		out = append(out, o.items[k])
	}
	return out
}

func (o *ordered[V]) at(i int) (V, bool) {
	if i < 0 || i >= len(o.order) {
		var zero V
		return zero, false
	}
	return o.items[o.order[i]], true
}
