package serialmqtt

import (
	"fmt"
	"strconv"

	"github.com/nerrad567/serial-mqtt-bridge/internal/protocol"
	"github.com/nerrad567/serial-mqtt-bridge/internal/registry"
)

// Tick advances the scheduler by one second.
//
// Every tick counts down device liveness and evicts silent devices. Every
// BeaconInterval-th tick also runs the slow housekeeping.
func (b *Bridge) Tick() {
	if b.opts.Bandwidth != nil {
		up, down, err := b.opts.Bandwidth.Sample()
		if err != nil {
			b.logDebug("bandwidth sample failed", "error", err)
		} else {
			b.bwUp, b.bwDown = up, down
		}
	}

	for _, dev := range b.reg.Devices() {
		dev.Alive--
		if dev.Alive <= 0 {
			b.evict(dev)
		}
	}

	b.ticks = (b.ticks + 1) % BeaconInterval
	if b.ticks == 0 {
		b.slowTick()
	}
}

// evict removes a device whose liveness countdown ran out.
func (b *Bridge) evict(dev *registry.Device) {
	b.logInfo("device timed out", "device", dev.ID)

	_ = b.publish(dev.StatusTopic, protocol.Frame(protocol.Timeout))

	if dev.ConfigSubscribed {
		if err := b.opts.Publisher.Unsubscribe(dev.ConfigTopic); err != nil {
			b.logWarn("unsubscribe failed", "topic", dev.ConfigTopic, "error", err)
		}
		dev.ConfigSubscribed = false
	}

	if err := b.reg.RemoveAllModules(dev); err != nil {
		b.logWarn("module removal refused", "device", dev.ID, "error", err)
	}
	if err := b.reg.RemoveDevice(dev.ID); err != nil {
		b.logWarn("device removal failed", "device", dev.ID, "error", err)
		return
	}

	if t := b.opts.Telemetry; t != nil {
		t.WriteDeviceTimeout(dev.ID)
	}
}

// slowTick publishes the beacon and bandwidth figures and supervises the
// serial link.
func (b *Bridge) slowTick() {
	bridgeDev := b.reg.BridgeDevice()

	b.sendBeacon()
	b.logDebug("beacon sent", "devices", b.reg.DeviceCount())

	if b.opts.Bandwidth != nil {
		if md, err := bridgeDev.GetModule(registry.ModuleBandwidth); err == nil {
			_ = b.publish(md.Topic, fmt.Sprintf("%.0f,%.0f", b.bwUp, b.bwDown))
		}
		if t := b.opts.Telemetry; t != nil {
			t.WriteBandwidth(b.bwUp, b.bwDown)
		}
	}

	if b.opts.Serial == nil {
		return
	}
	switch {
	case b.serialAlive > 0:
		b.serialAlive--
		if b.serialAlive == 0 && b.serialReady {
			b.logWarn("serial link silent, assuming hang", "port", b.opts.SerialPort)
			b.serialFailed(ErrSerialNotReady)
		}
	case !b.serialReady:
		if b.openSerial() {
			_ = b.publish(bridgeDev.StatusTopic, serialIndicator(protocol.OptSerialOpen))
		}
	}
}

// sendBeacon publishes ALIVE,<modules>,<beacon>,<interval> for the bridge.
// The beacon number only advances when the publish succeeds.
func (b *Bridge) sendBeacon() {
	bridgeDev := b.reg.BridgeDevice()

	modules := bridgeDev.ModuleCount()
	beacon := protocol.Frame(protocol.Alive,
		strconv.Itoa(modules), strconv.FormatUint(b.beacon, 10), strconv.Itoa(BeaconInterval))
	if b.publish(bridgeDev.StatusTopic, beacon) != nil {
		return
	}
	if t := b.opts.Telemetry; t != nil {
		t.WriteBeacon(b.beacon, modules)
	}
	b.beacon++
}
