package serialmqtt

import (
	"strconv"

	"github.com/nerrad567/serial-mqtt-bridge/internal/protocol"
	"github.com/nerrad567/serial-mqtt-bridge/internal/registry"
)

// deviceStatus handles a status body reported by dev.
func (b *Bridge) deviceStatus(dev *registry.Device, body string) {
	cur := protocol.NewCursor(body)
	code, err := cur.Code()
	if err != nil {
		b.logDebug("status without protocol code", "device", dev.ID, "body", body)
		return
	}

	switch code {
	case protocol.Error:
		_ = b.publish(dev.StatusTopic, body)

	case protocol.Alive:
		b.deviceAlive(dev, cur)

	case protocol.MDEnable, protocol.MDDisable, protocol.MDTopic, protocol.MDOptions, protocol.MDRaw:
		md := b.statusModule(dev, cur)
		if md == nil {
			return
		}
		b.moduleStatus(dev, md, code, body, cur)

	default:
		b.logDebug("status with invalid protocol code", "device", dev.ID, "code", code.String())
	}
}

// deviceAlive handles ALIVE,<modules>,<beacon>,<interval>.
//
// A module count that disagrees with the registry triggers a module list
// request instead; the countdown is left alone until the counts agree.
func (b *Bridge) deviceAlive(dev *registry.Device, cur *protocol.Cursor) {
	modules, err1 := cur.Int()
	beacon, err2 := cur.Int()
	interval, err3 := cur.Int()
	if err1 != nil || err2 != nil || err3 != nil {
		b.logDebug("malformed alive", "device", dev.ID)
		return
	}

	if modules != dev.ModuleCount() {
		b.logDebug("module count mismatch",
			"device", dev.ID,
			"reported", modules,
			"known", dev.ModuleCount())
		if dev.DependsOn == registry.ModuleSerial {
			b.requestSerial(b.reg.BridgeDevice().ID, dev.ID, protocol.Frame(protocol.Modules))
		}
		return
	}

	dev.Alive = 2 * interval
	_ = b.publish(dev.StatusTopic, protocol.Frame(protocol.Alive,
		strconv.Itoa(modules), strconv.Itoa(beacon), strconv.Itoa(interval)))

	if t := b.opts.Telemetry; t != nil {
		t.WriteDeviceAlive(dev.ID, dev.Alive)
	}
}

// statusModule decodes and resolves the module ID field of a status body.
func (b *Bridge) statusModule(dev *registry.Device, cur *protocol.Cursor) *registry.Module {
	id, err := cur.ExactToken(registry.ModuleIDSize)
	if err != nil || !registry.ValidModuleID(id) {
		b.logDebug("status with invalid module id", "device", dev.ID, "module", id)
		return nil
	}
	md, err := dev.GetModule(id)
	if err != nil {
		b.logDebug("status for unknown module", "device", dev.ID, "module", id)
		return nil
	}
	return md
}

// moduleStatus applies a module-level status report and republishes it.
func (b *Bridge) moduleStatus(dev *registry.Device, md *registry.Module, code protocol.Code, body string, cur *protocol.Cursor) {
	switch code {
	case protocol.MDEnable, protocol.MDDisable:
		enabled := code == protocol.MDEnable
		if md.Enabled == enabled {
			return
		}
		md.Enabled = enabled
		_ = b.publish(dev.StatusTopic, protocol.Frame(code, md.ID))

	case protocol.MDTopic:
		if err := md.SetTopic(cur.Rest()); err != nil {
			b.logDebug("status with invalid topic", "device", dev.ID, "module", md.ID, "error", err)
			return
		}
		_ = b.publish(dev.StatusTopic, protocol.Frame(code, md.ID, md.Topic))

	case protocol.MDOptions:
		_ = b.publish(dev.StatusTopic, body)

	case protocol.MDRaw:
		_ = b.publish(md.Topic, cur.Rest())
	}
}
