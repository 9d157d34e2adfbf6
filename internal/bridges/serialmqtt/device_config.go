package serialmqtt

import (
	"github.com/nerrad567/serial-mqtt-bridge/internal/protocol"
	"github.com/nerrad567/serial-mqtt-bridge/internal/registry"
)

// deviceConfig handles a config body sent by src to the device targetID.
func (b *Bridge) deviceConfig(src *registry.Device, targetID string, body string) {
	cur := protocol.NewCursor(body)
	code, err := cur.Code()
	if err != nil {
		b.logDebug("config without protocol code", "device", src.ID, "body", body)
		return
	}

	switch code {
	case protocol.Error, protocol.MDOptions:
		b.forwardConfig(src, targetID, body)

	case protocol.Modules:
		b.deviceModules(src, cur)
		if !b.addressedToBridge(targetID) {
			b.forwardConfig(src, targetID, body)
		}

	case protocol.MDInfo:
		if b.deviceModuleInfo(src, cur) && !b.addressedToBridge(targetID) {
			b.forwardConfig(src, targetID, body)
		}

	default:
		// ALIVE, TIMEOUT, MD_ENABLE, MD_DISABLE, MD_TOPIC and MD_RAW are
		// status-only; anything else is unknown.
		b.logDebug("config with invalid protocol code", "device", src.ID, "code", code.String())
	}
}

// forwardConfig republishes body on the target's config topic. Frames for
// the bridge come back in through its own config subscription, which is how
// serial devices reach the bridge-hosted modules.
func (b *Bridge) forwardConfig(src *registry.Device, targetID, body string) {
	_ = b.publish(configTopic(targetID), src.ID+string(protocol.Delimiter)+body)
}

// addressedToBridge reports whether id names the bridge device. MODULES and
// MD_INFO answers for the bridge are consumed here, not republished.
func (b *Bridge) addressedToBridge(id string) bool {
	dev, err := b.reg.GetDevice(id)
	return err == nil && b.reg.IsBridge(dev)
}

// deviceModules registers every module ID listed by src, disabled, and asks
// src for the details of each over serial.
func (b *Bridge) deviceModules(src *registry.Device, cur *protocol.Cursor) {
	bridgeID := b.reg.BridgeDevice().ID
	for !cur.Done() {
		id, err := cur.ExactToken(registry.ModuleIDSize)
		if err != nil {
			b.logDebug("module list with malformed id", "device", src.ID, "rest", cur.Peek())
			return
		}
		md, err := src.AddModule(id, false)
		if err != nil {
			b.logDebug("module list with invalid id", "device", src.ID, "module", id)
			continue
		}
		b.requestSerial(bridgeID, src.ID, protocol.Frame(protocol.MDInfo, md.ID))
	}
}

// deviceModuleInfo applies MD_INFO,<module>,<enabled>,<topic>[,<specs>].
//
// The module is disabled first and only gets its reported state once topic
// and specs are applied, so it is never enabled half-configured. A rejected
// body leaves the module untouched and returns false.
func (b *Bridge) deviceModuleInfo(src *registry.Device, cur *protocol.Cursor) bool {
	id, err := cur.ExactToken(registry.ModuleIDSize)
	if err != nil || !registry.ValidModuleID(id) {
		b.logDebug("module info with invalid module id", "device", src.ID)
		return false
	}
	md, err := src.GetModule(id)
	if err != nil {
		b.logDebug("module info for unknown module", "device", src.ID, "module", id)
		return false
	}

	flag, err := cur.Int()
	if err != nil || flag > 1 {
		b.logDebug("module info with invalid enabled flag", "device", src.ID, "module", id)
		return false
	}
	topic, err := cur.Token(registry.MaxTopicLen, protocol.Delimiter)
	if err != nil {
		b.logDebug("module info with invalid topic", "device", src.ID, "module", id, "error", err)
		return false
	}
	specs := cur.Rest()
	if !registry.ValidTopic(topic) || (specs != "" && !registry.ValidSpecs(specs)) {
		b.logDebug("module info with invalid topic or specs", "device", src.ID, "module", id)
		return false
	}

	md.Enabled = false
	if err := md.SetTopic(topic); err != nil {
		return false
	}
	if specs == "" {
		md.ClearSpecs()
	} else if err := md.SetSpecs(specs); err != nil {
		return false
	}
	md.Enabled = flag == 1
	return true
}
