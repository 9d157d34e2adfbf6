package serialmqtt

import (
	"strconv"
	"strings"

	"github.com/nerrad567/serial-mqtt-bridge/internal/protocol"
	"github.com/nerrad567/serial-mqtt-bridge/internal/registry"
)

// HandleMQTTMessage handles a message on a config topic.
//
// Payload format: <origin-id>,<code>[,fields]. Replies go to the origin's
// config topic.
func (b *Bridge) HandleMQTTMessage(topic string, payload []byte) {
	destID, ok := strings.CutPrefix(topic, registry.ConfigTopicPrefix)
	if !ok {
		b.logDebug("message on unexpected topic", "topic", topic)
		return
	}
	dest, err := b.reg.GetDevice(destID)
	if err != nil {
		b.logDebug("message for unknown device", "topic", topic)
		return
	}

	cur := protocol.NewCursor(string(payload))
	origin, err := cur.ExactToken(registry.DeviceIDSize)
	if err != nil || !registry.ValidDeviceID(origin) {
		b.logDebug("message without originator", "topic", topic, "payload", string(payload))
		return
	}

	b.mqttToDevice(dest, origin, cur.Rest())
}

// mqttToDevice applies a request from origin to dest.
func (b *Bridge) mqttToDevice(dest *registry.Device, origin, body string) {
	cur := protocol.NewCursor(body)
	code, err := cur.Code()
	if err != nil {
		if body == "" {
			b.replyError(dest, origin, protocol.ErrMisProtocol)
		} else {
			b.replyError(dest, origin, protocol.ErrInvProtocol)
		}
		return
	}

	if code.IsOutputOnly() {
		b.logDebug("output-only code from MQTT dropped", "device", dest.ID, "code", code.String())
		return
	}
	if code.IsConfigClass() && dest.ConfigTopic == configTopic(origin) {
		b.logDebug("request echo dropped", "device", dest.ID, "code", code.String())
		return
	}

	switch code {
	case protocol.Error:
		b.logInfo("error reported over MQTT", "device", dest.ID, "origin", origin, "body", body)
		return

	case protocol.Modules:
		b.listModules(dest, origin)
		return

	case protocol.MDInfo, protocol.MDEnable, protocol.MDDisable, protocol.MDTopic, protocol.MDOptions:
		// handled below

	default:
		b.replyError(dest, origin, protocol.ErrInvProtocol)
		return
	}

	if cur.Done() {
		b.replyError(dest, origin, protocol.ErrMisModuleID)
		return
	}
	id, err := cur.ExactToken(registry.ModuleIDSize)
	if err != nil || !registry.ValidModuleID(id) {
		b.replyError(dest, origin, protocol.ErrMDInvID)
		return
	}
	md, err := dest.GetModule(id)
	if err != nil {
		b.replyError(dest, origin, protocol.ErrMDNotFound)
		return
	}

	serialBacked := dest.DependsOn == registry.ModuleSerial
	if serialBacked && !b.serialReady {
		b.replyError(dest, origin, protocol.ErrMDNotAvailable)
		return
	}

	switch code {
	case protocol.MDInfo:
		fields := []string{md.ID, boolField(md.Enabled), md.Topic}
		if md.HasSpecs() {
			fields = append(fields, md.Specs)
		}
		b.reply(dest, origin, protocol.Frame(protocol.MDInfo, fields...))

	case protocol.MDEnable:
		switch {
		case md.Enabled:
			b.reply(dest, origin, protocol.Frame(protocol.MDEnable, md.ID))
		case serialBacked:
			b.requestSerial(origin, dest.ID, body)
		default:
			b.replyError(dest, origin, protocol.ErrMDNotIPM)
		}

	case protocol.MDDisable:
		switch {
		case serialBacked && !md.Enabled:
			b.reply(dest, origin, protocol.Frame(protocol.MDDisable, md.ID))
		case serialBacked:
			b.requestSerial(origin, dest.ID, body)
		case md.ID == registry.ModuleBridge:
			b.replyError(dest, origin, protocol.ErrMDNotAvailable)
		default:
			b.replyError(dest, origin, protocol.ErrMDNotIPM)
		}

	case protocol.MDTopic:
		topic := cur.Rest()
		if !registry.ValidTopic(topic) {
			b.replyError(dest, origin, protocol.ErrMDInvTopic)
			return
		}
		if serialBacked {
			b.requestSerial(origin, dest.ID, body)
			return
		}
		if err := md.SetTopic(topic); err != nil {
			b.replyError(dest, origin, protocol.ErrMDInvTopic)
			return
		}
		_ = b.publish(b.reg.BridgeDevice().StatusTopic, protocol.Frame(protocol.MDTopic, md.ID, md.Topic))

	case protocol.MDOptions:
		if serialBacked {
			b.requestSerial(origin, dest.ID, body)
			return
		}
		b.bridgeModuleOptions(dest, md, origin, cur)
	}
}

// listModules replies with every module ID of dest, split into frames that
// fit the payload limit. A serial device that has not announced any modules
// is asked for them; its answer reaches the origin through the config
// channel.
func (b *Bridge) listModules(dest *registry.Device, origin string) {
	if dest.ModuleCount() == 0 {
		if dest.DependsOn == registry.ModuleSerial && b.serialReady {
			b.requestSerial(origin, dest.ID, protocol.Frame(protocol.Modules))
		}
		return
	}

	prefix := dest.ID + string(protocol.Delimiter) + strconv.Itoa(int(protocol.Modules))
	for _, frame := range protocol.ChunkList(prefix, dest.ModuleIDs(), protocol.MaxPayloadLen) {
		_ = b.publish(configTopic(origin), frame)
	}
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
