package serialmqtt

import (
	"strconv"

	"github.com/nerrad567/serial-mqtt-bridge/internal/protocol"
	"github.com/nerrad567/serial-mqtt-bridge/internal/registry"
)

// Signal is a user signal delivered to the bridge.
type Signal int

// User signals.
const (
	SignalUSR1 Signal = iota + 1
	SignalUSR2
)

func (s Signal) String() string {
	switch s {
	case SignalUSR1:
		return "SIGUSR1"
	case SignalUSR2:
		return "SIGUSR2"
	}
	return "Signal(" + strconv.Itoa(int(s)) + ")"
}

// HandleSignal reacts to a user signal.
//
// A configured remap sends a module options request to a serial device.
// Without one the signal is announced on the bridge status topic.
func (b *Bridge) HandleSignal(sig Signal) {
	var remap SignalRemap
	var opt int
	switch sig {
	case SignalUSR1:
		remap, opt = b.opts.SignalUSR1, protocol.OptBridgeSigUSR1
	case SignalUSR2:
		remap, opt = b.opts.SignalUSR2, protocol.OptBridgeSigUSR2
	default:
		b.logDebug("unknown signal", "signal", sig.String())
		return
	}

	b.logInfo("user signal", "signal", sig.String(), "remapped", remap.Enabled())

	bridgeDev := b.reg.BridgeDevice()
	if remap.Enabled() {
		fields := []string{remap.Module}
		if remap.Payload != "" {
			fields = append(fields, remap.Payload)
		}
		b.requestSerial(bridgeDev.ID, remap.Device, protocol.Frame(protocol.MDOptions, fields...))
		return
	}

	_ = b.publish(bridgeDev.StatusTopic,
		protocol.Frame(protocol.MDOptions, registry.ModuleBridge, strconv.Itoa(opt)))
}
