package serialmqtt

import (
	"fmt"
	"strconv"

	"github.com/nerrad567/serial-mqtt-bridge/internal/protocol"
	"github.com/nerrad567/serial-mqtt-bridge/internal/registry"
)

// serialIndicator builds the serial module's state report for the bridge
// status topic: 8,14FF,<opt>.
func serialIndicator(opt int) string {
	return protocol.Frame(protocol.MDOptions, registry.ModuleSerial, strconv.Itoa(opt))
}

// requestSerial writes C2<origin>,<dest>,<body> to the serial link.
//
// The frame is built in the bridge's scratch encoder, which is reset on every
// call. A write failure takes the link down.
func (b *Bridge) requestSerial(origin, dest, body string) {
	if !b.serialReady || b.link == nil {
		b.logDebug("serial request dropped, link not ready", "dest", dest, "body", body)
		return
	}

	b.enc.Reset()
	if err := b.enc.Printf("%c%c%s,%s,%s\n", kindConfig, frameVersion, origin, dest, body); err != nil {
		b.logWarn("serial request dropped", "dest", dest, "error", fmt.Errorf("%w: %w", ErrFrameTooLong, err))
		return
	}

	frame := b.enc.String()
	if err := b.link.Write([]byte(frame)); err != nil {
		b.serialFailed(err)
		return
	}
	b.logDebug("serial request", "origin", origin, "dest", dest, "body", body)
}

// openSerial opens the configured port. On failure the link stays down and
// the scheduler retries it.
func (b *Bridge) openSerial() bool {
	link, err := b.opts.Serial.Open()
	if err != nil {
		b.logWarn("serial open failed", "port", b.opts.SerialPort, "error", err)
		return false
	}

	b.link = link
	b.serialReady = true
	b.serialAlive = SerialAliveTicks
	b.assembler = NewLineAssembler(SerialBufferSize)
	b.logInfo("serial link open", "port", b.opts.SerialPort)

	if t := b.opts.Telemetry; t != nil {
		t.WriteSerialState(b.opts.SerialPort, true)
	}
	return true
}

// serialFailed takes the link down after a read or write error, or after the
// device side went silent for too long.
func (b *Bridge) serialFailed(err error) {
	if err == nil {
		err = ErrReaderStopped
	}
	b.logError("serial link failed", err)

	if b.link != nil {
		if cerr := b.link.Close(); cerr != nil {
			b.logDebug("serial close failed", "error", cerr)
		}
		b.link = nil
	}
	b.serialReady = false
	b.serialAlive = 0
	if n := b.assembler.Pending(); n > 0 {
		b.logDebug("partial serial line dropped", "bytes", n)
	}

	_ = b.publish(b.reg.BridgeDevice().StatusTopic, serialIndicator(protocol.OptSerialError))

	if t := b.opts.Telemetry; t != nil {
		t.WriteSerialState(b.opts.SerialPort, false)
	}
}
