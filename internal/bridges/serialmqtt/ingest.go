package serialmqtt

import (
	"github.com/nerrad567/serial-mqtt-bridge/internal/protocol"
	"github.com/nerrad567/serial-mqtt-bridge/internal/registry"
)

// Serial frame headers: a kind byte followed by the protocol version.
const (
	frameVersion = '2'

	kindDebug  = 'D'
	kindStatus = 'S'
	kindConfig = 'C'

	headerLen = 2

	// minFrameLen is a header plus a device ID.
	minFrameLen = headerLen + registry.DeviceIDSize
)

// LineAssembler collects serial bytes into newline-terminated frames.
//
// A frame that fills the buffer without a terminator is discarded together
// with the rest of that line. A trailing carriage return is stripped.
type LineAssembler struct {
	buf      []byte
	size     int
	skipping bool
}

// NewLineAssembler returns an assembler holding at most size bytes per line.
func NewLineAssembler(size int) *LineAssembler {
	return &LineAssembler{buf: make([]byte, 0, size), size: size}
}

// Feed appends chunk and returns the frames it completed, in order.
func (a *LineAssembler) Feed(chunk []byte) []string {
	var lines []string
	for _, c := range chunk {
		if c == '\n' {
			if !a.skipping {
				line := a.buf
				if n := len(line); n > 0 && line[n-1] == '\r' {
					line = line[:n-1]
				}
				lines = append(lines, string(line))
			}
			a.buf = a.buf[:0]
			a.skipping = false
			continue
		}
		if a.skipping {
			continue
		}
		if len(a.buf) == a.size {
			a.buf = a.buf[:0]
			a.skipping = true
			continue
		}
		a.buf = append(a.buf, c)
	}
	return lines
}

// Pending returns the number of buffered bytes of the current line.
func (a *LineAssembler) Pending() int {
	return len(a.buf)
}

// HandleSerialChunk feeds raw serial bytes through the assembler and
// dispatches every completed frame.
func (b *Bridge) HandleSerialChunk(chunk []byte) {
	for _, line := range b.assembler.Feed(chunk) {
		b.HandleSerialFrame(line)
	}
}

// HandleSerialFrame classifies one frame and dispatches it.
func (b *Bridge) HandleSerialFrame(line string) {
	if len(line) < minFrameLen {
		b.logDebug("serial frame too short", "frame", line)
		return
	}
	if line[1] != frameVersion {
		b.logDebug("serial frame version unknown", "frame", line)
		return
	}

	body := line[headerLen:]
	switch line[0] {
	case kindDebug:
		b.serialDebug(body)
	case kindStatus:
		b.serialStatus(body)
	case kindConfig:
		b.serialConfig(body)
	default:
		b.logDebug("serial frame kind unknown", "frame", line)
	}
}

// serialDebug surfaces a device debug line.
func (b *Bridge) serialDebug(text string) {
	b.serialAlive = SerialAliveTicks
	b.logDebug("device debug", "device", b.reg.SerialDevice(), "text", text)
	if b.opts.Verbose {
		_ = b.publish(b.reg.BridgeDevice().StatusTopic, text)
	}
}

// serialStatus handles S2<device>,<body>.
func (b *Bridge) serialStatus(frame string) {
	cur := protocol.NewCursor(frame)
	id, err := cur.ExactToken(registry.DeviceIDSize)
	if err != nil {
		b.logDebug("status frame without device id", "frame", frame, "error", err)
		return
	}
	dev := b.serialDevice(id)
	if dev == nil {
		return
	}
	b.deviceStatus(dev, cur.Rest())
}

// serialConfig handles C2<device>,<target>,<body>.
func (b *Bridge) serialConfig(frame string) {
	cur := protocol.NewCursor(frame)
	id, err := cur.ExactToken(registry.DeviceIDSize)
	if err != nil {
		b.logDebug("config frame without device id", "frame", frame, "error", err)
		return
	}
	target, err := cur.ExactToken(registry.DeviceIDSize)
	if err != nil {
		b.logDebug("config frame without target id", "frame", frame, "error", err)
		return
	}
	dev := b.serialDevice(id)
	if dev == nil {
		return
	}
	b.deviceConfig(dev, target, cur.Rest())
}

// serialDevice resolves the device a serial frame came from, registering it
// and subscribing its config topic on first sight. Frames from an invalid
// ID or claiming the bridge's own ID yield nil.
func (b *Bridge) serialDevice(id string) *registry.Device {
	if !registry.ValidDeviceID(id) || id == b.reg.BridgeDevice().ID {
		b.logDebug("serial frame from invalid device", "device", id)
		return nil
	}

	dev, err := b.reg.GetDevice(id)
	if err != nil {
		dev, err = b.reg.AddDevice(id, registry.ModuleSerial)
		if err != nil {
			b.logWarn("cannot register serial device", "device", id, "error", err)
			return nil
		}
		b.logInfo("device registered", "device", id, "depends_on", registry.ModuleSerial)
	}

	if err := b.subscribeConfig(dev); err != nil {
		b.logWarn("config subscribe failed", "device", id, "error", err)
	}

	b.serialAlive = SerialAliveTicks
	b.reg.SetSerialDevice(id)
	return dev
}
