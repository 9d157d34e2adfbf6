package serialmqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/serial-mqtt-bridge/internal/protocol"
	"github.com/nerrad567/serial-mqtt-bridge/internal/registry"
)

// Bridge operation constants.
const (
	// SerialBufferSize is the device-side frame buffer. Inbound lines longer
	// than this are dropped; outbound frames must fit.
	SerialBufferSize = 256

	// SerialAliveTicks is the serial-alive countdown in 30-second ticks.
	SerialAliveTicks = 12

	// BeaconInterval is the alive interval the bridge announces, in seconds.
	BeaconInterval = 30

	// firstBeacon is the number of the first bridge beacon.
	firstBeacon = 1

	// inboundQueueSize bounds MQTT messages waiting for the event loop.
	inboundQueueSize = 256

	// tickInterval drives the liveness scheduler.
	tickInterval = time.Second
)

// Publisher is the MQTT side of the bridge.
// Satisfied by *mqtt.Client via an adapter in main.go.
type Publisher interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// SerialLink is an open serial port delivering raw byte chunks.
// Errors yields at most one terminal error and must be closed no later than
// Chunks. Satisfied by *serial.Link.
type SerialLink interface {
	Write(b []byte) error
	Chunks() <-chan []byte
	Errors() <-chan error
	Close() error
}

// SerialOpener opens the configured serial port.
type SerialOpener interface {
	Open() (SerialLink, error)
}

// ScriptRunner executes a named script from a folder.
// Satisfied by *process.Runner.
type ScriptRunner interface {
	Run(ctx context.Context, folder, name string) (string, error)
}

// BandwidthSampler reports interface throughput in Kbit/s.
// Satisfied by *netdev.Sampler.
type BandwidthSampler interface {
	Sample() (up, down float64, err error)
}

// Telemetry records bridge events. Optional.
// Satisfied by *influxdb.Client.
type Telemetry interface {
	WriteBandwidth(upKbps, downKbps float64)
	WriteBeacon(beacon uint64, modules int)
	WriteDeviceAlive(deviceID string, countdown int)
	WriteDeviceTimeout(deviceID string)
	WriteSerialState(port string, ready bool)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SignalRemap redirects a user signal to a module option on a device.
type SignalRemap struct {
	Device  string
	Module  string
	Payload string
}

// Enabled reports whether the remap targets a device.
func (r SignalRemap) Enabled() bool {
	return r.Device != "" && r.Module != ""
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID is the bridge's own device ID.
	BridgeID string

	// Publisher is the MQTT client. Required.
	Publisher Publisher

	// QoS is used for every publish and subscription.
	QoS byte

	// Serial opens the serial port. Nil means no port is configured.
	Serial SerialOpener

	// SerialPort names the port in logs and telemetry.
	SerialPort string

	// Scripts runs script module requests. Nil disables the script module.
	Scripts ScriptRunner

	// ScriptFolder is passed to Scripts on every run.
	ScriptFolder string

	// Bandwidth samples the bandwidth interface. Nil disables the bandwidth module.
	Bandwidth BandwidthSampler

	// Telemetry is optional.
	Telemetry Telemetry

	// SignalUSR1 and SignalUSR2 optionally redirect user signals.
	SignalUSR1 SignalRemap
	SignalUSR2 SignalRemap

	// Signals delivers user signals to the event loop. Optional.
	Signals <-chan Signal

	// Verbose republishes device debug frames.
	Verbose bool

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge translates between the serial device network and MQTT.
//
// All registry access happens on the goroutine running Run. MQTT handlers,
// the serial reader and script runs only hand events to that goroutine.
type Bridge struct {
	opts BridgeOptions
	reg  *registry.Registry

	// Serial link state.
	link        SerialLink
	serialReady bool
	serialAlive int
	assembler   *LineAssembler

	// Scheduler state.
	ticks  int
	beacon uint64
	bwUp   float64
	bwDown float64

	// enc is the scratch buffer for outbound serial frames.
	enc *protocol.Encoder

	inbound     chan inboundMessage
	connected   chan struct{}
	scriptDone  chan scriptResult
	scriptCtx   context.Context
	scriptStop  context.CancelFunc
	scriptGroup sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex
}

type inboundMessage struct {
	topic   string
	payload []byte
}

// NewBridge creates a bridge and registers the modules the bridge hosts.
// Call Run to start it.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Publisher == nil {
		return nil, ErrMissingPublisher
	}

	reg, err := registry.New(opts.BridgeID)
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}

	bridgeDev := reg.BridgeDevice()
	hosted := []struct {
		id      string
		enabled bool
	}{
		{registry.ModuleMQTT, true},
		{registry.ModuleSerial, opts.Serial != nil},
		{registry.ModuleScript, opts.Scripts != nil && opts.ScriptFolder != ""},
		{registry.ModuleBandwidth, opts.Bandwidth != nil},
	}
	for _, h := range hosted {
		if !h.enabled {
			continue
		}
		if _, err := bridgeDev.AddModule(h.id, true); err != nil {
			return nil, fmt.Errorf("register bridge module %s: %w", h.id, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		opts:       opts,
		reg:        reg,
		assembler:  NewLineAssembler(SerialBufferSize),
		enc:        protocol.NewEncoder(SerialBufferSize),
		beacon:     firstBeacon,
		inbound:    make(chan inboundMessage, inboundQueueSize),
		connected:  make(chan struct{}, 1),
		scriptDone: make(chan scriptResult, 8),
		scriptCtx:  ctx,
		scriptStop: cancel,
		logger:     opts.Logger,
	}, nil
}

// NotifyConnected tells the event loop the broker connection came back, so
// the beacon goes out without waiting for the next slow tick. Safe to call
// from any goroutine; notifications pending in the loop are coalesced.
func (b *Bridge) NotifyConnected() {
	select {
	case b.connected <- struct{}{}:
	default:
	}
}

// Registry exposes the device registry. Only safe to use while Run is not
// executing, or from tests driving the handlers directly.
func (b *Bridge) Registry() *registry.Registry {
	return b.reg
}

// SerialReady reports whether the serial link is open and healthy.
func (b *Bridge) SerialReady() bool {
	return b.serialReady
}

// Run executes the event loop until ctx is cancelled.
//
// It subscribes to the bridge config topic, opens the serial port if one is
// configured, and then processes serial chunks, MQTT messages, scheduler
// ticks, user signals and script results one at a time.
func (b *Bridge) Run(ctx context.Context) error {
	bridgeDev := b.reg.BridgeDevice()
	if err := b.subscribeConfig(bridgeDev); err != nil {
		return fmt.Errorf("subscribe bridge config topic: %w", err)
	}

	if b.opts.Serial != nil {
		b.openSerial()
	}

	b.logInfo("bridge started",
		"bridge_id", bridgeDev.ID,
		"modules", strings.Join(bridgeDev.ModuleIDs(), ","),
		"serial_ready", b.serialReady)

	b.sendBeacon()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	defer b.shutdown()

	for {
		var chunks <-chan []byte
		var serialErrs <-chan error
		if b.link != nil {
			chunks = b.link.Chunks()
			serialErrs = b.link.Errors()
		}

		select {
		case <-ctx.Done():
			return nil

		case chunk, ok := <-chunks:
			if !ok {
				// Errors is closed before Chunks, so this never blocks.
				err := <-serialErrs
				b.serialFailed(err)
				continue
			}
			b.HandleSerialChunk(chunk)

		case err := <-serialErrs:
			b.serialFailed(err)

		case msg := <-b.inbound:
			b.HandleMQTTMessage(msg.topic, msg.payload)

		case <-b.connected:
			b.sendBeacon()

		case <-ticker.C:
			b.Tick()

		case sig := <-b.opts.Signals:
			b.HandleSignal(sig)

		case res := <-b.scriptDone:
			b.handleScriptResult(res)
		}
	}
}

// shutdown stops script runs, closes the serial link and logs the registry.
func (b *Bridge) shutdown() {
	b.scriptStop()
	b.scriptGroup.Wait()

	if b.link != nil {
		if err := b.link.Close(); err != nil {
			b.logWarn("serial close failed", "error", err)
		}
		b.link = nil
	}
	b.serialReady = false

	b.dumpRegistry()
	b.logInfo("bridge stopped")
}

// dumpRegistry logs every device and module at debug level.
func (b *Bridge) dumpRegistry() {
	devices := append([]*registry.Device{b.reg.BridgeDevice()}, b.reg.Devices()...)
	for _, dev := range devices {
		b.logDebug("registry device",
			"device", dev.ID,
			"depends_on", dev.DependsOn,
			"alive", dev.Alive,
			"modules", dev.ModuleCount())
		for _, md := range dev.Modules() {
			b.logDebug("registry module",
				"device", dev.ID,
				"module", md.ID,
				"type", md.Type.String(),
				"enabled", md.Enabled,
				"topic", md.Topic,
				"specs", md.Specs)
		}
	}
}

// enqueue is the MQTT message handler. It copies the payload and hands the
// message to the event loop, dropping it when the queue is full.
func (b *Bridge) enqueue(topic string, payload []byte) {
	msg := inboundMessage{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case b.inbound <- msg:
	default:
		b.logWarn("inbound queue full, message dropped", "topic", topic)
	}
}

// subscribeConfig subscribes the device's config topic once.
func (b *Bridge) subscribeConfig(dev *registry.Device) error {
	if dev.ConfigSubscribed {
		return nil
	}
	if err := b.opts.Publisher.Subscribe(dev.ConfigTopic, b.opts.QoS, b.enqueue); err != nil {
		return err
	}
	dev.ConfigSubscribed = true
	b.logDebug("subscribed", "topic", dev.ConfigTopic)
	return nil
}

// publish sends payload to topic when the broker is reachable.
func (b *Bridge) publish(topic, payload string) error {
	if !b.opts.Publisher.IsConnected() {
		b.logDebug("publish skipped, not connected", "topic", topic)
		return ErrNotConnected
	}
	if err := b.opts.Publisher.Publish(topic, []byte(payload), b.opts.QoS, false); err != nil {
		b.logWarn("publish failed", "topic", topic, "error", err)
		return err
	}
	b.logDebug("published", "topic", topic, "payload", payload)
	return nil
}

// configTopic returns the config topic of any device ID, known or not.
func configTopic(deviceID string) string {
	return registry.ConfigTopicPrefix + deviceID
}

// reply publishes body on the originator's config topic, prefixed with the
// replying device's ID.
func (b *Bridge) reply(from *registry.Device, origin, body string) {
	_ = b.publish(configTopic(origin), from.ID+string(protocol.Delimiter)+body)
}

// replyError sends an ERROR frame to the originator.
func (b *Bridge) replyError(from *registry.Device, origin string, code protocol.ErrorCode) {
	b.logDebug("error reply", "device", from.ID, "origin", origin, "code", int(code))
	b.reply(from, origin, protocol.ErrorFrame(code))
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
