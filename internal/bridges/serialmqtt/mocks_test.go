package serialmqtt

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockPublisher implements Publisher for testing.
type mockPublisher struct {
	mu           sync.Mutex
	connected    bool
	subscribeErr error
	messages     []publishedMessage
	handlers     map[string]func(string, []byte)
	subscribes   map[string]int
	unsubscribed []string
}

type publishedMessage struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

func newMockPublisher(connected bool) *mockPublisher {
	return &mockPublisher{
		connected:  connected,
		handlers:   make(map[string]func(string, []byte)),
		subscribes: make(map[string]int),
	}
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{
		topic:    topic,
		payload:  string(payload),
		qos:      qos,
		retained: retained,
	})
	return nil
}

func (m *mockPublisher) Subscribe(topic string, _ byte, handler func(string, []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.handlers[topic] = handler
	m.subscribes[topic]++
	return nil
}

func (m *mockPublisher) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

// payloads returns what was published on topic, in order.
func (m *mockPublisher) payloads(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.messages {
		if msg.topic == topic {
			out = append(out, msg.payload)
		}
	}
	return out
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *mockPublisher) clear() {
	m.mu.Lock()
	m.messages = nil
	m.mu.Unlock()
}

func (m *mockPublisher) handler(topic string) func(string, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

func (m *mockPublisher) subscribeCount(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribes[topic]
}

func (m *mockPublisher) unsubscribes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribed...)
}

// mockLink implements SerialLink for testing.
type mockLink struct {
	mu       sync.Mutex
	chunks   chan []byte
	errs     chan error
	writes   []string
	writeErr error
	closed   bool
}

func newMockLink() *mockLink {
	return &mockLink{
		chunks: make(chan []byte, 16),
		errs:   make(chan error, 1),
	}
}

func (l *mockLink) Write(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	l.writes = append(l.writes, string(b))
	return nil
}

func (l *mockLink) Chunks() <-chan []byte { return l.chunks }
func (l *mockLink) Errors() <-chan error  { return l.errs }

func (l *mockLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *mockLink) written() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.writes...)
}

func (l *mockLink) clearWrites() {
	l.mu.Lock()
	l.writes = nil
	l.mu.Unlock()
}

func (l *mockLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// mockOpener implements SerialOpener, handing out a fresh link per open.
type mockOpener struct {
	mu    sync.Mutex
	err   error
	links []*mockLink
}

func (o *mockOpener) Open() (SerialLink, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	l := newMockLink()
	o.links = append(o.links, l)
	return l, nil
}

func (o *mockOpener) opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.links)
}

func (o *mockOpener) last() *mockLink {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.links) == 0 {
		return nil
	}
	return o.links[len(o.links)-1]
}

func (o *mockOpener) setErr(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

// mockRunner implements ScriptRunner for testing.
type mockRunner struct {
	mu     sync.Mutex
	output string
	err    error
	calls  []string
}

func (r *mockRunner) Run(_ context.Context, folder, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, folder+"/"+name)
	return r.output, r.err
}

// mockSampler implements BandwidthSampler for testing.
type mockSampler struct {
	up, down float64
	err      error
}

func (s *mockSampler) Sample() (float64, float64, error) {
	return s.up, s.down, s.err
}

// mockTelemetry records telemetry writes as short strings.
type mockTelemetry struct {
	mu     sync.Mutex
	events []string
}

func (m *mockTelemetry) add(format string, args ...any) {
	m.mu.Lock()
	m.events = append(m.events, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

func (m *mockTelemetry) WriteBandwidth(up, down float64) { m.add("bandwidth %.0f %.0f", up, down) }
func (m *mockTelemetry) WriteBeacon(beacon uint64, modules int) {
	m.add("beacon %d %d", beacon, modules)
}
func (m *mockTelemetry) WriteDeviceAlive(id string, countdown int) { m.add("alive %s %d", id, countdown) }
func (m *mockTelemetry) WriteDeviceTimeout(id string)              { m.add("timeout %s", id) }
func (m *mockTelemetry) WriteSerialState(port string, ready bool)  { m.add("serial %s %t", port, ready) }

func (m *mockTelemetry) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// testEnv is a bridge wired to mocks, with the serial link already open.
type testEnv struct {
	b       *Bridge
	pub     *mockPublisher
	opener  *mockOpener
	runner  *mockRunner
	sampler *mockSampler
	tel     *mockTelemetry
}

const (
	testBridgeID = "BRG0"
	testPort     = "/dev/ttyTEST"
	testFolder   = "/srv/scripts"
)

func testOptions(env *testEnv) BridgeOptions {
	return BridgeOptions{
		BridgeID:     testBridgeID,
		Publisher:    env.pub,
		Serial:       env.opener,
		SerialPort:   testPort,
		Scripts:      env.runner,
		ScriptFolder: testFolder,
		Bandwidth:    env.sampler,
		Telemetry:    env.tel,
	}
}

func newTestEnv(t *testing.T, mutate ...func(*BridgeOptions)) *testEnv {
	t.Helper()

	env := &testEnv{
		pub:     newMockPublisher(true),
		opener:  &mockOpener{},
		runner:  &mockRunner{},
		sampler: &mockSampler{},
		tel:     &mockTelemetry{},
	}
	opts := testOptions(env)
	for _, fn := range mutate {
		fn(&opts)
	}

	b, err := NewBridge(opts)
	require.NoError(t, err)
	env.b = b

	if opts.Serial != nil {
		require.True(t, b.openSerial())
	}
	return env
}

// link returns the currently open mock link.
func (e *testEnv) link() *mockLink {
	return e.opener.last()
}

// send delivers an MQTT message to a device's config topic.
func (e *testEnv) send(dest, payload string) {
	e.b.HandleMQTTMessage(configTopic(dest), []byte(payload))
}

func tickN(b *Bridge, n int) {
	for i := 0; i < n; i++ {
		b.Tick()
	}
}
