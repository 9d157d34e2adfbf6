package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/config"
)

// testConfig returns a broker config that is never dialled by these tests.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "serialbridge-test",
		},
		QoS: 0,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     30,
		},
	}
}

// disconnectedClient returns a client that was never connected.
func disconnectedClient() *Client {
	return &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}
}

func noopHandler(string, []byte) error { return nil }

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "secret"}

	opts := buildClientOptions(cfg)

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://127.0.0.1:1883", opts.Servers[0].String())
	assert.Equal(t, "serialbridge-test", opts.ClientID)
	assert.Equal(t, "bridge", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.CleanSession)
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	assert.Equal(t, "ssl://127.0.0.1:8883", opts.Servers[0].String())
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tlsMinVersion), opts.TLSConfig.MinVersion)
}

func TestBuildClientOptionsNoAuth(t *testing.T) {
	opts := buildClientOptions(testConfig())
	assert.Empty(t, opts.Username)
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "presence/BRG0")

	require.True(t, opts.WillEnabled)
	assert.Equal(t, "presence/BRG0", opts.WillTopic)
	assert.Equal(t, presenceOffline, string(opts.WillPayload))
	assert.True(t, opts.WillRetained)
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublishValidation(t *testing.T) {
	c := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"qos too high", "status/DEV1", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "status/DEV1", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"disconnected", "status/DEV1", []byte("1,3,12,30"), 0, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPublishStringDisconnected(t *testing.T) {
	c := disconnectedClient()
	assert.ErrorIs(t, c.PublishString("status/DEV1", "2"), ErrNotConnected)
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestSubscribeValidation(t *testing.T) {
	c := disconnectedClient()

	assert.ErrorIs(t, c.Subscribe("", 0, noopHandler), ErrInvalidTopic)
	assert.ErrorIs(t, c.Subscribe("config/DEV1", 3, noopHandler), ErrInvalidQoS)
	assert.ErrorIs(t, c.Subscribe("config/DEV1", 0, nil), ErrSubscribeFailed)
	assert.Zero(t, c.SubscriptionCount(), "rejected subscribes are not tracked")
}

func TestSubscribeWhileDisconnectedIsTracked(t *testing.T) {
	c := disconnectedClient()

	require.NoError(t, c.Subscribe("config/DEV1", 0, noopHandler))
	require.NoError(t, c.Subscribe("config/DEV2", 1, noopHandler))

	assert.Equal(t, 2, c.SubscriptionCount())
	assert.True(t, c.HasSubscription("config/DEV1"))

	// Re-subscribing replaces, not duplicates.
	require.NoError(t, c.Subscribe("config/DEV1", 1, noopHandler))
	assert.Equal(t, 2, c.SubscriptionCount())
}

func TestUnsubscribeWhileDisconnected(t *testing.T) {
	c := disconnectedClient()
	_ = c.Subscribe("config/DEV1", 0, noopHandler)

	require.NoError(t, c.Unsubscribe("config/DEV1"))
	assert.False(t, c.HasSubscription("config/DEV1"))
	assert.ErrorIs(t, c.Unsubscribe(""), ErrInvalidTopic)
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestCloseNeverConnected(t *testing.T) {
	assert.NoError(t, disconnectedClient().Close())
}

func TestHealthCheck(t *testing.T) {
	c := disconnectedClient()

	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrNotConnected)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.HealthCheck(ctx), context.Canceled)
}

func TestIsConnectedInitialState(t *testing.T) {
	assert.False(t, disconnectedClient().IsConnected())
}

func TestHandleDisconnectInvokesCallback(t *testing.T) {
	c := disconnectedClient()
	c.connected = true

	var got error
	c.SetOnDisconnect(func(err error) { got = err })

	lost := errors.New("link lost")
	c.handleDisconnect(lost)

	assert.Equal(t, lost, got)
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	assert.False(t, c.connected)
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var _ pahomqtt.Message = fakeMessage{}

func TestWrapHandlerDelivers(t *testing.T) {
	c := disconnectedClient()

	var gotTopic, gotPayload string
	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})
	wrapped(nil, fakeMessage{topic: "config/DEV1", payload: []byte("BRG0,3")})

	assert.Equal(t, "config/DEV1", gotTopic)
	assert.Equal(t, "BRG0,3", gotPayload)
}

func TestWrapHandlerLogsErrorsAndPanics(t *testing.T) {
	c := disconnectedClient()
	logger := &mockLogger{}
	c.SetLogger(logger)

	c.wrapHandler(func(string, []byte) error {
		return errors.New("bad frame")
	})(nil, fakeMessage{topic: "config/DEV1"})

	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "config/DEV1"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Len(t, logger.warns, 1)
	require.Len(t, logger.errors, 1)
	assert.Contains(t, logger.errors[0], "panic")
}

func TestSetLoggerNil(t *testing.T) {
	c := disconnectedClient()
	c.SetLogger(&mockLogger{})
	c.SetLogger(nil)
	assert.Nil(t, c.getLogger())

	// A nil logger must not break handler wrapping.
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, fakeMessage{})
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicsPresence(t *testing.T) {
	assert.Equal(t, "presence/BRG0", Topics{}.Presence("BRG0"))
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
