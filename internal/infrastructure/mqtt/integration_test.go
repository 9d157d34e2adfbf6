//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/config"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestIntegration_ConnectAndClose(t *testing.T) {
	client, err := Connect(integrationConfig("serialbridge-int-connect"), "TST0")
	require.NoError(t, err)

	assert.True(t, client.IsConnected())
	assert.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := integrationConfig("serialbridge-int-refused")
	cfg.Broker.Port = 1
	cfg.Reconnect.InitialDelay = 0

	_, err := Connect(cfg, "TST0")
	assert.Error(t, err, "connect to a closed port")
}

func TestIntegration_PresenceOnline(t *testing.T) {
	bridge, err := Connect(integrationConfig("serialbridge-int-presence"), "TST1")
	require.NoError(t, err)
	defer bridge.Close()

	watcher, err := Connect(integrationConfig("serialbridge-int-watcher"), "TST2")
	require.NoError(t, err)
	defer watcher.Close()

	received := make(chan string, 4)
	err = watcher.Subscribe(Topics{}.Presence("TST1"), 1, func(_ string, p []byte) error {
		received <- string(p)
		return nil
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, presenceOnline, msg)
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for retained presence")
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	pub, err := Connect(integrationConfig("serialbridge-int-pub"), "TST3")
	require.NoError(t, err)
	defer pub.Close()

	sub, err := Connect(integrationConfig("serialbridge-int-sub"), "TST4")
	require.NoError(t, err)
	defer sub.Close()

	topic := "status/TST3"
	want := "1,5,12,30"

	received := make(chan string, 1)
	var once sync.Once
	err = sub.Subscribe(topic, 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, pub.Publish(topic, []byte(want), 1, false))

	select {
	case got := <-received:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}
