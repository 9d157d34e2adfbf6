// Package mqtt provides MQTT client connectivity for the serial bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament on the bridge presence topic
//
// # Architecture
//
// The broker is one side of the bridge; the serial device network is the
// other. Every device gets a config topic (requests to it) and a status topic
// (what it reports):
//
//	devices ↔ serial ↔ bridge ↔ MQTT broker ↔ consumers
//
// # Presence
//
// The client publishes a retained "online" on presence/<bridge-id> after
// every connect, and "offline" on clean shutdown. The broker publishes
// "offline" through the Last Will if the bridge vanishes.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("config/BRG0", 0,
//	    func(topic string, payload []byte) error {
//	        events <- message{topic, payload}
//	        return nil
//	    })
//
//	client.Publish("status/BRG0", []byte("1,5,12,30"), 0, false)
package mqtt
