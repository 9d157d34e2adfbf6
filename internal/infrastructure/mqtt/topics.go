package mqtt

// TopicPrefixPresence is the base for bridge presence topics.
const TopicPrefixPresence = "presence"

// Topics provides builders for bridge-level MQTT topics. Per-device config
// and status topics are owned by the registry.
type Topics struct{}

// Presence returns the retained online/offline topic of a bridge.
//
// Example: presence/BRG0
func (Topics) Presence(bridgeID string) string {
	return TopicPrefixPresence + "/" + bridgeID
}
