// Package serialmqtt bridges a serial device network and an MQTT broker.
//
// Devices on the serial line speak a comma-delimited protocol. Each frame
// starts with a kind byte and a protocol version:
//
//	D2<text>                    debug line
//	S2<device>,<code>[,...]     status report
//	C2<device>,<target>,<code>[,...]  configuration exchange
//
// Every device the bridge hears about gets two MQTT topics. Requests for it
// arrive on config/<device> as <origin>,<code>[,...] and its reports are
// published on status/<device>. Replies to a request go to the originator's
// config topic.
//
// The bridge registers itself as a device and hosts a few modules of its
// own: mqtt (15FF), serial (14FF), script (12FF) and bandwidth (13FF), each
// only when its collaborator is configured. The bridge identity module 16FF
// is the registry's own.
//
// # Concurrency
//
// A single goroutine running Bridge.Run owns the registry and the serial
// link. MQTT callbacks, the serial reader and script runs post events to it
// and never touch bridge state themselves.
//
// # Liveness
//
// Devices count down once a second and are evicted at zero. ALIVE reports
// reset the countdown to twice the announced interval. Every 30 seconds the
// bridge publishes its own beacon and checks the serial link, reopening it
// after a failure.
package serialmqtt
