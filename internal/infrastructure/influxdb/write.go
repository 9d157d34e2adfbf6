package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementBandwidth = "bridge_bandwidth"
	MeasurementBeacon    = "bridge_beacon"
	MeasurementDevice    = "device_event"
	MeasurementSerial    = "serial_link"
)

// Device event values stored in the "event" tag.
const (
	EventAlive   = "alive"
	EventTimeout = "timeout"
)

// WriteBandwidth records one interface throughput sample in Kbit/s.
func (c *Client) WriteBandwidth(upKbps, downKbps float64) {
	c.write(MeasurementBandwidth, nil, map[string]interface{}{
		"up_kbps":   upKbps,
		"down_kbps": downKbps,
	})
}

// WriteBeacon records a published alive beacon.
//
// Parameters:
//   - beacon: Beacon counter after the publish
//   - modules: Number of modules the bridge device reports
func (c *Client) WriteBeacon(beacon uint64, modules int) {
	c.write(MeasurementBeacon, nil, map[string]interface{}{
		"beacon":  int64(beacon), // #nosec G115 -- beacon wraps long before int64 range matters
		"modules": modules,
	})
}

// WriteDeviceAlive records an accepted ALIVE report with its countdown.
func (c *Client) WriteDeviceAlive(deviceID string, countdown int) {
	c.write(MeasurementDevice,
		map[string]string{"device_id": deviceID, "event": EventAlive},
		map[string]interface{}{"countdown": countdown},
	)
}

// WriteDeviceTimeout records the eviction of a device whose countdown expired.
func (c *Client) WriteDeviceTimeout(deviceID string) {
	c.write(MeasurementDevice,
		map[string]string{"device_id": deviceID, "event": EventTimeout},
		map[string]interface{}{"countdown": 0},
	)
}

// WriteSerialState records serial link transitions (ready or hung).
func (c *Client) WriteSerialState(port string, ready bool) {
	c.write(MeasurementSerial,
		map[string]string{"port": port},
		map[string]interface{}{"ready": ready},
	)
}

// write adds the bridge tag and queues the point. Dropped when disconnected.
func (c *Client) write(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	all := map[string]string{"bridge_id": c.bridgeID}
	for k, v := range tags {
		all[k] = v
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, all, fields, time.Now()))
}
