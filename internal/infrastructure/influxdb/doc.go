// Package influxdb records serial bridge telemetry in InfluxDB.
//
// It wraps the influxdb-client-go v2 library. Points written:
//   - bridge_bandwidth: interface throughput samples (up_kbps, down_kbps)
//   - bridge_beacon: every alive beacon the bridge publishes
//   - device_event: device ALIVE reports and timeouts
//   - serial_link: serial port ready/hung transitions
//
// Every point carries a bridge_id tag.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Bridge.ID)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteBandwidth(12.0, 48.0)
//
// Writes never block and never return errors; asynchronous failures are
// delivered to the SetOnError callback. Write methods on a closed client are
// silently dropped.
package influxdb
