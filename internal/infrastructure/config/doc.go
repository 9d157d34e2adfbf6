// Package config handles loading and validating the serial bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and serial settings
//   - Default value handling
//
// Security Considerations:
//   - MQTT and InfluxDB credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/serialbridge/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.ID)
//
// A minimal file:
//
//	bridge:
//	  id: "BRG0"
//	mqtt:
//	  broker:
//	    host: "localhost"
//	    port: 1883
//	serial:
//	  port: "/dev/ttyUSB0"
//	  baudrate: 9600
package config
