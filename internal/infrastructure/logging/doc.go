// Package logging provides structured logging for the serial bridge.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error (or 0-4)
//	  format: "text"     # text, json
//	  output: "stdout"   # stdout, stderr
//	  verbose: false     # republish device debug frames over MQTT
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("serial port opened", "port", cfg.Serial.Port)
//	logger.Error("publish failed", "topic", topic, "error", err)
//
// Never log MQTT or InfluxDB credentials.
package logging
