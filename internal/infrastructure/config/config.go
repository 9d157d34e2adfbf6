package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// bridgeIDSize is the fixed length of the bridge's device ID on the wire.
const bridgeIDSize = 4

// supportedBaudrates lists the serial speeds the device network runs at.
var supportedBaudrates = map[int]struct{}{
	4800: {}, 9600: {}, 19200: {}, 38400: {}, 57600: {}, 115200: {},
}

// Config is the root configuration structure for the serial bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Serial    SerialConfig    `yaml:"serial"`
	Scripts   ScriptsConfig   `yaml:"scripts"`
	Bandwidth BandwidthConfig `yaml:"bandwidth"`
	Signals   SignalsConfig   `yaml:"signals"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig identifies the bridge on both transports.
type BridgeConfig struct {
	// ID is the bridge's own device ID.
	ID string `yaml:"id"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// SerialConfig describes the serial link to the device network.
// An empty Port runs the bridge without a serial link.
type SerialConfig struct {
	Port     string `yaml:"port"`
	Baudrate int    `yaml:"baudrate"`

	// ReadTimeout bounds each read call, in milliseconds.
	ReadTimeout int `yaml:"read_timeout"`
}

// ScriptsConfig enables the script module when Folder is set.
type ScriptsConfig struct {
	Folder string `yaml:"folder"`

	// Timeout bounds a single script run, in seconds.
	Timeout int `yaml:"timeout"`
}

// BandwidthConfig enables the bandwidth module when Interface is set.
type BandwidthConfig struct {
	Interface string `yaml:"interface"`
}

// SignalsConfig maps SIGUSR1 and SIGUSR2 to module option requests.
type SignalsConfig struct {
	USR1 SignalRemap `yaml:"usr1"`
	USR2 SignalRemap `yaml:"usr2"`
}

// SignalRemap sends Payload as an MD_OPTIONS request to Module on Device.
// An empty Device publishes a signal notice on the bridge status topic instead.
type SignalRemap struct {
	Device  string `yaml:"device"`
	Module  string `yaml:"module"`
	Payload string `yaml:"payload"`
}

// Enabled reports whether the signal is remapped to a device.
func (s SignalRemap) Enabled() bool {
	return s.Device != ""
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`

	// Verbose republishes device debug frames on the bridge status topic.
	Verbose bool `yaml:"verbose"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SERIALBRIDGE_SECTION_KEY
// For example: SERIALBRIDGE_MQTT_HOST, SERIALBRIDGE_SERIAL_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = "serialbridge-" + uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Serial: SerialConfig{
			Baudrate:    9600,
			ReadTimeout: 100,
		},
		Scripts: ScriptsConfig{
			Timeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SERIALBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERIALBRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}

	// MQTT
	if v := os.Getenv("SERIALBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SERIALBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SERIALBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SERIALBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Serial
	if v := os.Getenv("SERIALBRIDGE_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}

	// InfluxDB
	if v := os.Getenv("SERIALBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if len(c.Bridge.ID) != bridgeIDSize {
		errs = append(errs, fmt.Sprintf("bridge.id must be exactly %d characters", bridgeIDSize))
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Serial validation
	if c.Serial.Port != "" {
		if _, ok := supportedBaudrates[c.Serial.Baudrate]; !ok {
			errs = append(errs, fmt.Sprintf("serial.baudrate %d is not supported", c.Serial.Baudrate))
		}
		if c.Serial.ReadTimeout <= 0 {
			errs = append(errs, "serial.read_timeout must be positive")
		}
	}

	if c.Scripts.Folder != "" && c.Scripts.Timeout <= 0 {
		errs = append(errs, "scripts.timeout must be positive")
	}

	// Signal remaps
	remaps := []struct {
		name  string
		remap SignalRemap
	}{
		{"usr1", c.Signals.USR1},
		{"usr2", c.Signals.USR2},
	}
	for _, r := range remaps {
		name, remap := r.name, r.remap
		if !remap.Enabled() {
			continue
		}
		if len(remap.Device) != bridgeIDSize {
			errs = append(errs, fmt.Sprintf("signals.%s.device must be exactly %d characters", name, bridgeIDSize))
		}
		if remap.Module == "" {
			errs = append(errs, fmt.Sprintf("signals.%s.module is required", name))
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SerialReadTimeout returns the serial read timeout as a Duration.
func (c *Config) SerialReadTimeout() time.Duration {
	return time.Duration(c.Serial.ReadTimeout) * time.Millisecond
}

// ScriptTimeout returns the script run timeout as a Duration.
func (c *Config) ScriptTimeout() time.Duration {
	return time.Duration(c.Scripts.Timeout) * time.Second
}
