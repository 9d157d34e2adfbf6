// Serial MQTT Bridge
//
// This is the main entry point for the serial bridge. It connects a serial
// device network to an MQTT broker:
//   - Devices and their modules are discovered from serial traffic
//   - Every device gets config/<id> and status/<id> topics
//   - The bridge itself hosts script, bandwidth, serial and mqtt modules
//
// Send SIGUSR1 or SIGUSR2 to trigger the configured signal actions.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nerrad567/serial-mqtt-bridge/internal/bridges/serialmqtt"
	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/config"
	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/netdev"
	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/serial"
	"github.com/nerrad567/serial-mqtt-bridge/internal/process"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither the flag nor the env var is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnvVar overrides the default config path.
	configEnvVar = "SERIALBRIDGE_CONFIG"
)

// options are the command line flags.
type options struct {
	configPath string
	quiet      bool
	help       bool
}

func main() {
	opts, usage, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s", err, usage)
		os.Exit(2)
	}
	if opts.help {
		fmt.Print(usage)
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses the command line. It also returns the usage text.
func parseFlags(args []string) (options, string, error) {
	var opts options

	fs := pflag.NewFlagSet("serialbridge", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file (env "+configEnvVar+")")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "log errors only and never republish device debug lines")
	fs.BoolVarP(&opts.help, "help", "h", false, "show this help")

	usage := "Usage: serialbridge [flags]\n\n" + fs.FlagUsages()
	if err := fs.Parse(args); err != nil {
		return opts, usage, err
	}
	if fs.NArg() > 0 {
		return opts, usage, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, usage, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command line flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting serial bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.quiet {
		cfg.Logging.Level = "error"
		cfg.Logging.Verbose = false
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"bridge_id", cfg.Bridge.ID,
		"level", cfg.Logging.Level,
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Bridge.ID)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		influxClient = nil
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// User signals are translated and handed to the bridge event loop.
	userSignals := make(chan os.Signal, 1)
	signal.Notify(userSignals, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(userSignals)
	bridgeSignals := make(chan serialmqtt.Signal, 1)
	go forwardSignals(ctx, userSignals, bridgeSignals)

	bridgeOpts := bridgeOptions(cfg, mqttClient, influxClient, log)
	bridgeOpts.Signals = bridgeSignals

	bridge, err := serialmqtt.NewBridge(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	// Run sends the first beacon; reconnects prompt another one.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		bridge.NotifyConnected()
	})

	log.Info("initialisation complete, running bridge")
	if err := bridge.Run(ctx); err != nil {
		return fmt.Errorf("running bridge: %w", err)
	}

	log.Info("serial bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path: the flag value, then
// SERIALBRIDGE_CONFIG, then the default.
func getConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the broker, and InfluxDB when enabled.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// bridgeOptions wires the optional collaborators. A module whose
// collaborator cannot work on this host is left out with a warning.
func bridgeOptions(cfg *config.Config, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) serialmqtt.BridgeOptions {
	opts := serialmqtt.BridgeOptions{
		BridgeID:  cfg.Bridge.ID,
		Publisher: &mqttBridgeAdapter{client: mqttClient},
		QoS:       byte(cfg.MQTT.QoS),
		SignalUSR1: serialmqtt.SignalRemap{
			Device:  cfg.Signals.USR1.Device,
			Module:  cfg.Signals.USR1.Module,
			Payload: cfg.Signals.USR1.Payload,
		},
		SignalUSR2: serialmqtt.SignalRemap{
			Device:  cfg.Signals.USR2.Device,
			Module:  cfg.Signals.USR2.Module,
			Payload: cfg.Signals.USR2.Payload,
		},
		Verbose: cfg.Logging.Verbose,
		Logger:  log.With("component", "bridge"),
	}

	if cfg.Serial.Port != "" {
		if ports, err := serial.ListPorts(); err != nil {
			log.Debug("serial port enumeration failed", "error", err)
		} else {
			log.Debug("serial ports", "ports", ports)
		}
		opts.Serial = serialOpener{cfg: serial.Config{
			Port:        cfg.Serial.Port,
			Baudrate:    cfg.Serial.Baudrate,
			ReadTimeout: cfg.SerialReadTimeout(),
		}}
		opts.SerialPort = cfg.Serial.Port
	} else {
		log.Info("no serial port configured")
	}

	if cfg.Scripts.Folder != "" {
		if err := process.CheckFolder(cfg.Scripts.Folder); err != nil {
			log.Warn("script module disabled", "folder", cfg.Scripts.Folder, "error", err)
		} else {
			runner := process.NewRunner(process.Config{Timeout: cfg.ScriptTimeout()})
			runner.SetLogger(log.With("component", "scripts"))
			opts.Scripts = scriptRunner{runner: runner}
			opts.ScriptFolder = cfg.Scripts.Folder
		}
	}

	if iface := cfg.Bandwidth.Interface; iface != "" {
		exists, err := netdev.InterfaceExists(iface)
		switch {
		case err != nil:
			log.Warn("bandwidth module disabled", "interface", iface, "error", err)
		case !exists:
			log.Warn("bandwidth module disabled", "interface", iface, "error", netdev.ErrInterfaceNotFound)
		default:
			sampler := netdev.NewSampler(iface)
			log.Debug("bandwidth sampling", "interface", sampler.Interface())
			opts.Bandwidth = sampler
		}
	}

	// Assigned only when connected: a nil *Client in the interface would
	// not compare equal to nil.
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	return opts
}

// forwardSignals translates SIGUSR1 and SIGUSR2 until ctx is done.
func forwardSignals(ctx context.Context, in <-chan os.Signal, out chan<- serialmqtt.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-in:
			s, ok := translateSignal(sig)
			if !ok {
				continue
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}
}

func translateSignal(sig os.Signal) (serialmqtt.Signal, bool) {
	switch sig {
	case syscall.SIGUSR1:
		return serialmqtt.SignalUSR1, true
	case syscall.SIGUSR2:
		return serialmqtt.SignalUSR2, true
	}
	return 0, false
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// Publisher interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements serialmqtt.Publisher.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements serialmqtt.Publisher.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// Unsubscribe implements serialmqtt.Publisher.
func (a *mqttBridgeAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// IsConnected implements serialmqtt.Publisher.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// serialOpener opens the configured port for the bridge.
type serialOpener struct {
	cfg serial.Config
}

func (o serialOpener) Open() (serialmqtt.SerialLink, error) {
	link, err := serial.Open(o.cfg)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// scriptRunner maps the runner's lookup failures onto the bridge's
// not-found error.
type scriptRunner struct {
	runner *process.Runner
}

func (s scriptRunner) Run(ctx context.Context, folder, name string) (string, error) {
	out, err := s.runner.Run(ctx, folder, name)
	if errors.Is(err, process.ErrScriptNotFound) || errors.Is(err, process.ErrInvalidScriptName) {
		return out, fmt.Errorf("%w: %w", serialmqtt.ErrScriptNotFound, err)
	}
	return out, err
}
