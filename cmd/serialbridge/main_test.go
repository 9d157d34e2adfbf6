package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/serial-mqtt-bridge/internal/bridges/serialmqtt"
	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/config"
	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/serial-mqtt-bridge/internal/infrastructure/serial"
	"github.com/nerrad567/serial-mqtt-bridge/internal/process"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}

func TestParseFlags(t *testing.T) {
	opts, usage, err := parseFlags([]string{"-c", "/etc/serialbridge.yaml", "--quiet"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/serialbridge.yaml", opts.configPath)
	assert.True(t, opts.quiet)
	assert.False(t, opts.help)
	assert.Contains(t, usage, "--config")
}

func TestParseFlags_Errors(t *testing.T) {
	_, _, err := parseFlags([]string{"--bogus"})
	assert.Error(t, err)
	_, _, err = parseFlags([]string{"extra"})
	assert.Error(t, err)

	opts, _, err := parseFlags([]string{"-h"})
	require.NoError(t, err)
	assert.True(t, opts.help)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configEnvVar, "")
	assert.Equal(t, defaultConfigPath, getConfigPath(""))

	t.Setenv(configEnvVar, "/from/env.yaml")
	assert.Equal(t, "/from/env.yaml", getConfigPath(""))
	assert.Equal(t, "/from/flag.yaml", getConfigPath("/from/flag.yaml"))
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: "/nonexistent/path/config.yaml"})
	assert.ErrorContains(t, err, "loading config")
}

// TestRun_InvalidBridgeID verifies validation errors stop startup before
// any connection is attempted.
func TestRun_InvalidBridgeID(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
bridge:
  id: "TOOLONG"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	err := run(context.Background(), options{configPath: configPath})
	assert.ErrorContains(t, err, "bridge.id")
}

func TestTranslateSignal(t *testing.T) {
	s, ok := translateSignal(syscall.SIGUSR1)
	assert.True(t, ok)
	assert.Equal(t, serialmqtt.SignalUSR1, s)

	s, ok = translateSignal(syscall.SIGUSR2)
	assert.True(t, ok)
	assert.Equal(t, serialmqtt.SignalUSR2, s)

	_, ok = translateSignal(syscall.SIGHUP)
	assert.False(t, ok, "SIGHUP should not translate")
}

func TestForwardSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan os.Signal, 2)
	out := make(chan serialmqtt.Signal, 2)
	done := make(chan struct{})
	go func() {
		forwardSignals(ctx, in, out)
		close(done)
	}()

	in <- syscall.SIGHUP
	in <- syscall.SIGUSR2

	select {
	case got := <-out:
		assert.Equal(t, serialmqtt.SignalUSR2, got)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "signal not forwarded")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "forwardSignals did not stop")
	}
}

func TestBridgeOptions_Minimal(t *testing.T) {
	cfg := &config.Config{Bridge: config.BridgeConfig{ID: "BRG0"}}

	opts := bridgeOptions(cfg, nil, nil, quietLogger())

	assert.Equal(t, "BRG0", opts.BridgeID)
	assert.NotNil(t, opts.Publisher)
	assert.Nil(t, opts.Serial)
	assert.Nil(t, opts.Scripts)
	assert.Nil(t, opts.Bandwidth)
	assert.Nil(t, opts.Telemetry)
}

func TestBridgeOptions_Scripts(t *testing.T) {
	folder := t.TempDir()
	cfg := &config.Config{
		Bridge:  config.BridgeConfig{ID: "BRG0"},
		Scripts: config.ScriptsConfig{Folder: folder, Timeout: 5},
		Serial:  config.SerialConfig{Port: "/dev/ttyNONE", Baudrate: 9600, ReadTimeout: 100},
		Signals: config.SignalsConfig{
			USR1: config.SignalRemap{Device: "DEV1", Module: "0D00", Payload: "1"},
		},
	}

	opts := bridgeOptions(cfg, nil, nil, quietLogger())

	assert.NotNil(t, opts.Scripts)
	assert.Equal(t, folder, opts.ScriptFolder)
	assert.NotNil(t, opts.Serial)
	assert.Equal(t, "/dev/ttyNONE", opts.SerialPort)
	assert.True(t, opts.SignalUSR1.Enabled())
	assert.False(t, opts.SignalUSR2.Enabled())
}

func TestBridgeOptions_UnusableCollaborators(t *testing.T) {
	cfg := &config.Config{
		Bridge:    config.BridgeConfig{ID: "BRG0"},
		Scripts:   config.ScriptsConfig{Folder: filepath.Join(t.TempDir(), "missing"), Timeout: 5},
		Bandwidth: config.BandwidthConfig{Interface: "nosuchif0"},
	}

	opts := bridgeOptions(cfg, nil, nil, quietLogger())

	assert.Nil(t, opts.Scripts, "script module disabled for a missing folder")
	assert.Nil(t, opts.Bandwidth, "bandwidth module disabled for an unknown interface")
}

func TestSerialOpener_InvalidBaudrate(t *testing.T) {
	o := serialOpener{cfg: serial.Config{Port: "/dev/ttyNONE", Baudrate: 1234}}

	link, err := o.Open()
	assert.ErrorIs(t, err, serial.ErrInvalidBaudrate)
	assert.Nil(t, link)
}

func TestScriptRunner_NotFoundMapped(t *testing.T) {
	r := scriptRunner{runner: process.NewRunner(process.Config{})}

	_, err := r.Run(context.Background(), t.TempDir(), "missing.sh")
	assert.ErrorIs(t, err, serialmqtt.ErrScriptNotFound)

	_, err = r.Run(context.Background(), t.TempDir(), "../escape.sh")
	assert.ErrorIs(t, err, serialmqtt.ErrScriptNotFound)
}

func TestScriptRunner_Output(t *testing.T) {
	folder := t.TempDir()
	script := filepath.Join(folder, "hello.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho hello\n"), 0o755))

	out, err := scriptRunner{runner: process.NewRunner(process.Config{})}.Run(context.Background(), folder, "hello.sh")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}
