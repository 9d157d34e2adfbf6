package process

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script in dir.
func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755) //nolint:gosec // test script must be executable
	require.NoError(t, err)
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}
func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "line" {
			msg += ":" + args[i+1].(string)
		}
	}
	l.warns = append(l.warns, msg)
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(Config{})

	assert.Equal(t, defaultTimeout, r.config.Timeout)
	assert.Equal(t, defaultGracefulTimeout, r.config.GracefulTimeout)
	assert.Equal(t, defaultMaxOutput, r.config.MaxOutput)
}

func TestRun_Output(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "hello", "echo hello bridge")

	out, err := NewRunner(Config{}).Run(context.Background(), dir, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello bridge", out)
}

func TestRun_EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "quiet", "exit 0")

	out, err := NewRunner(Config{}).Run(context.Background(), dir, "quiet")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRun_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "fail", "echo partial\nexit 3")

	out, err := NewRunner(Config{}).Run(context.Background(), dir, "fail")
	require.ErrorIs(t, err, ErrScriptFailed)
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Equal(t, "partial", out)
}

func TestRun_NotFound(t *testing.T) {
	_, err := NewRunner(Config{}).Run(context.Background(), t.TempDir(), "missing")
	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestRun_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	_, err := NewRunner(Config{}).Run(context.Background(), dir, "sub")
	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestRun_NotExecutable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain"), []byte("echo hi\n"), 0o600))

	_, err := NewRunner(Config{}).Run(context.Background(), dir, "plain")
	assert.ErrorIs(t, err, ErrNotExecutable)
}

func TestRun_InvalidNames(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(Config{})

	for _, name := range []string{"", ".", "..", "../etc/passwd", "a/b"} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Run(context.Background(), dir, name)
			assert.ErrorIs(t, err, ErrInvalidScriptName)
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "slow", "echo started\nsleep 10")

	r := NewRunner(Config{Timeout: 200 * time.Millisecond, GracefulTimeout: 500 * time.Millisecond})

	start := time.Now()
	out, err := r.Run(context.Background(), dir, "slow")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, 5*time.Second, "terminated shortly after the timeout")
	assert.Equal(t, "started", out)
}

func TestRun_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "slow", "sleep 10")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := NewRunner(Config{GracefulTimeout: 500 * time.Millisecond}).Run(ctx, dir, "slow")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRun_OutputLimit(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "chatty", "echo 0123456789")

	out, err := NewRunner(Config{MaxOutput: 4}).Run(context.Background(), dir, "chatty")
	require.NoError(t, err)
	assert.Equal(t, "0123", out)
}

func TestRun_StderrLogged(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "noisy", "echo oops >&2")

	logger := &recordingLogger{}
	r := NewRunner(Config{})
	r.SetLogger(logger)

	_, err := r.Run(context.Background(), dir, "noisy")
	require.NoError(t, err)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Equal(t, []string{"script stderr:oops"}, logger.warns)
}

func TestSetLogger_Nil(t *testing.T) {
	r := NewRunner(Config{})
	r.SetLogger(nil)
	assert.IsType(t, noopLogger{}, r.log())
}

func TestCheckFolder(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	tests := []struct {
		name    string
		folder  string
		wantErr bool
	}{
		{"existing directory", dir, false},
		{"empty path", "", true},
		{"missing", filepath.Join(dir, "nope"), true},
		{"regular file", file, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFolder(tt.folder)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrFolderUnavailable)
		})
	}
}
