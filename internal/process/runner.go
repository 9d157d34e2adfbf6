package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Defaults applied by NewRunner for zero values.
const (
	defaultTimeout         = 10 * time.Second
	defaultGracefulTimeout = 2 * time.Second
	defaultMaxOutput       = 4096
)

// Config holds script runner settings.
type Config struct {
	// Timeout bounds a single script run.
	Timeout time.Duration

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// MaxOutput caps captured stdout in bytes. Excess output is discarded.
	MaxOutput int
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runner executes scripts from a folder on request.
//
// Each run gets its own process group so a timed-out script is terminated
// together with anything it spawned. Runner is safe for concurrent use.
type Runner struct {
	config Config

	mu     sync.RWMutex
	logger Logger
}

// NewRunner creates a runner, filling zero config values with defaults.
func NewRunner(cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = defaultMaxOutput
	}
	return &Runner{config: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

func (r *Runner) log() Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

// Run executes folder/name and returns its trimmed stdout.
//
// Parameters:
//   - ctx: Cancels the run; the configured timeout applies on top
//   - folder: Directory scripts are resolved in
//   - name: Bare file name of the script (no path components)
//
// Returns:
//   - string: Captured stdout, trailing whitespace removed (also on failure)
//   - error: ErrInvalidScriptName, ErrScriptNotFound, ErrNotExecutable,
//     ErrScriptFailed or ErrTimeout (wrapped)
func (r *Runner) Run(ctx context.Context, folder, name string) (string, error) {
	path, err := resolve(folder, name)
	if err != nil {
		return "", err
	}

	logger := r.log()
	logger.Debug("running script", "script", name, "folder", folder)

	cmd := exec.Command(path) //nolint:gosec // path is confined to the configured folder by resolve
	cmd.Dir = folder
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := &limitedBuffer{limit: r.config.MaxOutput}
	cmd.Stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrScriptFailed, err)
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		r.captureStderr(name, stderr)
	}()

	waitCh := make(chan error, 1)
	go func() {
		<-stderrDone
		waitCh <- cmd.Wait()
	}()

	runCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	select {
	case err = <-waitCh:
	case <-runCtx.Done():
		r.terminate(cmd.Process.Pid, waitCh)
		logger.Warn("script timed out", "script", name, "timeout", r.config.Timeout)
		return strings.TrimRight(stdout.String(), " \t\r\n"),
			fmt.Errorf("%w: %s after %v", ErrTimeout, name, r.config.Timeout)
	}

	output := strings.TrimRight(stdout.String(), " \t\r\n")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Info("script exited non-zero",
				"script", name,
				"exit_code", exitErr.ExitCode(),
				"duration", time.Since(start),
			)
			return output, fmt.Errorf("%w: %s exit code %d", ErrScriptFailed, name, exitErr.ExitCode())
		}
		return output, fmt.Errorf("%w: %w", ErrScriptFailed, err)
	}

	logger.Debug("script finished", "script", name, "duration", time.Since(start))
	return output, nil
}

// resolve validates the name and returns the script path.
func resolve(folder, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return "", fmt.Errorf("%w: %q", ErrInvalidScriptName, name)
	}

	path := filepath.Join(folder, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrScriptNotFound, name)
		}
		return "", fmt.Errorf("%w: %w", ErrScriptNotFound, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrScriptNotFound, name)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotExecutable, name)
	}
	return path, nil
}

// terminate signals the whole process group: SIGTERM, then SIGKILL after
// the graceful timeout. It returns once the process has been reaped.
func (r *Runner) terminate(pid int, waitCh <-chan error) {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		r.log().Warn("failed to send SIGTERM", "pid", pid, "error", err)
	}

	select {
	case <-waitCh:
		return
	case <-time.After(r.config.GracefulTimeout):
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		r.log().Error("failed to send SIGKILL", "pid", pid, "error", err)
	}
	<-waitCh
}

// captureStderr logs each stderr line at warn level.
func (r *Runner) captureStderr(name string, rd io.Reader) {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		r.log().Warn("script stderr", "script", name, "line", scanner.Text())
	}
}

// CheckFolder verifies the script folder exists and can be listed.
func CheckFolder(folder string) error {
	if folder == "" {
		return fmt.Errorf("%w: not configured", ErrFolderUnavailable)
	}
	info, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFolderUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrFolderUnavailable, folder)
	}
	if _, err := os.ReadDir(folder); err != nil {
		return fmt.Errorf("%w: %w", ErrFolderUnavailable, err)
	}
	return nil
}

// limitedBuffer keeps at most limit bytes and silently drops the rest.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
