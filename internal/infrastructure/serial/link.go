package serial

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	bugst "go.bug.st/serial"
)

const (
	// readBufferSize matches the device frame buffer.
	readBufferSize = 256

	// chunkQueueSize bounds chunks waiting for the consumer.
	chunkQueueSize = 32
)

// StandardBaudrates lists the rates the device network supports.
var StandardBaudrates = []int{4800, 9600, 19200, 38400, 57600, 115200}

// ValidBaudrate reports whether rate is one of StandardBaudrates.
func ValidBaudrate(rate int) bool {
	return slices.Contains(StandardBaudrates, rate)
}

// Config describes how to open a port.
type Config struct {
	// Port is the device path, e.g. /dev/ttyUSB0.
	Port string

	// Baudrate must be one of StandardBaudrates. 8N1 framing is fixed.
	Baudrate int

	// ReadTimeout bounds each blocking read so Close is observed promptly.
	ReadTimeout time.Duration
}

// port is the subset of go.bug.st/serial.Port the link uses.
type port interface {
	io.ReadWriteCloser
}

// Link is an open serial port with a background reader.
//
// Received bytes are delivered as raw chunks on Chunks(); framing is left to
// the consumer. A terminal read error is delivered once on Errors(), after
// which both channels are closed. Write is safe for concurrent use.
type Link struct {
	name string
	port port

	writeMu sync.Mutex

	chunks  chan []byte
	errs    chan error
	closeCh chan struct{}
	doneCh  chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open opens and configures the port and starts the reader.
//
// Parameters:
//   - cfg: Port path, baudrate and read timeout
//
// Returns:
//   - *Link: Running link; call Close to stop the reader
//   - error: ErrInvalidBaudrate or ErrOpenFailed (wrapped)
func Open(cfg Config) (*Link, error) {
	if !ValidBaudrate(cfg.Baudrate) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBaudrate, cfg.Baudrate)
	}

	p, err := bugst.Open(cfg.Port, &bugst.Mode{
		BaudRate: cfg.Baudrate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, cfg.Port, err)
	}

	if cfg.ReadTimeout > 0 {
		if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("%w: set read timeout: %w", ErrOpenFailed, err)
		}
	}

	// Drop whatever accumulated in the driver before we were listening.
	_ = p.ResetInputBuffer()

	return newLink(cfg.Port, p), nil
}

func newLink(name string, p port) *Link {
	l := &Link{
		name:    name,
		port:    p,
		chunks:  make(chan []byte, chunkQueueSize),
		errs:    make(chan error, 1),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// Chunks delivers received bytes. Closed when the reader exits.
func (l *Link) Chunks() <-chan []byte { return l.chunks }

// Errors yields at most one terminal read error. Closed when the reader exits.
func (l *Link) Errors() <-chan error { return l.errs }

// Write writes all of b to the port.
func (l *Link) Write(b []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	for written := 0; written < len(b); {
		n, err := l.port.Write(b[written:])
		if err != nil {
			return fmt.Errorf("serial write %s: %w", l.name, err)
		}
		if n == 0 {
			return ErrShortWrite
		}
		written += n
	}
	return nil
}

// Close stops the reader and closes the port. Safe to call more than once.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.closeCh)
	l.mu.Unlock()

	// Closing the port unblocks a pending Read.
	err := l.port.Close()
	<-l.doneCh
	if err != nil {
		return fmt.Errorf("serial close %s: %w", l.name, err)
	}
	return nil
}

func (l *Link) readLoop() {
	defer close(l.doneCh)
	defer close(l.chunks)
	defer close(l.errs)

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-l.closeCh:
			return
		default:
		}

		n, err := l.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case l.chunks <- chunk:
			case <-l.closeCh:
				return
			}
		}
		if err != nil {
			var to interface{ Timeout() bool }
			if errors.As(err, &to) && to.Timeout() {
				continue
			}
			select {
			case <-l.closeCh:
				// Read failed because we closed the port.
			default:
				l.errs <- fmt.Errorf("serial read %s: %w", l.name, err)
			}
			return
		}
	}
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
