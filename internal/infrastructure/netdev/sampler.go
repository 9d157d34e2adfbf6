// Package netdev samples network interface throughput for the bridge's
// bandwidth module.
package netdev

import (
	"errors"
	"fmt"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// ErrInterfaceNotFound is returned when the configured interface has no counters.
var ErrInterfaceNotFound = errors.New("netdev: interface not found")

// bytesPerKbit converts byte deltas to Kbit: 1024 bits / 8.
const bytesPerKbit = 128.0

// Sampler computes upload and download rates in Kbit/s from successive
// interface byte counters. The first sample only primes the counters.
type Sampler struct {
	iface string

	// counters is psnet.IOCounters in production.
	counters func(pernic bool) ([]psnet.IOCountersStat, error)
	now      func() time.Time

	mu       sync.Mutex
	primed   bool
	lastTime time.Time
	lastRecv uint64
	lastSent uint64
	up       float64
	down     float64
}

// NewSampler creates a sampler for the named interface.
func NewSampler(iface string) *Sampler {
	return &Sampler{
		iface:    iface,
		counters: psnet.IOCounters,
		now:      time.Now,
	}
}

// Interface returns the sampled interface name.
func (s *Sampler) Interface() string { return s.iface }

// Sample reads the counters and returns the rates since the previous call.
//
// Returns:
//   - up: Transmit rate in Kbit/s
//   - down: Receive rate in Kbit/s
//   - err: ErrInterfaceNotFound or a counter read failure; the previous
//     rates are returned alongside the error
func (s *Sampler) Sample() (up, down float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recv, sent, err := s.read()
	if err != nil {
		return s.up, s.down, err
	}
	now := s.now()

	if !s.primed {
		s.primed = true
		s.lastTime, s.lastRecv, s.lastSent = now, recv, sent
		return 0, 0, nil
	}

	dt := now.Sub(s.lastTime).Seconds()
	if dt <= 0 {
		return s.up, s.down, nil
	}

	s.down = delta(recv, s.lastRecv) / dt / bytesPerKbit
	s.up = delta(sent, s.lastSent) / dt / bytesPerKbit
	s.lastTime, s.lastRecv, s.lastSent = now, recv, sent

	return s.up, s.down, nil
}

func (s *Sampler) read() (recv, sent uint64, err error) {
	stats, err := s.counters(true)
	if err != nil {
		return 0, 0, fmt.Errorf("read interface counters: %w", err)
	}
	for _, st := range stats {
		if st.Name == s.iface {
			return st.BytesRecv, st.BytesSent, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrInterfaceNotFound, s.iface)
}

// delta treats a counter reset (cur < prev) as no traffic.
func delta(cur, prev uint64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur - prev)
}

// InterfaceExists reports whether the system has an interface with this name.
func InterfaceExists(name string) (bool, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return false, fmt.Errorf("list interfaces: %w", err)
	}
	for _, i := range ifaces {
		if i.Name == name {
			return true, nil
		}
	}
	return false, nil
}
