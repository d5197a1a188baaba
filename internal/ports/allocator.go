package ports

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/domain"
)

// DefaultBindHost is where bind probes are performed
const DefaultBindHost = "127.0.0.1"

// maxEphemeralAttempts bounds retries when the OS hands back a port we already claimed
const maxEphemeralAttempts = 16

// Allocator hands out debug ports that are free at the OS level and not
// already claimed by this process.
type Allocator struct {
	// Ports claimed by this process
	claimed map[int]bool
	// Host used for bind probes
	bindHost string
	// listen is swappable in tests
	listen func(network, address string) (net.Listener, error)
	logger *zap.Logger
	// Bind probe and claim happen under one lock
	mu sync.Mutex
}

// Option configures an Allocator
type Option func(*Allocator)

// WithBindHost sets the host used for bind probes
func WithBindHost(host string) Option {
	return func(a *Allocator) {
		if host != "" {
			a.bindHost = host
		}
	}
}

// WithLogger sets the allocator's logger
func WithLogger(l *zap.Logger) Option {
	return func(a *Allocator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithListenFunc replaces net.Listen, used for fault injection
func WithListenFunc(fn func(network, address string) (net.Listener, error)) Option {
	return func(a *Allocator) {
		if fn != nil {
			a.listen = fn
		}
	}
}

// NewAllocator creates an empty allocator
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{
		claimed:  make(map[int]bool),
		bindHost: DefaultBindHost,
		listen:   net.Listen,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate claims a port. A preferred port (> 0) is used when it is neither
// claimed nor bound by someone else; otherwise the OS picks an ephemeral port.
func (a *Allocator) Allocate(preferred int) (port int, usedPreferred bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if preferred > 0 && !a.claimed[preferred] && a.isPortAvailable(preferred) {
		a.claimed[preferred] = true
		a.logger.Debug("allocated preferred port", zap.Int("port", preferred))
		return preferred, true, nil
	}

	for attempt := 0; attempt < maxEphemeralAttempts; attempt++ {
		port, err = a.ephemeralPort()
		if err != nil {
			return 0, false, &domain.PortAllocationError{Cause: err}
		}
		if a.claimed[port] {
			continue
		}
		a.claimed[port] = true
		a.logger.Debug("allocated ephemeral port",
			zap.Int("port", port),
			zap.Int("preferred", preferred))
		return port, false, nil
	}

	return 0, false, &domain.PortAllocationError{
		Cause: fmt.Errorf("OS kept returning claimed ports after %d attempts", maxEphemeralAttempts),
	}
}

// Release forgets a claimed port. Releasing an unknown port is a no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.claimed, port)
}

// ReleaseAll forgets every claimed port
func (a *Allocator) ReleaseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.claimed = make(map[int]bool)
}

// IsClaimed reports whether port is currently claimed
func (a *Allocator) IsClaimed(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.claimed[port]
}

// Claimed returns the claimed ports in ascending order
func (a *Allocator) Claimed() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]int, 0, len(a.claimed))
	for port := range a.claimed {
		result = append(result, port)
	}
	sort.Ints(result)
	return result
}

// StillFree re-runs the bind probe for an already claimed port. It closes the
// window between allocation and the debuggee's own bind.
func (a *Allocator) StillFree(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isPortAvailable(port)
}

// isPortAvailable checks if a port is available on the system
func (a *Allocator) isPortAvailable(port int) bool {
	listener, err := a.listen("tcp", net.JoinHostPort(a.bindHost, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// ephemeralPort asks the OS for a free port and releases the bind immediately
func (a *Allocator) ephemeralPort() (int, error) {
	listener, err := a.listen("tcp", net.JoinHostPort(a.bindHost, "0"))
	if err != nil {
		return 0, err
	}
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("listener did not report a TCP address")
	}
	return addr.Port, nil
}
