package netutil

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/giantswarm/browserenv/internal/sentinel"
)

// ErrNoFreePort is returned by Allocate when every port in the range failed
// the bind probe.
const ErrNoFreePort = sentinel.Error("no free port")

// PortAllocator hands out ports from the closed interval [low, high].
//
// A single cursor is shared by all callers. It advances for every candidate
// before the candidate is probed, so two concurrent Allocate calls never
// probe the same port in the same pass. The allocator keeps no record of the
// ports it returned; a port is free again as soon as nothing is bound to it.
type PortAllocator struct {
	low, high int

	mu     sync.Mutex
	cursor int

	probe func(port int) bool
	log   *slog.Logger
}

// NewPortAllocator creates a PortAllocator for [low, high].
// If logger is nil, slog.Default() is used as a fallback.
// Panics if the range is empty or outside 1..65535.
func NewPortAllocator(low, high int, logger *slog.Logger) *PortAllocator {
	if low < 1 || high > 65535 || low > high {
		panic(fmt.Sprintf("browserenv: invalid port range %d-%d", low, high))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAllocator{
		low:    low,
		high:   high,
		cursor: low,
		probe:  canBind,
		log:    logger,
	}
}

// Range returns the configured bounds.
func (a *PortAllocator) Range() (low, high int) {
	return a.low, a.high
}

// next returns the candidate under the cursor and advances it, wrapping
// past high back to low.
func (a *PortAllocator) next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	port := a.cursor
	a.cursor++
	if a.cursor > a.high {
		a.cursor = a.low
	}
	return port
}

// Allocate returns the first port, starting at the cursor, that can be bound
// on 127.0.0.1. It scans at most high-low+1 candidates and fails with
// ErrNoFreePort naming the range when none is bindable.
func (a *PortAllocator) Allocate() (int, error) {
	size := a.high - a.low + 1
	for range size {
		port := a.next()
		if a.probe(port) {
			return port, nil
		}
		a.log.Debug("port in use, trying next", "port", port)
	}
	return 0, fmt.Errorf("%w in range %d-%d", ErrNoFreePort, a.low, a.high)
}

// canBind reports whether a TCP listener can be opened on 127.0.0.1:port.
// The listener is closed before returning.
func canBind(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
