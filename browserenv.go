package browserenv

import (
	"context"
	"os"

	"github.com/giantswarm/browserenv/internal/core"
)

// LaunchSpec describes one browser launch. Args[0] is the browser binary;
// every string is passed through opaquely.
type LaunchSpec = core.LaunchSpec

// ConnectionInfo describes a running browser: its profile id, PID,
// remote-debugging port, WebSocket endpoint and CDP base URL.
type ConnectionInfo = core.ConnectionInfo

// StatusView is the JSON-ready state of one instance id.
type StatusView = core.StatusView

// Hooks observes instance lifecycle events. See WithHooks.
type Hooks = core.Hooks

// NopHooks implements Hooks with no-ops. Embed it to implement a subset.
type NopHooks = core.NopHooks

// Status values reported in StatusView.Status.
const (
	StatusRunning = core.StatusRunning
	StatusStopped = core.StatusStopped
)

// Compile-time interface satisfaction check.
var _ Pool = (*poolWrapper)(nil)

// poolWrapper wraps core.Pool to implement the Pool interface.
//
// The core.Pool is stored as a named (unexported) field rather than embedded
// to prevent callers from using type assertions to reach internal methods
// such as Display.
type poolWrapper struct {
	pool *core.Pool
}

func (w *poolWrapper) Start(ctx context.Context, id string, spec LaunchSpec) (ConnectionInfo, error) {
	return w.pool.Start(ctx, id, spec)
}

func (w *poolWrapper) Stop(id string) (bool, error) {
	return w.pool.Stop(id)
}

func (w *poolWrapper) StopAll() error {
	return w.pool.StopAll()
}

func (w *poolWrapper) Status(id string) StatusView {
	return w.pool.Status(id)
}

func (w *poolWrapper) Info(id string) (ConnectionInfo, error) {
	return w.pool.Info(id)
}

func (w *poolWrapper) ListRunning() []ConnectionInfo {
	return w.pool.ListRunning()
}

// defaultPoolConfig returns a poolConfig populated with all default values.
// Both NewPool and test helpers use this to avoid duplicating the default
// field assignments.
func defaultPoolConfig() poolConfig {
	return poolConfig{PoolConfig: core.PoolConfig{
		PortStart:         DefaultPortStart,
		PortEnd:           DefaultPortEnd,
		StartTimeout:      DefaultStartTimeout,
		StopTimeout:       DefaultStopTimeout,
		DisplayBinary:     DefaultDisplayBinary,
		DisplayNumber:     DefaultDisplayNumber,
		DisplayResolution: DefaultDisplayResolution,
		LockDir:           os.TempDir(),
	}}
}

// NewPool creates a Pool configured by opts. It performs no I/O: the
// display server starts on the first Start that is not headless, and ports
// are probed per Start.
//
// Several pools may coexist in one process as long as their port ranges
// and display numbers do not overlap; the display lock file rejects a
// second server on the same display number.
//
// Panics if any option receives an invalid value or the combined options
// are inconsistent (e.g., a port range whose end precedes its start).
//
//nolint:ireturn // Returns Pool interface by design for testability (mockable).
func NewPool(opts ...Option) Pool {
	cfg := defaultPoolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &poolWrapper{pool: core.NewPool(cfg.toCoreConfig(), cfg.coreHooks())}
}
