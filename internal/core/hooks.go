package core

import "time"

// Hooks observes instance lifecycle events. Methods are called synchronously
// from the goroutine that caused the event, after the pool state has been
// updated, and must not call back into the Pool.
type Hooks interface {
	// OnStarted is called after a browser passed its readiness handshake.
	OnStarted(info ConnectionInfo, elapsed time.Duration)

	// OnStartFailed is called when Start returns an error for id.
	OnStartFailed(id string, err error)

	// OnStopped is called when an instance leaves the pool, whether through
	// Stop, StopAll, or pruning after the browser exited on its own.
	OnStopped(id string)

	// OnDisplayStarted is called after the shared display server came up.
	OnDisplayStarted(address string)
}

// NopHooks implements Hooks with no-ops. Embed it to implement a subset.
type NopHooks struct{}

func (NopHooks) OnStarted(ConnectionInfo, time.Duration) {}
func (NopHooks) OnStartFailed(string, error)             {}
func (NopHooks) OnStopped(string)                        {}
func (NopHooks) OnDisplayStarted(string)                 {}

// MultiHooks fans each event out to every element in order.
type MultiHooks []Hooks

func (m MultiHooks) OnStarted(info ConnectionInfo, elapsed time.Duration) {
	for _, h := range m {
		h.OnStarted(info, elapsed)
	}
}

func (m MultiHooks) OnStartFailed(id string, err error) {
	for _, h := range m {
		h.OnStartFailed(id, err)
	}
}

func (m MultiHooks) OnStopped(id string) {
	for _, h := range m {
		h.OnStopped(id)
	}
}

func (m MultiHooks) OnDisplayStarted(address string) {
	for _, h := range m {
		h.OnDisplayStarted(address)
	}
}
