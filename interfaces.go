package browserenv

import "context"

// Pool supervises browser instances keyed by a caller-chosen profile id.
// At most one live browser exists per id. All methods are safe for
// concurrent use; Start and Stop for the same id are serialized.
//
// Typical lifecycle:
//
//	NewPool → Start/Stop/Status (repeatable) → StopAll
type Pool interface {
	// Start launches a browser for id and waits until its DevTools endpoint
	// answers. If a live browser for id already exists, its descriptor is
	// returned and no process is spawned.
	//
	// Browsers that are not headless share one display server, started on
	// first use. The handshake is bounded by spec.Timeout (or the pool's
	// start timeout) and by ctx.
	//
	// Errors match ErrNoFreePort, ErrDisplay, ErrBrowser or
	// ErrBrowserTimeout. No browser process outlives a failed Start.
	Start(ctx context.Context, id string, spec LaunchSpec) (ConnectionInfo, error)

	// Stop terminates the browser for id and forgets it. It reports false,
	// with a nil error, when id has no entry.
	Stop(id string) (bool, error)

	// StopAll terminates every browser, empties the pool and stops the
	// shared display. The pool remains usable afterwards.
	StopAll() error

	// Status reports "running" with the connection descriptor, or "stopped"
	// for unknown ids and browsers that exited on their own.
	Status(id string) StatusView

	// Info returns the descriptor of the live browser for id, or an error
	// matching ErrNotFound.
	Info(id string) (ConnectionInfo, error)

	// ListRunning returns the descriptors of all live browsers sorted by id.
	ListRunning() []ConnectionInfo
}
