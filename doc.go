// Package browserenv supervises Chromium-family browser processes for
// automation clients.
//
// A Pool launches a browser binary with caller-supplied arguments, waits
// until its DevTools endpoint answers on a port taken from a bounded range,
// and tracks the process until it is stopped. Instances are keyed by a
// profile id; starting an id that is already running returns the existing
// connection descriptor. Browsers that are not headless share one Xvfb
// display server.
//
// # Basic Usage
//
//	import "github.com/giantswarm/browserenv"
//
//	pool := browserenv.NewPool()
//	defer pool.StopAll()
//
//	info, err := pool.Start(ctx, "profile-1", browserenv.LaunchSpec{
//	    Args:     []string{"/usr/bin/chromium", "--user-data-dir=/tmp/p1"},
//	    Headless: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Connect a CDP client to info.WSEndpoint.
//
// # Errors
//
// Start failures match one of ErrNoFreePort, ErrDisplay, ErrBrowser or
// ErrBrowserTimeout via errors.Is. A browser that exited during startup
// carries its exit code in an *ExitError.
//
// # Platforms
//
// Browsers are spawned in their own session on Unix and in a new process
// group on Windows. No display server is managed on Windows.
package browserenv
