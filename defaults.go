package browserenv

import "time"

// Default configuration values for NewPool.
// These constants are exported so callers can build custom configurations
// relative to them (e.g., 2 * DefaultStartTimeout).
const (
	// DefaultPortStart is the first remote-debugging port handed out.
	DefaultPortStart = 9200

	// DefaultPortEnd is the last remote-debugging port handed out.
	DefaultPortEnd = 9999

	// DefaultStartTimeout bounds the readiness handshake of one browser
	// when its LaunchSpec does not set a timeout. Cold starts of a browser
	// with a fresh profile typically take 1-5 seconds.
	DefaultStartTimeout = 15 * time.Second

	// DefaultStopTimeout is how long a browser gets to exit after SIGTERM
	// before it is killed.
	DefaultStopTimeout = 5 * time.Second

	// DefaultDisplayBinary is the binary name used to locate Xvfb in PATH.
	DefaultDisplayBinary = "Xvfb"

	// DefaultDisplayNumber is the X display number of the shared display.
	DefaultDisplayNumber = 99

	// DefaultDisplayResolution is the screen geometry of the shared
	// display as WIDTHxHEIGHTxDEPTH.
	DefaultDisplayResolution = "1920x1080x24"
)
