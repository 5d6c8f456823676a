package browserenv

import (
	"fmt"
	"time"

	"github.com/giantswarm/browserenv/internal/display"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("browserenv: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("browserenv: %s must not be empty", name))
	}
}

// Option configures a Pool during construction via NewPool.
//
// Several With* functions panic on invalid input. Option values are
// typically constants, so an invalid value is a programmer error; the
// pattern mirrors [regexp.MustCompile].
type Option func(*poolConfig)

// WithPortRange sets the inclusive range of remote-debugging ports.
//
// Default: 9200-9999.
//
// Panics if either bound is outside 1-65535 or high < low.
func WithPortRange(low, high int) Option {
	if low < 1 || high > 65535 || high < low {
		panic(fmt.Sprintf("browserenv: invalid port range %d-%d", low, high))
	}
	return func(c *poolConfig) {
		c.PortStart = low
		c.PortEnd = high
	}
}

// WithStartTimeout sets the default readiness-handshake timeout for
// launches whose LaunchSpec.Timeout is zero.
//
// Default: 15 seconds.
//
// Panics if d <= 0.
func WithStartTimeout(d time.Duration) Option {
	requirePositive("start timeout", d)
	return func(c *poolConfig) {
		c.StartTimeout = d
	}
}

// WithStopTimeout sets how long a browser gets to exit after SIGTERM
// before it is killed.
//
// Default: 5 seconds.
//
// Panics if d <= 0.
func WithStopTimeout(d time.Duration) Option {
	requirePositive("stop timeout", d)
	return func(c *poolConfig) {
		c.StopTimeout = d
	}
}

// WithPollInterval overrides the interval between DevTools readiness probes.
//
// Default: 300 milliseconds.
//
// Panics if d <= 0.
func WithPollInterval(d time.Duration) Option {
	requirePositive("poll interval", d)
	return func(c *poolConfig) {
		c.PollInterval = d
	}
}

// WithDisplayBinary sets the path to the Xvfb binary.
// Panics if binPath is empty.
func WithDisplayBinary(binPath string) Option {
	requireNonEmpty("display binary path", binPath)
	return func(c *poolConfig) {
		c.DisplayBinary = binPath
	}
}

// WithDisplayNumber sets the X display number of the shared display.
//
// Default: 99.
//
// Panics if n < 0.
func WithDisplayNumber(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("browserenv: display number must not be negative, got %d", n))
	}
	return func(c *poolConfig) {
		c.DisplayNumber = n
	}
}

// WithDisplayResolution sets the shared display geometry as
// WIDTHxHEIGHTxDEPTH, e.g. "1280x720x24".
//
// Panics if res does not have that form.
func WithDisplayResolution(res string) Option {
	if !display.ValidResolution(res) {
		panic(fmt.Sprintf("browserenv: invalid display resolution %q", res))
	}
	return func(c *poolConfig) {
		c.DisplayResolution = res
	}
}

// WithLockDir sets the directory holding the display lock file.
// Useful in CI where several jobs share a host but not a temp directory.
//
// Default: os.TempDir().
//
// Panics if dir is empty.
func WithLockDir(dir string) Option {
	requireNonEmpty("lock directory", dir)
	return func(c *poolConfig) {
		c.LockDir = dir
	}
}

// WithoutDisplay disables the managed display server. Browsers that are
// not headless then use the host DISPLAY, if any.
func WithoutDisplay() Option {
	return func(c *poolConfig) {
		c.DisableDisplay = true
	}
}

// WithHooks registers lifecycle hooks. Repeated calls accumulate; hooks run
// in registration order.
//
// Panics if h is nil.
func WithHooks(h Hooks) Option {
	if h == nil {
		panic("browserenv: hooks must not be nil")
	}
	return func(c *poolConfig) {
		c.hooks = append(c.hooks, h)
	}
}
