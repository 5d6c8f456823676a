package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/browserenv/internal/display"
)

// PoolConfig holds configuration for a Pool. All fields are immutable after
// construction via NewPool.
type PoolConfig struct {
	// PortStart and PortEnd bound the remote-debugging ports handed to
	// browsers, inclusive on both ends.
	PortStart int
	PortEnd   int

	// StartTimeout bounds the readiness handshake when a LaunchSpec does
	// not set its own timeout.
	StartTimeout time.Duration

	// StopTimeout is how long a browser gets to exit after SIGTERM before
	// it is killed.
	StopTimeout time.Duration

	// PollInterval overrides the handshake poll interval when positive.
	PollInterval time.Duration

	// DisplayBinary, DisplayNumber and DisplayResolution configure the
	// shared Xvfb server used by browsers that are not headless.
	DisplayBinary     string
	DisplayNumber     int
	DisplayResolution string

	// LockDir holds the display lock file. Empty uses os.TempDir().
	LockDir string

	// DisableDisplay runs non-headless browsers against the host DISPLAY
	// instead of a managed Xvfb server. Always true on Windows.
	DisableDisplay bool
}

// Validate checks all PoolConfig invariants and returns an error describing
// every violation found, joined with errors.Join.
//
// NewPool panics on a non-nil result, since invalid configuration is a
// programmer error.
func (c PoolConfig) Validate() error {
	var errs []error

	if c.PortStart < 1 || c.PortStart > 65535 {
		errs = append(errs, fmt.Errorf("port start must be between 1 and 65535, got %d", c.PortStart))
	}
	if c.PortEnd < 1 || c.PortEnd > 65535 {
		errs = append(errs, fmt.Errorf("port end must be between 1 and 65535, got %d", c.PortEnd))
	}
	if c.PortEnd < c.PortStart {
		errs = append(errs, fmt.Errorf("port end %d must not be below port start %d", c.PortEnd, c.PortStart))
	}
	if c.StartTimeout <= 0 {
		errs = append(errs, fmt.Errorf("start timeout must be greater than 0, got %s", c.StartTimeout))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop timeout must be greater than 0, got %s", c.StopTimeout))
	}
	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll interval must not be negative, got %s", c.PollInterval))
	}
	if !c.DisableDisplay {
		if c.DisplayBinary == "" {
			errs = append(errs, errors.New("display binary must not be empty"))
		}
		if c.DisplayNumber < 0 {
			errs = append(errs, fmt.Errorf("display number must not be negative, got %d", c.DisplayNumber))
		}
		if !display.ValidResolution(c.DisplayResolution) {
			errs = append(errs, fmt.Errorf("display resolution %q must have the form WIDTHxHEIGHTxDEPTH", c.DisplayResolution))
		}
	}

	return errors.Join(errs...)
}
