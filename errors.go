package browserenv

import (
	"github.com/giantswarm/browserenv/internal/browser"
	"github.com/giantswarm/browserenv/internal/core"
	"github.com/giantswarm/browserenv/internal/display"
	"github.com/giantswarm/browserenv/internal/netutil"
	"github.com/giantswarm/browserenv/internal/process"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrNotFound is returned by Pool.Info when no live instance has the id.
	ErrNotFound = core.ErrNotFound

	// ErrNoFreePort is returned by Pool.Start when every port in the
	// configured range is in use. The message names the range.
	ErrNoFreePort = netutil.ErrNoFreePort

	// ErrDisplay is returned by Pool.Start when the shared display server
	// could not be started for a browser that is not headless.
	ErrDisplay = display.ErrDisplay

	// ErrBrowser is returned by Pool.Start when the browser could not be
	// spawned or exited before its DevTools endpoint answered. Use errors.As
	// with *ExitError to read the exit code.
	ErrBrowser = browser.ErrBrowser

	// ErrBrowserTimeout is returned by Pool.Start when the DevTools endpoint
	// did not answer within the start timeout. It does not match ErrBrowser.
	ErrBrowserTimeout = browser.ErrBrowserTimeout

	// ErrInvalidSpec is returned by Pool.Start for an empty id or a negative
	// start timeout. Nothing is spawned.
	ErrInvalidSpec = core.ErrInvalidSpec
)

// ExitError carries the exit code of a browser or display server that
// exited on its own.
type ExitError = process.ExitError
