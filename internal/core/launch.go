package core

import (
	"time"

	"github.com/giantswarm/browserenv/internal/browser"
)

// Browser flags added by the pool.
const (
	flagHeadless       = "--headless=new"
	flagSoftwareRender = "--enable-unsafe-swiftshader"
)

// ConnectionInfo describes a running browser instance.
type ConnectionInfo = browser.ConnectionInfo

// LaunchSpec is the caller's description of one browser launch. The pool
// treats every string as opaque and never modifies the slices or map.
type LaunchSpec struct {
	// Args is the argv; element 0 is the browser binary.
	Args []string

	// Env is overlaid on the host environment.
	Env map[string]string

	// Headless adds --headless=new. Browsers that are not headless get the
	// shared display.
	Headless bool

	// ExtraArgs are appended after the pool's own flags.
	ExtraArgs []string

	// Timeout bounds the readiness handshake; zero uses the pool default.
	Timeout time.Duration
}

// needsSoftwareRendering reports whether the browser must fall back to
// SwiftShader. On Windows headless browsers have no GPU path; elsewhere a
// browser drawing to Xvfb, or to a host without any display, has none.
func needsSoftwareRendering(goos string, headless, hostHasDisplay bool) bool {
	if goos == "windows" {
		return headless
	}
	return !headless || !hostHasDisplay
}

// BuildLaunchArgs returns the argv for spec without the remote-debugging
// flags, which the supervisor appends:
//
//	binary, caller flags..., --headless=new?, --enable-unsafe-swiftshader?, extra flags...
//
// goos and hostHasDisplay describe the host the browser runs on.
func BuildLaunchArgs(spec LaunchSpec, goos string, hostHasDisplay bool) []string {
	out := make([]string, 0, len(spec.Args)+2+len(spec.ExtraArgs))
	out = append(out, spec.Args...)
	if spec.Headless {
		out = append(out, flagHeadless)
	}
	if needsSoftwareRendering(goos, spec.Headless, hostHasDisplay) {
		out = append(out, flagSoftwareRender)
	}
	return append(out, spec.ExtraArgs...)
}
