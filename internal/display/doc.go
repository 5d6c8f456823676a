// Package display supervises the shared off-screen X display used by
// browsers that are not headless.
//
// A Manager runs at most one Xvfb server. The first EnsureRunning call starts
// it and every later call returns the same address until Stop. A lock file
// keyed by display number keeps two orchestrators on the same host from
// fighting over one display.
package display
