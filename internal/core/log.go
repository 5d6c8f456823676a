package core

import (
	"log/slog"
	"sync/atomic"
)

// Component is the "component" attribute on the default logger.
const Component = "browserenv"

var (
	// custom holds the logger installed with SetLogger; nil means none.
	custom atomic.Pointer[slog.Logger]
	// fallback caches the logger derived from slog.Default().
	fallback atomic.Pointer[slog.Logger]
)

// Logger returns the logger installed with SetLogger. Without one it returns
// slog.Default() tagged with the component attribute, derived once and
// cached until the next SetLogger call.
func Logger() *slog.Logger {
	if l := custom.Load(); l != nil {
		return l
	}
	if l := fallback.Load(); l != nil {
		return l
	}
	l := slog.Default().With("component", Component)
	if !fallback.CompareAndSwap(nil, l) {
		// Lost the race; prefer the stored value unless SetLogger cleared it.
		if stored := fallback.Load(); stored != nil {
			return stored
		}
	}
	return l
}

// SetLogger installs l for every pool in the process. SetLogger(nil)
// restores the default and re-reads slog.Default() on the next Logger call.
func SetLogger(l *slog.Logger) {
	custom.Store(l)
	fallback.Store(nil)
}
