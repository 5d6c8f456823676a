package browserenv

import (
	"log/slog"

	"github.com/giantswarm/browserenv/internal/core"
)

// SetLogger replaces the package-level logger used by browserenv.
// The provided logger should already carry any desired attributes;
// browserenv only adds per-instance "id" attributes.
//
// If l is nil, the logger resets to slog.Default() with a "component"
// attribute. Call SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// SetLogger is safe to call concurrently with other browserenv operations,
// but a concurrent call may briefly observe the previous logger. Call it
// before starting goroutines that use the library.
//
// Example:
//
//	browserenv.SetLogger(myLogger.With("component", "browserenv"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
