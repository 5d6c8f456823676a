package process

import (
	"time"
)

// Stoppable is a managed process that can be stopped and then released.
type Stoppable interface {
	Stop(timeout time.Duration) error
	Close()
}

// StopCloseAndNil stops *p, closes it and sets *p to nil. A nil p or *p is
// a no-op.
//
// P is constrained to a pointer type implementing Stoppable, so the nil
// check needs no reflection. E is inferred from P.
//
// Close and the nil-out run even when Stop fails: the process is then in an
// unknown state and the caller must not reuse the handle. The Stop error is
// returned.
//
//	sup, _ := browser.New(cfg)
//	// ... sup.Start ...
//	err := process.StopCloseAndNil(&sup, 5*time.Second)
func StopCloseAndNil[P interface {
	*E
	Stoppable
}, E any](p *P, timeout time.Duration) error {
	if p == nil || *p == nil {
		return nil
	}
	defer func() {
		(*p).Close()
		*p = nil
	}()
	return (*p).Stop(timeout)
}
