// Package process provides utilities for managing external process lifecycle.
//
// It defines BaseProcess for common spawn/liveness/stop behavior, the Stoppable
// interface, StopCloseAndNil for atomic cleanup, and WaitReady for
// polling-based readiness checks that abort as soon as the watched process
// exits. Child output is discarded; callers that need it must capture it
// themselves.
package process
