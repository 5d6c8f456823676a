package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/browserenv/internal/sentinel"
)

const (
	// ErrIntervalNotPositive is returned for a poll interval <= 0.
	ErrIntervalNotPositive = sentinel.Error("interval must be positive")

	// ErrTimeoutNotPositive is returned for a timeout <= 0.
	ErrTimeoutNotPositive = sentinel.Error("timeout must be positive")

	// ErrProcessExited is returned when the watched process exits while
	// WaitReady is still polling.
	ErrProcessExited = sentinel.Error("process exited before becoming ready")

	// ErrWaitTimeout is returned when the timeout elapses first. A canceled
	// parent context is reported as the context error instead.
	ErrWaitTimeout = sentinel.Error("timed out waiting for readiness")
)

// ReadinessCheck probes a process once. attempt starts at 1. ctx is
// canceled when polling stops, so an in-flight HTTP request returns early.
//
// Returning (false, nil) means "poll again"; the check keeps track of its
// own transient errors. A non-nil error aborts WaitReady with that error.
type ReadinessCheck func(ctx context.Context, attempt int) (ready bool, err error)

// WaitReadyConfig controls WaitReady.
type WaitReadyConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Name     string // process name in errors and logs, e.g. "chrome"
	Port     int    // port in errors and logs
	Logger   *slog.Logger

	// ProcessExited, when set, stops polling as soon as it is closed.
	ProcessExited <-chan struct{}
}

// WaitReady calls check every cfg.Interval, the first time immediately,
// until it reports ready. Errors are wrapped with the process name and port
// and match ErrProcessExited, ErrWaitTimeout, the context error or the
// check's own error.
func WaitReady(ctx context.Context, cfg WaitReadyConfig, check ReadinessCheck) error {
	if cfg.Name == "" {
		return errors.New("wait ready: name must not be empty")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrIntervalNotPositive)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrTimeoutNotPositive)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// The poller calls the condition sequentially, so attempt needs no lock.
	attempt := 0
	condition := func(pollCtx context.Context) (bool, error) {
		if exited(cfg.ProcessExited) {
			return false, fmt.Errorf("process %s: %w", cfg.Name, ErrProcessExited)
		}
		attempt++
		ready, err := check(pollCtx, attempt)
		if err != nil {
			return false, err
		}
		if ready {
			log.Debug("process ready", "name", cfg.Name, "port", cfg.Port, "attempt", attempt)
		}
		return ready, nil
	}

	err := wait.PollUntilContextTimeout(ctx, cfg.Interval, cfg.Timeout, true, condition)
	if err == nil {
		return nil
	}
	if wait.Interrupted(err) && ctx.Err() == nil {
		err = ErrWaitTimeout
	}
	return fmt.Errorf("wait for %s readiness on port %d: %w", cfg.Name, cfg.Port, err)
}

// exited reports whether ch is closed. A nil channel never is.
func exited(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
