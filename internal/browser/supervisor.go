package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/giantswarm/browserenv/internal/devtools"
	"github.com/giantswarm/browserenv/internal/process"
	"github.com/giantswarm/browserenv/internal/sentinel"
)

const (
	// ErrBrowser is returned when the browser could not be spawned or
	// exited before its debugging endpoint answered. An exit code, when
	// known, is available through errors.As with *process.ExitError.
	ErrBrowser = sentinel.Error("browser failed")

	// ErrBrowserTimeout is returned when the debugging endpoint did not
	// answer within the start timeout. It does not match ErrBrowser.
	ErrBrowserTimeout = sentinel.Error("browser not ready")
)

// Compile-time interface satisfaction check.
var _ process.Stoppable = (*Supervisor)(nil)

// ConnectionInfo describes a running browser instance.
type ConnectionInfo struct {
	ProfileID  string `json:"profile_id" yaml:"profile_id"`
	PID        int    `json:"pid" yaml:"pid"`
	DebugPort  int    `json:"debug_port" yaml:"debug_port"`
	WSEndpoint string `json:"ws_endpoint" yaml:"ws_endpoint"`
	CDPURL     string `json:"cdp_url" yaml:"cdp_url"`
}

// Config holds the configuration for one supervised browser.
type Config struct {
	ProfileID string            // Logical instance id reported in ConnectionInfo
	Args      []string          // argv; element 0 is the browser binary
	Env       map[string]string // Overlaid on the host environment
	Port      int               // Remote-debugging port

	// PollInterval overrides devtools.PollInterval when positive.
	PollInterval time.Duration

	// Logger (optional, defaults to slog.Default())
	Logger *slog.Logger
}

func (c Config) validate() error {
	if c.ProfileID == "" {
		return errors.New("profile id must not be empty")
	}
	if len(c.Args) == 0 || c.Args[0] == "" {
		return errors.New("args must start with the browser binary")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

// Supervisor owns one browser process. Start and Stop must not be called
// concurrently with each other; IsRunning and Info may be called at any time.
type Supervisor struct {
	config Config

	mu   sync.Mutex
	base process.BaseProcess
	info *ConnectionInfo
}

// New creates a Supervisor. It performs no I/O.
func New(cfg Config) (*Supervisor, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid browser config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Args = slices.Clone(cfg.Args)
	cfg.Env = maps.Clone(cfg.Env)
	return &Supervisor{
		config: cfg,
		base:   process.NewBaseProcess("browser", cfg.Logger, process.DefaultStopTimeout),
	}, nil
}

// LaunchArgs returns args followed by the flags that expose the DevTools
// endpoint on port. args is not modified.
func LaunchArgs(args []string, port int) []string {
	out := make([]string, 0, len(args)+3)
	out = append(out, args...)
	return append(out,
		"--remote-debugging-port="+strconv.Itoa(port),
		"--remote-allow-origins=*",
		"--no-sandbox",
	)
}

// launchEnv returns the host environment with extra overlaid. exec.Cmd keeps
// the last value of a duplicated key, so appending is enough.
func launchEnv(extra map[string]string) []string {
	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// Port returns the remote-debugging port.
func (s *Supervisor) Port() int {
	return s.config.Port
}

// Start spawns the browser and waits up to timeout for its DevTools endpoint.
// Calling Start on a running supervisor returns its current descriptor.
//
// Returns an error wrapping ErrBrowser when the process cannot be spawned or
// exits during the handshake, and ErrBrowserTimeout when the endpoint does
// not answer in time. In both cases the process is gone when Start returns.
func (s *Supervisor) Start(ctx context.Context, timeout time.Duration) (ConnectionInfo, error) {
	s.mu.Lock()
	if s.info != nil && s.base.IsRunning() {
		info := *s.info
		s.mu.Unlock()
		return info, nil
	}
	if s.base.IsStarted() {
		// Exited on its own since the last start; reap before reuse.
		_ = s.base.Stop(process.DefaultStopTimeout)
		s.info = nil
	}

	args := LaunchArgs(s.config.Args, s.config.Port)
	// The process must outlive ctx, so it is not bound to it.
	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec // argv is the caller's launch configuration
	cmd.Env = launchEnv(s.config.Env)
	if err := s.base.SetupAndStart(cmd); err != nil {
		s.mu.Unlock()
		return ConnectionInfo{}, fmt.Errorf("%w: %w", ErrBrowser, err)
	}
	pid := s.base.PID()
	exited := s.base.Exited()
	s.mu.Unlock()

	log := s.config.Logger
	log.Debug("browser spawned", "pid", pid, "port", s.config.Port)

	ws, err := devtools.WaitForEndpoint(ctx, devtools.Config{
		Port:     s.config.Port,
		Timeout:  timeout,
		Interval: s.config.PollInterval,
		Exited:   exited,
		Logger:   log,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return ConnectionInfo{}, s.failStart(err)
	}

	info := ConnectionInfo{
		ProfileID:  s.config.ProfileID,
		PID:        pid,
		DebugPort:  s.config.Port,
		WSEndpoint: ws,
		CDPURL:     devtools.BaseURL(s.config.Port),
	}
	s.info = &info
	return info, nil
}

// failStart classifies a handshake failure and stops the process. Callers
// hold s.mu.
func (s *Supervisor) failStart(err error) error {
	var out error
	switch {
	case errors.Is(err, process.ErrProcessExited):
		// exited is closed, so the exit state is published.
		out = fmt.Errorf("%w: %w", ErrBrowser, &process.ExitError{Name: "browser", Code: s.base.ExitCode()})
	case errors.Is(err, devtools.ErrNotReady):
		out = fmt.Errorf("%w: %w", ErrBrowserTimeout, err)
	default:
		out = fmt.Errorf("start browser: %w", err)
	}

	if stopErr := s.base.Stop(process.DefaultStopTimeout); stopErr != nil {
		s.config.Logger.Warn("stop browser after failed start", "error", stopErr)
	}
	s.info = nil
	return out
}

// Stop terminates the browser: SIGTERM, then SIGKILL once timeout elapses.
// It is a no-op when the browser was never started or already stopped.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.base.Stop(timeout)
	s.info = nil
	if err != nil {
		return fmt.Errorf("stop browser %s: %w", s.config.ProfileID, err)
	}
	return nil
}

// Close stops the browser if Stop was not called first.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base.Close()
	s.info = nil
}

// IsRunning reports whether the browser process exists and has not exited.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base.IsRunning()
}

// Info returns the descriptor recorded by the last successful Start while
// the browser is still running.
func (s *Supervisor) Info() (ConnectionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil || !s.base.IsRunning() {
		return ConnectionInfo{}, false
	}
	return *s.info, true
}
