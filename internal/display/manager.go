package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/giantswarm/browserenv/internal/fileutil"
	"github.com/giantswarm/browserenv/internal/process"
	"github.com/giantswarm/browserenv/internal/sentinel"
)

// ErrDisplay is returned when the off-screen display cannot be started.
const ErrDisplay = sentinel.Error("display unavailable")

// Defaults applied by New for zero Config fields.
const (
	DefaultBinary      = "Xvfb"
	DefaultNumber      = 99
	DefaultResolution  = "1920x1080x24"
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultLockTimeout = 2 * time.Second
)

// Stop sequence timings for the display server.
const (
	stopTimeout = 3 * time.Second
	killGrace   = 2 * time.Second
)

// resolutionPattern matches WIDTHxHEIGHTxDEPTH, e.g. 1920x1080x24.
var resolutionPattern = regexp.MustCompile(`^[1-9][0-9]*x[1-9][0-9]*x[1-9][0-9]*$`)

// ValidResolution reports whether s has the WIDTHxHEIGHTxDEPTH form Xvfb
// expects for a screen.
func ValidResolution(s string) bool {
	return resolutionPattern.MatchString(s)
}

// Config holds the configuration for the display server.
type Config struct {
	Binary      string        // Xvfb binary name or path (default: "Xvfb")
	Number      int           // X display number (default: 99)
	Resolution  string        // Screen geometry WxHxD (default: "1920x1080x24")
	LockDir     string        // Directory for the lock file (default: os.TempDir())
	SettleDelay time.Duration // Wait before checking for an early exit (default: 500ms)
	LockTimeout time.Duration // How long to wait for the lock (default: 2s)

	// OnStarted, if set, is called with the address each time the server
	// comes up. It runs with the manager locked and must not call back.
	OnStarted func(address string)

	// Logger (optional, defaults to slog.Default())
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.Number == 0 {
		c.Number = DefaultNumber
	}
	if c.Resolution == "" {
		c.Resolution = DefaultResolution
	}
	if c.LockDir == "" {
		c.LockDir = os.TempDir()
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c Config) validate() error {
	if c.Number < 0 {
		return errors.New("display number must not be negative")
	}
	if !ValidResolution(c.Resolution) {
		return fmt.Errorf("resolution %q must have the form WIDTHxHEIGHTxDEPTH", c.Resolution)
	}
	return nil
}

// Manager supervises one Xvfb server. It is safe for concurrent use.
type Manager struct {
	config Config

	mu   sync.Mutex
	base process.BaseProcess
	lock *flock.Flock
}

// New creates a Manager. It performs no I/O.
func New(cfg Config) (*Manager, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid display config: %w", err)
	}
	base := process.NewBaseProcess("Xvfb", cfg.Logger, stopTimeout)
	base.SetKillGrace(killGrace)
	return &Manager{config: cfg, base: base}, nil
}

// Address returns the DISPLAY value of the server while it runs, or "" when
// it is stopped.
func (m *Manager) Address() string {
	if !m.IsRunning() {
		return ""
	}
	return m.address()
}

func (m *Manager) address() string {
	return ":" + strconv.Itoa(m.config.Number)
}

// LockPath returns the lock file guarding this display number.
func (m *Manager) LockPath() string {
	return filepath.Join(m.config.LockDir, fmt.Sprintf("browserenv-display-%d.lock", m.config.Number))
}

// IsRunning reports whether the display server is up.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base.IsRunning()
}

// EnsureRunning starts the display server unless it is already running and
// returns its address. started reports whether this call launched the
// server. Concurrent callers share one server.
//
// Returns an error wrapping ErrDisplay when the binary is missing, the lock
// is held elsewhere, or the server exits during the settle delay; the exit
// code is then available as *process.ExitError.
func (m *Manager) EnsureRunning(ctx context.Context) (addr string, started bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.base.IsRunning() {
		return m.address(), false, nil
	}
	if m.base.IsStarted() {
		m.config.Logger.Warn("display server exited unexpectedly; restarting",
			"display", m.address(), "exit_code", m.base.ExitCode())
		_ = m.stopLocked()
	}

	binary, err := exec.LookPath(m.config.Binary)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s not found: %w", ErrDisplay, m.config.Binary, err)
	}

	if err := fileutil.EnsureDir(m.config.LockDir); err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrDisplay, err)
	}
	lockCtx, cancel := context.WithTimeout(ctx, m.config.LockTimeout)
	lock, err := acquireLock(lockCtx, m.LockPath())
	cancel()
	if err != nil {
		return "", false, fmt.Errorf("%w: display %s is in use by another process: %w", ErrDisplay, m.address(), err)
	}

	cmd := exec.Command(binary, m.address(),
		"-screen", "0", m.config.Resolution,
		"-ac",
		"-nolisten", "tcp",
	)
	if err := m.base.SetupAndStart(cmd); err != nil {
		releaseLock(m.config.Logger, lock)
		return "", false, fmt.Errorf("%w: %w", ErrDisplay, err)
	}
	m.lock = lock

	settle := time.NewTimer(m.config.SettleDelay)
	defer settle.Stop()
	select {
	case <-settle.C:
	case <-m.base.Exited():
	case <-ctx.Done():
		_ = m.stopLocked()
		return "", false, fmt.Errorf("start display %s: %w", m.address(), ctx.Err())
	}

	if m.base.HasExited() {
		code := m.base.ExitCode()
		_ = m.stopLocked()
		return "", false, fmt.Errorf("%w: exited immediately: %w", ErrDisplay,
			&process.ExitError{Name: "Xvfb", Code: code})
	}

	m.config.Logger.Info("display started", "display", m.address(), "pid", m.base.PID(),
		"resolution", m.config.Resolution)
	if m.config.OnStarted != nil {
		m.config.OnStarted(m.address())
	}
	return m.address(), true, nil
}

// Stop terminates the display server and releases its lock. It is a no-op
// when the server is not running.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *Manager) stopLocked() error {
	wasStarted := m.base.IsStarted()
	err := m.base.Stop(stopTimeout)
	releaseLock(m.config.Logger, m.lock)
	m.lock = nil
	if wasStarted {
		m.config.Logger.Info("display stopped", "display", m.address())
	}
	if err != nil {
		return fmt.Errorf("stop display %s: %w", m.address(), err)
	}
	return nil
}

// Close stops the display server if Stop was not called first.
func (m *Manager) Close() {
	if err := m.Stop(); err != nil {
		m.config.Logger.Warn("auto-stop display during Close failed", "error", err)
	}
}
