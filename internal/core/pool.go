package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/browserenv/internal/browser"
	"github.com/giantswarm/browserenv/internal/display"
	"github.com/giantswarm/browserenv/internal/netutil"
	"github.com/giantswarm/browserenv/internal/process"
	"github.com/giantswarm/browserenv/internal/sentinel"
)

// ErrNotFound is returned by Info when no live instance has the given id.
const ErrNotFound = sentinel.Error("instance not found")

// ErrInvalidSpec is returned by Start for a LaunchSpec it refuses to spawn.
const ErrInvalidSpec = sentinel.Error("invalid launch spec")

// Status values reported in StatusView.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// StatusView is the externally reported state of one instance id. The
// connection fields are set only when Status is StatusRunning.
type StatusView struct {
	Status     string `json:"status" yaml:"status"`
	ProfileID  string `json:"profile_id" yaml:"profile_id"`
	PID        int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	DebugPort  int    `json:"debug_port,omitempty" yaml:"debug_port,omitempty"`
	WSEndpoint string `json:"ws_endpoint,omitempty" yaml:"ws_endpoint,omitempty"`
	CDPURL     string `json:"cdp_url,omitempty" yaml:"cdp_url,omitempty"`
}

func runningView(info ConnectionInfo) StatusView {
	return StatusView{
		Status:     StatusRunning,
		ProfileID:  info.ProfileID,
		PID:        info.PID,
		DebugPort:  info.DebugPort,
		WSEndpoint: info.WSEndpoint,
		CDPURL:     info.CDPURL,
	}
}

// Pool owns browser supervisors keyed by profile id. At most one live
// browser exists per id. It is safe for concurrent use by multiple
// goroutines.
//
// Start and Stop for the same id are serialized by a per-id mutex; distinct
// ids proceed in parallel and only contend on the port allocator and the
// display manager. Entries whose browser exited on its own are pruned lazily
// by Status, ListRunning and the next Start for that id.
type Pool struct {
	cfg   PoolConfig
	ports *netutil.PortAllocator

	// display is nil when the display is disabled or on Windows.
	display *display.Manager

	hooks Hooks
	locks keyedMutex

	// lifecycle is held shared by Start and exclusively by StopAll.
	lifecycle sync.RWMutex

	// mu protects entries and headed. headed holds the ids whose browser
	// was given the shared display.
	mu      sync.Mutex
	entries map[string]*browser.Supervisor
	headed  map[string]struct{}

	// displayMu orders display acquisition against its release by failed
	// starts. displayUsers counts headed starts still in flight.
	// displayOrphaned is set while the running display was launched by a
	// start that has not yet succeeded.
	displayMu       sync.Mutex
	displayUsers    int
	displayOrphaned bool

	// goos and hostDisplay describe the host for launch-argument assembly.
	goos        string
	hostDisplay func() string
}

// NewPool creates a Pool. It performs no I/O: the display server starts on
// the first Start that is not headless. hooks may be nil.
//
// Panics if cfg.Validate() reports any errors.
func NewPool(cfg PoolConfig, hooks Hooks) *Pool {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("browserenv: invalid pool config: %v", err))
	}
	if hooks == nil {
		hooks = NopHooks{}
	}

	p := &Pool{
		cfg:         cfg,
		ports:       netutil.NewPortAllocator(cfg.PortStart, cfg.PortEnd, Logger()),
		hooks:       hooks,
		entries:     make(map[string]*browser.Supervisor),
		headed:      make(map[string]struct{}),
		goos:        runtime.GOOS,
		hostDisplay: func() string { return os.Getenv("DISPLAY") },
	}

	if !cfg.DisableDisplay && p.goos != "windows" {
		dm, err := display.New(display.Config{
			Binary:     cfg.DisplayBinary,
			Number:     cfg.DisplayNumber,
			Resolution: cfg.DisplayResolution,
			LockDir:    cfg.LockDir,
			Logger:     Logger(),
			OnStarted:  hooks.OnDisplayStarted,
		})
		if err != nil {
			// Validate already checked every display field.
			panic(fmt.Sprintf("browserenv: %v", err))
		}
		p.display = dm
	}
	return p
}

// Display returns the shared display manager, or nil when none is managed.
func (p *Pool) Display() *display.Manager {
	return p.display
}

// removeIf deletes id from the pool only if it still maps to sup. It reports
// whether this call removed the entry, so a concurrent prune and stop never
// both report the same instance as stopped.
func (p *Pool) removeIf(id string, sup *browser.Supervisor) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.entries[id] != sup {
		return false
	}
	delete(p.entries, id)
	delete(p.headed, id)
	return true
}

func (p *Pool) lookup(id string) *browser.Supervisor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[id]
}

// prune removes an entry whose browser exited and reaps the process.
func (p *Pool) prune(id string, sup *browser.Supervisor) {
	if !p.removeIf(id, sup) {
		return
	}
	if err := process.StopCloseAndNil(&sup, p.cfg.StopTimeout); err != nil {
		Logger().Warn("reap exited browser", "id", id, "error", err)
	}
	Logger().Info("pruned exited instance", "id", id)
	p.hooks.OnStopped(id)
}

// Start launches a browser for id and returns its connection descriptor.
// If a live browser for id already exists its descriptor is returned and no
// new process is spawned.
//
// Errors wrap netutil.ErrNoFreePort, display.ErrDisplay, browser.ErrBrowser
// or browser.ErrBrowserTimeout, and ErrInvalidSpec for input rejected before
// anything is spawned. No browser process outlives a failed Start, and a
// display launched only for a failed Start is stopped again.
func (p *Pool) Start(ctx context.Context, id string, spec LaunchSpec) (ConnectionInfo, error) {
	if id == "" {
		return ConnectionInfo{}, fmt.Errorf("%w: instance id must not be empty", ErrInvalidSpec)
	}
	if spec.Timeout < 0 {
		return ConnectionInfo{}, fmt.Errorf("%w: start timeout must not be negative, got %v",
			ErrInvalidSpec, spec.Timeout)
	}

	p.lifecycle.RLock()
	defer p.lifecycle.RUnlock()

	unlock := p.locks.Lock(id)
	defer unlock()

	if sup := p.lookup(id); sup != nil {
		if info, ok := sup.Info(); ok {
			return info, nil
		}
		p.prune(id, sup)
	}

	info, err := p.start(ctx, id, spec)
	if err != nil {
		p.hooks.OnStartFailed(id, err)
		return ConnectionInfo{}, fmt.Errorf("start instance %s: %w", id, err)
	}
	return info, nil
}

func (p *Pool) start(ctx context.Context, id string, spec LaunchSpec) (_ ConnectionInfo, retErr error) {
	log := Logger().With("id", id)

	args := BuildLaunchArgs(spec, p.goos, p.hostDisplay() != "")
	env := maps.Clone(spec.Env)
	if env == nil {
		env = make(map[string]string, 1)
	}

	headed := !spec.Headless && p.display != nil
	if headed {
		addr, err := p.acquireDisplay(ctx)
		if err != nil {
			return ConnectionInfo{}, err
		}
		defer func() { p.releaseDisplay(retErr == nil, log) }()
		env["DISPLAY"] = addr
	}

	port, err := p.ports.Allocate()
	if err != nil {
		return ConnectionInfo{}, err
	}

	sup, err := browser.New(browser.Config{
		ProfileID:    id,
		Args:         args,
		Env:          env,
		Port:         port,
		PollInterval: p.cfg.PollInterval,
		Logger:       log,
	})
	if err != nil {
		return ConnectionInfo{}, err
	}

	timeout := cmp.Or(spec.Timeout, p.cfg.StartTimeout)
	started := time.Now()
	info, err := sup.Start(ctx, timeout)
	if err != nil {
		return ConnectionInfo{}, err
	}
	elapsed := time.Since(started)

	p.mu.Lock()
	p.entries[id] = sup
	if headed {
		p.headed[id] = struct{}{}
	}
	p.mu.Unlock()

	log.Info("instance started", "pid", info.PID, "port", info.DebugPort,
		"headless", spec.Headless, "elapsed", elapsed)
	p.hooks.OnStarted(info, elapsed)
	return info, nil
}

// acquireDisplay starts the shared display if needed and counts the caller
// as a user until it calls releaseDisplay.
func (p *Pool) acquireDisplay(ctx context.Context) (string, error) {
	p.displayMu.Lock()
	defer p.displayMu.Unlock()

	addr, started, err := p.display.EnsureRunning(ctx)
	if err != nil {
		return "", err
	}
	if started {
		p.displayOrphaned = true
	}
	p.displayUsers++
	return addr, nil
}

// releaseDisplay ends a headed start. A successful start adopts the
// display. After a failed one the display is stopped if a failed start
// launched it and no other start or live headed instance uses it.
func (p *Pool) releaseDisplay(succeeded bool, log *slog.Logger) {
	p.displayMu.Lock()
	defer p.displayMu.Unlock()

	p.displayUsers--
	if succeeded {
		p.displayOrphaned = false
		return
	}
	if !p.displayOrphaned || p.displayUsers > 0 || p.headedRunning() {
		return
	}
	p.displayOrphaned = false
	addr := p.display.Address()
	if err := p.display.Stop(); err != nil {
		log.Warn("stop display after failed start", "display", addr, "error", err)
		return
	}
	log.Info("stopped display launched for failed start", "display", addr)
}

// headedRunning reports whether a live instance uses the shared display.
func (p *Pool) headedRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.headed {
		if sup := p.entries[id]; sup != nil && sup.IsRunning() {
			return true
		}
	}
	return false
}

// Stop stops the browser for id and removes it from the pool. It reports
// false, with a nil error, when id has no entry.
func (p *Pool) Stop(id string) (bool, error) {
	unlock := p.locks.Lock(id)
	defer unlock()

	sup := p.lookup(id)
	if sup == nil || !p.removeIf(id, sup) {
		return false, nil
	}

	err := process.StopCloseAndNil(&sup, p.cfg.StopTimeout)
	Logger().Info("instance stopped", "id", id)
	p.hooks.OnStopped(id)
	if err != nil {
		return true, fmt.Errorf("stop instance %s: %w", id, err)
	}
	return true, nil
}

// StopAll stops every browser in parallel, empties the pool and stops the
// shared display. Starts already in progress finish first and their
// instances are stopped too; Starts called meanwhile wait for StopAll.
func (p *Pool) StopAll() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*browser.Supervisor)
	p.headed = make(map[string]struct{})
	p.mu.Unlock()

	// Each browser is independent, so stopping in parallel bounds the total
	// time by a single StopTimeout.
	stopErrs := make([]error, 0, len(entries))
	var errMu sync.Mutex
	var g errgroup.Group
	for id, sup := range entries {
		g.Go(func() error {
			if err := process.StopCloseAndNil(&sup, p.cfg.StopTimeout); err != nil {
				errMu.Lock()
				stopErrs = append(stopErrs, fmt.Errorf("stop instance %s: %w", id, err))
				errMu.Unlock()
			}
			p.hooks.OnStopped(id)
			return nil
		})
	}
	_ = g.Wait() // workers report through stopErrs

	if p.display != nil {
		p.displayMu.Lock()
		p.displayOrphaned = false
		if err := p.display.Stop(); err != nil {
			stopErrs = append(stopErrs, err)
		}
		p.displayMu.Unlock()
	}
	if len(entries) > 0 {
		Logger().Info("stopped all instances", "count", len(entries))
	}
	return errors.Join(stopErrs...)
}

// Status reports the state of id. Unknown ids and browsers that exited on
// their own report StatusStopped; the latter are pruned.
func (p *Pool) Status(id string) StatusView {
	sup := p.lookup(id)
	if sup == nil {
		return StatusView{Status: StatusStopped, ProfileID: id}
	}
	if info, ok := sup.Info(); ok {
		return runningView(info)
	}
	p.prune(id, sup)
	return StatusView{Status: StatusStopped, ProfileID: id}
}

// Info returns the descriptor of the live browser for id, or an error
// wrapping ErrNotFound.
func (p *Pool) Info(id string) (ConnectionInfo, error) {
	view := p.Status(id)
	if view.Status != StatusRunning {
		return ConnectionInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ConnectionInfo{
		ProfileID:  view.ProfileID,
		PID:        view.PID,
		DebugPort:  view.DebugPort,
		WSEndpoint: view.WSEndpoint,
		CDPURL:     view.CDPURL,
	}, nil
}

// ListRunning returns the descriptors of all live browsers sorted by id.
// Entries whose browser exited are pruned.
func (p *Pool) ListRunning() []ConnectionInfo {
	p.mu.Lock()
	snapshot := maps.Clone(p.entries)
	p.mu.Unlock()

	out := make([]ConnectionInfo, 0, len(snapshot))
	for id, sup := range snapshot {
		if info, ok := sup.Info(); ok {
			out = append(out, info)
			continue
		}
		p.prune(id, sup)
	}
	slices.SortFunc(out, func(a, b ConnectionInfo) int {
		return cmp.Compare(a.ProfileID, b.ProfileID)
	})
	return out
}
