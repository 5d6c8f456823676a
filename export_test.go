package browserenv

import "time"

// ConfigSnapshot holds a copy of poolConfig fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures actually mutate the config without accessing internals.
type ConfigSnapshot struct {
	PortStart         int
	PortEnd           int
	StartTimeout      time.Duration
	StopTimeout       time.Duration
	PollInterval      time.Duration
	DisplayBinary     string
	DisplayNumber     int
	DisplayResolution string
	LockDir           string
	DisableDisplay    bool
	HookCount         int
}

// ApplyOptionsForTesting creates a default poolConfig, applies the given
// options, and returns a ConfigSnapshot of the result.
func ApplyOptionsForTesting(opts ...Option) ConfigSnapshot {
	cfg := defaultPoolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ConfigSnapshot{
		PortStart:         cfg.PortStart,
		PortEnd:           cfg.PortEnd,
		StartTimeout:      cfg.StartTimeout,
		StopTimeout:       cfg.StopTimeout,
		PollInterval:      cfg.PollInterval,
		DisplayBinary:     cfg.DisplayBinary,
		DisplayNumber:     cfg.DisplayNumber,
		DisplayResolution: cfg.DisplayResolution,
		LockDir:           cfg.LockDir,
		DisableDisplay:    cfg.DisableDisplay,
		HookCount:         len(cfg.hooks),
	}
}
