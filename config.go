package browserenv

import "github.com/giantswarm/browserenv/internal/core"

// poolConfig holds configuration for a Pool. This unexported type wraps
// core.PoolConfig via embedding, keeping internal/core types out of the
// public API signature while avoiding field-by-field duplication.
type poolConfig struct {
	core.PoolConfig

	hooks []core.Hooks
}

// toCoreConfig returns the embedded core.PoolConfig.
func (c poolConfig) toCoreConfig() core.PoolConfig {
	return c.PoolConfig
}

// coreHooks combines the registered hooks. It returns nil when none were set.
func (c poolConfig) coreHooks() core.Hooks {
	switch len(c.hooks) {
	case 0:
		return nil
	case 1:
		return c.hooks[0]
	default:
		return core.MultiHooks(c.hooks)
	}
}
