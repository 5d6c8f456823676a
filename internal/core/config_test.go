package core

import (
	"strings"
	"testing"
	"time"
)

func validPoolConfig() PoolConfig {
	return PoolConfig{
		PortStart:         9200,
		PortEnd:           9999,
		StartTimeout:      15 * time.Second,
		StopTimeout:       5 * time.Second,
		DisplayBinary:     "Xvfb",
		DisplayNumber:     99,
		DisplayResolution: "1920x1080x24",
	}
}

func TestPoolConfig_Validate(t *testing.T) {
	t.Parallel()

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validPoolConfig().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	tests := map[string]struct {
		modify       func(c *PoolConfig)
		wantContains string
	}{
		"zero port start": {
			modify:       func(c *PoolConfig) { c.PortStart = 0 },
			wantContains: "port start",
		},
		"port end above range": {
			modify:       func(c *PoolConfig) { c.PortEnd = 70000 },
			wantContains: "port end",
		},
		"inverted port range": {
			modify:       func(c *PoolConfig) { c.PortStart, c.PortEnd = 9301, 9300 },
			wantContains: "must not be below port start",
		},
		"zero start timeout": {
			modify:       func(c *PoolConfig) { c.StartTimeout = 0 },
			wantContains: "start timeout",
		},
		"negative stop timeout": {
			modify:       func(c *PoolConfig) { c.StopTimeout = -time.Second },
			wantContains: "stop timeout",
		},
		"negative poll interval": {
			modify:       func(c *PoolConfig) { c.PollInterval = -1 },
			wantContains: "poll interval",
		},
		"empty display binary": {
			modify:       func(c *PoolConfig) { c.DisplayBinary = "" },
			wantContains: "display binary",
		},
		"bad display resolution": {
			modify:       func(c *PoolConfig) { c.DisplayResolution = "1920x1080" },
			wantContains: "display resolution",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := validPoolConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantContains) {
				t.Errorf("error %q does not contain %q", err, tc.wantContains)
			}
		})
	}

	t.Run("display fields ignored when disabled", func(t *testing.T) {
		t.Parallel()
		cfg := validPoolConfig()
		cfg.DisableDisplay = true
		cfg.DisplayBinary = ""
		cfg.DisplayResolution = ""
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("reports every violation", func(t *testing.T) {
		t.Parallel()
		err := PoolConfig{}.Validate()
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		for _, want := range []string{"port start", "port end", "start timeout", "stop timeout", "display binary"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("joined error missing %q: %v", want, err)
			}
		}
	})
}
