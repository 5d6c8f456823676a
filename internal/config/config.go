// Package config loads the browserenv CLI configuration from a YAML file
// and BROWSERENV_* environment variables.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/giantswarm/browserenv/internal/display"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".config/browserenv"
	DefaultConfigFile = "config.yaml"
	DefaultDataDir    = ".local/share/browserenv"
	EnvPrefix         = "BROWSERENV"
)

// validate is the shared validator instance.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("resolution", func(fl validator.FieldLevel) bool {
		return display.ValidResolution(fl.Field().String())
	})
	return v
}

// Config is the CLI configuration.
type Config struct {
	// DataDir holds installed browsers and the instance ledger.
	DataDir string `mapstructure:"data_dir" validate:"required"`

	// BrowserBin is the browser executable. Empty resolves from DataDir.
	BrowserBin string `mapstructure:"browser_bin"`

	// Ledger is the SQLite file recording live instances. Empty uses
	// <DataDir>/ledger.db.
	Ledger string `mapstructure:"ledger"`

	Ports   PortsConfig   `mapstructure:"ports"`
	Display DisplayConfig `mapstructure:"display"`

	StartTimeout time.Duration `mapstructure:"start_timeout" validate:"gt=0"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout" validate:"gt=0"`

	// MetricsAddr, when set, serves Prometheus metrics on host:port.
	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// PortsConfig bounds the remote-debugging ports, inclusive.
type PortsConfig struct {
	Start int `mapstructure:"start" validate:"min=1,max=65535"`
	End   int `mapstructure:"end" validate:"min=1,max=65535,gtefield=Start"`
}

// DisplayConfig configures the shared Xvfb server.
type DisplayConfig struct {
	Disabled   bool   `mapstructure:"disabled"`
	Binary     string `mapstructure:"binary" validate:"required"`
	Number     int    `mapstructure:"number" validate:"min=0"`
	Resolution string `mapstructure:"resolution" validate:"resolution"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Loader reads the configuration file and environment.
type Loader struct {
	v       *viper.Viper
	path    string
	homeDir string
}

// NewLoader creates a loader for ~/.config/browserenv/config.yaml.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return NewLoaderAt(filepath.Join(home, DefaultConfigDir, DefaultConfigFile), home), nil
}

// NewLoaderAt creates a loader for the given file. homeDir expands "~".
func NewLoaderAt(path, homeDir string) *Loader {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// BROWSERENV_DATA_DIR, BROWSERENV_PORTS_START and so on.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l := &Loader{v: v, path: path, homeDir: homeDir}
	l.setDefaults()
	return l
}

// setDefaults registers every key, which also lets AutomaticEnv find them
// during Unmarshal.
func (l *Loader) setDefaults() {
	l.v.SetDefault("data_dir", "~/"+DefaultDataDir)
	l.v.SetDefault("browser_bin", "")
	l.v.SetDefault("ledger", "")
	l.v.SetDefault("ports.start", 9200)
	l.v.SetDefault("ports.end", 9999)
	l.v.SetDefault("display.disabled", false)
	l.v.SetDefault("display.binary", "Xvfb")
	l.v.SetDefault("display.number", 99)
	l.v.SetDefault("display.resolution", "1920x1080x24")
	l.v.SetDefault("start_timeout", "15s")
	l.v.SetDefault("stop_timeout", "5s")
	l.v.SetDefault("metrics_addr", "")
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the file if it exists, applies environment overrides, fills
// derived paths and validates the result. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); err == nil {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.DataDir = l.expandPath(cfg.DataDir)
	cfg.BrowserBin = cmp.Or(l.expandPath(cfg.BrowserBin), ResolveBrowserBin(cfg.DataDir))
	cfg.Ledger = cmp.Or(l.expandPath(cfg.Ledger), filepath.Join(cfg.DataDir, "ledger.db"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandPath replaces a leading ~ with the home directory.
func (l *Loader) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	if path == "~" {
		return l.homeDir
	}
	return path
}

// ResolveBrowserBin returns the newest installed browser under
// <dataDir>/browsers/<version>/chrome, falling back to the single-version
// layout <dataDir>/browser/chrome.
func ResolveBrowserBin(dataDir string) string {
	browsers := filepath.Join(dataDir, "browsers")
	entries, err := os.ReadDir(browsers)
	if err == nil {
		var versions []string
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(browsers, e.Name(), "chrome")); err == nil {
				versions = append(versions, e.Name())
			}
		}
		if len(versions) > 0 {
			slices.SortFunc(versions, compareVersions)
			return filepath.Join(browsers, versions[len(versions)-1], "chrome")
		}
	}
	return filepath.Join(dataDir, "browser", "chrome")
}

// compareVersions orders dotted versions numerically. Non-numeric parts
// count as zero.
func compareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := range max(len(pa), len(pb)) {
		if c := cmp.Compare(versionPart(pa, i), versionPart(pb, i)); c != 0 {
			return c
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
