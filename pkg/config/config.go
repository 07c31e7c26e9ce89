package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/greg-hellings/greencode/pkg/analysis"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultProvider = "gemini"
	DefaultTimeout  = "2m"
	DefaultBackend  = "yaml"
	DefaultTheme    = "auto"
)

var (
	supportedBackends  = []string{"yaml", "sqlite"}
	supportedThemes    = []string{"auto", "dark", "light", "notty"}
	supportedSources   = []string{"github", "gitlab"}
)

// Config represents the top-level configuration file structure
type Config struct {
	Provider string                  `yaml:"provider" toml:"provider"`
	Model    string                  `yaml:"model" toml:"model"`
	Endpoint string                  `yaml:"endpoint" toml:"endpoint"`
	Timeout  string                  `yaml:"timeout" toml:"timeout"`
	State    StateConfig             `yaml:"state" toml:"state"`
	Display  DisplayConfig           `yaml:"display" toml:"display"`
	Sources  map[string]SourceConfig `yaml:"sources" toml:"sources"`
}

// StateConfig selects where sessions are persisted.
type StateConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"`
}

// DisplayConfig controls terminal output.
type DisplayConfig struct {
	Colors *bool  `yaml:"colors" toml:"colors"`
	Theme  string `yaml:"theme" toml:"theme"`
}

// SourceConfig contains access settings for a code host
type SourceConfig struct {
	Token   string `yaml:"token" toml:"token"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// Ref is used when a source has no @ref. Empty means the repository's
	// default branch.
	Ref string `yaml:"ref" toml:"ref"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.ApplyDefaults()
	return cfg
}

// DefaultPath returns the location consulted when no --config is given.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		if home, herr := os.UserHomeDir(); herr == nil && home != "" {
			base = filepath.Join(home, ".config")
		} else {
			base = "."
		}
	}
	return filepath.Join(base, "greencode", "config.yaml")
}

// Load reads filename, or the default location when filename is empty. A
// missing file at the default location yields Default().
func Load(filename string) (*Config, error) {
	if filename != "" {
		return LoadFromFile(filename)
	}
	path := DefaultPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return LoadFromFile(path)
}

// LoadFromFile reads a YAML or TOML configuration file, chosen by extension,
// and returns the parsed Config
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills unset fields and validates the result
func (c *Config) ApplyDefaults() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Timeout == "" {
		c.Timeout = DefaultTimeout
	}
	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	if c.State.Backend == "" {
		c.State.Backend = DefaultBackend
	}
	if c.Display.Colors == nil {
		enabled := true
		c.Display.Colors = &enabled
	}
	c.Display.Theme = strings.ToLower(strings.TrimSpace(c.Display.Theme))
	if c.Display.Theme == "" {
		c.Display.Theme = DefaultTheme
	}
	if c.Sources == nil {
		c.Sources = map[string]SourceConfig{}
	}
	for name, src := range c.Sources {
		if !contains(supportedSources, name) {
			return fmt.Errorf("sources: unsupported source %q (supported: %s)", name, strings.Join(supportedSources, ", "))
		}
		src.Ref = strings.TrimSpace(src.Ref)
		c.Sources[name] = src
	}

	if !analysis.IsSupported(c.Provider) {
		return fmt.Errorf("unsupported provider %q (supported: %s)", c.Provider, strings.Join(analysis.SupportedProviders(), ", "))
	}
	if !contains(supportedBackends, c.State.Backend) {
		return fmt.Errorf("state: unsupported backend %q (supported: %s)", c.State.Backend, strings.Join(supportedBackends, ", "))
	}
	if !contains(supportedThemes, c.Display.Theme) {
		return fmt.Errorf("display: unsupported theme %q (supported: %s)", c.Display.Theme, strings.Join(supportedThemes, ", "))
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout. Zero disables the analysis deadline.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", c.Timeout)
	}
	return d, nil
}

// ColorsEnabled reports whether ANSI colors should be used.
func (c *Config) ColorsEnabled() bool {
	return c.Display.Colors == nil || *c.Display.Colors
}

// Source returns the settings for a code host. Unconfigured hosts get the
// zero value.
func (c *Config) Source(name string) SourceConfig {
	return c.Sources[name]
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
