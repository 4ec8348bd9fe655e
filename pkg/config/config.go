// Package config loads the vlanpath configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netvalid/vlanpath/pkg/util"
)

// Duration wraps time.Duration with yaml support for values like "20s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// VCenterConfig locates the vCenter endpoint. The password is never stored
// in the file; it comes from VLANPATH_VCENTER_PASSWORD or a prompt.
type VCenterConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Insecure bool   `yaml:"insecure"`
}

// ESXiConfig holds SSH access to the hosts for the on-host diagnostic ping.
// The password comes from VLANPATH_ESXI_PASSWORD or a prompt.
type ESXiConfig struct {
	User string `yaml:"user"`
}

// RedisConfig enables publishing results to a redis stream when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the vlanpath configuration file.
type Config struct {
	VCenter VCenterConfig `yaml:"vcenter"`
	ESXi    ESXiConfig    `yaml:"esxi"`
	Redis   RedisConfig   `yaml:"redis"`

	// ExcludeSwitches lists glob patterns of switch names to skip,
	// e.g. "*storage*".
	ExcludeSwitches []string `yaml:"exclude_switches"`

	// MaxConcurrency bounds parallel host verification.
	MaxConcurrency int `yaml:"max_concurrency"`

	// ProbeCount is the ICMP burst size per uplink.
	ProbeCount int `yaml:"probe_count"`

	// ProbeTimeout bounds a single probe call.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// CleanupNetwork removes ephemeral test portgroups after each switch
	// pass instead of leaving them for reuse.
	CleanupNetwork bool `yaml:"cleanup_network"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ESXi:           ESXiConfig{User: "root"},
		MaxConcurrency: 4,
		ProbeCount:     3,
		ProbeTimeout:   Duration(20 * time.Second),
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vlanpath.yaml"
	}
	return filepath.Join(home, ".vlanpath", "config.yaml")
}

// Load reads the config file at path, applying defaults for unset fields.
// A missing file returns defaults; the config file is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("%w: max_concurrency must be >= 1", util.ErrInvalidConfig)
	}
	if c.ProbeCount < 1 {
		return fmt.Errorf("%w: probe_count must be >= 1", util.ErrInvalidConfig)
	}
	if c.ProbeTimeout.Std() <= 0 {
		return fmt.Errorf("%w: probe_timeout must be positive", util.ErrInvalidConfig)
	}
	return nil
}
