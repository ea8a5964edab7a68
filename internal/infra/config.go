package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting.
// After LoadConfig the credential may be overridden via environment variable.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		SwapSpace struct {
			BaseURL    string `yaml:"base_url"`
			APIKey     string `yaml:"api_key"`
			TimeoutSec int    `yaml:"timeout_sec"`
		} `yaml:"swapspace"`
	} `yaml:"api"`

	Mock struct {
		ProgressIntervalMS int `yaml:"progress_interval_ms"`
	} `yaml:"mock"`

	Estimate struct {
		DebounceMS int `yaml:"debounce_ms"`
	} `yaml:"estimate"`

	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a usable configuration when no config file exists.
// The client runs in mock mode until a credential is supplied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "swppr"
	cfg.App.Version = "1.2.0"
	cfg.applyDefaults()
	overrideWithEnv(cfg)
	return cfg
}

func (c *Config) applyDefaults() {
	if c.API.SwapSpace.BaseURL == "" {
		c.API.SwapSpace.BaseURL = "https://api.swapspace.co/api/v2"
	}
	if c.API.SwapSpace.TimeoutSec <= 0 {
		c.API.SwapSpace.TimeoutSec = 15
	}
	if c.Mock.ProgressIntervalMS <= 0 {
		c.Mock.ProgressIntervalMS = 4000
	}
	if c.Estimate.DebounceMS <= 0 {
		c.Estimate.DebounceMS = 600
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "localhost:8090"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !hasPrefix(c.API.SwapSpace.BaseURL, "http://") && !hasPrefix(c.API.SwapSpace.BaseURL, "https://") {
		return fmt.Errorf("invalid SwapSpace base URL: %s", c.API.SwapSpace.BaseURL)
	}
	if c.API.SwapSpace.TimeoutSec <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}
	if c.Mock.ProgressIntervalMS <= 0 {
		return fmt.Errorf("mock progress interval must be positive")
	}
	if c.Estimate.DebounceMS <= 0 {
		return fmt.Errorf("estimate debounce must be positive")
	}
	return nil
}

// LiveMode reports whether a credential is present. Without one the
// aggregator skips the network entirely and serves fallback data.
func (c *Config) LiveMode() bool {
	return c.API.SwapSpace.APIKey != ""
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over file values.
// Environment wins so the key never has to live in the config file.
func overrideWithEnv(cfg *Config) {
	if cfg.API.SwapSpace.APIKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: API key found in config file.")
		fmt.Println("   Recommendation: use the SWPPR_API_KEY environment variable instead.")
	}

	if key := os.Getenv("SWPPR_API_KEY"); key != "" {
		cfg.API.SwapSpace.APIKey = key
	}
	if addr := os.Getenv("SWPPR_LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
}
