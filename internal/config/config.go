// Package config holds the server and sync-engine settings, loaded from a
// YAML file with environment overrides on top.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Version string `yaml:"version" json:"version"`
	Server  Server `yaml:"server" json:"server"`
	Sync    Sync   `yaml:"sync" json:"sync"`
}

type Server struct {
	Addr    string `yaml:"addr" json:"addr"`
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Storage: "memory" | "file" | "sqlite"
	Storage    string `yaml:"storage" json:"storage"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

type Sync struct {
	// Trailing-debounce windows in milliseconds per committed field group.
	NameDebounceMS        int `yaml:"name_debounce_ms" json:"name_debounce_ms"`
	DescriptionDebounceMS int `yaml:"description_debounce_ms" json:"description_debounce_ms"`
	HoursDebounceMS       int `yaml:"hours_debounce_ms" json:"hours_debounce_ms"`

	// Sort: "startDate" | "endDate" | "frequency"
	Sort string `yaml:"sort" json:"sort"`
}

func Default() *Config {
	c := &Config{Version: "1"}
	c.ApplyDefaults()
	return c
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = "data"
	}
	if c.Server.Storage == "" {
		c.Server.Storage = "file"
	}
	if c.Server.SQLitePath == "" {
		c.Server.SQLitePath = c.Server.DataDir + "/cadence.db"
	}
	if c.Sync.NameDebounceMS <= 0 {
		c.Sync.NameDebounceMS = 300
	}
	if c.Sync.DescriptionDebounceMS <= 0 {
		c.Sync.DescriptionDebounceMS = 300
	}
	if c.Sync.HoursDebounceMS <= 0 {
		c.Sync.HoursDebounceMS = 1000
	}
	if c.Sync.Sort == "" {
		c.Sync.Sort = "startDate"
	}
}

func (c *Config) Validate() error {
	switch c.Server.Storage {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Server.Storage)
	}
	switch c.Sync.Sort {
	case "startDate", "endDate", "frequency":
	default:
		return fmt.Errorf("unknown sort mode %q", c.Sync.Sort)
	}
	return nil
}

func (s Sync) NameDebounce() time.Duration {
	return time.Duration(s.NameDebounceMS) * time.Millisecond
}

func (s Sync) DescriptionDebounce() time.Duration {
	return time.Duration(s.DescriptionDebounceMS) * time.Millisecond
}

func (s Sync) HoursDebounce() time.Duration {
	return time.Duration(s.HoursDebounceMS) * time.Millisecond
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadOrDefault reads the file when it exists and otherwise starts from the
// defaults; environment overrides apply either way.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	c := Default()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
