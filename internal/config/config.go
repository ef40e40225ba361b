// Package config loads the daemon configuration and the persisted
// per-device SCO mode preferences.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. Zero values are filled from the
// `default` tags before the YAML file is applied.
type Config struct {
	// Adapter is the local Bluetooth adapter the BlueZ backend drives.
	Adapter string `yaml:"adapter" default:"hci0"`

	// Socket is the unix socket path of the status endpoint. Empty selects
	// a path under XDG_RUNTIME_DIR.
	Socket string `yaml:"socket"`

	// ProxyTimeout bounds how long a pending request waits for the headset
	// service to (re)appear.
	ProxyTimeout time.Duration `yaml:"proxy_timeout" default:"3s"`

	// QueueCapacity sizes the broker's inbound event queue.
	QueueCapacity int `yaml:"queue_capacity" default:"64"`

	// ScoModes maps accessory address to the preferred SCO mode for
	// activations that do not name one.
	ScoModes map[string]int `yaml:"sco_modes"`
}

// Default returns a configuration with only the defaults applied.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path on top of the defaults. A missing file is
// not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SocketPath resolves the status socket path, falling back to
// XDG_RUNTIME_DIR (then /tmp) when unset.
func (c *Config) SocketPath() string {
	if c.Socket != "" {
		return c.Socket
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = "/tmp"
	}
	return filepath.Join(dir, "scolink.sock")
}

// LookupPreferredMode implements the SCO preference store: the persisted
// mode for one accessory address, if any.
func (c *Config) LookupPreferredMode(address string) (int, bool) {
	if c.ScoModes == nil {
		return 0, false
	}
	mode, ok := c.ScoModes[address]
	return mode, ok
}
