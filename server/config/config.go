package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Config is the relay + meta server configuration. Every field is optional
// in the file; zero values take the defaults below.
type Config struct {
	Address string `json:"address"`
	DataDir string `json:"data_dir"`
	DBPath  string `json:"db_path"`
	// CatalogPath overrides the embedded card catalog.
	CatalogPath string `json:"catalog_path"`

	// QueueTimeoutSeconds drops players that waited this long without a pair.
	QueueTimeoutSeconds float64 `json:"queue_timeout"`
	// MsgRate and MsgBurst bound inbound frames per socket.
	MsgRate  float64 `json:"msg_rate"`
	MsgBurst int     `json:"msg_burst"`

	SessionTTLHours  float64 `json:"session_ttl_hours"`
	MatchTokenTTLSec float64 `json:"match_token_ttl"`

	Debug bool `json:"debug"`
}

func Default() Config {
	return Config{
		Address:             ":8080",
		DataDir:             "./data",
		DBPath:              "./data/tidewar.db",
		QueueTimeoutSeconds: 120,
		MsgRate:             400,
		MsgBurst:            800,
		SessionTTLHours:     24,
		MatchTokenTTLSec:    60,
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			var file Config
			if err := json.Unmarshal(b, &file); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			cfg.merge(file)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return &cfg, nil
}

// FromEnv loads TIDEWAR_CONFIG (default ./config.json) and applies the
// TIDEWAR_ADDR, TIDEWAR_DATA and TIDEWAR_DB overrides.
func FromEnv() (*Config, error) {
	path := os.Getenv("TIDEWAR_CONFIG")
	if path == "" {
		path = "./config.json"
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("TIDEWAR_ADDR"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("TIDEWAR_DATA"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TIDEWAR_DB"); v != "" {
		cfg.DBPath = v
	}
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.Address != "" {
		c.Address = o.Address
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.DBPath != "" {
		c.DBPath = o.DBPath
	}
	if o.CatalogPath != "" {
		c.CatalogPath = o.CatalogPath
	}
	if o.QueueTimeoutSeconds != 0 {
		c.QueueTimeoutSeconds = o.QueueTimeoutSeconds
	}
	if o.MsgRate != 0 {
		c.MsgRate = o.MsgRate
	}
	if o.MsgBurst != 0 {
		c.MsgBurst = o.MsgBurst
	}
	if o.SessionTTLHours != 0 {
		c.SessionTTLHours = o.SessionTTLHours
	}
	if o.MatchTokenTTLSec != 0 {
		c.MatchTokenTTLSec = o.MatchTokenTTLSec
	}
	if o.Debug {
		c.Debug = true
	}
}

func (c Config) Validate() error {
	switch {
	case c.Address == "":
		return errors.New("address is empty")
	case c.MsgRate < 0 || c.MsgBurst < 0:
		return errors.New("msg_rate and msg_burst must not be negative")
	case c.QueueTimeoutSeconds < 0:
		return errors.New("queue_timeout must not be negative")
	case c.SessionTTLHours <= 0 || c.MatchTokenTTLSec <= 0:
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

func (c Config) QueueTimeout() time.Duration {
	return time.Duration(c.QueueTimeoutSeconds * float64(time.Second))
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours * float64(time.Hour))
}

func (c Config) MatchTokenTTL() time.Duration {
	return time.Duration(c.MatchTokenTTLSec * float64(time.Second))
}
