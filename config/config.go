package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	EnvToken = "VENUE_API_TOKEN"
	EnvAppID = "VENUE_APP_ID"
)

// Config represents the complete trader configuration
type Config struct {
	Venue  VenueConfig  `json:"venue" yaml:"venue"`
	Server ServerConfig `json:"server" yaml:"server"`
	Sim    SimConfig    `json:"sim" yaml:"sim"`
	Log    LogConfig    `json:"log" yaml:"log"`
}

// VenueConfig contains the venue connection parameters
type VenueConfig struct {
	Endpoint         string `json:"endpoint" yaml:"endpoint"`
	AppID            string `json:"app_id" yaml:"app_id"`
	Token            string `json:"token,omitempty" yaml:"token,omitempty"`
	Currency         string `json:"currency" yaml:"currency"`
	Timeout          string `json:"timeout" yaml:"timeout"`                     // e.g. "30s"
	HandshakeTimeout string `json:"handshake_timeout" yaml:"handshake_timeout"` // e.g. "10s"
}

// TimeoutDuration converts the timeout string to time.Duration
func (v VenueConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(v.Timeout)
}

func (v VenueConfig) HandshakeDuration() (time.Duration, error) {
	return parseDuration(v.HandshakeTimeout)
}

// ServerConfig contains the HTTP trade endpoint parameters
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// SimConfig contains the simulated venue parameters
type SimConfig struct {
	DBPath      string `json:"db_path,omitempty" yaml:"db_path,omitempty"` // empty keeps the book in memory
	PayoutRatio string `json:"payout_ratio" yaml:"payout_ratio"`
}

// LogConfig contains logging parameters
type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug|info|warn|error
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a file (JSON or YAML), then applies
// environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Load returns the file configuration when path is set, otherwise the
// defaults with environment overrides.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	cfg := Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides the credential and app id from the environment. The
// credential never comes from the caller of a trade.
func (c *Config) ApplyEnv() {
	if tok := strings.TrimSpace(os.Getenv(EnvToken)); tok != "" {
		c.Venue.Token = tok
	}
	if app := strings.TrimSpace(os.Getenv(EnvAppID)); app != "" {
		c.Venue.AppID = app
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension).
// The token is never written.
func (c *Config) SaveToFile(path string) error {
	out := *c
	out.Venue.Token = ""

	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(&out)
	} else {
		data, err = json.MarshalIndent(&out, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Venue.Endpoint)
	if err != nil || c.Venue.Endpoint == "" {
		return fmt.Errorf("venue.endpoint is required")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("venue.endpoint must be a ws:// or wss:// url")
	}
	if c.Venue.Currency == "" {
		return fmt.Errorf("venue.currency is required")
	}
	if d, err := c.Venue.TimeoutDuration(); err != nil || d <= 0 {
		return fmt.Errorf("venue.timeout must be a positive duration")
	}
	if d, err := c.Venue.HandshakeDuration(); err != nil || d < 0 {
		return fmt.Errorf("venue.handshake_timeout must be a duration")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Sim.PayoutRatio != "" {
		r, err := decimal.NewFromString(c.Sim.PayoutRatio)
		if err != nil || !r.IsPositive() {
			return fmt.Errorf("sim.payout_ratio must be a positive number")
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug|info|warn|error")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Venue: VenueConfig{
			Endpoint:         "wss://ws.derivws.com/websockets/v3",
			AppID:            "1089",
			Currency:         "USD",
			Timeout:          "30s",
			HandshakeTimeout: "10s",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Sim: SimConfig{
			PayoutRatio: "1.9",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
