package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "USD", cfg.Venue.Currency)
	d, err := cfg.Venue.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Venue.Endpoint = "" },
			wantErr: true,
			errMsg:  "venue.endpoint is required",
		},
		{
			name:    "http endpoint",
			mutate:  func(c *Config) { c.Venue.Endpoint = "https://example.com" },
			wantErr: true,
			errMsg:  "ws:// or wss://",
		},
		{
			name:    "missing currency",
			mutate:  func(c *Config) { c.Venue.Currency = "" },
			wantErr: true,
			errMsg:  "venue.currency is required",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Venue.Timeout = "0s" },
			wantErr: true,
			errMsg:  "venue.timeout must be a positive duration",
		},
		{
			name:    "garbage timeout",
			mutate:  func(c *Config) { c.Venue.Timeout = "soon" },
			wantErr: true,
			errMsg:  "venue.timeout",
		},
		{
			name:    "bad payout ratio",
			mutate:  func(c *Config) { c.Sim.PayoutRatio = "-1" },
			wantErr: true,
			errMsg:  "sim.payout_ratio",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: true,
			errMsg:  "log.level",
		},
		{
			name:    "missing server addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
			errMsg:  "server.addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvToken, "")
			cfg := Default()
			cfg.Venue.Token = "do-not-persist"
			cfg.Venue.Timeout = "12s"
			path := filepath.Join(tmpDir, "test"+tt.ext)

			err := cfg.SaveToFile(path)
			require.NoError(t, err)

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(raw), "do-not-persist")

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Venue.Endpoint, loaded.Venue.Endpoint)
			assert.Equal(t, cfg.Venue.Currency, loaded.Venue.Currency)
			assert.Equal(t, "12s", loaded.Venue.Timeout)
			assert.Empty(t, loaded.Venue.Token)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv(EnvToken, "")
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("venue:\n  app_id: \"4242\"\n"), 0600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "4242", cfg.Venue.AppID)
	assert.Equal(t, "wss://ws.derivws.com/websockets/v3", cfg.Venue.Endpoint)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvToken, "env-token")
	t.Setenv(EnvAppID, "777")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Venue.Token)
	assert.Equal(t, "777", cfg.Venue.AppID)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("venue: [unterminated"), 0600))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}
