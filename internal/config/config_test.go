package config

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	var cfg Config
	err := env.Unmarshal(env.EnvSet{}, &cfg)
	req.NoError(err)

	req.Equal(8080, cfg.Port)
	req.Equal("sqlite", cfg.Store)
	req.Equal(200, cfg.HistoryLimit)
	req.Equal(5*time.Second, cfg.StoreTimeout)
	req.Equal(":8080", cfg.Address())
	req.NoError(cfg.Validate())
}

func TestConfig_Overrides(t *testing.T) {
	req := require.New(t)
	var cfg Config
	err := env.Unmarshal(env.EnvSet{
		"HUDDLE_HOST":               "127.0.0.1",
		"HUDDLE_PORT":               "9000",
		"HUDDLE_STORE":              "badger",
		"HUDDLE_BADGER_PATH":        "/tmp/huddle",
		"HUDDLE_HISTORY_LIMIT":      "50",
		"HUDDLE_RETENTION_INTERVAL": "1m",
	}, &cfg)
	req.NoError(err)

	req.Equal("127.0.0.1:9000", cfg.Address())
	req.Equal("badger", cfg.Store)
	req.Equal(50, cfg.HistoryLimit)
	req.Equal(time.Minute, cfg.RetentionInterval)
	req.NoError(cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		err := env.Unmarshal(env.EnvSet{}, &cfg)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"unknown store", func(c *Config) { c.Store = "postgres" }},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }},
		{"badger without path", func(c *Config) { c.Store = "badger"; c.BadgerDir = "" }},
		{"zero history", func(c *Config) { c.HistoryLimit = 0 }},
		{"zero send buffer", func(c *Config) { c.SendBuffer = 0 }},
		{"zero rate", func(c *Config) { c.MessagesPerSecond = 0 }},
		{"zero store timeout", func(c *Config) { c.StoreTimeout = 0 }},
		{"negative retention", func(c *Config) { c.RetentionKeep = -1 }},
		{"retention without interval", func(c *Config) { c.RetentionInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	t.Run("retention disabled needs no interval", func(t *testing.T) {
		cfg := valid()
		cfg.RetentionKeep = 0
		cfg.RetentionInterval = 0
		require.NoError(t, cfg.Validate())
	})
}
