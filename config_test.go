package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		api:            "http://localhost:8000/api",
		port:           8080,
		idleTimeout:    30 * time.Minute,
		requestTimeout: 30 * time.Second,
	}
}

func TestConfig_validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "https api", modify: func(c *Config) { c.api = "https://games.example.com/api" }},
		{name: "tls pair", modify: func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }},
		{name: "cert without key", modify: func(c *Config) { c.tlsCert = "cert.pem" }, wantErr: true},
		{name: "port too low", modify: func(c *Config) { c.port = 0 }, wantErr: true},
		{name: "port too high", modify: func(c *Config) { c.port = 70000 }, wantErr: true},
		{name: "negative request timeout", modify: func(c *Config) { c.requestTimeout = -time.Second }, wantErr: true},
		{name: "negative idle timeout", modify: func(c *Config) { c.idleTimeout = -time.Second }, wantErr: true},
		{name: "relative api", modify: func(c *Config) { c.api = "/api" }, wantErr: true},
		{name: "websocket api", modify: func(c *Config) { c.api = "ws://localhost:8000" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(&c)

			err := c.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewCmd_env(t *testing.T) {
	t.Setenv("IMPOSTER_PORT", "9090")
	t.Setenv("IMPOSTER_API", "https://games.example.com/api")
	t.Setenv("IMPOSTER_IDLE_TIMEOUT", "5m")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, "https://games.example.com/api", cfg.api)
	assert.Equal(t, 5*time.Minute, cfg.idleTimeout)
	assert.Equal(t, 30*time.Second, cfg.requestTimeout)
}

func TestNewCmd_apiHeader(t *testing.T) {
	t.Setenv("IMPOSTER_API_HEADER", "Authorization=Bearer abc")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, cfg.apiHeaders)

	flagged := &Config{}
	cmd := newCmd(flagged)
	require.NoError(t, cmd.Flags().Parse([]string{"--api-header", "X-Table=7"}))

	assert.Equal(t, "7", flagged.apiHeaders["X-Table"])
}
