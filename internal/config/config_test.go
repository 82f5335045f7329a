package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "gamebridge_db", cfg.Database.Database)
				assert.Equal(t, "gamebridge_events", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "gamebridge_events_audit", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "gamebridge-api", cfg.App.Name)
				assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
				assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
				assert.Equal(t, 5*time.Second, cfg.Reaper.Interval)
				assert.Equal(t, 10*time.Second, cfg.Reaper.StaleAfter)
				assert.NotEmpty(t, cfg.Auth.SecretDigest)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "gamebridge_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "gamebridge_events",
			},
			Queue: QueueConfig{
				Name: "gamebridge_events_audit",
			},
		},
		Auth: AuthConfig{
			SecretDigest: "abc123",
			SecretSalt:   "salt",
		},
		RateLimit: RateLimitConfig{
			Window:      10 * time.Second,
			MaxRequests: 5,
		},
		Reaper: ReaperConfig{
			Interval:   5 * time.Second,
			StaleAfter: 10 * time.Second,
		},
		Ingest: IngestConfig{
			Concurrency:     4,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "missing database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "missing rabbitmq exchange",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "missing secret digest",
			mutate:    func(c *Config) { c.Auth.SecretDigest = "" },
			wantErr:   true,
			errString: "auth secret_digest is required",
		},
		{
			name:      "zero rate limit window",
			mutate:    func(c *Config) { c.RateLimit.Window = 0 },
			wantErr:   true,
			errString: "rate_limit window",
		},
		{
			name:      "zero rate limit max",
			mutate:    func(c *Config) { c.RateLimit.MaxRequests = 0 },
			wantErr:   true,
			errString: "rate_limit max_requests",
		},
		{
			name:      "zero reaper interval",
			mutate:    func(c *Config) { c.Reaper.Interval = 0 },
			wantErr:   true,
			errString: "reaper interval",
		},
		{
			name:      "zero staleness threshold",
			mutate:    func(c *Config) { c.Reaper.StaleAfter = 0 },
			wantErr:   true,
			errString: "reaper stale_after",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateIngestConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Ingest.Concurrency = 0 },
			wantErr:   true,
			errString: "ingest concurrency",
		},
		{
			name:      "zero shutdown timeout",
			mutate:    func(c *Config) { c.Ingest.ShutdownTimeout = 0 },
			wantErr:   true,
			errString: "ingest shutdown_timeout",
		},
		{
			name:      "missing rabbitmq queue",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateIngestConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
