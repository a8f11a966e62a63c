package config

import (
	"strings"
	"testing"
)

// TestGetDefaults verifies that the default configuration is valid
func TestGetDefaults(t *testing.T) {
	config := GetDefaults()

	if err := validateConfig(config); err != nil {
		t.Errorf("Default configuration must validate: %v", err)
	}

	if config.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", config.Server.Port)
	}
	if !config.Normalize.WildcardCompat {
		t.Error("Wildcard compatibility mode must default to on")
	}
	if config.Normalize.Strict {
		t.Error("Strict mode must default to off")
	}
	if config.Cache.Enabled {
		t.Error("Cache must default to disabled")
	}
	if config.Audit.Enabled {
		t.Error("Audit must default to disabled")
	}
}

// TestValidateConfig tests configuration validation
func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "InvalidPort",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "PortTooLarge",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "InvalidLogLevel",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "InvalidLogFormat",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name: "RateLimitWithoutRate",
			mutate: func(c *Config) {
				c.Server.RateLimit.Enabled = true
				c.Server.RateLimit.RequestsPerSec = 0
			},
			wantErr: "invalid rate limit",
		},
		{
			name: "CacheWithoutURL",
			mutate: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.RedisURL = ""
			},
			wantErr: "redis_url is empty",
		},
		{
			name: "AuditWithoutURL",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.DatabaseURL = ""
			},
			wantErr: "database_url is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaults()
			tt.mutate(config)

			err := validateConfig(config)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
