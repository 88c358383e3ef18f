package authflow

import (
	"testing"
	"time"
)

func TestConfigValidateTable(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "base url valid",
			mutate: func(c *Config) {
				c.Transport.BaseURL = "https://api.example.com"
			},
			wantValid: true,
		},
		{
			name: "base url relative invalid",
			mutate: func(c *Config) {
				c.Transport.BaseURL = "/auth"
			},
			wantValid: false,
		},
		{
			name: "base url scheme invalid",
			mutate: func(c *Config) {
				c.Transport.BaseURL = "ftp://api.example.com"
			},
			wantValid: false,
		},
		{
			name: "storage redis valid",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageRedis
			},
			wantValid: true,
		},
		{
			name: "storage backend invalid",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
			},
			wantValid: false,
		},
		{
			name: "storage key blank invalid",
			mutate: func(c *Config) {
				c.Storage.Key = "  "
			},
			wantValid: false,
		},
		{
			name: "retry attempts zero invalid",
			mutate: func(c *Config) {
				c.Retry.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "retry delay order invalid",
			mutate: func(c *Config) {
				c.Retry.InitialDelay = 10 * time.Second
				c.Retry.MaxDelay = time.Second
			},
			wantValid: false,
		},
		{
			name: "retry status 4xx invalid",
			mutate: func(c *Config) {
				c.Retry.Statuses = []int{429}
			},
			wantValid: false,
		},
		{
			name: "rate limit window zero invalid",
			mutate: func(c *Config) {
				c.RateLimit.Window = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit disabled ignores budget",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.MaxAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "token skew too large invalid",
			mutate: func(c *Config) {
				c.Token.ExpirySkew = time.Hour
			},
			wantValid: false,
		},
		{
			name: "audit buffer zero invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "latency without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestCloneConfigCopiesStatuses(t *testing.T) {
	cfg := DefaultConfig()
	out := cloneConfig(cfg)
	out.Retry.Statuses[0] = 599

	if cfg.Retry.Statuses[0] != 500 {
		t.Fatalf("expected clone to own its slice, got %v", cfg.Retry.Statuses)
	}
}
