package test

import (
	"testing"
	"time"

	"github.com/MrEthical07/authflow"
)

func TestDefaultConfigPresetValidates(t *testing.T) {
	cfg := authflow.DefaultConfig()

	if cfg.Storage.Backend != authflow.StorageMemory {
		t.Fatalf("expected memory storage, got %q", cfg.Storage.Backend)
	}
	if !cfg.RateLimit.Enabled {
		t.Fatal("expected login rate limiting enabled")
	}
	if cfg.Flow.LenientCredentials {
		t.Fatal("expected strict credential handling by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected preset to validate, got %v", err)
	}
}

func TestConfigPresetRejectsBrokenOverrides(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*authflow.Config)
	}{
		{"relative base url", func(c *authflow.Config) { c.Transport.BaseURL = "/auth" }},
		{"unknown storage backend", func(c *authflow.Config) { c.Storage.Backend = "disk" }},
		{"no retry attempts", func(c *authflow.Config) { c.Retry.MaxAttempts = 0 }},
		{"negative window", func(c *authflow.Config) { c.RateLimit.Window = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := authflow.DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
