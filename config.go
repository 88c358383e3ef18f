package authflow

import (
	"errors"
	"log"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/session"
)

// Config is the full client configuration. Start from [DefaultConfig] and
// override fields; [Builder.Build] validates the result.
type Config struct {
	Transport TransportConfig `toml:"transport"`
	Storage   StorageConfig   `toml:"storage"`
	Retry     RetryConfig     `toml:"retry"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Token     TokenConfig     `toml:"token"`
	Flow      FlowConfig      `toml:"flow"`
	Audit     AuditConfig     `toml:"audit"`
	Metrics   MetricsConfig   `toml:"metrics"`

	// Logger receives non-fatal warnings. Nil uses log.Default().
	Logger *log.Logger `toml:"-"`
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig configures the built-in HTTP transport. It is ignored when
// a transport is supplied through [Builder.WithTransport].
type TransportConfig struct {
	BaseURL   string        `toml:"base_url"`
	Timeout   time.Duration `toml:"timeout"`
	UserAgent string        `toml:"user_agent"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// StorageConfig selects where the session record lives.
type StorageConfig struct {
	Backend     string        `toml:"backend"`
	Key         string        `toml:"key"`
	RedisPrefix string        `toml:"redis_prefix"`
	TTL         time.Duration `toml:"ttl"`
}

/*
====================================
RETRY CONFIG
====================================
*/

// RetryConfig configures transport retries.
type RetryConfig struct {
	MaxAttempts  int           `toml:"max_attempts"`
	InitialDelay time.Duration `toml:"initial_delay"`
	MaxDelay     time.Duration `toml:"max_delay"`
	Statuses     []int         `toml:"statuses"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the local attempt limiter applied to login,
// register, password reset requests and OTP verification.
type RateLimitConfig struct {
	Enabled     bool          `toml:"enabled"`
	Backend     string        `toml:"backend"`
	MaxAttempts int           `toml:"max_attempts"`
	Window      time.Duration `toml:"window"`
	RedisPrefix string        `toml:"redis_prefix"`
}

/*
====================================
TOKEN / FLOW CONFIG
====================================
*/

// TokenConfig tunes local expiry decisions.
type TokenConfig struct {
	// ExpirySkew treats tokens expiring within this window as expired.
	ExpirySkew time.Duration `toml:"expiry_skew"`
}

// FlowConfig tunes machine flows.
type FlowConfig struct {
	// LenientCredentials substitutes an empty password when a flow lost its
	// pending credentials, letting the server reject the login. When false
	// the machine fails with ErrCredentialsLost before any request.
	LenientCredentials bool `toml:"lenient_credentials"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `toml:"enabled"`
	BufferSize int  `toml:"buffer_size"`
	DropIfFull bool `toml:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `toml:"enabled"`
	EnableLatencyHistograms bool `toml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration [New] starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			Timeout:   15 * time.Second,
			UserAgent: "authflow",
		},
		Storage: StorageConfig{
			Backend:     StorageMemory,
			Key:         session.DefaultKey,
			RedisPrefix: "authflow",
			TTL:         0,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 300 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Statuses:     []int{500, 502, 503, 504},
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Backend:     StorageMemory,
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			RedisPrefix: "afrl",
		},
		Token: TokenConfig{
			ExpirySkew: 0,
		},
		Flow: FlowConfig{
			LenientCredentials: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Retry.Statuses = slices.Clone(cfg.Retry.Statuses)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	// Transport
	if c.Transport.BaseURL != "" {
		u, err := url.Parse(c.Transport.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Transport BaseURL must be an absolute URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("Transport BaseURL scheme must be http or https")
		}
	}
	if c.Transport.Timeout < 0 {
		return errors.New("Transport Timeout must be >= 0")
	}

	// Storage
	if c.Storage.Backend != StorageMemory && c.Storage.Backend != StorageRedis {
		return errors.New("Storage Backend must be \"memory\" or \"redis\"")
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		return errors.New("Storage Key must not be empty")
	}
	if c.Storage.TTL < 0 {
		return errors.New("Storage TTL must be >= 0")
	}
	if c.Storage.Backend == StorageRedis && c.Storage.RedisPrefix == "" {
		return errors.New("Storage RedisPrefix must not be empty for the redis backend")
	}

	// Retry
	if c.Retry.MaxAttempts < 1 {
		return errors.New("Retry MaxAttempts must be >= 1")
	}
	if c.Retry.MaxAttempts > 10 {
		return errors.New("Retry MaxAttempts must be <= 10")
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		return errors.New("Retry delays must be >= 0")
	}
	if c.Retry.MaxDelay > 0 && c.Retry.InitialDelay > c.Retry.MaxDelay {
		return errors.New("Retry InitialDelay must be <= MaxDelay")
	}
	for _, status := range c.Retry.Statuses {
		if status < 500 || status > 599 {
			return errors.New("Retry Statuses must be 5xx codes")
		}
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Backend != StorageMemory && c.RateLimit.Backend != StorageRedis {
			return errors.New("RateLimit Backend must be \"memory\" or \"redis\"")
		}
		if err := (rate.Config{Max: c.RateLimit.MaxAttempts, Window: c.RateLimit.Window}).Validate(); err != nil {
			return errors.New("RateLimit requires MaxAttempts > 0 and Window > 0")
		}
	}

	// Token
	if c.Token.ExpirySkew < 0 {
		return errors.New("Token ExpirySkew must be >= 0")
	}
	if c.Token.ExpirySkew > 10*time.Minute {
		return errors.New("Token ExpirySkew must be <= 10m")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
