package authflow

import (
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/policy"
	"github.com/MrEthical07/authflow/session"
	"github.com/MrEthical07/authflow/transport"
)

// Builder assembles a [Client]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	transport transport.Transport
	storage   session.Storage
	limiter   RateLimiter
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder starting from [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTransport supplies the API transport instead of the built-in HTTP client.
func (b *Builder) WithTransport(t transport.Transport) *Builder {
	b.transport = t
	return b
}

// WithStorage supplies the session storage backend, overriding Storage.Backend.
func (b *Builder) WithStorage(s session.Storage) *Builder {
	b.storage = s
	return b
}

// WithRedis supplies the Redis client used by the redis storage and rate
// limit backends.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRateLimiter supplies the limiter, overriding the RateLimit section.
func (b *Builder) WithRateLimiter(l RateLimiter) *Builder {
	b.limiter = l
	return b
}

// WithClock overrides time.Now for token expiry, rate limiting and audit.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the gateway latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	// -------- TRANSPORT --------
	tr := b.transport
	if tr == nil {
		if cfg.Transport.BaseURL == "" {
			return nil, errors.New("Transport BaseURL or WithTransport required")
		}
		tr = transport.NewHTTPClient(
			cfg.Transport.BaseURL,
			transport.WithTimeout(cfg.Transport.Timeout),
			transport.WithUserAgent(cfg.Transport.UserAgent),
		)
	}

	// -------- SESSION STORE --------
	storage := b.storage
	if storage == nil {
		switch cfg.Storage.Backend {
		case StorageRedis:
			if b.redis == nil {
				return nil, errors.New("redis storage backend requires redis client")
			}
			storage = session.NewRedisStorage(b.redis, cfg.Storage.RedisPrefix, cfg.Storage.TTL)
		default:
			storage = session.NewMemoryStorage()
		}
	}

	metrics := NewMetrics(cfg.Metrics)
	store := session.NewStore(
		storage,
		session.WithKey(cfg.Storage.Key),
		session.WithReadObserver(func(outcome session.ReadOutcome) {
			switch outcome {
			case session.ReadStrict:
				metrics.Inc(MetricSessionReadStrict)
			case session.ReadLegacyObject, session.ReadLegacyToken:
				metrics.Inc(MetricSessionReadLegacy)
			case session.ReadDiscarded:
				metrics.Inc(MetricSessionReadDiscarded)
				logger.Print("authflow: discarded malformed stored session")
			}
		}),
	)

	// -------- RATE LIMITER --------
	limiter := b.limiter
	if limiter == nil {
		limiter = newLimiter(cfg.RateLimit, b.redis, now)
	}

	// -------- POLICY --------
	retry := policy.DefaultRetry()
	retry.MaxAttempts = cfg.Retry.MaxAttempts
	retry.InitialDelay = cfg.Retry.InitialDelay
	retry.MaxDelay = cfg.Retry.MaxDelay
	retry.Statuses = cfg.Retry.Statuses

	tokens := policy.NewTokenPolicy(policy.WithClock(now), policy.WithSkew(cfg.Token.ExpirySkew))

	gateway := &Gateway{
		transport: tr,
		store:     store,
		limiter:   limiter,
		retry:     retry,
		tokens:    tokens,
		metrics:   metrics,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink, now),
		logger:    logger,
		now:       now,
		newID:     newRequestID,
	}

	b.built = true

	return &Client{
		config:  cfg,
		gateway: gateway,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}, nil
}

func newLimiter(cfg RateLimitConfig, client redis.UniversalClient, now func() time.Time) RateLimiter {
	if !cfg.Enabled {
		return rate.Unlimited{}
	}
	budget := rate.Config{Max: cfg.MaxAttempts, Window: cfg.Window}
	if cfg.Backend == StorageRedis && client != nil {
		return rate.NewRedis(client, budget, cfg.RedisPrefix)
	}
	return rate.NewMemory(budget, rate.WithClock(now))
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, now func() time.Time) *internalaudit.Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	return internalaudit.NewDispatcher(sink, internalaudit.Options{
		Buffer:     cfg.BufferSize,
		DropOnFull: cfg.DropIfFull,
		Now:        now,
	})
}
