package authflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram slot.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that stored a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts classified login failures.
	MetricLoginFailure
	// MetricRegisterSuccess counts accepted registration submissions.
	MetricRegisterSuccess
	// MetricRegisterFailure counts rejected registration submissions.
	MetricRegisterFailure
	// MetricRegistrationComplete counts action-token registration completions.
	MetricRegistrationComplete
	// MetricOTPVerifySuccess counts OTP verifications that returned an action token.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts failed OTP verifications.
	MetricOTPVerifyFailure
	// MetricPasswordResetRequest counts password reset OTP requests.
	MetricPasswordResetRequest
	// MetricPasswordResetComplete counts completed password resets.
	MetricPasswordResetComplete
	// MetricRefreshSuccess counts refresh POSTs that stored a new access token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed refreshes.
	MetricRefreshFailure
	// MetricRefreshDeduplicated counts queued refreshes served from a refresh that completed while they waited.
	MetricRefreshDeduplicated
	// MetricProfileRefresh counts profile fetches merged into the stored session.
	MetricProfileRefresh
	// MetricSessionValidated counts server-side session validations.
	MetricSessionValidated
	// MetricSessionExpired counts sessions rejected locally as expired.
	MetricSessionExpired
	// MetricLogout counts logouts.
	MetricLogout
	// MetricRateLimitHit counts requests denied by the local limiter.
	MetricRateLimitHit
	// MetricTransportRetry counts retried transport attempts.
	MetricTransportRetry
	// MetricSessionReadStrict counts stored sessions that passed the strict schema.
	MetricSessionReadStrict
	// MetricSessionReadLegacy counts stored sessions recovered through a legacy path.
	MetricSessionReadLegacy
	// MetricSessionReadDiscarded counts stored values discarded as malformed.
	MetricSessionReadDiscarded
	// MetricGatewayLatency is the gateway request latency histogram.
	MetricGatewayLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and the gateway latency histogram.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metric values.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a metrics set configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram for id. Only MetricGatewayLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricGatewayLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricGatewayLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricGatewayLatency].buckets[i])
		}
		s.Histograms[MetricGatewayLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
