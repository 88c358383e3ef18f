package authflow

import (
	"testing"
	"time"
)

// gatewayHotPath is the counter mix one refresh-heavy session produces.
var gatewayHotPath = [...]MetricID{
	MetricSessionReadStrict,
	MetricSessionValidated,
	MetricRefreshSuccess,
	MetricRefreshDeduplicated,
	MetricSessionReadStrict,
	MetricTransportRetry,
}

func BenchmarkMetrics(b *testing.B) {
	for _, enabled := range []bool{true, false} {
		name := "enabled"
		if !enabled {
			name = "disabled"
		}
		m := NewMetrics(MetricsConfig{Enabled: enabled, EnableLatencyHistograms: enabled})

		b.Run(name+"/inc", func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				m.Inc(MetricLoginSuccess)
			}
		})
		b.Run(name+"/inc-parallel", func(b *testing.B) {
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					m.Inc(MetricLoginSuccess)
				}
			})
		})
		b.Run(name+"/observe-parallel", func(b *testing.B) {
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				d := 40 * time.Millisecond
				for pb.Next() {
					m.Observe(MetricGatewayLatency, d)
				}
			})
		})
	}
}

func BenchmarkMetricsGatewayMixParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(gatewayHotPath[idx])
			idx++
			if idx == len(gatewayHotPath) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for _, id := range gatewayHotPath {
		m.Inc(id)
	}
	m.Observe(MetricGatewayLatency, 3*time.Millisecond)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Snapshot()
	}
}
