package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HandshakeTotal        = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ntrip_handshake_total", Help: "Caster handshakes by result"}, []string{"result"})
	UpstreamBytesTotal    = promauto.NewCounter(prometheus.CounterOpts{Name: "ntrip_upstream_bytes_total", Help: "Bytes received from the caster"})
	UpstreamChunksTotal   = promauto.NewCounter(prometheus.CounterOpts{Name: "ntrip_upstream_chunks_total", Help: "Chunks received from the caster"})
	StreamDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "ntrip_stream_duration_seconds", Help: "Upstream stream lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 20)})
	RelaySubscribers      = promauto.NewGauge(prometheus.GaugeOpts{Name: "ntrip_relay_subscribers", Help: "Currently connected relay subscribers"})
	RelayAcceptedTotal    = promauto.NewCounter(prometheus.CounterOpts{Name: "ntrip_relay_accepted_total", Help: "Relay subscribers accepted"})
	RelayDroppedTotal     = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ntrip_relay_dropped_total", Help: "Relay subscribers dropped by reason"}, []string{"reason"})
	RelayBytesSentTotal   = promauto.NewCounter(prometheus.CounterOpts{Name: "ntrip_relay_bytes_sent_total", Help: "Bytes written to relay subscribers"})
	ErrorsTotal           = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ntrip_errors_total", Help: "Errors by type"}, []string{"type"})
)
