package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics tracks the JSON-RPC surface and its background consumers.
type RPCMetrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	throttles  *prometheus.CounterVec
	streams    prometheus.Gauge
	webhooks   *prometheus.CounterVec
	salesIndex *prometheus.CounterVec
}

var (
	rpcOnce     sync.Once
	rpcRegistry *RPCMetrics
)

// RPC returns the lazily registered RPC collectors.
func RPC() *RPCMetrics {
	rpcOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests segmented by method and response code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftmarket",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Requests rejected by throttling policies.",
			}, []string{"reason"}),
			streams: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nftmarket",
				Subsystem: "rpc",
				Name:      "event_streams",
				Help:      "Open websocket event subscriptions.",
			}),
			webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "webhook",
				Name:      "attempts_total",
				Help:      "Outbound hook HTTP attempts segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			salesIndex: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "sales_index",
				Name:      "writes_total",
				Help:      "Sale index writes segmented by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.latency,
			rpcRegistry.throttles,
			rpcRegistry.streams,
			rpcRegistry.webhooks,
			rpcRegistry.salesIndex,
		)
	})
	return rpcRegistry
}

// Observe records one JSON-RPC call. Code is zero on success.
func (m *RPCMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	method = label(method, "unknown")
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *RPCMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(label(reason, "unspecified")).Inc()
}

// StreamOpened and StreamClosed track websocket subscribers.
func (m *RPCMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streams.Inc()
}

func (m *RPCMetrics) StreamClosed() {
	if m == nil {
		return
	}
	m.streams.Dec()
}

// ObserveWebhook records an outbound hook attempt.
func (m *RPCMetrics) ObserveWebhook(kind, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(label(kind, "unknown"), label(outcome, "unknown")).Inc()
}

// ObserveSalesIndex records a sale index write.
func (m *RPCMetrics) ObserveSalesIndex(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.salesIndex.WithLabelValues(outcome).Inc()
}
